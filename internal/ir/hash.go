package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan   = "graphsql/plan/v1"
	DomainCipher = "graphsql/cipher/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the domain-separated hash of v's canonical JSON encoding.
func Hash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// HashStrings hashes an ordered list of strings under domain. Parts are
// separated by 0x00 so ("ab","c") and ("a","bc") never collide.
func HashStrings(domain string, parts ...string) string {
	var data []byte
	for i, p := range parts {
		if i > 0 {
			data = append(data, 0x00)
		}
		data = append(data, p...)
	}
	return hashWithDomain(domain, data)
}
