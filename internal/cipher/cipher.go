// Package cipher obfuscates graph expressions so they can travel in URLs
// without being read or edited casually.
//
// This is NOT cryptography. The scheme is a position-dependent substitution
// over a fixed alphabet followed by an optional key-driven permutation. It
// keeps honest clients from hand-editing expressions; it does not resist
// anyone who wants to break it.
//
// A secret has the form "shift" or "shift.scramble". The shift key drives
// the substitution; the scramble key, when present, drives the permutation.
package cipher

import (
	"errors"
	"strings"
)

// Alphabet is the substitution alphabet. Characters outside it pass
// through unchanged.
const Alphabet = ",.-_:(){}[]0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ErrEmptySecret is returned when the secret has no shift key.
var ErrEmptySecret = errors.New("cipher secret has no shift key")

// Encrypt substitutes then scrambles plain.
func Encrypt(plain, secret string) (string, error) {
	shift, scramble, err := splitSecret(secret)
	if err != nil {
		return "", err
	}
	out := substitute(plain, shift, 1)
	if scramble != "" {
		out = permute(out, scramble, false)
	}
	return out, nil
}

// Decrypt reverses Encrypt: it unscrambles then reverses the substitution.
func Decrypt(encrypted, secret string) (string, error) {
	shift, scramble, err := splitSecret(secret)
	if err != nil {
		return "", err
	}
	out := encrypted
	if scramble != "" {
		out = permute(out, scramble, true)
	}
	return substitute(out, shift, -1), nil
}

// splitSecret splits "shift.scramble". Anything after a second dot is
// ignored.
func splitSecret(secret string) (shift, scramble string, err error) {
	parts := strings.Split(secret, ".")
	if parts[0] == "" {
		return "", "", ErrEmptySecret
	}
	if len(parts) > 1 {
		scramble = parts[1]
	}
	return parts[0], scramble, nil
}

// keyOffset derives a step from one key byte: digits count as their value,
// anything else as its byte value reduced modulo mod.
func keyOffset(k byte, mod int) int {
	if k >= '0' && k <= '9' {
		return int(k - '0')
	}
	return int(k) % mod
}

// substitute moves each alphabet character dir*offset places around the
// alphabet, the offset cycling through key.
func substitute(s, key string, dir int) string {
	n := len(Alphabet)
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		idx := strings.IndexByte(Alphabet, out[i])
		if idx < 0 {
			continue
		}
		shift := keyOffset(key[i%len(key)], n)
		out[i] = Alphabet[((idx+dir*shift)%n+n)%n]
	}
	return string(out)
}

// permute swaps each position i with a key-derived index. Swapping in
// descending order undoes swapping in ascending order.
func permute(s, key string, reverse bool) string {
	out := []byte(s)
	n := len(out)
	swap := func(i int) {
		j := keyOffset(key[i%len(key)], n) % n
		out[i], out[j] = out[j], out[i]
	}
	if reverse {
		for i := n - 1; i >= 0; i-- {
			swap(i)
		}
	} else {
		for i := 0; i < n; i++ {
			swap(i)
		}
	}
	return string(out)
}
