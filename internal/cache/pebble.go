package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// pebblePrefix namespaces cache keys so Clear can range-delete them
// without touching anything else in the same store.
var pebblePrefix = []byte("graphsql/cache/")

// Pebble is a Backend on a pebble LSM store. Values are laid out as an
// 8-byte big-endian expiry (unix nanoseconds, 0 for none) followed by the
// cached bytes.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble store in dir.
func OpenPebble(dir string) (*Pebble, error) {
	return openPebble(dir, nil)
}

// OpenPebbleInMemory opens a pebble store that lives only in memory.
func OpenPebbleInMemory() (*Pebble, error) {
	return openPebble("graphsql-cache", vfs.NewMem())
}

func openPebble(dir string, fs vfs.FS) (*Pebble, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Name() string { return "pebble" }

func (p *Pebble) Load(_ context.Context, key string) (Entry, bool, error) {
	value, closer, err := p.db.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	e, err := decodePebbleValue(value)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (p *Pebble) Store(_ context.Context, key string, e Entry) error {
	if err := p.db.Set(pebbleKey(key), encodePebbleValue(e), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *Pebble) Delete(_ context.Context, key string) error {
	if err := p.db.Delete(pebbleKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

func (p *Pebble) Clear(_ context.Context) error {
	if err := p.db.DeleteRange(pebblePrefix, prefixEnd(pebblePrefix), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete range: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (p *Pebble) Close() error {
	return p.db.Close()
}

func pebbleKey(key string) []byte {
	k := make([]byte, 0, len(pebblePrefix)+len(key))
	k = append(k, pebblePrefix...)
	return append(k, key...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodePebbleValue(e Entry) []byte {
	buf := make([]byte, 8+len(e.Value))
	if !e.ExpiresAt.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(e.ExpiresAt.UnixNano()))
	}
	copy(buf[8:], e.Value)
	return buf
}

// decodePebbleValue copies out of value, which pebble reuses after the
// closer is closed.
func decodePebbleValue(value []byte) (Entry, error) {
	if len(value) < 8 {
		return Entry{}, fmt.Errorf("pebble value too short: %d bytes", len(value))
	}
	var e Entry
	if ns := binary.BigEndian.Uint64(value[:8]); ns != 0 {
		e.ExpiresAt = time.Unix(0, int64(ns)).UTC()
	}
	e.Value = append([]byte(nil), value[8:]...)
	return e, nil
}
