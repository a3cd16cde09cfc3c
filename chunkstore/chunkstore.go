// Package chunkstore persists prepared chunk frames on local disk, one
// container file per (table, row range) key.
//
// Entries are immutable: the first write wins and later writes for the same
// key are no-ops, so a populated entry never changes content. Read and write
// failures are returned to the caller rather than degraded into refetches; a
// corrupt entry is an error, not a miss.
package chunkstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

type options struct {
	compression frame.CompressionType
}

// Option configures a Store.
type Option func(*options)

// WithCompression sets the block compression of new entries. The default is
// ZSTD.
func WithCompression(c frame.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// Store is a session-scoped chunk cache directory.
type Store struct {
	dir         string
	compression frame.CompressionType
}

// Open creates or reopens the chunk directory of a session under root.
func Open(root, session string, opts ...Option) (*Store, error) {
	if session == "" {
		return nil, fmt.Errorf("chunkstore: session id must not be empty")
	}

	o := options{compression: frame.CompressionZSTD}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Join(root, "chunks-"+sanitizeID(session))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunkstore: create %s: %w", dir, err)
	}
	return &Store{dir: dir, compression: o.compression}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) entryPath(tableID string, rng frame.Range) string {
	name := fmt.Sprintf("%s_%d_%d", sanitizeID(tableID), rng.Start, rng.End)
	return filepath.Join(s.dir, name)
}

// Has reports whether an entry exists for the key.
func (s *Store) Has(tableID string, rng frame.Range) bool {
	_, err := os.Stat(s.entryPath(tableID, rng))
	return err == nil
}

// Get loads the entry for the key. A missing entry is (nil, false, nil); an
// unreadable or corrupt entry is an error.
func (s *Store) Get(tableID string, rng frame.Range) (*frame.Frame, bool, error) {
	path := s.entryPath(tableID, rng)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chunkstore: open entry %s: %w", path, err)
	}
	defer file.Close()

	f, _, err := frame.ReadFrame(bufio.NewReaderSize(file, 256*1024))
	if err != nil {
		return nil, false, fmt.Errorf("chunkstore: read entry %s: %w", path, err)
	}
	return f, true, nil
}

// Put writes the entry for the key and returns the bytes written. An existing
// entry is left untouched and reported as zero bytes.
func (s *Store) Put(tableID string, rng frame.Range, f *frame.Frame) (int64, error) {
	if err := rng.Validate(); err != nil {
		return 0, fmt.Errorf("chunkstore: %w", err)
	}
	path := s.entryPath(tableID, rng)
	if _, err := os.Stat(path); err == nil {
		return 0, nil
	}

	// Write to a temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("chunkstore: create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	written, err := frame.WriteFrame(buf, f, s.compression)
	if err != nil {
		return 0, fmt.Errorf("chunkstore: write entry %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return 0, fmt.Errorf("chunkstore: write entry %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("chunkstore: sync entry %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("chunkstore: close entry %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("chunkstore: publish entry %s: %w", path, err)
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(s.dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return written, nil
}

// Clear removes the session directory and everything in it. The store is not
// usable afterwards.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("chunkstore: clear %s: %w", s.dir, err)
	}
	return nil
}

// sanitizeID keeps entry names path-safe.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '-'
		}
	}, id)
}
