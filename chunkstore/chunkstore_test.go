package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

func chunk(t *testing.T, tag float64) *frame.Frame {
	t.Helper()
	f := frame.New(3)
	require.NoError(t, f.Add(frame.NewUint16(".y", []uint16{0, 32768, 65535})))
	require.NoError(t, f.Add(frame.NewInt32(".ri", []int32{0, 1, 2})))
	require.NoError(t, f.Add(frame.NewFloat64("v", []float64{tag, tag + 1, tag + 2})))
	return f
}

func TestStore_PutGet(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	rng := frame.Range{Start: 0, End: 3}
	written, err := s.Put("table-a", rng, chunk(t, 10))
	require.NoError(t, err)
	assert.Greater(t, written, int64(0))
	assert.True(t, s.Has("table-a", rng))

	got, ok, err := s.Get("table-a", rng)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.NumRows())

	v, err := got.Float64("v")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, v.F64)

	entries, err := filepath.Glob(filepath.Join(s.Dir(), "*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files survive a successful put")
}

func TestStore_Miss(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	got, ok, err := s.Get("table-a", frame.Range{Start: 0, End: 3})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, s.Has("table-a", frame.Range{Start: 0, End: 3}))
}

func TestStore_KeyedByRange(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	_, err = s.Put("t", frame.Range{Start: 0, End: 3}, chunk(t, 1))
	require.NoError(t, err)

	// Same table, different window: exact-key semantics, no overlap reuse.
	_, ok, err := s.Get("t", frame.Range{Start: 0, End: 2})
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get("t", frame.Range{Start: 3, End: 6})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_FirstWriteWins(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	rng := frame.Range{Start: 5, End: 8}
	_, err = s.Put("t", rng, chunk(t, 1))
	require.NoError(t, err)

	written, err := s.Put("t", rng, chunk(t, 999))
	require.NoError(t, err)
	assert.Equal(t, int64(0), written, "second put is a no-op")

	got, ok, err := s.Get("t", rng)
	require.NoError(t, err)
	require.True(t, ok)
	v, err := got.Float64("v")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.F64[0], "first write's content is preserved")
}

func TestStore_CorruptEntryFails(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	rng := frame.Range{Start: 0, End: 3}
	_, err = s.Put("t", rng, chunk(t, 1))
	require.NoError(t, err)

	entries, err := filepath.Glob(filepath.Join(s.Dir(), "t_*"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	data[len(data)-2] ^= 0xFF
	require.NoError(t, os.WriteFile(entries[0], data, 0o644))

	_, _, err = s.Get("t", rng)
	require.Error(t, err, "a corrupt entry is an error, not a miss")
	assert.ErrorIs(t, err, frame.ErrCorrupted)
}

func TestStore_Clear(t *testing.T) {
	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)

	_, err = s.Put("t", frame.Range{Start: 0, End: 3}, chunk(t, 1))
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	_, err = os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(err), "session directory is removed")
}

func TestStore_SessionIsolation(t *testing.T) {
	root := t.TempDir()
	s1, err := Open(root, "sess-1")
	require.NoError(t, err)
	s2, err := Open(root, "sess-2")
	require.NoError(t, err)
	require.NotEqual(t, s1.Dir(), s2.Dir())

	rng := frame.Range{Start: 0, End: 3}
	_, err = s1.Put("t", rng, chunk(t, 1))
	require.NoError(t, err)

	_, ok, err := s2.Get("t", rng)
	require.NoError(t, err)
	assert.False(t, ok, "sessions do not share entries")
}

func TestStore_Reopen(t *testing.T) {
	root := t.TempDir()
	rng := frame.Range{Start: 0, End: 3}

	s1, err := Open(root, "sess-1")
	require.NoError(t, err)
	_, err = s1.Put("t", rng, chunk(t, 4))
	require.NoError(t, err)

	s2, err := Open(root, "sess-1")
	require.NoError(t, err)
	got, ok, err := s2.Get("t", rng)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.NumRows())
}

func TestStore_SanitizedNames(t *testing.T) {
	s, err := Open(t.TempDir(), "user@example.com/42")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(s.Dir()), "chunks-user-example.com-42")

	rng := frame.Range{Start: 0, End: 3}
	_, err = s.Put("ds/1:main", rng, chunk(t, 1))
	require.NoError(t, err)

	_, ok, err := s.Get("ds/1:main", rng)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := filepath.Glob(filepath.Join(s.Dir(), "ds-1-main_0_3"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Compression(t *testing.T) {
	for _, c := range []frame.CompressionType{frame.CompressionNone, frame.CompressionLZ4, frame.CompressionZSTD} {
		s, err := Open(t.TempDir(), "sess-1", WithCompression(c))
		require.NoError(t, err)

		rng := frame.Range{Start: 0, End: 3}
		_, err = s.Put("t", rng, chunk(t, 7))
		require.NoError(t, err)

		got, ok, err := s.Get("t", rng)
		require.NoError(t, err)
		require.True(t, ok, c.String())
		assert.Equal(t, 3, got.NumRows())
	}
}

func TestStore_Invalid(t *testing.T) {
	_, err := Open(t.TempDir(), "")
	assert.Error(t, err, "empty session id")

	s, err := Open(t.TempDir(), "sess-1")
	require.NoError(t, err)
	_, err = s.Put("t", frame.Range{Start: 3, End: 3}, chunk(t, 1))
	assert.Error(t, err, "empty range")
}
