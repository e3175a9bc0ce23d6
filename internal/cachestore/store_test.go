package cachestore

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makebuf(size int64) []byte {
	buf := make([]byte, size)
	_, _ = rand.Read(buf)
	return buf
}

var testShape = FileShape{Size: 10_000, HeadLen: 1_000}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	return s, root
}

func seedFragment(t *testing.T, root string, fp Fingerprint, frag FragRange, data []byte) {
	t.Helper()
	dir := fp.Dir(root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, frag.Name()), data, 0o644))
}

func TestFingerprint(t *testing.T) {
	fp := NewFingerprint("A (2020)", 10_000, "mkv")

	assert.Len(t, fp.Digest(), 32)
	assert.Equal(t, fp.Digest()[:2], fp.Shard())
	// stable across calls
	assert.Equal(t, fp, NewFingerprint("A (2020)", 10_000, "mkv"))
	// any identifying attribute moves the directory
	assert.NotEqual(t, fp, NewFingerprint("A (2020)", 10_001, "mkv"))
	assert.NotEqual(t, fp, NewFingerprint("A (2020)", 10_000, "mp4"))
	assert.NotEqual(t, fp, NewFingerprint("B (2020)", 10_000, "mkv"))
}

func TestParseFragmentName(t *testing.T) {
	frag, ok := ParseFragmentName("fragment_0_999")
	require.True(t, ok)
	assert.Equal(t, FragRange{Start: 0, End: 999}, frag)

	for _, name := range []string{"fragment_", "fragment_10_5", "fragment_a_b", "other_0_9", ".version"} {
		_, ok := ParseFragmentName(name)
		assert.False(t, ok, name)
	}
}

func TestShapeRule(t *testing.T) {
	assert.True(t, testShape.Valid(FragRange{Start: 0, End: 999}))      // head
	assert.True(t, testShape.Valid(FragRange{Start: 8_000, End: 9_999})) // tail
	assert.True(t, testShape.Valid(FragRange{Start: 9_999, End: 9_999})) // single-byte tail

	assert.False(t, testShape.Valid(FragRange{Start: 0, End: 998}))
	assert.False(t, testShape.Valid(FragRange{Start: 1, End: 999}))
	assert.False(t, testShape.Valid(FragRange{Start: 5_000, End: 6_000}))
	assert.False(t, testShape.Valid(FragRange{Start: 9_000, End: 10_000})) // past EOF

	// window larger than the file clips to a tail-shaped head
	small := FileShape{Size: 500, HeadLen: 1_000}
	assert.Equal(t, FragRange{Start: 0, End: 499}, small.HeadFragment())
	assert.True(t, small.Valid(small.HeadFragment()))
}

func TestOpenVersionGuard(t *testing.T) {
	root := t.TempDir()

	_, err := Open(root)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, ".version"))
	require.NoError(t, err)
	assert.Equal(t, Version, string(data))

	// same version reopens fine
	_, err = Open(root)
	require.NoError(t, err)

	// a mismatch is fatal: the operator must wipe
	require.NoError(t, os.WriteFile(filepath.Join(root, ".version"), []byte("0.0.1"), 0o644))
	_, err = Open(root)
	assert.ErrorContains(t, err, "version mismatch")
}

func TestFindValidatesShape(t *testing.T) {
	s, root := openStore(t)
	fp := NewFingerprint("A", testShape.Size, "mkv")

	head := FragRange{Start: 0, End: 999}
	stale := FragRange{Start: 100, End: 200}
	seedFragment(t, root, fp, head, makebuf(head.Len()))
	seedFragment(t, root, fp, stale, makebuf(stale.Len()))

	frag, ok := s.Find(fp, testShape, 500)
	require.True(t, ok)
	assert.Equal(t, head, frag)

	// the stale fragment was removed on discovery
	_, err := os.Stat(filepath.Join(fp.Dir(root), stale.Name()))
	assert.True(t, os.IsNotExist(err))

	// repeated scans are idempotent
	frag, ok = s.Find(fp, testShape, 500)
	require.True(t, ok)
	assert.Equal(t, head, frag)
}

func TestFindRemovesShortFragment(t *testing.T) {
	s, root := openStore(t)
	fp := NewFingerprint("A", testShape.Size, "mkv")

	head := FragRange{Start: 0, End: 999}
	seedFragment(t, root, fp, head, makebuf(head.Len()-10)) // truncated write

	_, ok := s.Find(fp, testShape, 0)
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(fp.Dir(root), head.Name()))
	assert.True(t, os.IsNotExist(err))
}

func TestFindMissAndMissingDir(t *testing.T) {
	s, _ := openStore(t)
	fp := NewFingerprint("A", testShape.Size, "mkv")

	assert.False(t, s.Present(fp, testShape, 0))
}

func TestReader(t *testing.T) {
	s, root := openStore(t)
	fp := NewFingerprint("A", testShape.Size, "mkv")

	head := FragRange{Start: 0, End: 999}
	data := makebuf(head.Len())
	seedFragment(t, root, fp, head, data)

	r := s.Reader(fp, head, 100, 200)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data[100:300], got)
	assert.NoError(t, r.Close())

	// negative length reads to the fragment end
	r = s.Reader(fp, head, 900, -1)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data[900:], got)

	// a vanished fragment yields an empty, clean stream
	r = s.Reader(fp, FragRange{Start: 9_000, End: 9_999}, 0, -1)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}
