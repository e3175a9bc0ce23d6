// Package cachestore is the on-disk range-fragment cache. Fragments are
// self-describing files named fragment_<start>_<end> under a two-level
// fingerprint directory; the filesystem is the only index.
package cachestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/pkg/iobuf"
)

// Version tags the on-disk layout. A mismatch is fatal at startup; the
// operator wipes the root to upgrade.
const Version = "1.0.0"

const versionFile = ".version"

type Store struct {
	root  string
	locks *lockTable
	log   *log.Helper
}

// Open initializes the cache root, creating it on first run and
// enforcing the layout version on subsequent ones.
func Open(root string) (*Store, error) {
	s := &Store{
		root:  root,
		locks: newLockTable(),
		log:   log.NewHelper("cachestore"),
	}

	marker := filepath.Join(root, versionFile)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(marker, []byte(Version), 0o644); err != nil {
			return nil, err
		}
		return s, nil
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		if os.IsNotExist(err) {
			// pre-existing empty dir counts as a fresh store
			if empty, _ := isEmptyDir(root); empty {
				return s, os.WriteFile(marker, []byte(Version), 0o644)
			}
		}
		return nil, fmt.Errorf("cache root %s has no readable %s, wipe it to continue: %w", root, versionFile, err)
	}
	if got := strings.TrimSpace(string(data)); got != Version {
		return nil, fmt.Errorf("cache store version mismatch: disk %q, binary %q; wipe %s to continue", got, Version, root)
	}
	return s, nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Find scans the fragment directory for a valid fragment containing
// offset. Every entry is checked, even after a match: fragments that fail
// the shape rule or whose on-disk size does not match their name are
// deleted on sight.
func (s *Store) Find(fp Fingerprint, shape FileShape, offset int64) (FragRange, bool) {
	dir := fp.Dir(s.root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return FragRange{}, false
	}

	found, hit := FragRange{}, false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		frag, ok := ParseFragmentName(entry.Name())
		if !ok {
			continue
		}

		full := filepath.Join(dir, entry.Name())
		if !shape.Valid(frag) {
			s.log.Warnf("removing stale fragment %s", full)
			_ = os.Remove(full)
			continue
		}
		if info, err := entry.Info(); err != nil || info.Size() != frag.Len() {
			s.log.Warnf("removing short fragment %s", full)
			_ = os.Remove(full)
			continue
		}

		if !hit && frag.Contains(offset) {
			found, hit = frag, true
		}
	}
	return found, hit
}

// Present reports whether a valid fragment containing offset exists.
func (s *Store) Present(fp Fingerprint, shape FileShape, offset int64) bool {
	_, ok := s.Find(fp, shape, offset)
	return ok
}

// Reader streams a fragment from offset (relative to the fragment start).
// length < 0 reads to the fragment end. Open errors terminate the stream
// cleanly: the caller sees an empty body and the error is logged here.
func (s *Store) Reader(fp Fingerprint, frag FragRange, offset, length int64) io.ReadCloser {
	path := filepath.Join(fp.Dir(s.root), frag.Name())

	f, err := os.Open(path)
	if err != nil {
		s.log.Errorf("open fragment %s: %v", path, err)
		return io.NopCloser(strings.NewReader(""))
	}

	max := frag.Len() - offset
	if length >= 0 && length < max {
		max = length
	}
	return iobuf.LimitReadCloser(iobuf.SeekReadCloser(f, offset), max)
}
