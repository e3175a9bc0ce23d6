package cachestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Fingerprint keys the cache directory for one file. It is derived from
// the identifying attributes of the media source, so a rename or
// re-encode lands in a fresh directory. The old directory is not removed.
type Fingerprint struct {
	digest string
}

func NewFingerprint(name string, size int64, container string) Fingerprint {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%s", name, size, container)))
	return Fingerprint{digest: hex.EncodeToString(sum[:])}
}

// Shard is the two-character fan-out directory.
func (fp Fingerprint) Shard() string { return fp.digest[:2] }

func (fp Fingerprint) Digest() string { return fp.digest }

func (fp Fingerprint) String() string { return fp.digest }

// Dir is the per-file fragment directory under root.
func (fp Fingerprint) Dir(root string) string {
	return filepath.Join(root, fp.Shard(), fp.digest)
}

const fragmentPrefix = "fragment_"

// FragRange is one inclusive on-disk byte range.
type FragRange struct {
	Start, End int64
}

func (f FragRange) Len() int64 { return f.End - f.Start + 1 }

// Contains reports whether the byte offset falls inside the fragment.
func (f FragRange) Contains(offset int64) bool {
	return f.Start <= offset && offset <= f.End
}

// Within reports whether f lies entirely inside other.
func (f FragRange) Within(other FragRange) bool {
	return f.Start >= other.Start && f.End <= other.End
}

// Name encodes the range into the fragment file name.
func (f FragRange) Name() string {
	return fmt.Sprintf("%s%d_%d", fragmentPrefix, f.Start, f.End)
}

// ParseFragmentName decodes a fragment file name back into its range.
func ParseFragmentName(name string) (FragRange, bool) {
	if !strings.HasPrefix(name, fragmentPrefix) {
		return FragRange{}, false
	}
	parts := strings.Split(strings.TrimPrefix(name, fragmentPrefix), "_")
	if len(parts) != 2 {
		return FragRange{}, false
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || start < 0 || end < start {
		return FragRange{}, false
	}
	return FragRange{Start: start, End: end}, true
}

// FileShape carries the two attributes the fragment shape rule depends
// on: the file size and the head window length.
type FileShape struct {
	Size    int64
	HeadLen int64
}

// HeadFragment is the opening cache window, clipped to the file size.
// When the window covers the whole file the fragment doubles as a tail
// fragment, which keeps it valid under the shape rule.
func (sh FileShape) HeadFragment() FragRange {
	end := sh.HeadLen
	if end > sh.Size {
		end = sh.Size
	}
	return FragRange{Start: 0, End: end - 1}
}

// TailFragment is the trailing fragment starting at offset.
func (sh FileShape) TailFragment(offset int64) FragRange {
	return FragRange{Start: offset, End: sh.Size - 1}
}

// Valid is the fragment shape rule: a fragment is either the head window
// or reaches the end of the file. Anything else is stale and gets
// removed on discovery.
func (sh FileShape) Valid(f FragRange) bool {
	if f.End >= sh.Size {
		return false
	}
	if f == sh.HeadFragment() {
		return true
	}
	return f.End == sh.Size-1
}
