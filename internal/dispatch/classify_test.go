package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/emby"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

// size 1 GB at 8 Mbit/s gives a 15 MB head window.
func testFile() *emby.FileInfo {
	return &emby.FileInfo{
		Path:      "/media/Movies/A (2020)/A.mkv",
		Size:      1_000_000_000,
		Bitrate:   8_000_000,
		Container: "mkv",
		Name:      "A (2020)",
	}
}

func rng(start, end int64) *xhttp.Range {
	return &xhttp.Range{Start: start, End: end}
}

func TestClassifyHead(t *testing.T) {
	fi := testFile()
	head := cachestore.FragRange{Start: 0, End: 14_999_999}

	tests := []struct {
		name string
		rng  *xhttp.Range
		want CacheRangeStatus
	}{
		{"open start of file", rng(0, xhttp.OpenEnd), PartiallyCachedHead},
		{"inside window", rng(0, 1000), FullyCachedHead},
		{"window last byte", rng(0, 14_999_999), FullyCachedHead},
		{"one past the window", rng(0, 15_000_000), PartiallyCachedHead},
		{"resume inside window", rng(14_999_999, xhttp.OpenEnd), PartiallyCachedHead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := Classify(fi, tt.rng)
			assert.Equal(t, tt.want, cls.Status)
			assert.Equal(t, head, cls.Fragment)
		})
	}
}

func TestClassifyTail(t *testing.T) {
	fi := testFile()

	cls := Classify(fi, rng(999_000_000, xhttp.OpenEnd))
	assert.Equal(t, FullyCachedTail, cls.Status)
	assert.Equal(t, cachestore.FragRange{Start: 999_000_000, End: 999_999_999}, cls.Fragment)

	// the very last byte
	cls = Classify(fi, rng(999_999_999, xhttp.OpenEnd))
	assert.Equal(t, FullyCachedTail, cls.Status)
	assert.Equal(t, cachestore.FragRange{Start: 999_999_999, End: 999_999_999}, cls.Fragment)

	// exactly 2 MiB from the end is not tail territory
	cls = Classify(fi, rng(fi.Size-2<<20, xhttp.OpenEnd))
	assert.Equal(t, NotCached, cls.Status)
}

func TestClassifyMiddle(t *testing.T) {
	fi := testFile()

	cls := Classify(fi, rng(500_000_000, 500_999_999))
	assert.Equal(t, NotCached, cls.Status)
	assert.Equal(t, cachestore.FragRange{}, cls.Fragment)
}

func TestClassifyWindowCoversFile(t *testing.T) {
	fi := testFile()
	fi.Size = 10_000_000 // smaller than the 15 MB window

	cls := Classify(fi, rng(0, xhttp.OpenEnd))
	assert.Equal(t, FullyCachedHead, cls.Status)
	// clipped to the file end: a tail-shaped fragment
	assert.Equal(t, cachestore.FragRange{Start: 0, End: 9_999_999}, cls.Fragment)
	assert.True(t, cls.Shape.Valid(cls.Fragment))

	cls = Classify(fi, rng(9_000_000, 9_500_000))
	assert.Equal(t, FullyCachedHead, cls.Status)
}

func TestClassifyCoveredBy(t *testing.T) {
	fi := testFile()

	assert.True(t, Classify(fi, rng(0, xhttp.OpenEnd)).coveredBy(rng(0, xhttp.OpenEnd)))
	assert.False(t, Classify(fi, rng(5, xhttp.OpenEnd)).coveredBy(rng(5, xhttp.OpenEnd)))

	tail := Classify(fi, rng(999_000_000, xhttp.OpenEnd))
	assert.True(t, tail.coveredBy(rng(999_000_000, xhttp.OpenEnd)))
	assert.False(t, tail.coveredBy(rng(999_000_000, 999_500_000)))
}

func TestDefaultBitrateWindow(t *testing.T) {
	fi := testFile()
	fi.Bitrate = 0

	assert.Equal(t, int64(emby.DefaultBitrate/8*15), fi.HeadLen())
}
