package dispatch

import (
	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/constants"
	"github.com/zsbai/embytoalist/internal/emby"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

// CacheRangeStatus classifies a byte range against the cache windows.
type CacheRangeStatus int

const (
	NotCached CacheRangeStatus = iota
	FullyCachedHead
	PartiallyCachedHead
	FullyCachedTail
)

func (s CacheRangeStatus) String() string {
	switch s {
	case FullyCachedHead:
		return "fully_cached_head"
	case PartiallyCachedHead:
		return "partially_cached_head"
	case FullyCachedTail:
		return "fully_cached_tail"
	}
	return "not_cached"
}

// Classification is the pure decision for one request: which status it
// falls under and which fragment would serve or absorb it.
type Classification struct {
	Status CacheRangeStatus
	Shape  cachestore.FileShape
	// Fragment is the target cache fragment; zero when NotCached.
	Fragment cachestore.FragRange
}

// Classify places a byte range against the head window and the tail
// region. It is a pure function of start, end, size and head window; the
// caller has already rejected start >= size.
//
// A head window larger than the file clips the head fragment to the file
// end, which makes it a tail-shaped fragment and keeps the shape rule
// satisfiable.
func Classify(fi *emby.FileInfo, rng *xhttp.Range) Classification {
	shape := cachestore.FileShape{Size: fi.Size, HeadLen: fi.HeadLen()}
	head := shape.HeadFragment()

	switch {
	case rng.Start <= head.End:
		cls := Classification{Status: PartiallyCachedHead, Shape: shape, Fragment: head}
		if !rng.Open() && rng.End <= head.End {
			cls.Status = FullyCachedHead
		} else if head.End == shape.Size-1 {
			// the window covers the whole file, nothing extends past it
			cls.Status = FullyCachedHead
		}
		return cls

	case shape.Size-rng.Start < int64(constants.TailWindow):
		return Classification{
			Status:   FullyCachedTail,
			Shape:    shape,
			Fragment: shape.TailFragment(rng.Start),
		}

	default:
		return Classification{Status: NotCached, Shape: shape}
	}
}

// coveredBy reports whether the request covers its target fragment from
// the first byte on, i.e. an upstream fetch for the request doubles as
// the fragment's byte stream and may be teed.
func (c Classification) coveredBy(rng *xhttp.Range) bool {
	return rng.Start == c.Fragment.Start && (rng.Open() || rng.End >= c.Fragment.End)
}
