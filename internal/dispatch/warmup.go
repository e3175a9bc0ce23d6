package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/emby"
	"github.com/zsbai/embytoalist/internal/splice"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

const warmupTimeout = 10 * time.Minute

// warmNextEpisode pre-caches the head of the following episode in the
// same season so its playback start skips the link-server round trip.
// Best effort: every failure is logged and swallowed.
func (d *Dispatcher) warmNextEpisode(item *emby.ItemInfo, apiKey, userAgent string) {
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	episodes, err := d.emby.Episodes(ctx, item.SeriesID, item.SeasonID, apiKey)
	if err != nil {
		d.log.Warnf("episode listing for warmup failed: %v", err)
		return
	}

	var next *emby.ItemInfo
	for _, episode := range episodes {
		if episode.IndexNumber == item.IndexNumber+1 {
			next = episode
			break
		}
	}
	if next == nil {
		d.log.Debugf("no next episode after %s index %d", item.ItemID, item.IndexNumber)
		return
	}

	files, err := d.emby.PlaybackSources(ctx, next.ItemID, apiKey)
	if err != nil {
		d.log.Warnf("playback sources for warmup failed: %v", err)
		return
	}

	for _, fi := range files {
		if fi.Size <= 0 || fi.IsRemote || d.mapper.Bypass(fi.Path) {
			continue
		}
		shape := cachestore.FileShape{Size: fi.Size, HeadLen: fi.HeadLen()}
		fp := cachestore.NewFingerprint(fi.Name, fi.Size, fi.Container)
		if d.store.Present(fp, shape, 0) {
			d.log.Debugf("next episode %s head already cached", next.ItemID)
			continue
		}
		d.fillFragment(fi, shape, shape.HeadFragment(), d.mapper.Map(fi.Path), userAgent)
	}
}

// fillFragment fetches one fragment's byte range on its own upstream
// connection and streams it into a cache writer. Used for warmup and for
// cache-eligible requests whose range cannot be teed directly.
func (d *Dispatcher) fillFragment(fi *emby.FileInfo, shape cachestore.FileShape, frag cachestore.FragRange, linkPath, userAgent string) {
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	fp := cachestore.NewFingerprint(fi.Name, fi.Size, fi.Container)

	writer, err := d.store.Writer(fp, shape, frag)
	if err != nil {
		if !errors.Is(err, cachestore.ErrFragmentCovered) {
			d.log.Warnf("fragment fill writer %s: %v", frag.Name(), err)
		}
		return
	}

	rawURL, err := d.resolver.Resolve(ctx, linkPath, userAgent, fi.Indirection())
	if err != nil {
		d.log.Warnf("fragment fill resolve %s: %v", linkPath, err)
		writer.Abort()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		writer.Abort()
		return
	}
	req.Header.Set("Range", xhttp.BuildRange(frag.Start, frag.End))
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warnf("fragment fill fetch %s: %v", frag.Name(), err)
		writer.Abort()
		return
	}
	defer resp.Body.Close()

	if err := splice.Validate(resp, http.StatusPartialContent); err != nil {
		d.log.Warnf("fragment fill rejected for %s: %v", frag.Name(), err)
		writer.Abort()
		return
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			writer.Push(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			d.log.Warnf("fragment fill stream %s: %v", frag.Name(), rerr)
			writer.Abort()
			return
		}
	}
	_ = writer.Close()
	d.log.Infof("fragment %s cached for %s", frag.Name(), fi.Name)
}
