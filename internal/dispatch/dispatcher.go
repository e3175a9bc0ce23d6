// Package dispatch is the per-request playback controller: it looks up
// the file, classifies the requested range against the cache windows and
// answers with a redirect, a local stream, or a spliced proxy response.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zsbai/embytoalist/conf"
	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/constants"
	"github.com/zsbai/embytoalist/internal/emby"
	"github.com/zsbai/embytoalist/internal/pathmap"
	"github.com/zsbai/embytoalist/internal/resolver"
	"github.com/zsbai/embytoalist/internal/splice"
	"github.com/zsbai/embytoalist/metrics"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

// Cache status header values, also used in the access log.
const (
	cacheHit     = "Hit"
	cacheMiss    = "Miss"
	cachePartial = "Partial"
	cacheHitTail = "Hit_Tail"
)

type Dispatcher struct {
	emby     *emby.Client
	mapper   *pathmap.Mapper
	resolver *resolver.Resolver
	store    *cachestore.Store
	proxy    *splice.Proxy
	client   *http.Client

	cacheEnabled bool
	nextEpisode  bool
	blacklist    []string

	log *log.Helper
}

func New(
	cacheCfg *conf.Cache,
	embyClient *emby.Client,
	mapper *pathmap.Mapper,
	res *resolver.Resolver,
	store *cachestore.Store,
	proxy *splice.Proxy,
	client *http.Client,
) *Dispatcher {
	return &Dispatcher{
		emby:         embyClient,
		mapper:       mapper,
		resolver:     res,
		store:        store,
		proxy:        proxy,
		client:       client,
		cacheEnabled: cacheCfg.Enabled && store != nil,
		nextEpisode:  cacheCfg.NextEpisode,
		blacklist:    cacheCfg.ClientBlacklist,
		log:          log.NewHelper("dispatch"),
	}
}

// Register mounts every spelling the emby and infuse clients use.
func (d *Dispatcher) Register(r chi.Router) {
	for _, pattern := range []string{
		"/Videos/{itemID}/{filename}",
		"/videos/{itemID}/{filename}",
		"/emby/Videos/{itemID}/{filename}",
		"/emby/videos/{itemID}/{filename}",
	} {
		r.Get(pattern, d.HandleVideo)
	}
}

var tokenPattern = regexp.MustCompile(`Token="([^"]+)"`)

// extractAPIKey picks the caller token: query api_key, query
// X-Emby-Token, then the Token sub-field of X-Emby-Authorization.
func extractAPIKey(r *http.Request) string {
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	if key := r.URL.Query().Get("X-Emby-Token"); key != "" {
		return key
	}
	if auth := r.Header.Get("X-Emby-Authorization"); auth != "" {
		if m := tokenPattern.FindStringSubmatch(auth); m != nil {
			return m[1]
		}
	}
	return ""
}

func (d *Dispatcher) HandleVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clog := log.Context(ctx)
	itemID := chi.URLParam(r, "itemID")

	mediaSourceID := r.URL.Query().Get("MediaSourceId")
	if mediaSourceID == "" {
		mediaSourceID = r.URL.Query().Get("mediaSourceId")
	}
	if mediaSourceID == "" {
		d.fail(w, r, xhttp.BadRequest("MediaSourceId is required"))
		return
	}

	apiKey := extractAPIKey(r)

	fi, err := d.emby.PlaybackInfo(ctx, itemID, mediaSourceID, apiKey)
	if err != nil {
		d.fail(w, r, err)
		return
	}
	item, err := d.emby.Item(ctx, itemID, apiKey)
	if err != nil {
		// playback does not depend on item metadata
		clog.Warnf("item lookup failed for %s: %v", itemID, err)
		item = nil
	}

	clog.Infof("item %s mount path %s size %d", itemID, fi.Path, fi.Size)

	if d.mapper.Bypass(fi.Path) {
		target := fmt.Sprintf("%s://%s/preventRedirect%s", xhttp.Scheme(r), r.Host, r.URL.Path)
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		clog.Infof("path bypasses the shim, redirecting to %s", target)
		d.count(http.StatusFound)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	linkPath := d.mapper.Map(fi.Path)
	userAgent := r.UserAgent()

	// speculative: the URL is resolved while we classify; if the answer
	// ends up fully cached the result still lands in the TTL cache
	task := d.resolver.Prefetch(linkPath, userAgent, fi.Indirection())

	if !d.cacheEnabled || d.blacklisted(userAgent) {
		d.redirect(w, r, task)
		return
	}

	rng, err := xhttp.ParseRange(r.Header.Get("Range"))
	if err != nil {
		// range-less and malformed-range requests go straight to the
		// signed URL
		d.redirect(w, r, task)
		return
	}
	if rng.Start >= fi.Size {
		d.fail(w, r, xhttp.RangeNotSatisfiable(fi.Size))
		return
	}

	cls := Classify(fi, rng)
	fp := cachestore.NewFingerprint(fi.Name, fi.Size, fi.Container)
	metrics.CacheEvents.WithLabelValues(cls.Status.String()).Inc()

	if d.nextEpisode && item != nil && item.Kind == emby.KindEpisode {
		go d.warmNextEpisode(item, apiKey, userAgent)
	}

	if cls.Status == NotCached {
		d.redirect(w, r, task)
		return
	}

	if frag, ok := d.store.Find(fp, cls.Shape, rng.Start); ok {
		d.serveCached(w, r, fi, rng, cls, frag, fp, task)
		return
	}
	d.serveProxied(w, r, fi, rng, cls, fp, task, linkPath)
}

// serveCached answers from a present fragment: entirely locally for the
// fully-cached statuses, spliced with upstream for a partially cached
// head.
func (d *Dispatcher) serveCached(
	w http.ResponseWriter, r *http.Request,
	fi *emby.FileInfo, rng *xhttp.Range,
	cls Classification, frag cachestore.FragRange,
	fp cachestore.Fingerprint, task *resolver.Task,
) {
	clog := log.Context(r.Context())

	// a tail-shaped fragment can swallow a head-window request outright
	// on small files; nothing is left to splice then
	if cls.Status == PartiallyCachedHead && frag.End == fi.Size-1 {
		cls.Status = FullyCachedHead
	}

	switch cls.Status {
	case FullyCachedHead, FullyCachedTail:
		respEnd := frag.End
		if !rng.Open() && rng.End < respEnd {
			respEnd = rng.End
		}
		length := respEnd - rng.Start + 1

		status := cacheHit
		if cls.Status == FullyCachedTail {
			status = cacheHitTail
		}
		d.rangeHeaders(w, r, fi, rng.Start, respEnd, length, status)
		w.WriteHeader(http.StatusPartialContent)

		reader := d.store.Reader(fp, frag, rng.Start-frag.Start, length)
		defer reader.Close()

		sent, err := copyFlush(w, reader)
		metrics.CacheServedBytes.Add(float64(sent))
		if err != nil {
			clog.Warnf("cached stream aborted after %d bytes: %v", sent, err)
		}
		d.count(http.StatusPartialContent)

	case PartiallyCachedHead:
		respEnd := fi.Size - 1
		if !rng.Open() && rng.End < respEnd {
			respEnd = rng.End
		}

		upstreamEnd := xhttp.OpenEnd
		if !rng.Open() && rng.End < fi.Size-1 {
			upstreamEnd = rng.End
		}

		prefix := d.store.Reader(fp, frag, rng.Start-frag.Start, -1)
		body, err := d.proxy.Open(r.Context(), splice.Options{
			Prefix:       prefix,
			Task:         task,
			UserAgent:    r.UserAgent(),
			Range:        xhttp.BuildRange(frag.End+1, upstreamEnd),
			ExpectStatus: http.StatusPartialContent,
		})
		if err != nil {
			_ = prefix.Close()
			d.fail(w, r, err)
			return
		}

		d.rangeHeaders(w, r, fi, rng.Start, respEnd, respEnd-rng.Start+1, cacheHit)
		w.WriteHeader(http.StatusPartialContent)
		d.finishSplice(r, body.Copy(w))
		d.count(http.StatusPartialContent)
	}
}

// serveProxied answers a cache-eligible request with no fragment on disk:
// the upstream stream is teed into the target fragment when the request
// covers it, otherwise a background fill fetches the fragment on its own
// connection.
func (d *Dispatcher) serveProxied(
	w http.ResponseWriter, r *http.Request,
	fi *emby.FileInfo, rng *xhttp.Range,
	cls Classification, fp cachestore.Fingerprint,
	task *resolver.Task, linkPath string,
) {
	clog := log.Context(r.Context())

	var tee *cachestore.Writer
	if cls.coveredBy(rng) {
		writer, err := d.store.Writer(fp, cls.Shape, cls.Fragment)
		switch {
		case errors.Is(err, cachestore.ErrFragmentCovered):
			clog.Debugf("fragment %s already being written", cls.Fragment.Name())
		case err != nil:
			clog.Errorf("cache writer for %s: %v", cls.Fragment.Name(), err)
		default:
			tee = writer
		}
	} else {
		go d.fillFragment(fi, cls.Shape, cls.Fragment, linkPath, r.UserAgent())
	}

	upstreamEnd := xhttp.OpenEnd
	if !rng.Open() && rng.End < fi.Size-1 {
		upstreamEnd = rng.End
	}

	body, err := d.proxy.Open(r.Context(), splice.Options{
		Task:         task,
		UserAgent:    r.UserAgent(),
		Range:        xhttp.BuildRange(rng.Start, upstreamEnd),
		ExpectStatus: http.StatusPartialContent,
		Tee:          tee,
	})
	if err != nil {
		d.fail(w, r, err)
		return
	}

	status := cacheMiss
	if tee != nil && cls.Status != FullyCachedTail {
		status = cachePartial
	}

	respEnd := fi.Size - 1
	if !rng.Open() && rng.End < respEnd {
		respEnd = rng.End
	}

	d.rangeHeaders(w, r, fi, rng.Start, respEnd, respEnd-rng.Start+1, status)
	w.WriteHeader(http.StatusPartialContent)
	d.finishSplice(r, body.Copy(w))
	d.count(http.StatusPartialContent)
}

func (d *Dispatcher) finishSplice(r *http.Request, err error) {
	clog := log.Context(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, xhttp.ErrForcedReconnect):
		// deliberate cut past the cache frontier; the player re-requests
		// the remainder and classifies against the finished fragment
		clog.Infof("stream cut for forced reconnect: %s", r.URL.Path)
	default:
		clog.Errorf("spliced stream aborted: %v", err)
	}
}

func (d *Dispatcher) rangeHeaders(w http.ResponseWriter, r *http.Request, fi *emby.FileInfo, start, end, length int64, cacheStatus string) {
	h := w.Header()
	h.Set("Content-Type", xhttp.ContentType(fi.Container))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fi.Size))
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Cache-Control", "private, no-transform, no-cache")
	h.Set(constants.ProtocolCacheStatusKey, cacheStatus)

	metrics.FromContext(r.Context()).CacheStatus = cacheStatus
}

func (d *Dispatcher) redirect(w http.ResponseWriter, r *http.Request, task *resolver.Task) {
	rawURL, err := task.Await(r.Context())
	if err != nil {
		d.fail(w, r, err)
		return
	}
	log.Context(r.Context()).Infof("redirecting to signed URL")
	d.count(http.StatusFound)
	http.Redirect(w, r, rawURL, http.StatusFound)
}

func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, err error) {
	clog := log.Context(r.Context())
	status := xhttp.StatusOf(err)

	var e *xhttp.Error
	if errors.As(err, &e) && e.Kind == xhttp.KindRangeNotSatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", e.Size))
		clog.Warnf("requested range is out of file size")
		w.WriteHeader(status)
		d.count(status)
		return
	}

	clog.Errorf("request failed: %v", err)
	d.count(status)
	http.Error(w, http.StatusText(status), status)
}

func (d *Dispatcher) count(status int) {
	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (d *Dispatcher) blacklisted(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, entry := range d.blacklist {
		if entry != "" && strings.Contains(ua, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

func copyFlush(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, constants.ChunkSize)
	var sent int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return sent, werr
			}
			sent += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
	}
}
