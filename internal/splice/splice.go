// Package splice builds proxied response bodies that concatenate an
// optional local cache prefix with a live upstream range fetch,
// opportunistically teeing the upstream into the cache store.
package splice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulbellamy/ratecounter"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/constants"
	"github.com/zsbai/embytoalist/internal/resolver"
	"github.com/zsbai/embytoalist/metrics"
	"github.com/zsbai/embytoalist/pkg/iobuf"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

type Proxy struct {
	client         *http.Client
	forceReconnect bool
	log            *log.Helper
}

func New(client *http.Client, forceReconnect bool) *Proxy {
	return &Proxy{
		client:         client,
		forceReconnect: forceReconnect,
		log:            log.NewHelper("splice"),
	}
}

// Options describes one spliced response.
type Options struct {
	// Prefix streams local cache bytes ahead of the upstream fetch.
	Prefix io.ReadCloser
	// Task resolves the upstream URL; awaited only when needed.
	Task      *resolver.Task
	UserAgent string
	// Range is the upstream Range request header value.
	Range string
	// ExpectStatus is the upstream status required (206, or 200 for a
	// whole-file fetch).
	ExpectStatus int
	// Tee mirrors the leading upstream bytes into a cache fragment.
	Tee *cachestore.Writer
}

// Body is an opened splice ready to stream.
type Body struct {
	p   *Proxy
	out io.ReadCloser
	tee *cachestore.Writer
}

// Open assembles the spliced body. Without a local prefix the upstream is
// connected and validated here, before any response byte goes out, so
// failures still surface as a plain error; with a prefix the upstream
// connects in the background while the prefix drains and failures abort
// the stream mid-flight.
func (p *Proxy) Open(ctx context.Context, opts Options) (*Body, error) {
	upstreamFn := func() (*http.Response, error) {
		return p.connect(ctx, &opts)
	}

	var upstream io.ReadCloser
	if opts.Prefix == nil {
		resp, err := upstreamFn()
		if err != nil {
			if opts.Tee != nil {
				opts.Tee.Abort()
			}
			return nil, err
		}
		upstream = resp.Body
	} else {
		upstream = iobuf.AsyncReadCloser(upstreamFn)
	}

	upstream = p.meter(upstream, &opts)
	if opts.Tee != nil {
		upstream = iobuf.TeeReadCloser(upstream, opts.Tee, opts.Tee.Target().Len())
	}

	return &Body{
		p:   p,
		out: iobuf.MultiReadCloser(opts.Prefix, upstream),
		tee: opts.Tee,
	}, nil
}

// Copy streams the body to the client, flushing per chunk. The tee writer
// is always closed; cache-write failures stay out of the client path.
// Returns xhttp.ErrForcedReconnect when the reconnect threshold cut the
// stream.
func (b *Body) Copy(w http.ResponseWriter) error {
	defer b.out.Close()
	if b.tee != nil {
		defer b.tee.Close()
	}

	flusher, _ := w.(http.Flusher)
	counter := ratecounter.NewRateCounter(time.Second)

	buf := make([]byte, 32*1024)
	var sent int64
	for {
		n, err := b.out.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
			counter.Incr(int64(n))
			sent += int64(n)
		}
		if err == io.EOF {
			b.p.log.Debugf("spliced %d bytes, last-second rate %d B/s", sent, counter.Rate())
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// connect awaits the resolver, issues the ranged GET and validates the
// upstream response.
func (p *Proxy) connect(ctx context.Context, opts *Options) (*http.Response, error) {
	rawURL, err := opts.Task.Await(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, xhttp.Upstream("storage", err.Error())
	}
	if opts.Range != "" {
		req.Header.Set("Range", opts.Range)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, xhttp.Upstream("storage", err.Error())
	}
	if err := Validate(resp, opts.ExpectStatus); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Validate rejects upstream responses that cannot be media bytes.
func Validate(resp *http.Response, expectStatus int) error {
	switch resp.StatusCode {
	case http.StatusRequestedRangeNotSatisfiable:
		return xhttp.Upstream("storage", "range not satisfiable, valid range "+resp.Header.Get("Content-Range"))
	case http.StatusBadRequest:
		return xhttp.Upstream("storage", "400 bad request")
	}
	// a JSON body from a file endpoint is an error envelope, not media
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		return xhttp.Upstream("storage", "unexpected JSON response")
	}
	if resp.StatusCode != expectStatus {
		return xhttp.Upstream("storage", fmt.Sprintf("expected status %d, got %d", expectStatus, resp.StatusCode))
	}
	return nil
}

// meter counts proxied bytes and, when forced reconnects are on, cuts the
// stream once it runs past the cache frontier: the fragment being teed
// plus one chunk of slack, or just the slack when the frontier is already
// behind the local prefix.
func (p *Proxy) meter(upstream io.ReadCloser, opts *Options) io.ReadCloser {
	limit := int64(-1)
	if p.forceReconnect && (opts.Tee != nil || opts.Prefix != nil) {
		limit = int64(constants.ReconnectSlack)
		if opts.Tee != nil {
			limit += opts.Tee.Target().Len()
		}
	}
	return &meteredReader{R: upstream, remaining: limit}
}

type meteredReader struct {
	R         io.ReadCloser
	remaining int64 // -1 means unbounded
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if m.remaining == 0 {
		return 0, xhttp.ErrForcedReconnect
	}
	if m.remaining > 0 && int64(len(p)) > m.remaining {
		p = p[:m.remaining]
	}
	n, err := m.R.Read(p)
	if n > 0 {
		metrics.UpstreamBytes.Add(float64(n))
		if m.remaining > 0 {
			m.remaining -= int64(n)
		}
	}
	return n, err
}

func (m *meteredReader) Close() error { return m.R.Close() }
