// Package resolver obtains short-lived signed playback URLs, caching them
// with a TTL and collapsing concurrent fetches for the same key.
package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/internal/alist"
	"github.com/zsbai/embytoalist/metrics"
	"github.com/zsbai/embytoalist/pkg/xhttp"
)

// fetchTimeout bounds one resolver network call. Speculative tasks run on
// a detached context so an abandoned request still populates the cache.
const fetchTimeout = 30 * time.Second

type Resolver struct {
	alist      *alist.Client
	noRedirect *http.Client
	ttl        time.Duration
	cache      *gocache.Cache
	flight     singleflight.Group
	inflight   sync.WaitGroup
	log        *log.Helper
}

// New builds a resolver on the shared HTTP client. The indirection
// precheck needs to observe redirects rather than follow them, so a
// derived client with redirect-following disabled is kept alongside.
func New(alistClient *alist.Client, client *http.Client, ttl time.Duration) *Resolver {
	noRedirect := &http.Client{
		Transport: client.Transport,
		Timeout:   client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Resolver{
		alist:      alistClient,
		noRedirect: noRedirect,
		ttl:        ttl,
		cache:      gocache.New(ttl, 2*ttl),
		log:        log.NewHelper("resolver"),
	}
}

// Task is a joinable resolution. Multiple callers may Await the same task.
type Task struct {
	ready chan struct{}
	url   string
	err   error
}

// Resolved returns an already-completed task carrying url.
func Resolved(url string) *Task {
	t := &Task{ready: make(chan struct{}), url: url}
	close(t.ready)
	return t
}

func (t *Task) Await(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", xhttp.Upstream("resolver", ctx.Err().Error())
	case <-t.ready:
		return t.url, t.err
	}
}

func resolverKey(path, userAgent string) string {
	return path + "\x1f" + userAgent
}

// Prefetch starts (or joins) the resolution for (path, userAgent) and
// returns immediately. The result lands in the TTL cache whether or not
// anyone awaits it.
func (r *Resolver) Prefetch(path, userAgent string, indirection bool) *Task {
	key := resolverKey(path, userAgent)

	task := &Task{ready: make(chan struct{})}
	if cached, ok := r.cache.Get(key); ok {
		task.url = cached.(string)
		close(task.ready)
		return task
	}

	ch := r.flight.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		rawURL, err := r.fetch(ctx, path, userAgent, indirection)
		if err != nil {
			metrics.ResolverFetches.WithLabelValues("error").Inc()
			return "", err
		}
		metrics.ResolverFetches.WithLabelValues("ok").Inc()
		r.cache.Set(key, rawURL, r.ttl)
		return rawURL, nil
	})

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		result := <-ch
		if result.Err != nil {
			task.err = result.Err
		} else {
			task.url = result.Val.(string)
		}
		close(task.ready)
	}()

	return task
}

// Resolve is the blocking form of Prefetch.
func (r *Resolver) Resolve(ctx context.Context, path, userAgent string, indirection bool) (string, error) {
	return r.Prefetch(path, userAgent, indirection).Await(ctx)
}

func (r *Resolver) fetch(ctx context.Context, path, userAgent string, indirection bool) (string, error) {
	if indirection {
		return r.precheckIndirection(ctx, path, userAgent)
	}
	return r.alist.RawURL(ctx, path, userAgent)
}

// precheckIndirection probes an indirection file: a redirect yields the
// target, a plain 200 means the mount path itself is the URL.
func (r *Resolver) precheckIndirection(ctx context.Context, path, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", xhttp.Upstream("indirection", err.Error())
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := r.noRedirect.Do(req)
	if err != nil {
		return "", xhttp.Upstream("indirection", err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", xhttp.Upstream("indirection", "redirect without Location")
		}
		r.log.Debugf("indirection file redirected to %s", location)
		return location, nil
	case http.StatusOK:
		// the mount path itself must be a fetchable URL to be reusable
		if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			return path, nil
		}
		return "", xhttp.Upstream("indirection", "mount path is not an absolute URL: "+path)
	default:
		return "", xhttp.Upstream("indirection", "status "+strconv.Itoa(resp.StatusCode))
	}
}

// Drain waits for inflight resolutions, bounded by ctx. Called on
// shutdown after the HTTP server has stopped.
func (r *Resolver) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
