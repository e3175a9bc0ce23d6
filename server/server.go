package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudflare/tableflip"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goccy/go-json"

	"github.com/zsbai/embytoalist/conf"
	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/contrib/transport"
	"github.com/zsbai/embytoalist/pkg/xruntime"
	"github.com/zsbai/embytoalist/server/middleware/recovery"
	"github.com/zsbai/embytoalist/server/mod"
)

var localMatcher = map[string]struct{}{
	"localhost": {},
	"127.1":     {},
	"127.0.0.1": {},
}

// Router is anything that mounts business routes.
type Router interface {
	Register(chi.Router)
}

type HTTPServer struct {
	*http.Server

	flip         *tableflip.Upgrader
	serverConfig *conf.Server
	listener     net.Listener
}

func NewServer(flip *tableflip.Upgrader, bc *conf.Bootstrap, router Router) transport.Server {
	servConfig := bc.Server

	s := &HTTPServer{
		Server: &http.Server{
			Addr:              servConfig.Addr,
			ReadHeaderTimeout: servConfig.ReadHeaderTimeout,
			IdleTimeout:       servConfig.IdleTimeout,
			MaxHeaderBytes:    servConfig.MaxHeaderBytes,
		},
		flip:         flip,
		serverConfig: servConfig,
	}

	for _, host := range servConfig.LocalAPIAllowHosts {
		localMatcher[host] = struct{}{}
	}

	// internal mux: probes, metrics, version, pprof
	mux := s.newServeMux()

	// business endpoint
	business := chi.NewRouter()
	business.Use(recovery.Handler)
	router.Register(business)

	next := mod.HandleAccessLog(bc.Logger, business.ServeHTTP)

	fmtAddr := func(addr string) string {
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			return addr[:i]
		}
		return addr
	}

	s.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := localMatcher[fmtAddr(r.Host)]; ok {
			mux.ServeHTTP(w, r)
			return
		}
		next(w, r)
	})

	return s
}

func (s *HTTPServer) Start(ctx context.Context) error {
	s.BaseContext = func(ln net.Listener) context.Context {
		return ctx
	}

	if err := s.listen(); err != nil {
		return err
	}

	log.Infof("HTTP redirect server listening on %s", s.serverConfig.Addr)

	if err := s.Serve(s.listener); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}

func (s *HTTPServer) listen() error {
	if s.flip != nil {
		ln, err := s.flip.Listen("tcp", s.Addr)
		if err != nil {
			return err
		}
		s.listener = ln
		return nil
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

func (s *HTTPServer) newServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mod.HandlePProf(s.serverConfig.PProf, mux)

	mux.Handle("/favicon.ico", http.NotFoundHandler())
	mux.Handle("/version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(xruntime.BuildInfo)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.Handle("/healthz/startup-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := []byte("ok")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	mux.Handle("/healthz/liveness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("/healthz/readiness-probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	return mux
}
