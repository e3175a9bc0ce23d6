package mod

import (
	"net/http"
	"net/http/pprof"

	"github.com/zsbai/embytoalist/conf"
)

// HandlePProf mounts the profiling endpoints on the internal mux,
// optionally behind basic auth.
func HandlePProf(opt *conf.ServerPProf, mux *http.ServeMux) {
	if opt == nil || !opt.Enabled {
		return
	}

	guard := func(h http.HandlerFunc) http.Handler {
		if opt.Username == "" {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != opt.Username || pass != opt.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		})
	}

	mux.Handle("/debug/pprof/", guard(pprof.Index))
	mux.Handle("/debug/pprof/cmdline", guard(pprof.Cmdline))
	mux.Handle("/debug/pprof/profile", guard(pprof.Profile))
	mux.Handle("/debug/pprof/symbol", guard(pprof.Symbol))
	mux.Handle("/debug/pprof/trace", guard(pprof.Trace))
}
