package recovery

import (
	"net/http"

	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/pkg/xruntime"
)

// Handler converts handler panics into a 500 and logs the stack. Aborted
// streams (http.ErrAbortHandler) are re-raised for the server to handle.
func Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				if r == http.ErrAbortHandler {
					panic(r)
				}
				log.Context(req.Context()).Errorf("handler recovery: %s \n%s", r, xruntime.PrintStackTrace(4))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, req)
	})
}
