package xhttp

import "net/http"

// ResponseRecorder wraps a ResponseWriter, tracking status and body size
// for the access log.
type ResponseRecorder struct {
	http.ResponseWriter

	status int
	size   uint64
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w}
}

func (r *ResponseRecorder) Write(b []byte) (n int, err error) {
	if r.status == 0 {
		// The status will be StatusOK if WriteHeader has not been called yet
		r.status = http.StatusOK
	}

	n, err = r.ResponseWriter.Write(b)
	if err == nil {
		r.size += uint64(n)
	}
	return n, err
}

func (r *ResponseRecorder) WriteHeader(s int) {
	r.ResponseWriter.WriteHeader(s)
	r.status = s
}

func (r *ResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *ResponseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *ResponseRecorder) Size() uint64 {
	return r.size
}
