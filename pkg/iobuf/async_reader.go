package iobuf

import (
	"io"
	"net/http"
)

// ProxyCallback produces an HTTP response whose body feeds the reader.
type ProxyCallback func() (*http.Response, error)

// AsyncReadCloser starts the callback immediately in the background and
// exposes the resulting response body as an io.ReadCloser. The first Read
// blocks until the callback has produced a response; callback errors
// surface as read errors.
func AsyncReadCloser(proxy ProxyCallback) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		resp, err := proxy()
		defer func() {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			_ = pw.Close()
		}()

		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}

		if resp == nil || resp.Body == nil {
			_ = pw.CloseWithError(io.ErrUnexpectedEOF)
			return
		}

		if _, err := io.Copy(pw, resp.Body); err != nil {
			_ = pw.CloseWithError(err)
		}
	}()

	return pr
}
