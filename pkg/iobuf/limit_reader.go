package iobuf

import "io"

// limitedReadCloser wraps an io.ReadCloser, imposing a maximum read limit.
type limitedReadCloser struct {
	R       io.ReadCloser
	limited io.Reader
}

// LimitReadCloser wraps an io.ReadCloser, limiting the number of bytes that
// can be read from it up to a specified maximum.
func LimitReadCloser(readCloser io.ReadCloser, max int64) io.ReadCloser {
	return &limitedReadCloser{
		limited: io.LimitReader(readCloser, max),
		R:       readCloser,
	}
}

func (lrc *limitedReadCloser) Read(p []byte) (n int, err error) {
	return lrc.limited.Read(p)
}

func (lrc *limitedReadCloser) WriteTo(w io.Writer) (n int64, err error) {
	return io.Copy(w, lrc.limited)
}

// Close releases resources associated with the underlying io.ReadCloser.
func (lrc *limitedReadCloser) Close() error {
	return lrc.R.Close()
}
