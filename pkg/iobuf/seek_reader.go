package iobuf

import (
	"fmt"
	"io"
	"sync"
)

// seekReadCloser ensures a specific offset is applied before the first read.
type seekReadCloser struct {
	R      io.ReadSeekCloser
	offset int64
	once   sync.Once
	err    error
}

// SeekReadCloser creates an io.ReadCloser that begins reading from the
// specified offset in the provided io.ReadSeekCloser.
func SeekReadCloser(R io.ReadSeekCloser, offset int64) io.ReadCloser {
	return &seekReadCloser{R: R, offset: offset}
}

func (s *seekReadCloser) seek() {
	s.once.Do(func() {
		skip, err := s.R.Seek(s.offset, io.SeekStart)
		if err != nil {
			s.err = err
			return
		}
		if skip != s.offset {
			s.err = fmt.Errorf("seek failed, got %d, want %d", skip, s.offset)
		}
	})
}

func (s *seekReadCloser) Read(p []byte) (n int, err error) {
	s.seek()
	if s.err != nil {
		return 0, s.err
	}
	return s.R.Read(p)
}

func (s *seekReadCloser) WriteTo(w io.Writer) (n int64, err error) {
	s.seek()
	if s.err != nil {
		return 0, s.err
	}
	return io.Copy(w, s.R)
}

func (s *seekReadCloser) Close() error {
	return s.R.Close()
}
