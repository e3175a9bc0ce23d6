package cachestore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrFragmentCovered aborts a writer whose target range is already
// covered by an existing or in-flight fragment.
var ErrFragmentCovered = errors.New("fragment range already cached")

// partialSuffix marks a fragment still being written. Partial files are
// invisible to Find, so a half-written head is never served, and they
// turn into fragments only through the length-checked rename in Close.
const partialSuffix = ".partial"

// partialMaxAge is the age past which a partial file is considered a
// crash leftover and reclaimed.
const partialMaxAge = time.Hour

// writerQueueDepth bounds buffered chunks; a slow disk backpressures the
// upstream read through a blocking Push.
const writerQueueDepth = 64

// Writer appends one fragment. Chunks are queued to a single appender
// goroutine that owns the sink file; Push and Close are called from the
// streaming goroutine.
type Writer struct {
	store *Store
	dir   string
	frag  FragRange

	ch     chan []byte
	done   chan struct{}
	file   *os.File
	closed bool

	written  int64
	writeErr error
}

// Writer allocates an exclusive writer for the target fragment. The
// pre-check and sink creation run under the per-fingerprint mutex: of two
// racing writers the loser observes the winner's fragment (final or
// partial) and aborts before opening its sink. A fragment strictly inside
// the new range is unlinked; an equal or covering one aborts the new
// writer.
func (s *Store) Writer(fp Fingerprint, shape FileShape, frag FragRange) (*Writer, error) {
	release := s.locks.Acquire(fp.Digest())
	defer release()

	dir := fp.Dir(s.root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()

		if strings.HasSuffix(name, partialSuffix) {
			existing, ok := ParseFragmentName(strings.TrimSuffix(name, partialSuffix))
			if !ok {
				continue
			}
			if info, ierr := entry.Info(); ierr == nil && time.Since(info.ModTime()) > partialMaxAge {
				s.log.Warnf("reclaiming abandoned partial %s", name)
				_ = os.Remove(filepath.Join(dir, name))
				continue
			}
			if frag.Within(existing) {
				return nil, ErrFragmentCovered
			}
			continue
		}

		existing, ok := ParseFragmentName(name)
		if !ok {
			continue
		}
		if !shape.Valid(existing) {
			s.log.Warnf("removing stale fragment %s", name)
			_ = os.Remove(filepath.Join(dir, name))
			continue
		}
		if frag.Within(existing) {
			return nil, ErrFragmentCovered
		}
		if existing.Within(frag) {
			s.log.Warnf("new fragment %s covers %s, unlinking the old one", frag.Name(), name)
			_ = os.Remove(filepath.Join(dir, name))
		}
	}

	file, err := os.OpenFile(filepath.Join(dir, frag.Name()+partialSuffix), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		store: s,
		dir:   dir,
		frag:  frag,
		ch:    make(chan []byte, writerQueueDepth),
		done:  make(chan struct{}),
		file:  file,
	}
	go w.run()
	return w, nil
}

func (w *Writer) run() {
	defer close(w.done)
	for buf := range w.ch {
		if w.writeErr != nil {
			continue // drain
		}
		n, err := w.file.Write(buf)
		w.written += int64(n)
		if err != nil {
			w.writeErr = err
		}
	}
}

// Push queues a chunk. The slice is copied, so callers may reuse their
// buffer. Pushing into a closed writer is a no-op.
func (w *Writer) Push(p []byte) {
	if w.closed || len(p) == 0 {
		return
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	w.ch <- buf
}

// Target returns the fragment range this writer fills.
func (w *Writer) Target() FragRange { return w.frag }

func (w *Writer) partialPath() string {
	return filepath.Join(w.dir, w.frag.Name()+partialSuffix)
}

// Close drains the queue and finalizes the sink. The partial file becomes
// a fragment only when the byte count matches the fragment length; a
// short write means the upstream broke mid-stream and the partial is
// unlinked instead.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.ch)
	<-w.done
	_ = w.file.Close()

	if w.writeErr != nil || w.written != w.frag.Len() {
		w.store.log.Errorf("cache write failed for %s: wrote %d of %d bytes (err: %v), unlinking",
			w.frag.Name(), w.written, w.frag.Len(), w.writeErr)
		_ = os.Remove(w.partialPath())
		return w.writeErr
	}

	if err := os.Rename(w.partialPath(), filepath.Join(w.dir, w.frag.Name())); err != nil {
		w.store.log.Errorf("finalize fragment %s: %v", w.frag.Name(), err)
		_ = os.Remove(w.partialPath())
		return err
	}
	return nil
}

// Abort discards the sink regardless of how much was written.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
	<-w.done
	_ = w.file.Close()
	_ = os.Remove(w.partialPath())
}
