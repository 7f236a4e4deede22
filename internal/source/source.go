package source

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Source is the one payload a run serves: a file of known size or an
// unbounded stream.
type Source interface {
	io.ReadCloser
	// Size returns the total payload size in bytes, or -1 when unknown.
	Size() int64
	// Wait blocks until data is ready to read or the timeout elapses.
	// ready is false with a nil error when the timeout expired; the caller
	// treats that as an idle cycle, not an error.
	Wait(timeout time.Duration) (ready bool, err error)
}

// FileSource serves a regular file. It is always ready and knows its size
// up front.
type FileSource struct {
	f    *os.File
	size int64
}

func OpenFile(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) Size() int64 { return s.size }

func (s *FileSource) Wait(timeout time.Duration) (bool, error) { return true, nil }

func (s *FileSource) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *FileSource) Close() error { return s.f.Close() }

// PipeSource serves an unbounded stream, normally stdin connected to a pipe.
// Readiness is polled on the descriptor so the caller can keep refreshing
// progress while the upstream writer is idle.
type PipeSource struct {
	f *os.File
}

func NewPipe(f *os.File) *PipeSource { return &PipeSource{f: f} }

func (s *PipeSource) Size() int64 { return -1 }

func (s *PipeSource) Wait(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.f.Fd()), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

func (s *PipeSource) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *PipeSource) Close() error { return s.f.Close() }

// IsPipe reports whether f is not a terminal device, i.e. data has been
// piped or redirected into it.
func IsPipe(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}
