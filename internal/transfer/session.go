package transfer

import (
	"fmt"
	"time"

	"tws/internal/progress"
)

// Session holds the mutable state of the single transfer a run performs.
// It is created after the request has been validated and mutated only by
// the transfer loop.
type Session struct {
	Mode       progress.Mode
	TotalBytes int64  // -1 when unknown (streaming)
	SentBytes  uint64 // monotonically non-decreasing
	BufferSize int    // bounds each read/write cycle
	MimeType   string

	startTime    time.Time
	lastProgress time.Time
	intervals    uint64
	chunkOpen    bool // streaming only: between header send and trailer send
}

func NewSession(mode progress.Mode, total int64, bufferSize int, mimeType string) (*Session, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", bufferSize)
	}
	if mode == progress.Streaming {
		total = -1
	}
	return &Session{
		Mode:       mode,
		TotalBytes: total,
		BufferSize: bufferSize,
		MimeType:   mimeType,
	}, nil
}

func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// Rate is the mean throughput in bytes per second since the session
// started. A zero-duration first tick yields 0 rather than dividing by
// zero.
func (s *Session) Rate() float64 {
	secs := s.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.SentBytes) / secs
}

// Remaining extrapolates the current mean rate across the bytes left to
// send. Guarded against SentBytes == 0 and unknown totals.
func (s *Session) Remaining() time.Duration {
	if s.TotalBytes < 0 || s.SentBytes == 0 {
		return 0
	}
	elapsed := s.Elapsed().Seconds()
	estimate := float64(s.TotalBytes)*elapsed/float64(s.SentBytes) - elapsed
	return time.Duration(estimate * float64(time.Second))
}
