package transfer

import (
	"bufio"
	"fmt"
	"io"
	"time"

	twserr "tws/internal/errors"
	"tws/internal/progress"
	"tws/internal/source"
)

const (
	// readyTimeout bounds each wait on source readiness so the progress
	// line keeps refreshing while the upstream is idle.
	readyTimeout = 300 * time.Millisecond
	// refreshInterval is the minimum time between two progress redraws.
	refreshInterval = 500 * time.Millisecond
)

// Loop pulls from the source, frames bytes per the session mode, writes
// them to the connection and drives the progress renderer at a bounded
// cadence. Control flow is strictly sequential: the next read is only
// issued after the previous write completed.
type Loop struct {
	Session    *Session
	Source     source.Source
	Writer     *bufio.Writer
	Conn       io.Closer // closed in finalize; may be nil
	Renderer   *progress.Renderer
	Unbuffered bool // flush after every write
}

// Run sends the response header block, then the whole payload, then
// finalizes. Any write failure (including the peer disconnecting) aborts
// immediately: there is no retry and no resume.
func (t *Loop) Run() error {
	s := t.Session
	if err := writeHeader(t.Writer, s.MimeType, s.TotalBytes); err != nil {
		return err
	}
	if s.Mode == progress.Streaming {
		s.chunkOpen = true
	}
	if err := t.Writer.Flush(); err != nil {
		return twserr.New(twserr.Transport, "transfer", "flushing header block", err)
	}
	s.startTime = time.Now()
	s.lastProgress = s.startTime

	buf := make([]byte, s.BufferSize)
	for {
		ready, err := t.Source.Wait(readyTimeout)
		if err != nil {
			return twserr.New(twserr.Transport, "transfer", "waiting for source", err)
		}
		if ready {
			n, rerr := t.Source.Read(buf)
			if n > 0 {
				if err := t.writePayload(buf[:n]); err != nil {
					return err
				}
				s.SentBytes += uint64(n)
				if t.Unbuffered {
					if err := t.Writer.Flush(); err != nil {
						return twserr.New(twserr.Transport, "transfer", "flushing payload", err)
					}
				}
			}
			if rerr == io.EOF || (n == 0 && rerr == nil) {
				break
			}
			if rerr != nil {
				return twserr.New(twserr.Transport, "transfer", "reading source", rerr)
			}
		}
		t.refresh()
	}
	return t.finalize()
}

// writePayload frames one read's worth of bytes. Streaming mode emits
// chunked-encoding framing: the size in hex, CRLF, the raw bytes, CRLF.
func (t *Loop) writePayload(p []byte) error {
	if t.Session.Mode == progress.Streaming {
		if _, err := fmt.Fprintf(t.Writer, "%x\r\n", len(p)); err != nil {
			return twserr.New(twserr.Transport, "transfer", "writing chunk size", err)
		}
		if _, err := t.Writer.Write(p); err != nil {
			return twserr.New(twserr.Transport, "transfer", "writing chunk", err)
		}
		if _, err := t.Writer.WriteString("\r\n"); err != nil {
			return twserr.New(twserr.Transport, "transfer", "writing chunk terminator", err)
		}
		return nil
	}
	if _, err := t.Writer.Write(p); err != nil {
		return twserr.New(twserr.Transport, "transfer", "writing payload", err)
	}
	return nil
}

// refresh redraws the progress line when the refresh interval has passed.
// Idle cycles go through here too, which is what keeps the bar alive on a
// slow pipe.
func (t *Loop) refresh() {
	s := t.Session
	if time.Since(s.lastProgress) < refreshInterval {
		return
	}
	val := s.Elapsed()
	if s.Mode == progress.FixedLength {
		val = s.Remaining()
	}
	if t.Renderer != nil {
		t.Renderer.Render(s.SentBytes, s.intervals, val, s.Rate())
	}
	s.lastProgress = time.Now()
	s.intervals++
}

// finalize writes the terminating zero-length chunk in streaming mode,
// renders the final totals unconditionally and closes the connection and
// the source.
func (t *Loop) finalize() error {
	s := t.Session
	if s.chunkOpen {
		if _, err := t.Writer.WriteString("0\r\n\r\n"); err != nil {
			return twserr.New(twserr.Transport, "transfer", "writing chunk trailer", err)
		}
		s.chunkOpen = false
	}
	if err := t.Writer.Flush(); err != nil {
		return twserr.New(twserr.Transport, "transfer", "flushing response", err)
	}
	if t.Renderer != nil {
		t.Renderer.Render(s.SentBytes, s.intervals, s.Elapsed(), s.Rate())
	}
	if t.Conn != nil {
		t.Conn.Close()
	}
	return t.Source.Close()
}
