package transfer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"strings"
	"testing"
	"time"

	twserr "tws/internal/errors"
	"tws/internal/progress"
	"tws/internal/source"
)

// memSource serves an in-memory payload of known size, always ready.
type memSource struct {
	r      *bytes.Reader
	reads  int
	closed bool
}

func newMemSource(b []byte) *memSource { return &memSource{r: bytes.NewReader(b)} }

func (m *memSource) Wait(time.Duration) (bool, error) { return true, nil }

func (m *memSource) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		m.reads++
	}
	return n, err
}

func (m *memSource) Size() int64  { return m.r.Size() }
func (m *memSource) Close() error { m.closed = true; return nil }

// scriptSource plays back a fixed sequence of readiness/read outcomes,
// modelling a pipe whose upstream writes in bursts.
type scriptStep struct {
	data []byte
	idle bool
}

type scriptSource struct {
	steps  []scriptStep
	pos    int
	closed bool
}

func (s *scriptSource) Wait(time.Duration) (bool, error) {
	if s.pos < len(s.steps) && s.steps[s.pos].idle {
		s.pos++
		return false, nil
	}
	return true, nil
}

func (s *scriptSource) Read(p []byte) (int, error) {
	if s.pos >= len(s.steps) {
		return 0, io.EOF
	}
	st := s.steps[s.pos]
	s.pos++
	return copy(p, st.data), nil
}

func (s *scriptSource) Size() int64  { return -1 }
func (s *scriptSource) Close() error { s.closed = true; return nil }

func splitResponse(t *testing.T, raw string) (header, body string) {
	t.Helper()
	i := strings.Index(raw, "\r\n\r\n")
	if i < 0 {
		t.Fatalf("no header terminator in response: %q", raw)
	}
	return raw[:i+4], raw[i+4:]
}

func runLoop(t *testing.T, src source.Source, mode progress.Mode, bufSize int) (*Session, string) {
	t.Helper()
	sess, err := NewSession(mode, src.Size(), bufSize, "application/octet-stream")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	var out bytes.Buffer
	loop := &Loop{
		Session: sess,
		Source:  src,
		Writer:  bufio.NewWriter(&out),
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sess, out.String()
}

func TestFixedLengthTransfer(t *testing.T) {
	payload := make([]byte, 100000)
	for i := range payload {
		payload[i] = byte(i)
	}
	src := newMemSource(payload)

	sess, raw := runLoop(t, src, progress.FixedLength, 16384)
	header, body := splitResponse(t, raw)

	if !strings.Contains(header, "Content-Length: 100000\r\n") {
		t.Errorf("missing Content-Length header: %q", header)
	}
	if !bytes.Equal([]byte(body), payload) {
		t.Error("body does not match payload")
	}
	if sess.SentBytes != 100000 {
		t.Errorf("SentBytes = %d, want 100000", sess.SentBytes)
	}
	// 6 full 16384-byte cycles plus one 1696-byte remainder.
	if src.reads != 7 {
		t.Errorf("read cycles = %d, want 7", src.reads)
	}
	if !src.closed {
		t.Error("source not closed at finalize")
	}
}

func TestZeroByteFile(t *testing.T) {
	src := newMemSource(nil)
	sess, raw := runLoop(t, src, progress.FixedLength, 16384)
	header, body := splitResponse(t, raw)

	if !strings.Contains(header, "Content-Length: 0\r\n") {
		t.Errorf("missing Content-Length: 0: %q", header)
	}
	if body != "" {
		t.Errorf("payload bytes after empty file: %q", body)
	}
	if sess.SentBytes != 0 {
		t.Errorf("SentBytes = %d, want 0", sess.SentBytes)
	}
	if strings.Count(raw, "HTTP/1.1") != 1 {
		t.Error("more than one header block sent")
	}
}

func TestStreamingChunks(t *testing.T) {
	first := []byte("0123456789")
	second := bytes.Repeat([]byte("x"), 20)
	src := &scriptSource{steps: []scriptStep{
		{data: first},
		{idle: true}, // transient empty source, must not become a chunk
		{data: second},
	}}

	sess, raw := runLoop(t, src, progress.Streaming, 16384)
	header, body := splitResponse(t, raw)

	if !strings.Contains(header, "Transfer-Encoding: chunked\r\n") {
		t.Errorf("missing chunked header: %q", header)
	}
	if !strings.HasPrefix(body, "a\r\n0123456789\r\n") {
		t.Errorf("first chunk misframed: %q", body)
	}
	if !strings.Contains(body, "14\r\n"+string(second)+"\r\n") {
		t.Errorf("second chunk misframed: %q", body)
	}
	if !strings.HasSuffix(body, "0\r\n\r\n") {
		t.Errorf("missing terminating chunk: %q", body)
	}
	if strings.Count(body, "0\r\n\r\n") != 1 {
		t.Errorf("terminating chunk not unique: %q", body)
	}
	if sess.SentBytes != 30 {
		t.Errorf("SentBytes = %d, want 30", sess.SentBytes)
	}

	// Round-trip law: de-framing the chunks reproduces the byte sequence.
	got, err := io.ReadAll(httputil.NewChunkedReader(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("de-framing chunks: %v", err)
	}
	want := append(append([]byte{}, first...), second...)
	if !bytes.Equal(got, want) {
		t.Errorf("round-trip mismatch: got %q, want %q", got, want)
	}
	if !src.closed {
		t.Error("source not closed at finalize")
	}
}

func TestStreamingEmptyStream(t *testing.T) {
	src := &scriptSource{}
	sess, raw := runLoop(t, src, progress.Streaming, 16384)
	_, body := splitResponse(t, raw)
	if body != "0\r\n\r\n" {
		t.Errorf("body = %q, want bare terminating chunk", body)
	}
	if sess.SentBytes != 0 {
		t.Errorf("SentBytes = %d, want 0", sess.SentBytes)
	}
}

// failWriter accepts n bytes and then refuses everything, like a peer
// resetting the connection mid-transfer.
type failWriter struct {
	n int
}

func (w *failWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		defer func() { w.n = 0 }()
		return w.n, fmt.Errorf("connection reset by peer")
	}
	w.n -= len(p)
	return len(p), nil
}

func TestWriteFailureAborts(t *testing.T) {
	payload := make([]byte, 65536)
	src := newMemSource(payload)
	sess, err := NewSession(progress.FixedLength, src.Size(), 16384, "application/octet-stream")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	loop := &Loop{
		Session: sess,
		Source:  src,
		Writer:  bufio.NewWriterSize(&failWriter{n: 200}, 16384),
	}
	err = loop.Run()
	if err == nil {
		t.Fatal("Run succeeded past a dead connection")
	}
	var ae *twserr.AppError
	if !errors.As(err, &ae) || ae.Kind != twserr.Transport {
		t.Errorf("error kind = %v, want Transport", err)
	}
}

func TestSessionRejectsBadBuffer(t *testing.T) {
	if _, err := NewSession(progress.FixedLength, 10, 0, "x"); err == nil {
		t.Error("zero buffer size accepted")
	}
	if _, err := NewSession(progress.FixedLength, 10, -1, "x"); err == nil {
		t.Error("negative buffer size accepted")
	}
}

func TestSessionGuards(t *testing.T) {
	sess, err := NewSession(progress.FixedLength, 1000, 16384, "x")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.startTime = time.Now()
	if r := sess.Rate(); r < 0 {
		t.Errorf("rate negative at first tick: %v", r)
	}
	if sess.Remaining() != 0 {
		t.Error("remaining estimate without sent bytes")
	}
	sess.SentBytes = 500
	sess.startTime = time.Now().Add(-time.Second)
	if sess.Remaining() <= 0 {
		t.Error("remaining estimate not positive mid-transfer")
	}
}
