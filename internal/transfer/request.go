package transfer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	twserr "tws/internal/errors"
)

// ReadRequest reads the client's request line off the accepted connection
// and discards header lines until the bare "\r\n" terminator. Only a
// syntactically valid GET is accepted; anything else is a fatal protocol
// error and no response is attempted.
//
// No read timeout is applied: a client that connects and never sends a
// request line blocks forever. That matches the tool's historical behavior
// and is deliberate.
//
// When echo is non-nil every raw header line is copied to it for operator
// inspection; this has no effect on behavior.
func ReadRequest(r *bufio.Reader, echo io.Writer) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", twserr.New(twserr.Protocol, "request", "reading request line", err)
	}
	path, ok := parseRequestLine(line)
	if !ok {
		return "", twserr.New(twserr.Protocol, "request",
			fmt.Sprintf("not a valid GET request: %q", strings.TrimRight(line, "\r\n")), nil)
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", twserr.New(twserr.Protocol, "request", "reading headers", err)
		}
		if line == "\r\n" {
			return path, nil
		}
		if echo != nil {
			io.WriteString(echo, line)
		}
	}
}

// parseRequestLine matches `GET <path> HTTP/...` and returns the path.
func parseRequestLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || parts[0] != "GET" || parts[1] == "" {
		return "", false
	}
	if !strings.HasPrefix(parts[2], "HTTP/") {
		return "", false
	}
	return parts[1], true
}
