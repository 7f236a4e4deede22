package transfer

import (
	"fmt"
	"io"
	"strings"

	twserr "tws/internal/errors"
)

// ServerName is the fixed Server header value.
const ServerName = "tws (not a real server)"

// writeHeader sends the one and only response header block. The connection
// is closed after the single response completes, so no caching or
// connection-control headers are ever sent. A negative total selects
// chunked framing.
func writeHeader(w io.Writer, mimeType string, total int64) error {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 Ok\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", mimeType)
	fmt.Fprintf(&b, "Server: %s\r\n", ServerName)
	if total >= 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", total)
	} else {
		b.WriteString("Transfer-Encoding: chunked\r\n")
	}
	b.WriteString("\r\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return twserr.New(twserr.Transport, "response", "writing header block", err)
	}
	return nil
}
