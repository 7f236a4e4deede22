package transfer

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	twserr "tws/internal/errors"
)

// Endpoint is the one accepted client connection plus its resolved peer
// address.
type Endpoint struct {
	Conn net.Conn
	IP   string
	Name string // reverse-DNS name, empty when unresolved
	Port string
}

// Listener binds one dual-stack TCP wildcard port and accepts exactly one
// connection. There is no accept loop: this is a single-shot server.
type Listener struct {
	ln   net.Listener
	port int
}

// RandomPort picks a pseudo-random listen port in [8000,9000).
func RandomPort() int {
	return 8000 + rand.Intn(1000)
}

// Listen binds the wildcard address on port. IPV6_V6ONLY is cleared so the
// one socket accepts IPv4 (as mapped addresses) and IPv6 alike. Any
// bind/sockopt failure is a fatal setup error before network exposure.
func Listen(port int) (*Listener, error) {
	lc := net.ListenConfig{Control: dualStack}
	ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, twserr.New(twserr.Setup, "listen",
			fmt.Sprintf("cannot bind port %d", port), err)
	}
	actual := ln.Addr().(*net.TCPAddr).Port
	return &Listener{ln: ln, port: actual}, nil
}

func dualStack(network, address string, c syscall.RawConn) error {
	if network != "tcp6" {
		return nil
	}
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	}); err != nil {
		return err
	}
	return serr
}

func (l *Listener) Port() int { return l.port }

// AcceptOne blocks until a client connects, then stops listening
// permanently. No second accept is ever issued.
func (l *Listener) AcceptOne(resolve bool) (*Endpoint, error) {
	conn, err := l.ln.Accept()
	l.ln.Close()
	if err != nil {
		return nil, twserr.New(twserr.Setup, "accept", "accept failed", err)
	}
	ep := &Endpoint{Conn: conn}
	ep.IP, ep.Port, err = net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		ep.IP = conn.RemoteAddr().String()
	}
	if resolve {
		if names, err := net.LookupAddr(ep.IP); err == nil && len(names) > 0 {
			ep.Name = names[0]
		}
	}
	return ep, nil
}

func (l *Listener) Close() error { return l.ln.Close() }
