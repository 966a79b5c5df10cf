package kissnet

import (
	"fmt"
	"net"

	"github.com/charmbracelet/log"
)

// Listener accepts KISS TCP client connections, mirroring the server side
// of the teacher's kissnet.go (one TCP port serving one radio channel, per
// its 1.7 "separate TCP ports per radio" design note quoted there). Each
// accepted connection becomes one Channel, suitable for one ax25link.Session.
type Listener struct {
	ln     net.Listener
	logger *log.Logger
}

// Listen starts accepting KISS TCP clients on addr (e.g. ":8001").
func Listen(addr string, opts ...Option) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("kissnet: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, logger: log.Default().WithPrefix("kissnet")}, nil
}

// Accept blocks for the next client connection and wraps it as a Channel.
func (l *Listener) Accept(opts ...Option) (*Channel, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("kissnet: accept: %w", err)
	}
	l.logger.Info("client connected", "remote", conn.RemoteAddr())
	return NewChannel(conn, opts...), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
