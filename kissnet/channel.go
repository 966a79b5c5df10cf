package kissnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Channel is a KISS-over-TCP implementation of ax25link.Channel: it
// dials (or wraps) a single TCP connection to a TNC and speaks the KISS
// framing described in kiss.go. One Channel serves one ax25link.Session,
// matching the "single radio channel per TCP port" mode the teacher's
// kissnet.go calls out as the 1.7 multi-port feature.
type Channel struct {
	conn   net.Conn
	logger *log.Logger

	recv chan []byte
	idle chan struct{}
	out  chan []byte

	busy atomic.Bool

	// holdDown approximates the time a half-duplex radio would spend
	// transmitting a frame before the channel is free again; a bare
	// TCP socket has no such constraint, but simulating one keeps this
	// reference Channel honest about the contract real Channel
	// implementations (serial TNC, SDR modem) must uphold, per
	// spec.md §4.5's "Submit does not imply immediate airtime".
	holdDown time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Channel constructed by Dial or NewChannel.
type Option func(*Channel)

// WithHoldDown overrides the default simulated transmit hold-down.
func WithHoldDown(d time.Duration) Option {
	return func(c *Channel) { c.holdDown = d }
}

// WithLogger overrides the default charmbracelet/log logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// Dial connects to a KISS TNC (e.g. direwolf's default TCP KISS port) and
// returns a ready-to-use Channel. Call Close when the session is done
// with it.
func Dial(ctx context.Context, addr string, opts ...Option) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("kissnet: dial %s: %w", addr, err)
	}
	return NewChannel(conn, opts...), nil
}

// NewChannel wraps an already-established connection (e.g. one accepted
// by a test TNC or a net.Listener) as a Channel.
func NewChannel(conn net.Conn, opts ...Option) *Channel {
	c := &Channel{
		conn:     conn,
		logger:   log.Default().WithPrefix("kissnet"),
		recv:     make(chan []byte, 32),
		idle:     make(chan struct{}, 1),
		out:      make(chan []byte, 32),
		holdDown: 50 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Submit implements ax25link.Channel: it enqueues frame for transmission
// and returns immediately, per spec.md §4.5's non-blocking contract.
func (c *Channel) Submit(frame []byte) {
	select {
	case c.out <- frame:
	case <-c.done:
	default:
		c.logger.Warn("transmit queue full, dropping frame", "len", len(frame))
	}
}

// IsFree implements ax25link.Channel.
func (c *Channel) IsFree() bool { return !c.busy.Load() }

// Received implements ax25link.Channel.
func (c *Channel) Received() <-chan []byte { return c.recv }

// Idle implements ax25link.Channel.
func (c *Channel) Idle() <-chan struct{} { return c.idle }

// Close shuts down the connection and both pump goroutines.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) writeLoop() {
	for {
		select {
		case frame := <-c.out:
			c.transmit(frame)
		case <-c.done:
			return
		}
	}
}

func (c *Channel) transmit(frame []byte) {
	c.busy.Store(true)
	defer func() {
		c.busy.Store(false)
		c.notifyIdle()
	}()
	wire := encodeFrame(frame)
	if _, err := c.conn.Write(wire); err != nil {
		c.logger.Error("write failed", "err", err)
		return
	}
	// Hold the channel "busy" a little past the write to emulate a
	// half-duplex radio's transmit tail, so a session's T1/pump logic
	// exercised against this reference Channel behaves the way it
	// would against serial/audio hardware.
	select {
	case <-time.After(c.holdDown):
	case <-c.done:
	}
}

func (c *Channel) notifyIdle() {
	select {
	case c.idle <- struct{}{}:
	default:
	}
}

func (c *Channel) readLoop() {
	defer close(c.recv)
	buf := make([]byte, 4096)
	var fr frameReader
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			c.logger.Debug("connection closed", "err", err)
			return
		}
		for _, b := range buf[:n] {
			if payload, ok := fr.feed(b); ok {
				select {
				case c.recv <- payload:
				case <-c.done:
					return
				}
			}
		}
	}
}
