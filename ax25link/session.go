// Package ax25link implements the AX.25 v2.2 connection-oriented
// data-link session: connection setup/teardown, sequenced I-frame
// transmission with sliding-window flow control, supervisory frame
// handling, T1/T2/T3 timers, piggyback/delayed ACKs, and transmit-queue
// back-pressure against a busy half-duplex channel, per spec.md §4.3-§4.5.
//
// The core is single-threaded cooperative (spec.md §5): each Session
// runs one event loop goroutine, and every inbound frame, host call, and
// timer expiry is processed to completion before the next, so nothing
// inside a Session needs its own lock.
package ax25link

import (
	"context"
	"fmt"

	"github.com/w1fq/ax25link/ax25"
)

// pendingTx is one wire-ready frame waiting for the channel to go free,
// per spec.md §4.3's half-duplex back-pressure paragraph: the frame at
// the head of this FIFO is not "sent" for T1 purposes until the channel
// accepts it.
type pendingTx struct {
	wire       []byte
	onAccepted func()
}

// Session is one AX.25 connection to a single peer address pair.
type Session struct {
	cfg    Config
	ch     Channel
	events EventSink

	local ax25.Address
	peer  ax25.Address
	via   []ax25.Address

	state      State
	vs, va, vr int
	modulus    int
	maxFrames  int
	modulo128  bool

	send *sendBuffer
	recv *receiveBuffer

	peerBusy  bool
	localBusy bool

	t1, t2, t3 retryTimer

	delayedAckPending  bool
	lastStandaloneRR   int
	haveLastStandalone bool
	sentIDuringHandler bool // host called Send() while handling an I-frame delivery

	txFIFO []pendingTx

	// hostQueue holds I-frame payloads that don't yet fit in the
	// window-bounded send buffer, per spec.md §5's resource-bounds
	// note that send_buffer itself must stay capped at max_frames
	// while a backlog above the window needs its own (bounded) cap.
	hostQueue [][]byte

	cmdCh   chan func()
	closeCh chan struct{}
	done    chan struct{}

	connectWaiters    []chan error
	disconnectWaiters []chan error
}

// New creates a Session for the given local/peer address pair. Call Run
// in its own goroutine to start the event loop before issuing Connect,
// Send, or Disconnect.
func New(cfg Config, ch Channel, local, peer ax25.Address, via []ax25.Address, events EventSink) *Session {
	if events == nil {
		events = NopEventSink{}
	}
	modulus := cfg.modulus()
	if cfg.T1 <= 0 {
		cfg.T1 = 6 * cfg.PacketTime
	}
	if cfg.T3 <= 0 {
		cfg.T3 = 7 * cfg.PacketTime
	}
	s := &Session{
		cfg:      cfg,
		ch:       ch,
		events:   events,
		local:    local,
		peer:     peer,
		via:      via,
		state:    Disconnected,
		modulus:  modulus,
		maxFrames: cfg.MaxFrames,
		modulo128: cfg.Modulo128,
		send:     newSendBuffer(modulus, cfg.MaxFrames),
		recv:     newReceiveBuffer(max(1, cfg.MaxFrames-1)),
		cmdCh:    make(chan func()),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// State returns the current connection state. Safe to call from any
// goroutine: it is answered by the event loop itself.
func (s *Session) State() State {
	reply := make(chan State, 1)
	select {
	case s.cmdCh <- func() { reply <- s.state }:
		return <-reply
	case <-s.done:
		return Disconnected
	}
}

// Run executes the session's event loop until Close is called. Run
// must be called exactly once, typically via `go session.Run()`.
func (s *Session) Run() {
	defer close(s.done)
	for {
		select {
		case <-s.closeCh:
			s.t1.stop()
			s.t2.stop()
			s.t3.stop()
			return
		case cmd := <-s.cmdCh:
			cmd()
		case wire, ok := <-s.ch.Received():
			if !ok {
				return
			}
			s.handleInbound(wire)
		case <-s.t1.fire():
			s.onT1Expiry()
		case <-s.t2.fire():
			s.onT2Expiry()
		case <-s.t3.fire():
			s.onT3Expiry()
		case <-s.ch.Idle():
			s.pump()
		}
	}
}

// Close tears down the event loop without running the graceful DISC
// handshake; used when the host is abandoning the session entirely
// (e.g. process shutdown). Prefer Disconnect for a cooperative peer.
func (s *Session) Close() {
	select {
	case <-s.closeCh:
	default:
		close(s.closeCh)
	}
	<-s.done
}

// Connect initiates connection establishment, per spec.md §4.3. It
// blocks until the session reaches Connected, is rejected (DM), fails
// (T1 exhaustion), or ctx is cancelled.
func (s *Session) Connect(ctx context.Context) error {
	result := make(chan error, 1)
	select {
	case s.cmdCh <- func() { s.doConnect(result) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("ax25link: session closed")
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("ax25link: session closed")
	}
}

func (s *Session) doConnect(result chan error) {
	if s.state != Disconnected {
		result <- fmt.Errorf("ax25link: connect from state %v", s.state)
		return
	}
	s.vs, s.va, s.vr = 0, 0, 0
	s.send = newSendBuffer(s.modulus, s.maxFrames)
	s.recv = newReceiveBuffer(max(1, s.maxFrames-1))
	s.state = Connecting
	s.connectWaiters = append(s.connectWaiters, result)
	s.t1.resetAttempts()
	s.sendSABM(true)
	s.events.StateChanged(s.state, ReasonNone)
}

func (s *Session) sabmKind() ax25.Kind {
	if s.modulo128 {
		return ax25.KindSABME
	}
	return ax25.KindSABM
}

func (s *Session) sendSABM(poll bool) {
	f := ax25.NewUFrame(s.sabmKind(), s.peer, s.local, s.via, poll, 0, nil)
	f.CmdRespSrc = ax25.Command
	s.transmitControl(f)
	s.t1.start(s.cfg.T1)
}

// Disconnect initiates graceful teardown, per spec.md §4.3. It blocks
// until the session reaches Disconnected or ctx is cancelled; the DISC
// handshake with T1 retries still runs to completion in the background
// even if the caller gives up waiting.
func (s *Session) Disconnect(ctx context.Context) error {
	result := make(chan error, 1)
	select {
	case s.cmdCh <- func() { s.doDisconnect(result) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return nil
	case <-s.done:
		return nil
	}
}

func (s *Session) doDisconnect(result chan error) {
	switch s.state {
	case Disconnected:
		result <- nil
		return
	case Disconnecting:
		s.disconnectWaiters = append(s.disconnectWaiters, result)
		return
	}
	s.state = Disconnecting
	s.disconnectWaiters = append(s.disconnectWaiters, result)
	s.t1.resetAttempts()
	s.sendDISC(true)
	s.events.StateChanged(s.state, ReasonLocalDisconnect)
}

func (s *Session) sendDISC(poll bool) {
	f := ax25.NewUFrame(ax25.KindDISC, s.peer, s.local, s.via, poll, 0, nil)
	f.CmdRespSrc = ax25.Command
	s.transmitControl(f)
	s.t1.start(s.cfg.T1)
}

// Send enqueues data for transmission, splitting it into I-frames of at
// most cfg.PacketLength bytes, per spec.md §4.3 ("Sending"). It returns
// once every chunk has been accepted into the send buffer or, beyond the
// window, into the bounded host backlog, not once the
// peer has acknowledged it; use the EventSink's StateChanged callback to
// learn of eventual link failure (spec.md §8 property 3).
func (s *Session) Send(ctx context.Context, data []byte) error {
	result := make(chan error, 1)
	select {
	case s.cmdCh <- func() { result <- s.sendLocked(data) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("ax25link: session closed")
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendNow is the reentrant counterpart to Send: it must only be called
// from within an EventSink callback (DataReceived, StateChanged), i.e.
// while already running on the session's own event-loop goroutine. This
// is what makes piggyback ACKs work for an application that replies to
// received data immediately, per spec.md §4.3 step 5 / §8 property 7:
// Send going through the cmdCh round trip from inside a callback that is
// itself running on the loop goroutine would deadlock, since nothing
// would be left to read that channel.
func (s *Session) SendNow(data []byte) error {
	return s.sendLocked(data)
}

// hostQueueCap bounds the above-window backlog so Send never grows
// memory without limit even if the peer never acknowledges anything;
// spec.md §5 leaves the exact policy to the implementation.
const hostQueueCap = 4096

// sendLocked implements spec.md §4.3 "Sending"; it assumes the caller is
// already executing on the event-loop goroutine (either via the cmdCh
// dispatch in Send, or reentrantly via SendNow).
func (s *Session) sendLocked(data []byte) error {
	if s.state != Connected {
		return fmt.Errorf("ax25link: send while %v", s.state)
	}
	chunkLen := s.cfg.packetLength()
	for len(data) > 0 {
		n := chunkLen
		if n > len(data) {
			n = len(data)
		}
		chunk := append([]byte(nil), data[:n]...)
		if !s.send.full() && len(s.hostQueue) == 0 {
			s.send.enqueue(chunk)
		} else if len(s.hostQueue) < hostQueueCap {
			s.hostQueue = append(s.hostQueue, chunk)
		} else {
			return fmt.Errorf("ax25link: send backlog full")
		}
		data = data[n:]
	}
	// An outbound I-frame piggybacks the ACK, so a pending delayed RR
	// is now redundant (spec.md §4.3 step 3 / "RR suppression").
	s.t2.stop()
	s.delayedAckPending = false
	s.sentIDuringHandler = true
	s.pump()
	return nil
}

// pump drains the transmit FIFO into the channel while it is free, and
// tops up that FIFO from the send buffer up to the window limit, per
// spec.md §4.3's drain() and §4.4.
func (s *Session) pump() {
	for s.ch.IsFree() && len(s.txFIFO) > 0 {
		head := s.txFIFO[0]
		s.txFIFO = s.txFIFO[1:]
		s.ch.Submit(head.wire)
		if head.onAccepted != nil {
			head.onAccepted()
		}
	}
	if s.state != Connected || s.peerBusy {
		return
	}
	for !s.send.empty() {
		next := s.send.nextUnsent()
		if next == nil {
			break
		}
		// A frame already carries its ns when resetSentFrom/resetSentOne
		// (REJ/SREJ recovery) marked it unsent again; only a frame fresh
		// off enqueue (ns == -1) consumes the next V(S).
		ns := next.ns
		if ns < 0 {
			ns = s.vs
			s.vs = mod(s.vs+1, s.modulus)
		}
		payload, ok := s.send.assignNext(ns)
		if !ok {
			break
		}
		f := ax25.NewIFrame(s.peer, s.local, s.via, ax25.Modulus(s.modulus), ns, s.vr, false, ax25.PIDNoLayer3, payload)
		f.CmdRespSrc = ax25.Command
		wire, err := ax25.Encode(f)
		if err != nil {
			s.events.Traced("ax25link: encode I-frame: %v", err)
			continue
		}
		s.enqueueWire(wire, func() {
			if !s.t1.active {
				s.t1.start(s.cfg.T1)
			}
		})
		// The window is bounded by what's unacked in send, not by
		// how much we've handed to the channel this tick, so loop
		// continues only while more unsent frames remain and the
		// window (len(send.frames) <= maxFrames) isn't exhausted;
		// sendLocked and refillFromHostQueue enforce that at enqueue time.
	}
}

func (s *Session) enqueueWire(wire []byte, onAccepted func()) {
	s.txFIFO = append(s.txFIFO, pendingTx{wire: wire, onAccepted: onAccepted})
	if s.ch.IsFree() {
		s.pump()
	}
}

// SetLocalBusy toggles host back-pressure (spec.md §7's BusyLocal
// policy): while busy, the session answers polls and T3 probes with RNR
// instead of RR.
func (s *Session) SetLocalBusy(busy bool) {
	select {
	case s.cmdCh <- func() { s.localBusy = busy }:
	case <-s.done:
	}
}

// transmitControl sends a non-I control frame (S or U) through the same
// back-pressure FIFO as data frames.
func (s *Session) transmitControl(f ax25.Frame) {
	wire, err := ax25.Encode(f)
	if err != nil {
		s.events.Traced("ax25link: encode %v frame: %v", f.Kind, err)
		return
	}
	s.enqueueWire(wire, nil)
}
