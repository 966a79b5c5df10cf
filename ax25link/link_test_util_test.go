package ax25link

import "sync"

// pipeChannel is an in-memory Channel implementation used by the test
// suite to join two Sessions back to back without a real KISS transport;
// the production Channel is package kissnet. It is always "free" (no
// half-duplex contention simulated); drop, when set, only discards frames.
type pipeChannel struct {
	recv chan []byte
	peer *pipeChannel
	idle chan struct{}

	mu   sync.Mutex
	drop func(wire []byte) bool
}

func newPipePair() (a, b *pipeChannel) {
	a = &pipeChannel{recv: make(chan []byte, 64), idle: make(chan struct{})}
	b = &pipeChannel{recv: make(chan []byte, 64), idle: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeChannel) Submit(wire []byte) {
	p.mu.Lock()
	drop := p.drop != nil && p.drop(wire)
	p.mu.Unlock()
	if drop {
		return
	}
	p.peer.recv <- append([]byte(nil), wire...)
}

func (p *pipeChannel) IsFree() bool            { return true }
func (p *pipeChannel) Received() <-chan []byte { return p.recv }
func (p *pipeChannel) Idle() <-chan struct{}   { return p.idle }

// setDrop installs a predicate that silently discards frames Submit is
// asked to deliver, simulating the lossy channel spec.md §8's REJ/SREJ
// recovery properties exercise.
func (p *pipeChannel) setDrop(f func(wire []byte) bool) {
	p.mu.Lock()
	p.drop = f
	p.mu.Unlock()
}

// recordingSink captures every EventSink callback for later assertion. It
// is safe for concurrent use since callbacks fire from a Session's own
// event-loop goroutine, one session at a time, but tests read it from the
// main goroutine concurrently with that loop.
type recordingSink struct {
	mu        sync.Mutex
	states    []State
	reasons   []Reason
	delivered [][]byte
	traces    []string

	// session is set after New so DataReceived can call SendNow
	// reentrantly, as a real echo-style host would.
	session *Session
	onData  func(data []byte, s *Session)
}

func (r *recordingSink) StateChanged(s State, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	r.reasons = append(r.reasons, reason)
}

func (r *recordingSink) DataReceived(data []byte) {
	r.mu.Lock()
	cb := r.onData
	sess := r.session
	r.delivered = append(r.delivered, append([]byte(nil), data...))
	r.mu.Unlock()
	if cb != nil {
		cb(data, sess)
	}
}

func (r *recordingSink) Traced(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, format)
}

func (r *recordingSink) lastState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return Disconnected
	}
	return r.states[len(r.states)-1]
}

func (r *recordingSink) allDelivered() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.delivered))
	copy(out, r.delivered)
	return out
}

// seqState is a snapshot of a Session's sequence variables and busy flag,
// taken for test assertions that need to look inside the state machine
// (e.g. confirming a protocol reset or an RNR-triggered stall).
type seqState struct {
	vs, va, vr int
	peerBusy   bool
}

// snapshotForTest reads seqState off the event-loop goroutine, following
// the same cmdCh round-trip State() uses, so it never races the loop.
func (s *Session) snapshotForTest() seqState {
	reply := make(chan seqState, 1)
	select {
	case s.cmdCh <- func() { reply <- seqState{s.vs, s.va, s.vr, s.peerBusy} }:
		return <-reply
	case <-s.done:
		return seqState{}
	}
}
