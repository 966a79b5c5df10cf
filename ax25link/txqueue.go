package ax25link

// outFrame is one outgoing I-frame held in the send buffer, per spec.md
// §4.4: "Frames in send_buffer are numbered contiguously va, va+1, ...,
// va+k modulo modulus, with k < max_frames."
type outFrame struct {
	ns      int // -1 until assigned at the moment of transmission
	payload []byte
	sent    bool
}

// sendBuffer is the per-session bounded queue of unacked/unsent
// outgoing I-frames, ordered oldest-first (index 0 is the frame
// numbered va).
type sendBuffer struct {
	frames   []outFrame
	modulus  int
	maxFrame int
}

func newSendBuffer(modulus, maxFrame int) *sendBuffer {
	return &sendBuffer{modulus: modulus, maxFrame: maxFrame}
}

// full reports whether the window is exhausted: spec.md invariant
// (vs - va) mod modulus <= max_frames.
func (b *sendBuffer) full() bool {
	return len(b.frames) >= b.maxFrame
}

// enqueue appends a new frame in the unsent, un-numbered state; its N(S)
// is assigned by assignNext at the moment it is actually handed to the
// channel (see pump in session.go), matching spec.md §4.3's "on each
// emission: ... set ns, increment vs".
func (b *sendBuffer) enqueue(payload []byte) {
	b.frames = append(b.frames, outFrame{ns: -1, payload: payload})
}

// unsentCount returns how many buffered frames have not yet been
// handed to the channel.
func (b *sendBuffer) unsentCount() int {
	n := 0
	for _, f := range b.frames {
		if !f.sent {
			n++
		}
	}
	return n
}

// nextUnsent returns a pointer to the first unsent frame, or nil.
func (b *sendBuffer) nextUnsent() *outFrame {
	for i := range b.frames {
		if !b.frames[i].sent {
			return &b.frames[i]
		}
	}
	return nil
}

// assignNext numbers and marks-sent the first unsent frame with ns, the
// caller's current V(S), and returns its payload. The caller is
// responsible for advancing V(S) afterward.
func (b *sendBuffer) assignNext(ns int) (payload []byte, ok bool) {
	f := b.nextUnsent()
	if f == nil {
		return nil, false
	}
	f.ns = ns
	f.sent = true
	return f.payload, true
}

// ackThrough removes every frame with ns preceding nr (modular), per
// "remove the first acked_count frames from the front of send_buffer".
// It reports how many were removed.
func (b *sendBuffer) ackThrough(va, nr, modulus int) int {
	acked := mod(nr-va, modulus)
	if acked > len(b.frames) {
		acked = len(b.frames)
	}
	b.frames = b.frames[acked:]
	return acked
}

// resetSentFrom marks every frame with ns >= nr (modular, relative to
// the buffer's oldest entry) as unsent again, per the REJ handling in
// spec.md §4.3: "reset the sent flag on every frame in send_buffer with
// ns >= nr; immediately retransmit starting at nr."
func (b *sendBuffer) resetSentFrom(nr int) {
	for i := range b.frames {
		if b.frames[i].ns == nr {
			for j := i; j < len(b.frames); j++ {
				b.frames[j].sent = false
			}
			return
		}
	}
}

// resetSentOne marks exactly the frame with the given ns unsent, per the
// SREJ handling in spec.md §4.3 ("reset the sent flag on the single
// frame matching SREJ's nr only").
func (b *sendBuffer) resetSentOne(ns int) {
	for i := range b.frames {
		if b.frames[i].ns == ns {
			b.frames[i].sent = false
			return
		}
	}
}

func (b *sendBuffer) empty() bool { return len(b.frames) == 0 }

// receiveBuffer holds out-of-sequence payloads awaiting in-order
// delivery, keyed by N(S), per spec.md §3 ("used for SREJ reassembly")
// and bounded by max_frames-1 (§5).
type receiveBuffer struct {
	frames  map[int][]byte
	maxSize int
}

func newReceiveBuffer(maxSize int) *receiveBuffer {
	return &receiveBuffer{frames: make(map[int][]byte), maxSize: maxSize}
}

func (r *receiveBuffer) put(ns int, payload []byte) {
	if len(r.frames) >= r.maxSize {
		return // bounded per §5; drop rather than grow unbounded
	}
	r.frames[ns] = payload
}

func (r *receiveBuffer) has(ns int) bool {
	_, ok := r.frames[ns]
	return ok
}

// drain removes and returns, in order, every contiguous frame starting
// at vr (which the caller then advances), per spec.md §4.3 step 1.
func (r *receiveBuffer) drain(vr, modulus int) (payloads [][]byte, newVR int) {
	for {
		p, ok := r.frames[vr]
		if !ok {
			return payloads, vr
		}
		payloads = append(payloads, p)
		delete(r.frames, vr)
		vr = mod(vr+1, modulus)
	}
}

func mod(n, m int) int {
	n %= m
	if n < 0 {
		n += m
	}
	return n
}

// inWindow reports whether ns lies within [vr, vr+maxFrame) modulo
// modulus — the "ahead of vr but within window" test spec.md §4.3 step
// 4 needs to distinguish a genuine out-of-sequence frame it should
// buffer from a frame so far out of range it should just be ignored.
func inWindow(ns, vr, maxFrame, modulus int) bool {
	return mod(ns-vr, modulus) < maxFrame
}
