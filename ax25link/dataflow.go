package ax25link

import "github.com/w1fq/ax25link/ax25"

// onIFrame handles an inbound I-frame in CONNECTED, per spec.md §4.3
// "Receiving an I-frame".
func (s *Session) onIFrame(f ax25.Frame) {
	if s.state != Connected {
		return
	}

	s.sentIDuringHandler = false

	switch {
	case f.NS == s.vr:
		s.deliverInSequence(f)
		s.processAck(f.NR)
		s.respondToPoll(f)
		s.scheduleOrSuppressAck(f)
		s.t3.start(s.cfg.T3)
		s.t3.resetAttempts()
	case inWindow(f.NS, s.vr, s.maxFrames, s.modulus):
		s.processAck(f.NR)
		s.handleOutOfSequence(f)
		s.respondToPoll(f)
	default:
		// Duplicate (ns behind vr in modular sense): discard but
		// still ACK if P=1, per spec.md §4.3 step 4.
		s.processAck(f.NR)
		s.respondToPoll(f)
	}
	s.pump()
}

func (s *Session) deliverInSequence(f ax25.Frame) {
	s.events.DataReceived(f.Payload)
	s.vr = mod(s.vr+1, s.modulus)
	payloads, newVR := s.recv.drain(s.vr, s.modulus)
	for _, p := range payloads {
		s.events.DataReceived(p)
	}
	s.vr = newVR
}

func (s *Session) handleOutOfSequence(f ax25.Frame) {
	if s.cfg.UseSREJ {
		if !s.recv.has(f.NS) {
			s.recv.put(f.NS, f.Payload)
			sf := ax25.NewSFrame(ax25.KindSREJ, s.peer, s.local, s.via, ax25.Modulus(s.modulus), s.vr, false, nil)
			sf.CmdRespSrc = ax25.Response
			s.transmitControl(sf)
		}
		return
	}
	sf := ax25.NewSFrame(ax25.KindREJ, s.peer, s.local, s.via, ax25.Modulus(s.modulus), s.vr, false, nil)
	sf.CmdRespSrc = ax25.Response
	s.transmitControl(sf)
}

// respondToPoll sends an immediate response when the received frame's P
// bit is set, per spec.md §4.3 step 3: no delay permitted.
func (s *Session) respondToPoll(f ax25.Frame) {
	if !f.PollFinal {
		return
	}
	s.sendStandaloneRR(true)
	s.t2.stop()
	s.delayedAckPending = false
}

// scheduleOrSuppressAck implements the delayed-ACK optimization of
// spec.md §4.3 step 5: if the host queued outbound data while handling
// this delivery, the outbound I-frame already piggybacks the ACK and no
// standalone RR is needed (§8 property 7); otherwise start/continue T2.
func (s *Session) scheduleOrSuppressAck(f ax25.Frame) {
	if f.PollFinal {
		return // already answered immediately above
	}
	if s.sentIDuringHandler || s.send.unsentCount() > 0 {
		s.t2.stop()
		s.delayedAckPending = false
		return
	}
	if !s.delayedAckPending {
		s.delayedAckPending = true
		s.t2.start(s.cfg.T2)
	}
}

// onSFrame handles an inbound RR/RNR/REJ/SREJ frame in CONNECTED, per
// spec.md §4.3.
func (s *Session) onSFrame(f ax25.Frame) {
	if s.state != Connected {
		return
	}
	switch f.Kind {
	case ax25.KindRR:
		s.peerBusy = false
		s.processAck(f.NR)
		s.pump()
	case ax25.KindRNR:
		s.peerBusy = true
		s.processAck(f.NR)
	case ax25.KindREJ:
		s.peerBusy = false
		s.processAck(f.NR)
		s.send.resetSentFrom(f.NR)
		s.t1.start(s.cfg.T1)
		s.pump()
	case ax25.KindSREJ:
		s.processAck(f.NR)
		s.send.resetSentOne(f.NR)
		s.t1.start(s.cfg.T1)
		s.pump()
	}
	if f.PollFinal {
		s.sendStandaloneRR(true)
	}
}

// processAck applies an incoming N(R) against the send buffer, per
// spec.md §4.3 "Processing an ACK".
func (s *Session) processAck(nr int) {
	if !goodNR(nr, s.va, s.vs, s.modulus) {
		if s.cfg.SendFRMR {
			s.sendFRMR(ax25.FRMRReason{VR: s.vr, VS: s.vs, InvalidNR: true})
		}
		return
	}
	removed := s.send.ackThrough(s.va, nr, s.modulus)
	if removed > 0 {
		s.va = nr
		s.t1.resetAttempts()
		s.refillFromHostQueue()
	}
	if s.va == s.vs {
		s.t1.stop()
	} else if removed > 0 {
		s.t1.start(s.cfg.T1)
	}
}

// refillFromHostQueue moves backlog payloads into the window-bounded
// send buffer as acknowledgments free up space, per spec.md §5.
func (s *Session) refillFromHostQueue() {
	for !s.send.full() && len(s.hostQueue) > 0 {
		s.send.enqueue(s.hostQueue[0])
		s.hostQueue = s.hostQueue[1:]
	}
}

func (s *Session) sendFRMR(reason ax25.FRMRReason) {
	f := ax25.NewUFrame(ax25.KindFRMR, s.peer, s.local, s.via, false, 0, ax25.EncodeFRMRInfo(reason))
	f.CmdRespSrc = ax25.Response
	s.transmitControl(f)
}

// goodNR reports whether nr is a valid acknowledgment: it must lie in
// the modular range [va, vs], inclusive at both ends, per spec.md §4.3
// "Processing an ACK" ("If nr lies outside [va, vs] (modular), the peer
// is confused").
func goodNR(nr, va, vs, modulus int) bool {
	return mod(nr-va, modulus) <= mod(vs-va, modulus)
}
