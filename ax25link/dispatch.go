package ax25link

import (
	"github.com/w1fq/ax25link/ax25"
)

// handleInbound decodes one frame off the wire and routes it to the
// session's current state, per spec.md §4.3's event alphabet (incoming
// frame type x current state).
func (s *Session) handleInbound(wire []byte) {
	f, err := ax25.DecodeForModulus(wire, ax25.Modulus(s.modulus))
	if err != nil {
		// MalformedFrame: drop silently, per spec.md §7.
		s.events.Traced("ax25link: decode error: %v", err)
		return
	}
	if !f.Source.Equal(s.peer) || !f.Destination.Equal(s.local) {
		return // not addressed to/from this session's peer
	}

	switch f.Kind {
	case ax25.KindI:
		s.onIFrame(f)
	case ax25.KindRR, ax25.KindRNR, ax25.KindREJ, ax25.KindSREJ:
		s.onSFrame(f)
	case ax25.KindSABM, ax25.KindSABME:
		s.onSABM(f)
	case ax25.KindDISC:
		s.onDISC(f)
	case ax25.KindUA:
		s.onUA(f)
	case ax25.KindDM:
		s.onDM(f)
	case ax25.KindFRMR:
		s.events.Traced("ax25link: peer sent FRMR")
	case ax25.KindXID:
		s.onXID(f)
	}
}

func (s *Session) onSABM(f ax25.Frame) {
	switch s.state {
	case Disconnected:
		s.modulo128 = f.Kind == ax25.KindSABME
		s.modulus = int(ax25.Modulus(8))
		if s.modulo128 {
			s.modulus = 128
		}
		s.resetLinkState()
		s.sendUA(true)
		s.transitionConnected()
	case Connected:
		// "Connection-reset" interpretation per spec.md §9 Open
		// Questions: SABM(E) while connected resets sequence
		// variables and flushes buffers rather than being an error.
		s.resetLinkState()
		s.sendUA(f.PollFinal)
		s.events.Traced("ax25link: protocol reset via inbound SABM(E)")
	case Connecting:
		// SABM/SABM collision: reply UA and settle into CONNECTED,
		// matching the teacher's note that AX.25 peers routinely
		// race connection requests.
		s.resetLinkState()
		s.sendUA(true)
		s.transitionConnected()
	case Disconnecting:
		s.sendUA(true)
		s.transitionDisconnected(ReasonPeerDisconnected)
	}
}

func (s *Session) resetLinkState() {
	s.vs, s.va, s.vr = 0, 0, 0
	s.send = newSendBuffer(s.modulus, s.maxFrames)
	s.recv = newReceiveBuffer(max(1, s.maxFrames-1))
	s.peerBusy = false
	s.localBusy = false
	s.delayedAckPending = false
	s.haveLastStandalone = false
	s.t1.stop()
	s.t2.stop()
}

func (s *Session) sendUA(poll bool) {
	f := ax25.NewUFrame(ax25.KindUA, s.peer, s.local, s.via, poll, 0, nil)
	f.CmdRespSrc = ax25.Response
	s.transmitControl(f)
}

func (s *Session) sendDM() {
	f := ax25.NewUFrame(ax25.KindDM, s.peer, s.local, s.via, true, 0, nil)
	f.CmdRespSrc = ax25.Response
	s.transmitControl(f)
}

func (s *Session) transitionConnected() {
	s.state = Connected
	s.t1.stop()
	s.t1.resetAttempts()
	s.t3.start(s.cfg.T3)
	s.t3.resetAttempts()
	s.events.StateChanged(s.state, ReasonNone)
	for _, w := range s.connectWaiters {
		w <- nil
	}
	s.connectWaiters = nil
	if s.cfg.NegotiateXID {
		s.sendXID()
	}
}

func (s *Session) sendXID() {
	x := ax25.XID{Modulo128: s.modulo128, WindowSize: s.maxFrames, MaxInfoBytes: s.cfg.packetLength(), RetryCount: s.cfg.Retries}
	f := ax25.NewUFrame(ax25.KindXID, s.peer, s.local, s.via, true, 0, ax25.EncodeXID(x))
	f.CmdRespSrc = ax25.Command
	s.transmitControl(f)
}

func (s *Session) onXID(f ax25.Frame) {
	x, err := ax25.DecodeXID(f.Payload)
	if err != nil {
		s.events.Traced("ax25link: bad XID: %v", err)
		return
	}
	if x.WindowSize > 0 && x.WindowSize < s.maxFrames {
		s.maxFrames = x.WindowSize
		s.send.maxFrame = x.WindowSize
	}
	if x.MaxInfoBytes > 0 && x.MaxInfoBytes < s.cfg.packetLength() {
		s.cfg.PacketLength = x.MaxInfoBytes
	}
	if f.CmdRespSrc == ax25.Command || f.PollFinal {
		reply := ax25.NewUFrame(ax25.KindXID, s.peer, s.local, s.via, f.PollFinal, 0,
			ax25.EncodeXID(ax25.XID{Modulo128: s.modulo128, WindowSize: s.maxFrames, MaxInfoBytes: s.cfg.packetLength(), RetryCount: s.cfg.Retries}))
		reply.CmdRespSrc = ax25.Response
		s.transmitControl(reply)
	}
}

func (s *Session) transitionDisconnected(reason Reason) {
	s.state = Disconnected
	s.t1.stop()
	s.t2.stop()
	s.t3.stop()
	s.send = newSendBuffer(s.modulus, s.maxFrames)
	s.events.StateChanged(s.state, reason)
	for _, w := range s.connectWaiters {
		w <- connectError(reason)
	}
	s.connectWaiters = nil
	for _, w := range s.disconnectWaiters {
		w <- nil
	}
	s.disconnectWaiters = nil
}

func connectError(reason Reason) error {
	switch reason {
	case ReasonConnectRejected:
		return errConnectRejected
	case ReasonConnectFailed:
		return errConnectFailed
	default:
		return nil
	}
}

func (s *Session) onUA(f ax25.Frame) {
	switch s.state {
	case Connecting:
		s.transitionConnected()
	case Disconnecting:
		s.transitionDisconnected(ReasonLocalDisconnect)
	}
}

func (s *Session) onDM(f ax25.Frame) {
	switch s.state {
	case Connecting:
		s.transitionDisconnected(ReasonConnectRejected)
	case Disconnecting, Connected:
		s.transitionDisconnected(ReasonPeerDisconnected)
	}
}

func (s *Session) onDISC(f ax25.Frame) {
	switch s.state {
	case Connected:
		s.sendUA(f.PollFinal)
		s.transitionDisconnected(ReasonPeerDisconnected)
	case Connecting, Disconnecting:
		s.sendDM()
	case Disconnected:
		s.sendDM()
	}
}

// onT1Expiry handles the retry timer firing in CONNECTING, CONNECTED (an
// unacked I-frame or poll), and DISCONNECTING, per spec.md §4.3's timer
// table.
func (s *Session) onT1Expiry() {
	switch s.state {
	case Connecting:
		if s.t1.attempt < s.cfg.Retries {
			s.t1.bumpAttempts()
			s.sendSABM(true)
		} else {
			s.transitionDisconnected(ReasonConnectFailed)
		}
	case Disconnecting:
		if s.t1.attempt < s.cfg.Retries {
			s.t1.bumpAttempts()
			s.sendDISC(true)
		} else {
			s.transitionDisconnected(ReasonLocalDisconnect)
		}
	case Connected:
		if s.t1.attempt < s.cfg.Retries {
			s.t1.bumpAttempts()
			s.retransmitUnacked()
		} else {
			s.events.Traced("ax25link: T1 retries exhausted, link failure")
			s.send = newSendBuffer(s.modulus, s.maxFrames)
			s.transitionDisconnected(ReasonLinkFailure)
		}
	}
}

// retransmitUnacked resends the oldest unacked I-frame with P=1, per the
// T1 row of spec.md §4.3's timer table.
func (s *Session) retransmitUnacked() {
	if s.send.empty() {
		s.t1.stop()
		return
	}
	oldest := s.send.frames[0]
	f := ax25.NewIFrame(s.peer, s.local, s.via, ax25.Modulus(s.modulus), oldest.ns, s.vr, true, ax25.PIDNoLayer3, oldest.payload)
	f.CmdRespSrc = ax25.Command
	s.transmitControl(f)
	s.t1.start(s.cfg.T1)
}

// onT2Expiry emits the standalone delayed ACK, per spec.md §4.3 step 5,
// suppressed if redundant (step 6 / §8 property 6).
func (s *Session) onT2Expiry() {
	s.delayedAckPending = false
	if s.state != Connected {
		return
	}
	if s.haveLastStandalone && s.lastStandaloneRR == s.vr {
		return // idempotent RR suppression
	}
	s.sendStandaloneRR(false)
}

func (s *Session) sendStandaloneRR(poll bool) {
	kind := ax25.KindRR
	if s.localBusy {
		kind = ax25.KindRNR
	}
	f := ax25.NewSFrame(kind, s.peer, s.local, s.via, ax25.Modulus(s.modulus), s.vr, poll, nil)
	f.CmdRespSrc = ax25.Response
	s.transmitControl(f)
	s.lastStandaloneRR = s.vr
	s.haveLastStandalone = true
}

// onT3Expiry probes an otherwise-idle link, per spec.md §4.3's timer
// table, and initiates disconnect once its own retry budget is spent.
func (s *Session) onT3Expiry() {
	if s.state != Connected {
		return
	}
	if s.t3.attempt < s.cfg.Retries {
		s.t3.bumpAttempts()
		f := ax25.NewSFrame(ax25.KindRR, s.peer, s.local, s.via, ax25.Modulus(s.modulus), s.vr, true, nil)
		f.CmdRespSrc = ax25.Command
		s.transmitControl(f)
		s.t3.start(s.cfg.T3)
	} else {
		s.events.Traced("ax25link: T3 retries exhausted, initiating disconnect")
		s.state = Disconnecting
		s.t1.resetAttempts()
		s.sendDISC(true)
		s.events.StateChanged(s.state, ReasonIdleTimeout)
	}
}
