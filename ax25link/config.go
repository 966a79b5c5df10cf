package ax25link

import "time"

// Config holds the per-session policy knobs named in spec.md §3/§4.3.
// Zero-value Config is not ready for use; call DefaultConfig and override
// individual fields.
type Config struct {
	// Modulo128 selects SABME (extended, 128-modulus sequencing) over
	// SABM (classic, 8-modulus) on connect. Immutable after UA, per
	// spec.md §9 ("Modulo-128" design note).
	Modulo128 bool

	// MaxFrames is the send/receive window (spec.md calls this
	// max_frames), default 4.
	MaxFrames int

	// Retries is the T1/T3 retry budget before a link is declared
	// failed, default 3 (so up to retries+1 attempts total).
	Retries int

	// PacketLength caps the size of one I-frame's information field;
	// Send splits host data into chunks of at most this many bytes.
	PacketLength int

	// UseSREJ enables selective-reject handling of single
	// out-of-sequence frames (spec.md §4.3 step 4); when false, any
	// out-of-sequence frame triggers REJ, which is always a conforming
	// choice per the Open Questions in spec.md §9.
	UseSREJ bool

	// SendFRMR enables responding to protocol violations (bad N(R),
	// unrecognized control) with FRMR instead of silently ignoring
	// them; off by default per spec.md §9.
	SendFRMR bool

	// NegotiateXID sends an XID after connection establishment and
	// adopts the peer's advertised window/packet-length if smaller.
	NegotiateXID bool

	// T1, T2, T3 are the retry, delayed-ACK, and idle-poll timer
	// durations from spec.md §4.3's timer table. PacketTime informs
	// the default backoff formulas if the caller leaves T1/T3 zero.
	PacketTime time.Duration
	T1         time.Duration
	T2         time.Duration
	T3         time.Duration
}

// DefaultConfig returns spec.md's defaults: window 4, retries 3, classic
// 128-byte packets, REJ (not SREJ), no FRMR, no XID negotiation, and
// timers derived from a 1200-baud packet time.
func DefaultConfig() Config {
	packetTime := 320 * time.Millisecond // ~256 bits @ 1200 bd * 1.5 slack
	return Config{
		Modulo128:    false,
		MaxFrames:    4,
		Retries:      3,
		PacketLength: 128,
		UseSREJ:      false,
		SendFRMR:     false,
		NegotiateXID: false,
		PacketTime:   packetTime,
		T1:           6 * packetTime,
		T2:           3 * packetTime,
		T3:           7 * packetTime,
	}
}

func (c Config) modulus() int {
	if c.Modulo128 {
		return 128
	}
	return 8
}

func (c Config) packetLength() int {
	if c.PacketLength > 0 {
		return c.PacketLength
	}
	if c.Modulo128 {
		return 256
	}
	return 128
}
