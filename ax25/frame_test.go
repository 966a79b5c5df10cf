package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var dest = Address{Callsign: "DEST"}
var src = Address{Callsign: "SRC"}

func TestIFrameRoundTripModulo8(t *testing.T) {
	f := NewIFrame(dest, src, nil, Modulo8, 3, 5, true, PIDNoLayer3, []byte("hello"))
	wire, err := Encode(f)
	require.NoError(t, err)

	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, KindI, got.Kind)
	assert.Equal(t, 3, got.NS)
	assert.Equal(t, 5, got.NR)
	assert.True(t, got.PollFinal)
	assert.Equal(t, []byte("hello"), got.Payload)
}

func TestIFrameRoundTripModulo128(t *testing.T) {
	f := NewIFrame(dest, src, nil, Modulo128, 100, 97, false, PIDNoLayer3, []byte("x"))
	wire, err := Encode(f)
	require.NoError(t, err)

	got, err := DecodeForModulus(wire, Modulo128)
	require.NoError(t, err)
	assert.Equal(t, 100, got.NS)
	assert.Equal(t, 97, got.NR)
	assert.False(t, got.PollFinal)
}

func TestSFrameKinds(t *testing.T) {
	for _, k := range []Kind{KindRR, KindRNR, KindREJ, KindSREJ} {
		f := NewSFrame(k, dest, src, nil, Modulo8, 4, true, nil)
		wire, err := Encode(f)
		require.NoError(t, err)
		got, err := Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, k, got.Kind)
		assert.Equal(t, 4, got.NR)
		assert.True(t, got.PollFinal)
	}
}

func TestUFrameKinds(t *testing.T) {
	for _, k := range []Kind{KindSABM, KindSABME, KindDISC, KindDM, KindUA, KindFRMR, KindUI, KindXID, KindTEST} {
		f := NewUFrame(k, dest, src, nil, true, PIDNoLayer3, nil)
		wire, err := Encode(f)
		require.NoError(t, err)
		got, err := Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, k, got.Kind, "kind %v", k)
		assert.True(t, got.PollFinal)
	}
}

func TestUIFramePayload(t *testing.T) {
	f := NewUFrame(KindUI, dest, src, nil, false, PIDNoLayer3, []byte("APRS data"))
	wire, err := Encode(f)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, PIDNoLayer3, got.PID)
	assert.Equal(t, []byte("APRS data"), got.Payload)
}

func TestCommandResponseEncoding(t *testing.T) {
	f := NewIFrame(dest, src, nil, Modulo8, 0, 0, false, PIDNoLayer3, nil)
	f.CmdRespSrc = Command
	wire, err := Encode(f)
	require.NoError(t, err)
	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, Command, got.CmdRespSrc)
}

func TestDecodeUnknownControl(t *testing.T) {
	wire := encodeAddressChain([]Address{dest, src})
	wire = append(wire, 0x07) // low bits 11 mark a U-frame, but 0x07 is no defined U type
	_, err := Decode(wire)
	assert.ErrorIs(t, err, ErrUnknownControl)
}

func TestDecodeTruncated(t *testing.T) {
	wire := encodeAddressChain([]Address{dest, src})
	_, err := Decode(wire)
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

// Property: Decode(Encode(f)) == f for every well-formed I-frame (spec.md §8.5).
func TestPropertyIFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ns := rapid.IntRange(0, 7).Draw(rt, "ns")
		nr := rapid.IntRange(0, 7).Draw(rt, "nr")
		poll := rapid.Bool().Draw(rt, "poll")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(rt, "payload")

		f := NewIFrame(dest, src, nil, Modulo8, ns, nr, poll, PIDNoLayer3, payload)
		wire, err := Encode(f)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		got, err := Decode(wire)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if got.NS != ns || got.NR != nr || got.PollFinal != poll {
			rt.Fatalf("round trip mismatch: got %+v", got)
		}
	})
}

func TestXIDRoundTrip(t *testing.T) {
	x := XID{Modulo128: true, WindowSize: 7, MaxInfoBytes: 128, RetryCount: 5}
	enc := EncodeXID(x)
	got, err := DecodeXID(enc)
	require.NoError(t, err)
	assert.Equal(t, x, got)
}

func TestFRMRInfoRoundTrip(t *testing.T) {
	r := FRMRReason{RejectedControl: 0x55, VR: 3, VS: 5, InvalidNR: true}
	enc := EncodeFRMRInfo(r)
	got, ok := DecodeFRMRInfo(enc)
	require.True(t, ok)
	assert.Equal(t, r, got)
}
