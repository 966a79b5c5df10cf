package ax25

// FRMRReason is the rejection-cause payload of a FRMR frame. Exact FRMR
// encoding is an Open Question in spec.md §9 ("many peers tolerate its
// omission... a conforming implementation may choose to never send
// FRMR"); this module implements it because the FRMR U-frame already
// reserves an info-field slot (see uKindHasInfo) and original_source's
// handling of a confused peer logs this detail on receipt.
type FRMRReason struct {
	RejectedControl       byte // the control octet that caused the reject
	VR, VS                int  // our V(R) and V(S) at the time
	InvalidControl        bool // W: control field undefined or not implemented
	InvalidInfoNotAllowed bool // X: I field present where not allowed
	InfoTooLong           bool // Y: I field exceeded maximum length
	InvalidNR             bool // Z: N(R) out of range
}

// EncodeFRMRInfo renders the 3-byte FRMR information field per AX.25
// v2.2: rejected control octet, then a byte packing V(R)/V(S), then a
// byte packing the W/X/Y/Z reason bits.
func EncodeFRMRInfo(r FRMRReason) []byte {
	vrvs := byte(r.VR&0x0f)<<4 | byte(r.VS&0x0f)
	var reason byte
	if r.InvalidControl {
		reason |= 0x01
	}
	if r.InvalidInfoNotAllowed {
		reason |= 0x02
	}
	if r.InfoTooLong {
		reason |= 0x04
	}
	if r.InvalidNR {
		reason |= 0x08
	}
	return []byte{r.RejectedControl, vrvs, reason}
}

// DecodeFRMRInfo parses the FRMR information field produced above.
func DecodeFRMRInfo(info []byte) (FRMRReason, bool) {
	if len(info) < 3 {
		return FRMRReason{}, false
	}
	return FRMRReason{
		RejectedControl:       info[0],
		VR:                    int(info[1]>>4) & 0x0f,
		VS:                    int(info[1]) & 0x0f,
		InvalidControl:        info[2]&0x01 != 0,
		InvalidInfoNotAllowed: info[2]&0x02 != 0,
		InfoTooLong:           info[2]&0x04 != 0,
		InvalidNR:             info[2]&0x08 != 0,
	}, true
}
