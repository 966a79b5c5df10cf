package ax25

import "errors"

// Decoder errors, returned (never panicked) per §4.2: decoders always
// return a tagged error rather than throw.
var (
	ErrTruncatedFrame     = errors.New("ax25: truncated frame")
	ErrUnknownControl     = errors.New("ax25: unknown control octet")
	ErrMalformedAddress   = errors.New("ax25: malformed address")
	ErrUnsupportedModulus = errors.New("ax25: unsupported modulus")
)
