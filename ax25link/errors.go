package ax25link

import "errors"

var (
	errConnectRejected = errors.New("ax25link: connection rejected (DM)")
	errConnectFailed   = errors.New("ax25link: connection attempt timed out")
)
