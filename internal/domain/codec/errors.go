package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrMalformedRecord = errors.New("malformed score record")
)
