package replay

import "errors"

// ErrUnexpectedStatus is returned when the service answers outside 2xx.
var ErrUnexpectedStatus = errors.New("unexpected status")
