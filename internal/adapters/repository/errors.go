package repository

import "errors"

// Sentinel kinds for store errors. Implementations wrap one of these so
// callers can branch with errors.Is.
var (
	// ErrNotFound means the store answered and the record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a record with the same slug already exists.
	ErrConflict = errors.New("record already exists")
	// ErrUnavailable covers transport failures and 5xx answers; retry may succeed.
	ErrUnavailable = errors.New("store unavailable")
	// ErrTimeout means the call exceeded the store deadline.
	ErrTimeout = errors.New("store call timed out")
	// ErrRejected means the store refused the request (auth, bad input).
	ErrRejected = errors.New("store rejected request")
	// ErrInvalidArgument is returned before any call is made.
	ErrInvalidArgument = errors.New("invalid store argument")
)
