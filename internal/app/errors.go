package service

import "errors"

var (
	// ErrNotStarted is returned when a handler runs before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrUnknownPlayer is returned by Rank for a username with no record.
	ErrUnknownPlayer = errors.New("unknown player")
)
