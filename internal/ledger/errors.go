package ledger

import "errors"

var (
	// ErrEmptyUsername is returned when an operation is given a blank username.
	ErrEmptyUsername = errors.New("username is empty")
	// ErrMissingRecordID is returned when persisting a score that was not
	// obtained from the store.
	ErrMissingRecordID = errors.New("score has no record id")
	// ErrNegativeScore is returned when persisting a score with a count
	// below zero.
	ErrNegativeScore = errors.New("score is negative")
)
