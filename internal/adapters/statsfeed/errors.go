package statsfeed

import "errors"

var (
	// ErrMalformedFeed is returned when the payload does not have the
	// expected series shape.
	ErrMalformedFeed = errors.New("malformed statistics feed")
	// ErrFeedUnavailable is returned when the feed cannot be fetched.
	ErrFeedUnavailable = errors.New("statistics feed unavailable")
	// ErrNoFeedURL is returned by Fetch when no URL was configured.
	ErrNoFeedURL = errors.New("statistics feed url not configured")
)
