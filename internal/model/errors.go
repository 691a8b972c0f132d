package model

import "fmt"

var (
	// ErrInvalidLink is used when an event references a link that doesn't exist.
	ErrInvalidLink = fmt.Errorf("invalid link ID")
	// ErrInvalidFlow is used when an event references a flow ID out of range.
	ErrInvalidFlow = fmt.Errorf("invalid flow ID")
	// ErrInvalidDelay is used when an event delay is not realistic (and is not the pending marker).
	ErrInvalidDelay = fmt.Errorf("invalid delay")
	// ErrUnknownContract is used when an SLA contract name is not in the catalog.
	ErrUnknownContract = fmt.Errorf("unknown SLA contract")
)
