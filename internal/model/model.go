package model

import (
	"fmt"
	"time"
)

// FlowID identifies a logical traffic flow (the 802.11 TID of the original traffic).
type FlowID int

// LinkID identifies one of the concurrent MLO links, from 0 to N-1.
type LinkID int

const (
	// MaxFlowID is the highest valid flow ID.
	MaxFlowID FlowID = 255
	// MaxDelayMs is the highest delay accepted from the event source.
	MaxDelayMs = 10000.0
	// PendingDelay marks an event as "transmission recorded, outcome pending".
	PendingDelay = -1.0
)

// Valid returns true if the flow ID is in the accepted range.
func (f FlowID) Valid() bool { return f >= 0 && f <= MaxFlowID }

// Valid returns true if the link ID exists in a setup with numLinks links.
func (l LinkID) Valid(numLinks int) bool { return l >= 0 && int(l) < numLinks }

// Tier is the priority tier of a flow.
type Tier int

const (
	TierNormal Tier = iota
	TierCritical
	TierEmergency
)

func (t Tier) String() string {
	switch t {
	case TierEmergency:
		return "emergency"
	case TierCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Tiers returns all the tiers, highest priority first.
func Tiers() []Tier { return []Tier{TierEmergency, TierCritical, TierNormal} }

// PacketEvent is a single transmit or receive event reported by the event source.
type PacketEvent struct {
	// At is the simulated time since the start of the run.
	At        time.Duration
	FlowID    FlowID
	LinkID    LinkID
	Success   bool
	DelayMs   float64
	Bytes     uint32
	Critical  bool
	Duplicate bool
}

// Pending returns true when the event only records a transmission attempt.
func (p PacketEvent) Pending() bool { return p.DelayMs == PendingDelay }

// Validate checks the event identifiers and delay against a setup of numLinks links.
func (p PacketEvent) Validate(numLinks int) error {
	if !p.LinkID.Valid(numLinks) {
		return fmt.Errorf("link %d with %d links: %w", p.LinkID, numLinks, ErrInvalidLink)
	}

	if !p.FlowID.Valid() {
		return fmt.Errorf("flow %d: %w", p.FlowID, ErrInvalidFlow)
	}

	if !p.Pending() && (p.DelayMs < 0 || p.DelayMs > MaxDelayMs) {
		return fmt.Errorf("delay %gms: %w", p.DelayMs, ErrInvalidDelay)
	}

	return nil
}
