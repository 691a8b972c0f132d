package qos

import (
	"fmt"

	"github.com/mlolab/mloeval/internal/model"
)

// Config is the explicit tier configuration of the flows. Emergency flows take the
// lowest IDs, critical flows the following ones, the rest are normal.
type Config struct {
	Emergency int
	Critical  int
}

// Validate checks the configuration against the total number of flows.
func (c Config) Validate(totalFlows int) error {
	if c.Emergency < 0 || c.Critical < 0 {
		return fmt.Errorf("emergency and critical flow counts can't be negative")
	}

	if c.Emergency+c.Critical > totalFlows {
		return fmt.Errorf("emergency (%d) + critical (%d) flows exceed the total flow count (%d)", c.Emergency, c.Critical, totalFlows)
	}

	return nil
}

// Class is the classification result of a flow.
type Class struct {
	Tier     model.Tier
	Critical bool
	// Priority goes from 0 (lowest) to 3 (highest).
	Priority uint8
}

// Classify maps a flow to its tier. Criticality comes only from the configured counts,
// with both counts at zero no flow is critical.
func Classify(flowID model.FlowID, emergencyCount, criticalCount int) Class {
	id := int(flowID)
	switch {
	case id < emergencyCount:
		return Class{Tier: model.TierEmergency, Critical: true, Priority: 3}
	case id < emergencyCount+criticalCount:
		return Class{Tier: model.TierCritical, Critical: true, Priority: 2}
	}

	return Class{Tier: model.TierNormal, Critical: false, Priority: AccessCategory(flowID)}
}

// Classify classifies a flow with the configuration counts.
func (c Config) Classify(flowID model.FlowID) Class {
	return Classify(flowID, c.Emergency, c.Critical)
}

// Access categories from IEEE 802.11 user priorities.
const (
	ACBackground uint8 = iota
	ACBestEffort
	ACVideo
	ACVoice
)

// AccessCategory returns the 802.11 access category of the flow user priority (ID modulo 8).
func AccessCategory(flowID model.FlowID) uint8 {
	switch flowID % 8 {
	case 1, 2:
		return ACBackground
	case 4, 5:
		return ACVideo
	case 6, 7:
		return ACVoice
	default:
		return ACBestEffort
	}
}
