package model

import "fmt"

// SLAContract is the delay and error agreement assigned to a flow.
type SLAContract struct {
	Name string
	// DelayThreshold is the maximum acceptable delay in milliseconds.
	DelayThreshold float64
	// ErrorThreshold is the maximum acceptable percent of non compliant packets.
	ErrorThreshold float64
	// PacketWindow is the number of packets of the compliance window.
	PacketWindow int
}

const (
	ContractCriticalHigh  = "CriticalHigh"
	ContractCriticalBasic = "CriticalBasic"
	ContractNonCritical   = "NonCritical"
)

var contractCatalog = map[string]SLAContract{
	ContractCriticalHigh:  {Name: ContractCriticalHigh, DelayThreshold: 1, ErrorThreshold: 1, PacketWindow: 10},
	ContractCriticalBasic: {Name: ContractCriticalBasic, DelayThreshold: 50, ErrorThreshold: 5, PacketWindow: 10},
	ContractNonCritical:   {Name: ContractNonCritical, DelayThreshold: 100, ErrorThreshold: 10, PacketWindow: 10},
}

// ContractByName returns a contract from the fixed catalog.
func ContractByName(name string) (SLAContract, error) {
	c, ok := contractCatalog[name]
	if !ok {
		return SLAContract{}, fmt.Errorf("%q: %w", name, ErrUnknownContract)
	}
	return c, nil
}

// ContractForTier returns the catalog contract assigned by default to a tier.
func ContractForTier(t Tier) SLAContract {
	switch t {
	case TierEmergency:
		return contractCatalog[ContractCriticalHigh]
	case TierCritical:
		return contractCatalog[ContractCriticalBasic]
	default:
		return contractCatalog[ContractNonCritical]
	}
}

// ContractNames returns the catalog contract names, strictest first.
func ContractNames() []string {
	return []string{ContractCriticalHigh, ContractCriticalBasic, ContractNonCritical}
}
