// Package v1
//
// Example YAML scenario spec:
//
//	version: "mloeval/v1"
//	name: "interference-3links"
//	links: 3
//	flows:
//	  total: 8
//	  emergency: 1
//	  critical: 2
//	  contracts:
//	    7: "CriticalBasic"
//	duration: 10s
//	report_interval: 1s
//	traffic:
//	  critical_interval: 10ms
//	  normal_interval: 25ms
//	  payload_bytes: 1000
//	  loss_timeout: 100ms
//	  duplicate_critical: true
//	channel:
//	  links:
//	    - success_probability: 0.95
//	      base_delay_ms: 4
//	      jitter_ms: 2
//	      capacity_mbps: 100
//	  interference:
//	    period: 3s
//	    active: 1500ms
//	    factor: 0.85
//	monitor:
//	  pdr_threshold: 0.95
//	strategies: ["round-robin", "sla-mlo"]
package v1

import (
	prommodel "github.com/prometheus/common/model"
)

const Version = "mloeval/v1"

// Spec represents the root type of the evaluation scenario specification.
type Spec struct {
	// Version is the version of the spec.
	Version string `yaml:"version"`
	// Name is the name of the scenario, used on the results.
	Name string `yaml:"name"`
	// Links is the number of concurrent MLO links.
	Links int `yaml:"links"`
	// Flows is the traffic flows set.
	Flows Flows `yaml:"flows"`
	// Duration is the simulated time of every run.
	Duration prommodel.Duration `yaml:"duration"`
	// ReportInterval is the interval of the periodic summaries, disabled when missing.
	ReportInterval prommodel.Duration `yaml:"report_interval,omitempty"`
	// Traffic is the packet generation of the flows.
	Traffic Traffic `yaml:"traffic,omitempty"`
	// Channel is the synthetic link behaviour.
	Channel Channel `yaml:"channel,omitempty"`
	// Monitor is the link quality monitor setup.
	Monitor Monitor `yaml:"monitor,omitempty"`
	// Strategies are the strategies evaluated by default on this scenario.
	Strategies []string `yaml:"strategies,omitempty"`
}

// Flows is the flow set of a scenario. Emergency flows take the lowest IDs, critical
// flows the next ones and the rest are normal.
type Flows struct {
	Total     int `yaml:"total"`
	Emergency int `yaml:"emergency,omitempty"`
	Critical  int `yaml:"critical,omitempty"`
	// Contracts overrides the SLA contract of a flow ID by contract name.
	Contracts map[int]string `yaml:"contracts,omitempty"`
}

// Traffic is the packet generation configuration.
type Traffic struct {
	CriticalInterval  prommodel.Duration `yaml:"critical_interval,omitempty"`
	NormalInterval    prommodel.Duration `yaml:"normal_interval,omitempty"`
	PayloadBytes      uint32             `yaml:"payload_bytes,omitempty"`
	LossTimeout       prommodel.Duration `yaml:"loss_timeout,omitempty"`
	DuplicateCritical bool               `yaml:"duplicate_critical,omitempty"`
}

// Channel is the synthetic channel configuration.
type Channel struct {
	// Links overrides the default link profiles by position.
	Links []Link `yaml:"links,omitempty"`
	// Interference is disabled when missing.
	Interference  *Interference `yaml:"interference,omitempty"`
	CriticalBonus float64       `yaml:"critical_bonus,omitempty"`
	Variation     float64       `yaml:"variation,omitempty"`
}

// Link is the profile of a single link.
type Link struct {
	SuccessProbability float64 `yaml:"success_probability"`
	BaseDelayMs        float64 `yaml:"base_delay_ms"`
	JitterMs           float64 `yaml:"jitter_ms,omitempty"`
	// CapacityMbps is the nominal capacity used by the greedy strategy.
	CapacityMbps float64 `yaml:"capacity_mbps,omitempty"`
}

// Interference is a periodic interference pattern.
type Interference struct {
	Period prommodel.Duration `yaml:"period"`
	Active prommodel.Duration `yaml:"active"`
	Factor float64            `yaml:"factor"`
}

// Monitor is the link quality monitor configuration.
type Monitor struct {
	PDRThreshold float64 `yaml:"pdr_threshold,omitempty"`
}
