package scenario

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/qos"
	"github.com/mlolab/mloeval/internal/simulation"
	"github.com/mlolab/mloeval/internal/strategy"
	scenariov1 "github.com/mlolab/mloeval/pkg/scenario/api/v1"
)

type yamlSpecLoader bool

// YAMLSpecLoader knows how to load YAML scenario specs and converts them to a model.
const YAMLSpecLoader = yamlSpecLoader(false)

func (y yamlSpecLoader) LoadSpec(ctx context.Context, data []byte) (*Scenario, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("spec is required")
	}

	s := scenariov1.Spec{}
	err := yaml.UnmarshalStrict(data, &s)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshall YAML spec correctly: %w", err)
	}

	// Check version.
	if s.Version != scenariov1.Version {
		return nil, fmt.Errorf("invalid spec version, should be %q", scenariov1.Version)
	}

	m := y.mapSpecToModel(s)

	err = m.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return m, nil
}

func defaultDuration(d time.Duration, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

func (yamlSpecLoader) mapSpecToModel(spec scenariov1.Spec) *Scenario {
	s := &Scenario{
		Name:              spec.Name,
		NumLinks:          spec.Links,
		NumFlows:          spec.Flows.Total,
		QoS:               qos.Config{Emergency: spec.Flows.Emergency, Critical: spec.Flows.Critical},
		Duration:          time.Duration(spec.Duration),
		ReportInterval:    time.Duration(spec.ReportInterval),
		CriticalInterval:  defaultDuration(time.Duration(spec.Traffic.CriticalInterval), simulation.DefaultCriticalInterval),
		NormalInterval:    defaultDuration(time.Duration(spec.Traffic.NormalInterval), simulation.DefaultNormalInterval),
		PayloadBytes:      spec.Traffic.PayloadBytes,
		LossTimeout:       defaultDuration(time.Duration(spec.Traffic.LossTimeout), simulation.DefaultLossTimeout),
		DuplicateCritical: spec.Traffic.DuplicateCritical,
		PDRThreshold:      spec.Monitor.PDRThreshold,
		CriticalBonus:     spec.Channel.CriticalBonus,
		Variation:         spec.Channel.Variation,
	}

	if s.PayloadBytes == 0 {
		s.PayloadBytes = simulation.DefaultPayloadBytes
	}

	if s.PDRThreshold == 0 {
		s.PDRThreshold = 0.95
	}

	if len(spec.Flows.Contracts) > 0 {
		s.Contracts = make(map[model.FlowID]string, len(spec.Flows.Contracts))
		for id, name := range spec.Flows.Contracts {
			s.Contracts[model.FlowID(id)] = name
		}
	}

	for _, l := range spec.Channel.Links {
		s.Links = append(s.Links, Link{
			SuccessProbability: l.SuccessProbability,
			BaseDelayMs:        l.BaseDelayMs,
			JitterMs:           l.JitterMs,
			CapacityMbps:       l.CapacityMbps,
		})
	}

	if i := spec.Channel.Interference; i != nil {
		s.Interference = &Interference{
			Period: time.Duration(i.Period),
			Active: time.Duration(i.Active),
			Factor: i.Factor,
		}
	}

	for _, k := range spec.Strategies {
		s.Strategies = append(s.Strategies, strategy.Kind(k))
	}

	return s
}
