package scenario

import (
	"math/rand"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/qos"
	"github.com/mlolab/mloeval/internal/simulation"
	"github.com/mlolab/mloeval/internal/strategy"
)

const (
	MaxLinks = 16
	MaxFlows = int(model.MaxFlowID) + 1
)

// Link is the profile of a link on a scenario.
type Link struct {
	SuccessProbability float64 `validate:"gte=0,lte=1"`
	BaseDelayMs        float64 `validate:"gte=0,lte=10000"`
	JitterMs           float64 `validate:"gte=0"`
	// CapacityMbps uses the default capacity of the link position when 0.
	CapacityMbps float64 `validate:"gte=0"`
}

// Interference is a periodic interference pattern.
type Interference struct {
	Period time.Duration `validate:"gt=0"`
	Active time.Duration `validate:"gte=0"`
	Factor float64       `validate:"gte=0,lte=1"`
}

// Scenario is a complete evaluation setup, every strategy run on it gets the same setup.
type Scenario struct {
	Name     string `validate:"required,name"`
	NumLinks int    `validate:"gte=1,lte=16"`
	NumFlows int    `validate:"gte=1,lte=256"`
	QoS      qos.Config
	// Contracts overrides the tier contract of some flows.
	Contracts         map[model.FlowID]string `validate:"dive,keys,gte=0,lte=255,endkeys,contract"`
	Duration          time.Duration           `validate:"gt=0"`
	ReportInterval    time.Duration           `validate:"gte=0"`
	CriticalInterval  time.Duration           `validate:"gt=0"`
	NormalInterval    time.Duration           `validate:"gt=0"`
	PayloadBytes      uint32                  `validate:"gt=0"`
	LossTimeout       time.Duration           `validate:"gt=0"`
	DuplicateCritical bool
	PDRThreshold      float64         `validate:"gt=0,lte=1"`
	Links             []Link          `validate:"dive"`
	Interference      *Interference   `validate:"omitempty"`
	CriticalBonus     float64         `validate:"gte=0"`
	Variation         float64         `validate:"gte=0,lte=1"`
	Strategies        []strategy.Kind `validate:"dive,strategy_kind"`
}

// Default returns the baseline scenario.
func Default() Scenario {
	return Scenario{
		Name:             "baseline",
		NumLinks:         3,
		NumFlows:         8,
		QoS:              qos.Config{Emergency: 1, Critical: 2},
		Duration:         10 * time.Second,
		CriticalInterval: simulation.DefaultCriticalInterval,
		NormalInterval:   simulation.DefaultNormalInterval,
		PayloadBytes:     simulation.DefaultPayloadBytes,
		LossTimeout:      simulation.DefaultLossTimeout,
		PDRThreshold:     0.95,
		Interference: &Interference{
			Period: simulation.DefaultInterference.Period,
			Active: simulation.DefaultInterference.Active,
			Factor: simulation.DefaultInterference.Factor,
		},
	}
}

// Validate validates the scenario.
func (s Scenario) Validate() error {
	return scenarioValidate.Struct(s)
}

// ChannelConfig returns the channel model configuration of the scenario.
func (s Scenario) ChannelConfig(r *rand.Rand) simulation.ChannelModelConfig {
	cfg := simulation.ChannelModelConfig{
		NumLinks:      s.NumLinks,
		CriticalBonus: s.CriticalBonus,
		Variation:     s.Variation,
		Rand:          r,
	}

	for _, l := range s.Links {
		cfg.Links = append(cfg.Links, simulation.LinkProfile{
			SuccessProbability: l.SuccessProbability,
			BaseDelayMs:        l.BaseDelayMs,
			JitterMs:           l.JitterMs,
		})
	}

	if s.Interference != nil {
		cfg.Interference = &simulation.Interference{
			Period: s.Interference.Period,
			Active: s.Interference.Active,
			Factor: s.Interference.Factor,
		}
	}

	return cfg
}

// Capacities returns the link capacities in bit/s, 0 for the positions without one.
func (s Scenario) Capacities() []float64 {
	caps := make([]float64, 0, len(s.Links))
	for _, l := range s.Links {
		caps = append(caps, l.CapacityMbps*1e6)
	}
	return caps
}

var scenarioValidate = func() *validator.Validate {
	v := validator.New()
	mustRegisterValidation(v, "name", validateName)
	mustRegisterValidation(v, "contract", validateContract)
	mustRegisterValidation(v, "strategy_kind", validateStrategyKind)
	v.RegisterStructValidation(validateScenario, Scenario{})
	v.RegisterStructValidation(validateInterference, Interference{})
	return v
}()

// mustRegisterValidation is a helper so we panic on start if we can't register a validator.
func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	err := v.RegisterValidation(tag, fn)
	if err != nil {
		panic(err)
	}
}

var nameRegexp = regexp.MustCompile("^[A-Za-z0-9][-A-Za-z0-9_.]*[A-Za-z0-9]$|^[A-Za-z0-9]$")

func validateName(fl validator.FieldLevel) bool {
	return nameRegexp.MatchString(fl.Field().String())
}

func validateContract(fl validator.FieldLevel) bool {
	_, err := model.ContractByName(fl.Field().String())
	return err == nil
}

func validateStrategyKind(fl validator.FieldLevel) bool {
	_, err := strategy.ParseKind(fl.Field().String())
	return err == nil
}

// validateScenario validates the rules between fields.
func validateScenario(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(Scenario)
	if !ok {
		sl.ReportError(s, "", "Scenario", "not_scenario", "")
		return
	}

	if s.QoS.Validate(s.NumFlows) != nil {
		sl.ReportError(s.QoS, "QoS", "QoS", "qos_exceeds_flows", "")
	}

	if len(s.Links) > s.NumLinks {
		sl.ReportError(s.Links, "Links", "Links", "links_exceed_num_links", "")
	}

	for id := range s.Contracts {
		if int(id) >= s.NumFlows {
			sl.ReportError(s.Contracts, "Contracts", "Contracts", "contract_flow_unknown", "")
		}
	}
}

func validateInterference(sl validator.StructLevel) {
	i, ok := sl.Current().Interface().(Interference)
	if !ok {
		sl.ReportError(i, "", "Interference", "not_interference", "")
		return
	}

	if i.Active > i.Period {
		sl.ReportError(i.Active, "Active", "Active", "active_exceeds_period", "")
	}
}
