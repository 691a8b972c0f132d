package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mlolab/mloeval/internal/model"
)

const (
	// DefaultCriticalBonus multiplies the success probability of critical packets.
	DefaultCriticalBonus = 1.02
	// DefaultVariation is the maximum random relative change of the success probability.
	DefaultVariation = 0.05
)

// LinkProfile is the synthetic behaviour of a single link.
type LinkProfile struct {
	SuccessProbability float64
	BaseDelayMs        float64
	// JitterMs is the width of the uniform random delay added to the base delay.
	JitterMs float64
}

// DefaultLinkProfile returns the profile of a link by position: the first band is the
// most congested one.
func DefaultLinkProfile(id model.LinkID) LinkProfile {
	switch id {
	case 0:
		return LinkProfile{SuccessProbability: 0.95, BaseDelayMs: 4, JitterMs: 2}
	case 1:
		return LinkProfile{SuccessProbability: 0.97, BaseDelayMs: 2, JitterMs: 1}
	default:
		return LinkProfile{SuccessProbability: 0.98, BaseDelayMs: 1, JitterMs: 0.5}
	}
}

// Interference is a periodic interference pattern applied to every link.
type Interference struct {
	Period time.Duration
	// Active is the span at the start of every period where the interference is on.
	Active time.Duration
	// Factor multiplies the success probability while active.
	Factor float64
}

// DefaultInterference is 1.5s of interference every 3s.
var DefaultInterference = Interference{Period: 3 * time.Second, Active: 1500 * time.Millisecond, Factor: 0.85}

// ChannelModelConfig is the ChannelModel configuration.
type ChannelModelConfig struct {
	NumLinks int
	// Links overrides the default profiles by position.
	Links []LinkProfile
	// Interference is disabled when nil.
	Interference  *Interference
	CriticalBonus float64
	Variation     float64
	Rand          *rand.Rand
}

func (c *ChannelModelConfig) defaults() error {
	if c.NumLinks < 1 {
		return fmt.Errorf("at least one link is required")
	}

	if len(c.Links) > c.NumLinks {
		return fmt.Errorf("%d link profiles for %d links", len(c.Links), c.NumLinks)
	}
	links := make([]LinkProfile, c.NumLinks)
	for i := range links {
		links[i] = DefaultLinkProfile(model.LinkID(i))
		if i < len(c.Links) {
			links[i] = c.Links[i]
		}
		p := links[i]
		if p.SuccessProbability < 0 || p.SuccessProbability > 1 {
			return fmt.Errorf("link %d success probability must be in [0, 1], got %v", i, p.SuccessProbability)
		}
		if p.BaseDelayMs < 0 || p.JitterMs < 0 {
			return fmt.Errorf("link %d delays can't be negative", i)
		}
	}
	c.Links = links

	if i := c.Interference; i != nil {
		if i.Period <= 0 || i.Active < 0 || i.Active > i.Period {
			return fmt.Errorf("interference active span must be in [0, period] and period positive")
		}
		if i.Factor < 0 || i.Factor > 1 {
			return fmt.Errorf("interference factor must be in [0, 1], got %v", i.Factor)
		}
	}

	if c.CriticalBonus == 0 {
		c.CriticalBonus = DefaultCriticalBonus
	}

	if c.Variation == 0 {
		c.Variation = DefaultVariation
	}
	if c.Variation < 0 || c.Variation > 1 {
		return fmt.Errorf("variation must be in [0, 1], got %v", c.Variation)
	}

	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}

	return nil
}

// ChannelModel decides the outcome of every transmission with a per link Bernoulli loss
// and a uniform delay. It is not a radio model.
type ChannelModel struct {
	links        []LinkProfile
	interference *Interference
	bonus        float64
	variation    float64
	rand         *rand.Rand
}

// NewChannelModel returns a new synthetic channel model.
func NewChannelModel(config ChannelModelConfig) (*ChannelModel, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &ChannelModel{
		links:        config.Links,
		interference: config.Interference,
		bonus:        config.CriticalBonus,
		variation:    config.Variation,
		rand:         config.Rand,
	}, nil
}

// NumLinks returns the number of modeled links.
func (c *ChannelModel) NumLinks() int { return len(c.links) }

// Interfering returns true when the interference is active at now.
func (c *ChannelModel) Interfering(now time.Duration) bool {
	i := c.interference
	return i != nil && now%i.Period < i.Active
}

// SuccessProbability returns the delivery probability before the random variation.
func (c *ChannelModel) SuccessProbability(id model.LinkID, now time.Duration, critical bool) float64 {
	p := c.links[id].SuccessProbability
	if c.Interfering(now) {
		p *= c.interference.Factor
	}
	if critical {
		p *= c.bonus
	}
	return math.Min(1, p)
}

// Transmit returns the outcome of a packet sent at now over a link and its delay when
// delivered.
func (c *ChannelModel) Transmit(id model.LinkID, now time.Duration, critical bool) (delivered bool, delayMs float64) {
	variation := 1 - c.variation + c.rand.Float64()*2*c.variation
	p := math.Max(0, math.Min(1, c.SuccessProbability(id, now, critical)*variation))

	if c.rand.Float64() >= p {
		return false, 0
	}

	l := c.links[id]
	delayMs = l.BaseDelayMs + c.rand.Float64()*l.JitterMs
	if c.Interfering(now) && c.interference.Factor > 0 {
		delayMs /= c.interference.Factor
	}

	return true, math.Min(delayMs, model.MaxDelayMs)
}
