package strategy

import "github.com/mlolab/mloeval/internal/model"

// DefaultCapacity returns the nominal capacity in bit/s of a link when not configured.
// Lower IDs are the lower frequency bands, with lower capacity (100, 300, 500... Mbit/s).
func DefaultCapacity(id model.LinkID) float64 {
	return float64(2*int(id)+1) * 100e6
}

// greedy selects the link with the lowest normalized load. The load is cumulative over
// the whole run.
type greedy struct {
	*tracker
	capacities []float64
}

func newGreedy(config Config) *greedy {
	return &greedy{
		tracker:    newTracker("Greedy", config),
		capacities: config.Capacities,
	}
}

// Loads returns the normalized load of every link: sent bits over the link capacity.
func (g *greedy) Loads() []float64 {
	loads := make([]float64, g.numLinks)
	for i := range loads {
		loads[i] = float64(g.bytes[i]) * 8 / g.capacities[i]
	}
	return loads
}

func (g *greedy) SelectLink(flowID model.FlowID, critical bool) model.LinkID {
	best := 0
	loads := g.Loads()
	for i := 1; i < len(loads); i++ {
		if loads[i] < loads[best] {
			best = i
		}
	}

	g.logger.Debugf("flow %d to link %d with load %.4f", flowID, best, loads[best])
	return model.LinkID(best)
}
