package strategy

import (
	"math/rand"

	"github.com/mlolab/mloeval/internal/model"
)

// slaMLOAlpha is the weight of the previous average in the per link delay EWMA.
const slaMLOAlpha = 0.8

type flowLinkDelays struct {
	avg         []model.Measurement
	followed    uint64
	notFollowed uint64
}

func (f *flowLinkDelays) breach() float64 {
	total := f.followed + f.notFollowed
	if total == 0 {
		return 0
	}
	return float64(f.notFollowed) / float64(total) * 100
}

// slaMLO selects links randomly, restricting the choice to the links that keep the flow
// delay under its SLA when the flow is breaching its error threshold.
type slaMLO struct {
	*tracker
	rand  *rand.Rand
	flows map[model.FlowID]*flowLinkDelays
	next  int
}

func newSLAMLO(config Config) *slaMLO {
	return &slaMLO{
		tracker: newTracker("SLA-MLO", config),
		rand:    config.Rand,
		flows:   map[model.FlowID]*flowLinkDelays{},
	}
}

func (s *slaMLO) flow(id model.FlowID) *flowLinkDelays {
	f, ok := s.flows[id]
	if !ok {
		f = &flowLinkDelays{avg: make([]model.Measurement, s.numLinks)}
		s.flows[id] = f
	}
	return f
}

// Probabilities returns the selection probability of every link for the flow.
func (s *slaMLO) Probabilities(flowID model.FlowID, contract model.SLAContract) []float64 {
	n := s.numLinks
	probs := make([]float64, n)
	uniform := func(ids []int) {
		for _, i := range ids {
			probs[i] = 1 / float64(len(ids))
		}
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	f := s.flow(flowID)
	if f.breach() <= contract.ErrorThreshold {
		uniform(all)
		return probs
	}

	var below []int
	for i, avg := range f.avg {
		if !avg.OK || avg.Value < contract.DelayThreshold {
			below = append(below, i)
		}
	}
	if len(below) > 0 {
		uniform(below)
		return probs
	}

	// Every link is sampled and above the threshold.
	sum := 0.0
	for i, avg := range f.avg {
		probs[i] = 1 / avg.Value
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func (s *slaMLO) SelectLink(flowID model.FlowID, critical bool) model.LinkID {
	contract, err := s.slaMon.FlowContract(flowID)
	if err != nil {
		s.logger.Warningf("flow %d without SLA contract, using rotation: %s", flowID, err)
		l := model.LinkID(s.next)
		s.next = (s.next + 1) % s.numLinks
		return l
	}

	probs := s.Probabilities(flowID, contract)
	r := s.rand.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if r < cum {
			return model.LinkID(i)
		}
	}
	return model.LinkID(s.numLinks - 1)
}

func (s *slaMLO) UpdateLinkMetrics(ev model.PacketEvent) error {
	err := s.tracker.UpdateLinkMetrics(ev)
	if err != nil {
		return err
	}

	if ev.Pending() || !ev.Success || ev.DelayMs <= 0 {
		return nil
	}

	contract, err := s.slaMon.FlowContract(ev.FlowID)
	if err != nil {
		return err
	}

	f := s.flow(ev.FlowID)
	avg := f.avg[ev.LinkID]
	if !avg.OK {
		f.avg[ev.LinkID] = model.Measured(ev.DelayMs)
	} else {
		f.avg[ev.LinkID] = model.Measured(slaMLOAlpha*avg.Value + (1-slaMLOAlpha)*ev.DelayMs)
	}

	if ev.DelayMs <= contract.DelayThreshold {
		f.followed++
	} else {
		f.notFollowed++
	}

	return nil
}
