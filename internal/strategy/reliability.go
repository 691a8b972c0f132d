package strategy

import (
	"math"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
)

type tierThresholds struct {
	pdr      float64
	delayMs  float64
	jitterMs float64
}

var reliabilityThresholds = map[model.Tier]tierThresholds{
	model.TierEmergency: {pdr: 0.99, delayMs: 1, jitterMs: 0.5},
	model.TierCritical:  {pdr: 0.95, delayMs: 50, jitterMs: 10},
	model.TierNormal:    {pdr: 0.90, delayMs: 100, jitterMs: 20},
}

const (
	minLinkWeight = 0.1
	maxLinkWeight = 2.0
)

// baseChannelWeight is the static preference of a band: 2.4GHz, 5GHz and 6GHz.
func baseChannelWeight(id model.LinkID) float64 {
	switch id {
	case 0:
		return 0.6
	case 1:
		return 1.0
	case 2:
		return 1.2
	}
	return 1.0
}

// reliability selects the link with the best reliability score weighted by the
// current link quality.
type reliability struct {
	*tracker
	fallback int
}

func newReliability(config Config) *reliability {
	return &reliability{
		tracker:  newTracker("ReliabilityAware", config),
		fallback: config.NumLinks - 1,
	}
}

// score returns the reliability of a link for a tier in [0, 1]. Links without data are
// scored as perfect.
func (r *reliability) score(s link.Snapshot, tier model.Tier) float64 {
	thr := reliabilityThresholds[tier]

	pdr := 1.0
	if s.PDR.OK {
		pdr = s.PDR.Value
	}
	pdrScore := pdr / thr.pdr

	delayScore := 1.0
	if s.AvgDelayMs.OK && s.AvgDelayMs.Value > 0 {
		delayScore = math.Max(0, 1-s.AvgDelayMs.Value/thr.delayMs)
	}

	jitterScore := math.Max(0, 1-s.JitterMs.OrZero()/thr.jitterMs)

	score := pdrScore
	if tier != model.TierNormal {
		score = 0.6*pdrScore + 0.3*delayScore + 0.1*jitterScore
	}

	return math.Max(0, math.Min(1, score))
}

// weight returns the dynamic quality weight of a link.
func (r *reliability) weight(s link.Snapshot) float64 {
	w := baseChannelWeight(s.LinkID)

	wpdr := 1.0
	if s.WindowPDR.OK {
		wpdr = s.WindowPDR.Value
	}
	switch {
	case wpdr > 0.95:
		w *= 1.2
	case wpdr > 0.90:
	case wpdr > 0.80:
		w *= 0.8
	default:
		w *= 0.5
	}

	delay := s.AvgDelayMs.OrZero()
	switch {
	case delay <= 1:
		w *= 1.1
	case delay <= 5:
	default:
		w *= 0.7
	}

	jitter := s.JitterMs.OrZero()
	switch {
	case jitter <= 0.5:
		w *= 1.05
	case jitter > 2:
		w *= 0.9
	}

	return math.Max(minLinkWeight, math.Min(maxLinkWeight, w))
}

func (r *reliability) SelectLink(flowID model.FlowID, critical bool) model.LinkID {
	snaps := make([]link.Snapshot, r.numLinks)
	observed := false
	for i := range snaps {
		s, _ := r.linkMon.Snapshot(model.LinkID(i))
		s.LinkID = model.LinkID(i)
		snaps[i] = s
		observed = observed || s.Observed
	}

	// Prefer the higher bands in rotation until there is data.
	if !observed {
		l := model.LinkID(r.fallback)
		r.fallback--
		if r.fallback < 0 {
			r.fallback = r.numLinks - 1
		}
		return l
	}

	tier := r.tier(flowID, critical)
	best, bestScore := 0, -1.0
	for i, s := range snaps {
		ws := r.score(s, tier) * r.weight(s)
		if ws > bestScore {
			best, bestScore = i, ws
		}
	}

	r.logger.Debugf("%s flow %d to link %d with weighted score %.4f", tier, flowID, best, bestScore)
	return model.LinkID(best)
}
