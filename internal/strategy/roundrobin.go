package strategy

import "github.com/mlolab/mloeval/internal/model"

// roundRobin assigns the links cyclically ignoring load and quality.
type roundRobin struct {
	*tracker
	next int
}

func newRoundRobin(config Config) *roundRobin {
	return &roundRobin{tracker: newTracker("RoundRobin", config)}
}

func (r *roundRobin) SelectLink(flowID model.FlowID, critical bool) model.LinkID {
	l := model.LinkID(r.next)
	r.next = (r.next + 1) % r.numLinks
	return l
}
