package metrics

import (
	"context"
	"time"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
)

// Recorder knows how to record the evaluation metrics.
type Recorder interface {
	ObserveLink(ctx context.Context, strategy string, s link.Snapshot)
	ObserveSelection(ctx context.Context, strategy string, linkID model.LinkID)
	ObserveTransition(ctx context.Context, strategy string, t link.Transition)
	ObserveDeviation(ctx context.Context, strategy string, tier model.Tier, deviation model.Measurement)
	ObserveRun(ctx context.Context, strategy string, t time.Duration, err error)
}

type noopRecorder bool

// NoopRecorder doesn't record anything.
var NoopRecorder Recorder = noopRecorder(false)

func (noopRecorder) ObserveLink(context.Context, string, link.Snapshot)                      {}
func (noopRecorder) ObserveSelection(context.Context, string, model.LinkID)                  {}
func (noopRecorder) ObserveTransition(context.Context, string, link.Transition)              {}
func (noopRecorder) ObserveDeviation(context.Context, string, model.Tier, model.Measurement) {}
func (noopRecorder) ObserveRun(context.Context, string, time.Duration, error)                {}
