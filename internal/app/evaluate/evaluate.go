package evaluate

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/metrics"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/scenario"
	"github.com/mlolab/mloeval/internal/simulation"
	"github.com/mlolab/mloeval/internal/storage"
	"github.com/mlolab/mloeval/internal/strategy"
)

// ServiceConfig is the application service configuration.
type ServiceConfig struct {
	Repository      storage.ResultRepository
	Reporter        report.Reporter
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		c.Repository = storage.NoopResultRepository
	}

	if c.Reporter == nil {
		c.Reporter = report.NoopReporter
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.NoopRecorder
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "evaluate.Service"})

	return nil
}

// Service runs the strategy evaluations.
type Service struct {
	repo     storage.ResultRepository
	reporter report.Reporter
	recorder metrics.Recorder
	logger   log.Logger
}

// NewService returns a new evaluation application service.
func NewService(config ServiceConfig) (*Service, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Service{
		repo:     config.Repository,
		reporter: config.Reporter,
		recorder: config.MetricsRecorder,
		logger:   config.Logger,
	}, nil
}

// runSetup has the components owned by a single run.
type runSetup struct {
	id       string
	strategy strategy.Strategy
	links    *link.Monitor
	sla      *sla.Monitor
	logger   log.Logger
}

// setup returns the run components and the context with the run log values.
func (s Service) setup(ctx context.Context, sc scenario.Scenario, kind strategy.Kind, runNumber int, seed int64) (context.Context, *runSetup, error) {
	err := sc.Validate()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid scenario: %w", err)
	}

	r := &runSetup{id: uuid.NewString()}
	ctx = s.logger.SetValuesOnCtx(ctx, log.RunKv(r.id, sc.Name, string(kind), runNumber))
	r.logger = s.logger.WithCtxValues(ctx)

	r.links, err = link.NewMonitor(link.MonitorConfig{
		NumLinks:     sc.NumLinks,
		PDRThreshold: sc.PDRThreshold,
		OnTransition: func(t link.Transition) {
			s.recorder.ObserveTransition(ctx, r.strategy.Name(), t)
		},
		Logger: r.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create link monitor: %w", err)
	}

	r.sla, err = sla.NewMonitor(sla.MonitorConfig{QoS: sc.QoS, Logger: r.logger})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create SLA monitor: %w", err)
	}

	for flowID, name := range sc.Contracts {
		err := r.sla.OverrideFlowContract(flowID, name)
		if err != nil {
			return nil, nil, fmt.Errorf("could not set flow %d contract: %w", flowID, err)
		}
	}

	r.strategy, err = strategy.New(kind, strategy.Config{
		NumLinks:    sc.NumLinks,
		QoS:         sc.QoS,
		LinkMonitor: r.links,
		SLAMonitor:  r.sla,
		Capacities:  sc.Capacities(),
		Rand:        rand.New(rand.NewSource(seed)),
		Logger:      r.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create strategy: %w", err)
	}

	return ctx, r, nil
}

// finish builds, reports and stores the result of a run.
func (s Service) finish(ctx context.Context, r *runSetup, req report.BuildRequest) (*report.RunResult, error) {
	req.RunID = r.id
	req.Strategy = r.strategy
	req.LinkMonitor = r.links
	req.SLAMonitor = r.sla
	res := report.Build(req)

	err := s.reporter.ReportResult(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("could not report result: %w", err)
	}

	err = s.repo.StoreResult(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("could not store result: %w", err)
	}

	r.logger.Infof("run finished: PDR %s%%, SLA deviation %s%%", res.PDRPercent, res.SLADeviation)

	return &res, nil
}

// RunRequest is the request of a single simulated run.
type RunRequest struct {
	Scenario  scenario.Scenario
	Strategy  strategy.Kind
	RunNumber int
	Seed      int64
}

// Run simulates a scenario with a strategy and stores its result.
func (s Service) Run(ctx context.Context, req RunRequest) (res *report.RunResult, err error) {
	start := time.Now()
	name := string(req.Strategy)
	defer func() {
		s.recorder.ObserveRun(ctx, name, time.Since(start), err)
	}()

	runCtx, r, err := s.setup(ctx, req.Scenario, req.Strategy, req.RunNumber, req.Seed)
	if err != nil {
		return nil, err
	}
	name = r.strategy.Name()

	sc := req.Scenario
	// The channel gets its own source so the strategy randomness doesn't change the traffic.
	channel, err := simulation.NewChannelModel(sc.ChannelConfig(rand.New(rand.NewSource(req.Seed ^ 0x5eed))))
	if err != nil {
		return nil, fmt.Errorf("could not create channel model: %w", err)
	}

	driver, err := simulation.NewDriver(simulation.DriverConfig{
		RunID:             r.id,
		Strategy:          r.strategy,
		LinkMonitor:       r.links,
		SLAMonitor:        r.sla,
		Channel:           channel,
		QoS:               sc.QoS,
		NumFlows:          sc.NumFlows,
		Duration:          sc.Duration,
		CriticalInterval:  sc.CriticalInterval,
		NormalInterval:    sc.NormalInterval,
		PayloadBytes:      sc.PayloadBytes,
		LossTimeout:       sc.LossTimeout,
		DuplicateCritical: sc.DuplicateCritical,
		ReportInterval:    sc.ReportInterval,
		Reporter:          s.reporter,
		MetricsRecorder:   s.recorder,
		Logger:            r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create simulation driver: %w", err)
	}

	r.logger.Debugf("run started")
	simRes, err := driver.Run(runCtx)
	if err != nil {
		return nil, fmt.Errorf("simulation failed: %w", err)
	}

	return s.finish(runCtx, r, report.BuildRequest{
		Scenario:          sc.Name,
		RunNumber:         req.RunNumber,
		Seed:              req.Seed,
		NumFlows:          sc.NumFlows,
		EmergencyFlows:    sc.QoS.Emergency,
		CriticalFlows:     sc.QoS.Critical,
		Duration:          sc.Duration,
		PayloadBytes:      int(sc.PayloadBytes),
		WallTime:          time.Since(start),
		DeliveredDelaysMs: simRes.DeliveredDelaysMs,
	})
}

// ReplayRequest is the request of a trace replay.
type ReplayRequest struct {
	Scenario scenario.Scenario
	Strategy strategy.Kind
	// Events is a JSON lines packet event trace.
	Events io.Reader
}

// Replay applies a recorded event trace through a strategy and stores its result. Only the
// link, flow and monitor setup of the scenario is used.
func (s Service) Replay(ctx context.Context, req ReplayRequest) (res *report.RunResult, err error) {
	start := time.Now()
	name := string(req.Strategy)
	defer func() {
		s.recorder.ObserveRun(ctx, name, time.Since(start), err)
	}()

	if req.Events == nil {
		return nil, fmt.Errorf("events are required")
	}

	runCtx, r, err := s.setup(ctx, req.Scenario, req.Strategy, 1, 0)
	if err != nil {
		return nil, err
	}
	name = r.strategy.Name()

	sc := req.Scenario
	simRes, err := simulation.Replay(runCtx, simulation.ReplayConfig{
		RunID:           r.id,
		Strategy:        r.strategy,
		LinkMonitor:     r.links,
		SLAMonitor:      r.sla,
		Source:          simulation.NewTraceSource(req.Events),
		ReportInterval:  sc.ReportInterval,
		Reporter:        s.reporter,
		MetricsRecorder: s.recorder,
		Logger:          r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("replay failed: %w", err)
	}

	if simRes.Skipped > 0 {
		r.logger.Warningf("%d trace events skipped", simRes.Skipped)
	}

	return s.finish(runCtx, r, report.BuildRequest{
		Scenario:          sc.Name,
		RunNumber:         1,
		NumFlows:          sc.NumFlows,
		EmergencyFlows:    sc.QoS.Emergency,
		CriticalFlows:     sc.QoS.Critical,
		Duration:          simRes.SimulatedTime,
		WallTime:          time.Since(start),
		DeliveredDelaysMs: simRes.DeliveredDelaysMs,
	})
}
