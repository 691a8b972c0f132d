package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/internal/app/evaluate"
	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/metrics"
	metricsprometheus "github.com/mlolab/mloeval/internal/metrics/prometheus"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

type simulateCommand struct {
	scenario       string
	strategy       string
	seed           int64
	runNumber      int
	reportInterval time.Duration
	output         outputFlags
	metricsServer  struct {
		address         string
		healthCheckPath string
		metricsPath     string
		keepServing     bool
	}
}

// NewSimulateCommand returns the simulate command.
func NewSimulateCommand(app *kingpin.Application) Command {
	c := &simulateCommand{}
	cmd := app.Command("simulate", "Simulates a scenario with a link selection strategy.")
	cmd.Flag("scenario", "Scenario spec file, the baseline scenario is used when missing.").Short('s').StringVar(&c.scenario)
	registerStrategyFlag(cmd, &c.strategy)
	cmd.Flag("seed", "Random seed of the run.").Default("1").Int64Var(&c.seed)
	cmd.Flag("run", "Run number set on the result.").Default("1").IntVar(&c.runNumber)
	cmd.Flag("report-interval", "Overrides the scenario periodic summaries interval (0 keeps the scenario one).").DurationVar(&c.reportInterval)
	registerOutputFlags(cmd, &c.output)
	cmd.Flag("metrics-listen-address", "Metrics and health check listen address, disabled when empty.").StringVar(&c.metricsServer.address)
	cmd.Flag("health-check-path", "Health check path.").Default("/status").StringVar(&c.metricsServer.healthCheckPath)
	cmd.Flag("metrics-path", "Prometheus metrics path where metrics will be served.").Default("/metrics").StringVar(&c.metricsServer.metricsPath)
	cmd.Flag("keep-serving", "Keep serving the metrics after the run until a termination signal.").BoolVar(&c.metricsServer.keepServing)

	return c
}

func (c simulateCommand) Name() string { return "simulate" }
func (c simulateCommand) Run(ctx context.Context, config RootConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := config.Logger.WithValues(log.Kv{"command": c.Name()})

	inputs := []string{}
	if c.scenario != "" {
		inputs = append(inputs, c.scenario)
	}
	scenarios, err := loadScenarios(ctx, logger, inputs)
	if err != nil {
		return err
	}
	if len(scenarios) != 1 {
		return fmt.Errorf("simulate needs a single scenario, got %d", len(scenarios))
	}
	sc := scenarios[0]
	if c.reportInterval > 0 {
		sc.ReportInterval = c.reportInterval
	}

	repo, closeRepo, err := c.output.resultRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	var recorder metrics.Recorder = metrics.NoopRecorder
	if c.metricsServer.address != "" {
		recorder = metricsprometheus.NewRecorder(prometheus.DefaultRegisterer)
	}

	svc, err := evaluate.NewService(evaluate.ServiceConfig{
		Repository:      repo,
		Reporter:        report.NewConsoleReporter(config.Stdout),
		MetricsRecorder: recorder,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create evaluation service: %w", err)
	}

	var g run.Group

	// Handle cancellation.
	{
		// Listen for shutdown signals, when signal received, stop main context to start the graceful shutdown.
		ctx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		exitC := make(chan struct{})

		g.Add(
			func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-exitC:
				}

				return nil
			},
			func(_ error) {
				close(exitC)
			},
		)
	}

	// Simulation.
	{
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})

		g.Add(
			func() error {
				defer close(done)
				_, err := svc.Run(ctx, evaluate.RunRequest{
					Scenario:  sc,
					Strategy:  strategy.Kind(c.strategy),
					RunNumber: c.runNumber,
					Seed:      c.seed,
				})
				if err != nil {
					return err
				}

				if c.metricsServer.address != "" && c.metricsServer.keepServing {
					logger.Infof("Simulation finished, serving metrics until a termination signal")
					<-ctx.Done()
				}

				return nil
			},
			func(_ error) {
				cancel()
				<-done
			},
		)
	}

	// Metrics and health check server.
	if c.metricsServer.address != "" {
		logger := logger.WithValues(log.Kv{
			"addr":         c.metricsServer.address,
			"metrics":      c.metricsServer.metricsPath,
			"health-check": c.metricsServer.healthCheckPath,
		})
		mux := http.NewServeMux()

		// Metrics.
		mux.Handle(c.metricsServer.metricsPath, promhttp.Handler())

		// Health checks.
		mux.HandleFunc(c.metricsServer.healthCheckPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) }))

		server := http.Server{
			Addr:    c.metricsServer.address,
			Handler: mux,
		}

		g.Add(
			func() error {
				logger.Infof("HTTP server listening...")
				err := server.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			func(_ error) {
				logger.Infof("Start draining connections")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				err := server.Shutdown(ctx)
				if err != nil {
					logger.Errorf("error while shutting down the server: %s", err)
				} else {
					logger.Infof("Server stopped")
				}
			},
		)
	}

	err = g.Run()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
