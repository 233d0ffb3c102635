package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stackfan/stackfan/pkg/catalog"
	"github.com/stackfan/stackfan/pkg/engine"
	"github.com/stackfan/stackfan/pkg/remote/cfn"
	"github.com/stackfan/stackfan/pkg/stackset"
	"github.com/stackfan/stackfan/pkg/telemetry"
)

// runtime bundles the collaborators every mutating command needs.
type runtime struct {
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	client  stackset.Client
	catalog *catalog.Catalog
}

// pollFlags are shared by every command that awaits operations.
type pollFlags struct {
	pollInterval time.Duration
	maxAttempts  int
}

// traceFlags configure the optional trace exporter.
type traceFlags struct {
	exporter string
	endpoint string
}

func newRuntime(ctx context.Context, metricsListen string, tf traceFlags) (*runtime, error) {
	if stackSetName == "" {
		return nil, fmt.Errorf("--stack-set is required")
	}

	cfg := telemetry.DefaultConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}
	cfg.Metrics.ListenAddress = metricsListen
	if tf.exporter != "" && tf.exporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = tf.exporter
		cfg.Tracing.Endpoint = tf.endpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to configure metrics: %w", err)
	}
	metrics.StartMetricsServer(logger)

	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tracing: %w", err)
	}

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}

	client, err := cfn.New(ctx, cfn.Options{Profile: awsProfile, Region: awsRegion})
	if err != nil {
		return nil, err
	}

	return &runtime{
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		client:  client,
		catalog: cat,
	}, nil
}

// newPoller builds an operation poller from the shared poll flags.
func (rt *runtime) newPoller(pf pollFlags) *engine.Poller {
	poller := engine.NewPoller(rt.client)
	if pf.pollInterval > 0 {
		poller.Interval = pf.pollInterval
	}
	if pf.maxAttempts > 0 {
		poller.MaxAttempts = pf.maxAttempts
	}
	poller.Metrics = rt.metrics
	return poller
}

// readDefinition loads the template body from disk.
func readDefinition(templatePath string, caps []string) (stackset.Definition, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return stackset.Definition{}, fmt.Errorf("failed to read template file: %w", err)
	}
	return stackset.Definition{
		TemplateBody: string(body),
		Capabilities: caps,
	}, nil
}

// shutdown flushes the tracer before the process exits.
func (rt *runtime) shutdown(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := rt.tracer.Shutdown(flushCtx); err != nil {
		rt.logger.WithError(err).Warn("tracer shutdown failed")
	}
}
