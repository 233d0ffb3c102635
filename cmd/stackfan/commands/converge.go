package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stackfan/stackfan/pkg/engine"
)

func newConvergeCommand() *cobra.Command {
	var (
		templateFile    string
		capabilityFlags []string
		update          bool
		pushParameters  bool
		conflictBackoff time.Duration
		stepPause       time.Duration
		metricsListen   string
		pf              pollFlags
		tf              traceFlags
	)

	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Run reconciliation steps until every target is reconciled",
		Long: `Repeatedly reconcile the catalog against the stack set until no work
remains. Each step acts on exactly one target; an in-flight operation or a
write conflict backs the loop off instead of failing it.

The loop exits only when the desired set is fully satisfied or a fatal
condition is hit (missing stack set). Terminal operation failures are
reported and the loop re-plans.`,
		Example: `  # Converge the catalog onto an existing stack set
  stackfan converge --stack-set my-baseline --catalog account-parameters.json

  # Replace the definition first, then converge
  stackfan converge --stack-set my-baseline --template baseline.yaml

  # Update already-provisioned targets, pushing parameter changes
  stackfan converge --stack-set my-baseline --update --push-parameters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, metricsListen, tf)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			poller := rt.newPoller(pf)

			if templateFile != "" {
				def, err := readDefinition(templateFile, capabilityFlags)
				if err != nil {
					return err
				}
				if err := engine.SyncDefinition(rt.logger.WithContext(ctx), rt.client, poller, stackSetName, def); err != nil {
					return err
				}
			}

			action := engine.ActionCreate
			if update {
				action = engine.ActionUpdate
			}

			reconciler := engine.NewReconciler(rt.client, poller, rt.catalog, stackSetName, engine.Options{
				Action:           action,
				IncludeOverrides: pushParameters,
				Logger:           rt.logger,
				Metrics:          rt.metrics,
				Tracer:           rt.tracer,
			})

			driver := engine.NewDriver(reconciler, rt.logger, rt.metrics)
			if conflictBackoff > 0 {
				driver.ConflictBackoff = conflictBackoff
			}
			if stepPause > 0 {
				driver.StepPause = stepPause
			}

			return driver.Converge(ctx)
		},
	}

	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "definition template to sync before converging")
	cmd.Flags().StringSliceVar(&capabilityFlags, "capabilities", nil, "capability flags required by the template")
	cmd.Flags().BoolVar(&update, "update", false, "update provisioned targets instead of creating missing ones")
	cmd.Flags().BoolVar(&pushParameters, "push-parameters", false, "also push parameter overrides on update")
	cmd.Flags().DurationVar(&pf.pollInterval, "poll-interval", 0, "operation poll interval (default 15s)")
	cmd.Flags().IntVar(&pf.maxAttempts, "max-attempts", 0, "poll attempts per operation wait (default 40)")
	cmd.Flags().DurationVar(&conflictBackoff, "conflict-backoff", 0, "delay after a blocked step (default 30s)")
	cmd.Flags().DurationVar(&stepPause, "step-pause", 0, "pause between productive steps (default 10s)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address to expose Prometheus metrics on (disabled if empty)")
	cmd.Flags().StringVar(&tf.exporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&tf.endpoint, "trace-endpoint", "", "OTLP gRPC endpoint")

	return cmd
}
