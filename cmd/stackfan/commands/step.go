package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackfan/stackfan/pkg/engine"
)

func newStepCommand() *cobra.Command {
	var (
		targetID       string
		update         bool
		pushParameters bool
		pf             pollFlags
		tf             traceFlags
	)

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Perform exactly one unit of reconciliation work",
		Long: `Perform one reconciliation step: pick the first pending target in catalog
order (or the one named by --target), issue a single mutating call, await
the operation, and report what remains. Used for operator-paced,
one-target-at-a-time progress; run it again for the next target.`,
		Example: `  # Deploy the next pending target
  stackfan step --stack-set my-baseline

  # Deploy one specific account
  stackfan step --stack-set my-baseline --target 123456789012

  # Push parameter changes to one provisioned account
  stackfan step --stack-set my-baseline --target 123456789012 --update --push-parameters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, "", tf)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			action := engine.ActionCreate
			if update {
				action = engine.ActionUpdate
			}

			reconciler := engine.NewReconciler(rt.client, rt.newPoller(pf), rt.catalog, stackSetName, engine.Options{
				Action:           action,
				TargetFilter:     targetID,
				IncludeOverrides: pushParameters,
				Logger:           rt.logger,
				Metrics:          rt.metrics,
				Tracer:           rt.tracer,
			})

			res := engine.NewDriver(reconciler, rt.logger, rt.metrics).StepOnce(ctx)

			switch res.Outcome {
			case engine.OutcomeFailed:
				return fmt.Errorf("step failed: %w", res.Err)
			case engine.OutcomeFatal:
				return res.Err
			default:
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&targetID, "target", "", "act on this account id only, bypassing catalog-order selection")
	cmd.Flags().BoolVar(&update, "update", false, "update provisioned targets instead of creating missing ones")
	cmd.Flags().BoolVar(&pushParameters, "push-parameters", false, "also push parameter overrides on update")
	cmd.Flags().DurationVar(&pf.pollInterval, "poll-interval", 0, "operation poll interval (default 15s)")
	cmd.Flags().IntVar(&pf.maxAttempts, "max-attempts", 0, "poll attempts per operation wait (default 40)")
	cmd.Flags().StringVar(&tf.exporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&tf.endpoint, "trace-endpoint", "", "OTLP gRPC endpoint")

	return cmd
}
