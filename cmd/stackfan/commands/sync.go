package commands

import (
	"github.com/spf13/cobra"

	"github.com/stackfan/stackfan/pkg/engine"
)

func newSyncCommand() *cobra.Command {
	var (
		templateFile    string
		capabilityFlags []string
		pf              pollFlags
		tf              traceFlags
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or replace the stack set definition only",
		Long: `Make the stack set's definition match the template: define the stack set
if it does not exist, replace its definition (a full-body replace, never a
merge) if it does, and await the resulting operation. No instance-level
work is performed.`,
		Example: `  # Replace the definition from a template file
  stackfan sync --stack-set my-baseline --template baseline.yaml

  # Define a new stack set requiring IAM capabilities
  stackfan sync --stack-set my-baseline --template baseline.yaml \
    --capabilities CAPABILITY_NAMED_IAM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, "", tf)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			def, err := readDefinition(templateFile, capabilityFlags)
			if err != nil {
				return err
			}

			poller := rt.newPoller(pf)
			poller.Interval = engine.DefaultDefinitionPollInterval
			if pf.pollInterval > 0 {
				poller.Interval = pf.pollInterval
			}

			return engine.SyncDefinition(rt.logger.WithContext(ctx), rt.client, poller, stackSetName, def)
		},
	}

	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "definition template file")
	cmd.Flags().StringSliceVar(&capabilityFlags, "capabilities", nil, "capability flags required by the template")
	cmd.Flags().DurationVar(&pf.pollInterval, "poll-interval", 0, "operation poll interval (default 10s)")
	cmd.Flags().IntVar(&pf.maxAttempts, "max-attempts", 0, "poll attempts per operation wait (default 40)")
	cmd.Flags().StringVar(&tf.exporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&tf.endpoint, "trace-endpoint", "", "OTLP gRPC endpoint")
	cmd.MarkFlagRequired("template")

	return cmd
}
