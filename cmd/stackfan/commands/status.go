package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statusReport is the machine-readable shape of the status command output.
type statusReport struct {
	StackSet    string   `json:"stack_set"`
	Desired     int      `json:"desired"`
	Provisioned int      `json:"provisioned"`
	Remaining   []string `json:"remaining"`
	Next        string   `json:"next,omitempty"`
}

func newStatusCommand() *cobra.Command {
	var tf traceFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report provisioned vs. remaining targets (read-only)",
		Long: `Read the stack set's provisioned instances and report which catalog
targets remain, in deployment order. Performs no mutating calls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, "", tf)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			provisioned, err := rt.client.ListProvisionedTargets(ctx, stackSetName)
			if err != nil {
				return err
			}

			report := statusReport{
				StackSet:    stackSetName,
				Desired:     len(rt.catalog.Targets),
				Provisioned: 0,
			}
			for _, t := range rt.catalog.Targets {
				if _, ok := provisioned[t.AccountID]; ok {
					report.Provisioned++
					continue
				}
				report.Remaining = append(report.Remaining, t.AccountID)
			}
			if len(report.Remaining) > 0 {
				report.Next = report.Remaining[0]
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			fmt.Printf("StackSet %s deployment status:\n", report.StackSet)
			fmt.Printf("  deployed:  %d of %d targets\n", report.Provisioned, report.Desired)
			fmt.Printf("  remaining: %d\n", len(report.Remaining))
			if report.Next != "" {
				next := rt.catalog.Find(report.Next)
				fmt.Printf("  next: %s (%s)\n", next.AccountID, next.DisplayName(rt.catalog.DisplayNameKey))
			} else {
				fmt.Println("  all targets have been deployed")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tf.exporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&tf.endpoint, "trace-endpoint", "", "OTLP gRPC endpoint")

	return cmd
}
