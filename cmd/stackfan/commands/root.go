package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	catalogPath  string
	stackSetName string
	awsProfile   string
	awsRegion    string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackfan",
		Short: "stackfan - sequential stack set instance reconciler",
		Long: `stackfan converges a declared catalog of account/region/parameter targets
against a CloudFormation StackSet, one mutating operation at a time.

The StackSet admits a single non-terminal operation; stackfan respects that
by checking for an in-flight operation before every step and backing off on
write conflicts instead of failing.

Modes:
  converge  run steps until every target is reconciled
  step      perform exactly one unit of work and report what remains
  sync      create or replace the stack set definition only
  status    report provisioned vs. remaining targets (read-only)`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "account-parameters.json", "target catalog file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&stackSetName, "stack-set", "s", "", "stack set name")
	rootCmd.PersistentFlags().StringVar(&awsProfile, "profile", "", "AWS shared-config profile")
	rootCmd.PersistentFlags().StringVar(&awsRegion, "region", "", "AWS region override")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "log in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newConvergeCommand())
	rootCmd.AddCommand(newStepCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}
