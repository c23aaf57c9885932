package cli

import (
	"github.com/spf13/cobra"
)

// NewRunCmd создаёт команду run.
func NewRunCmd() *cobra.Command {
	opts := DefaultOptions()

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run scenarios and report results",
		Long: `Run discovers scenario files (*.yaml, *.yml, *.scenario.md) under the
given paths (default: current directory), executes them and prints a report.

Exit code is 0 only if every scenario loaded and passed.`,
		Example: `  checkpoint run scenarios/
  checkpoint run --tag smoke --base-url http://localhost:8080
  checkpoint run api.scenario.md --report-format json --report-dir out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(opts.Verbose)

			sess, err := openSession(ctx, opts, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			return sess.runOnce(ctx, pathsOrDefault(args), cmd.OutOrStdout())
		},
	}

	bindRunFlags(cmd, &opts)

	return cmd
}
