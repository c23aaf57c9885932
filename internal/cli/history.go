package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Checkpoint/internal/repo"
)

// NewHistoryCmd создаёт команду history: последние запуски из хранилища.
func NewHistoryCmd() *cobra.Command {
	opts := DefaultOptions()
	var (
		name       string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.HistoryDSN == "" {
				return fmt.Errorf("%w: set --history-dsn or %s", repo.ErrInvalidDSN, EnvHistoryDSN)
			}

			ctx := cmd.Context()
			out := NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput)

			store, err := repo.Open(ctx, opts.HistoryDSN)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				runID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", args[0], err)
				}
				run, err := store.GetRun(ctx, runID)
				if err != nil {
					return err
				}

				rows := make([][]string, len(run.Steps))
				for i, s := range run.Steps {
					rows[i] = []string{strconv.Itoa(s.Index + 1), s.Name, string(s.Status), formatMS(s.Elapsed), s.ErrorMessage}
				}
				return out.Print([]string{"#", "STEP", "STATUS", "DURATION", "ERROR"}, rows, run)
			}

			runs, err := store.ListRecent(ctx, repo.RunFilter{Name: name, Limit: limit})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				result := "PASS"
				if !r.Success {
					result = "FAIL"
				}
				rows[i] = []string{
					r.RunID.String(),
					r.Name,
					result,
					strconv.Itoa(r.Passed),
					strconv.Itoa(r.Failed),
					strconv.Itoa(r.Skipped),
					formatMS(r.Elapsed),
					r.StartedAt.Local().Format(time.DateTime),
				}
			}
			return out.Print([]string{"RUN_ID", "SCENARIO", "RESULT", "PASSED", "FAILED", "SKIPPED", "DURATION", "STARTED"}, rows, runs)
		},
	}

	cmd.Flags().StringVar(&opts.HistoryDSN, "history-dsn", opts.HistoryDSN, "History store: postgres://... or a SQLite file path (env "+EnvHistoryDSN+")")
	cmd.Flags().StringVar(&name, "name", "", "Only runs of this scenario")
	cmd.Flags().IntVar(&limit, "limit", repo.DefaultLimit, "Maximum number of runs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func formatMS(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
