package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd создаёт корневую команду checkpoint.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "checkpoint",
		Short:         "Checkpoint — declarative API scenario runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewRunCmd(),
		NewWatchCmd(),
		NewValidateCmd(),
		NewListCmd(),
		NewHistoryCmd(),
	)

	return rootCmd
}

// Execute выполняет CLI и возвращает код выхода процесса.
// Ctrl-C отменяет текущий прогон: незавершённые шаги попадают в отчёт.
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd(version)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !IsReported(err) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
