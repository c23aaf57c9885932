package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Checkpoint/internal/loader"
)

// NewValidateCmd создаёт команду validate: разбор без выполнения.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Check scenario files without sending requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), false)

			loaded, err := loader.LoadAll(pathsOrDefault(args), loader.Options{})
			if err != nil {
				return err
			}
			if len(loaded) == 0 {
				return ErrNoScenarios
			}

			var invalid int
			for _, l := range loaded {
				if l.Err != nil {
					invalid++
					out.Status(false, "%v", l.Err)
					continue
				}
				out.Status(true, "%s  %s (%d steps)", l.Path, l.Scenario.Name, len(l.Scenario.Steps))
			}

			if invalid > 0 {
				out.Error(fmt.Sprintf("%d of %d files invalid", invalid, len(loaded)))
				return ErrInvalidScenarios
			}
			out.Success(fmt.Sprintf("%d files valid", len(loaded)))
			return nil
		},
	}
}
