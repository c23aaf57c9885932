package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Checkpoint/internal/loader"
)

// scenarioInfo — строка вывода list --json.
type scenarioInfo struct {
	Name   string   `json:"name"`
	Source string   `json:"source"`
	Steps  int      `json:"steps"`
	Tags   []string `json:"tags,omitempty"`
}

// NewListCmd создаёт команду list.
func NewListCmd() *cobra.Command {
	opts := DefaultOptions()
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List discovered scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput)

			loaded, err := loader.LoadAll(pathsOrDefault(args), opts.LoadOptions())
			if err != nil {
				return err
			}

			var (
				rows    [][]string
				infos   = []scenarioInfo{}
				invalid bool
			)
			for _, l := range loaded {
				if l.Err != nil {
					invalid = true
					out.Error(l.Err.Error())
					continue
				}
				sc := l.Scenario
				rows = append(rows, []string{sc.Name, strconv.Itoa(len(sc.Steps)), strings.Join(sc.Tags, ","), l.Path})
				infos = append(infos, scenarioInfo{Name: sc.Name, Source: l.Path, Steps: len(sc.Steps), Tags: sc.Tags})
			}

			if err := out.Print([]string{"NAME", "STEPS", "TAGS", "SOURCE"}, rows, infos); err != nil {
				return err
			}

			if invalid {
				return ErrInvalidScenarios
			}
			return nil
		},
	}

	bindSelectFlags(cmd, &opts)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
