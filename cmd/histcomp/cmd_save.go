package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"histcomp/internal/baseline"
)

var saveRename bool

// saveCmd saves the run's history files under a suffix
var saveCmd = &cobra.Command{
	Use:   "save [suffix]",
	Short: "Save the run's history files under a suffix",
	Long: `Copies the latest batch of history files aside under the given suffix so a
subsequent run leg cannot overwrite them. With --rename the files are moved
instead, restart files included, which marks the end of a run leg.

Example:
  histcomp save base
  histcomp save multiinst --rename`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().BoolVar(&saveRename, "rename", false, "Rename files instead of copying (covers restart files too)")
}

func runSave(cmd *cobra.Command, args []string) error {
	c, mgr, err := loadManager()
	if err != nil {
		return err
	}

	mode := baseline.SaveCopy
	if saveRename {
		mode = baseline.SaveRename
	}
	comments, err := mgr.SaveRunOutputs(args[0], mode)
	if err != nil {
		return err
	}

	fmt.Println(comments)
	recordResult(c, "save", true, comments)
	return nil
}
