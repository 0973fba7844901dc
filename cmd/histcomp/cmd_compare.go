package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"histcomp/internal/compare"
)

// errComparisonFailed signals a completed comparison whose verdict is FAIL.
// The commentary has already been printed by the time it is returned.
var errComparisonFailed = errors.New("comparison FAILed")

var (
	compareSaveOutput     bool
	compareOutputSuffix   string
	compareIgnoreFldLists bool
)

// compareCmd compares two saved batches of the same run against each other
var compareCmd = &cobra.Command{
	Use:   "compare [suffix1] [suffix2]",
	Short: "Compare two saved history file batches from the run directory",
	Long: `Compares the history files saved under suffix1 against those saved under
suffix2, both in the case's run directory. This is the in-run regression
check: an exact-restart test saves one batch per leg and compares them.

The coupler batch saved under the 'multiinst' suffix is compared with the
relaxed multi-instance criterion.

Example:
  histcomp compare base rest`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&compareSaveOutput, "save-output", true, "Persist comparator output logs")
	compareCmd.Flags().StringVar(&compareOutputSuffix, "output-suffix", "", "Extra suffix for comparator output logs")
	compareCmd.Flags().BoolVar(&compareIgnoreFldLists, "ignore-fieldlist-diffs", false, "Treat field-list-only differences as matches")
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	c, mgr, err := loadManager()
	if err != nil {
		return err
	}

	opts := compare.Options{
		SaveOutput:           compareSaveOutput,
		OutputSuffix:         compareOutputSuffix,
		IgnoreFieldListDiffs: compareIgnoreFldLists,
	}
	res, err := mgr.Orch.CompareHists(ctx, c.RunDir, args[0], c.RunDir, args[1], opts)
	if err != nil {
		return err
	}

	fmt.Println(res.Comments)
	recordResult(c, "compare", res.Success, res.Comments)
	if !res.Success {
		return errComparisonFailed
	}
	return nil
}
