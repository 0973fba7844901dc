package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"histcomp/internal/compare"
)

var (
	baselineDir            string
	allowBaselineOverwrite bool
)

// baselineCmd groups baseline operations
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Compare against or generate blessed baselines",
}

var baselineCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the run output against the blessed baseline",
	Long: `Compares the current run's history files against the baseline directory for
this case. An absent baseline directory is reported as a BFAIL condition
rather than a content mismatch.

By default the directory is <baseline-root>/<baseline-compare-name> from the
case configuration; --baseline-dir overrides it.`,
	Args: cobra.NoArgs,
	RunE: runBaselineCompare,
}

var baselineGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Promote the run output to become the new baseline",
	Long: `Copies the latest batch of history files from the run directory into the
baseline directory, along with the most recent coupler log. Refuses to
overwrite an existing baseline for this case unless --allow-overwrite is
given. The whole operation holds the shared-area lock.`,
	Args: cobra.NoArgs,
	RunE: runBaselineGenerate,
}

func init() {
	baselineCmd.PersistentFlags().StringVar(&baselineDir, "baseline-dir", "", "Baseline directory (default: from case configuration)")
	baselineGenerateCmd.Flags().BoolVar(&allowBaselineOverwrite, "allow-overwrite", false, "Overwrite an existing baseline for this case")

	baselineCmd.AddCommand(baselineCompareCmd)
	baselineCmd.AddCommand(baselineGenerateCmd)
}

func runBaselineCompare(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	c, mgr, err := loadManager()
	if err != nil {
		return err
	}

	success, comments, err := mgr.CompareBaseline(ctx, baselineDir, compare.Options{SaveOutput: true})
	if err != nil {
		return err
	}

	fmt.Println(comments)
	recordResult(c, "baseline-compare", success, comments)
	if !success {
		return errComparisonFailed
	}
	return nil
}

func runBaselineGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	c, mgr, err := loadManager()
	if err != nil {
		return err
	}

	ok, comments, err := mgr.GenerateBaseline(ctx, baselineDir, allowBaselineOverwrite)
	if err != nil {
		return err
	}

	fmt.Println(comments)
	recordResult(c, "baseline-generate", ok, comments)
	return nil
}
