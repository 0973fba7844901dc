package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"histcomp/internal/compare"
)

// synopsisCmd reduces comparison commentary to a one-line status
var synopsisCmd = &cobra.Command{
	Use:   "synopsis [file]",
	Short: "Reduce comparison commentary to a one-line status",
	Long: `Reads comparison commentary from the given file (or stdin when omitted) and
prints the single-line synopsis: DIFF when any real difference is present,
otherwise the field-list or missing-baseline summary.

Example:
  histcomp baseline compare | histcomp synopsis`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSynopsis,
}

func runSynopsis(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read commentary: %w", err)
	}

	fmt.Println(compare.Synopsize(string(data)))
	return nil
}
