package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"histcomp/internal/casecfg"
	"histcomp/internal/results"
)

var historyLimit int

// historyCmd lists recent entries from the results ledger
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent comparison and baseline results for this case",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := casecfg.Load(configPath)
	if err != nil {
		return err
	}
	if c.ResultsDB == "" {
		return errors.New("no results ledger configured for this case")
	}

	store, err := results.Open(c.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(c.Name, historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tKIND\tVERDICT\tSYNOPSIS")
	for _, r := range records {
		verdict := "FAIL"
		if r.Success {
			verdict = "PASS"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.Kind, verdict, r.Synopsis)
	}
	return w.Flush()
}
