// Package compare orchestrates whole-run history comparisons: it walks every
// model component, matches the two file sets, drives the pairwise comparator,
// and folds the per-file outcomes into one (success, comments) result whose
// final line is the literal PASS or FAIL token downstream tooling greps.
package compare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"histcomp/internal/archive"
	"histcomp/internal/casecfg"
	"histcomp/internal/comparator"
	"histcomp/internal/fsutil"
	"histcomp/internal/histfile"
)

// Comment markers embedded in the per-file commentary lines. The synopsis
// reducer and downstream tooling match on these exact phrases.
const (
	NoCompareComment  = "had no compare counterpart"
	NoOriginalComment = "had no original counterpart"
	FieldListsComment = "had a different field list from"
	DiffComment       = "did NOT match"
)

// realFailureComments are the markers that indicate a true comparison
// failure, as opposed to a missing counterpart or a field-list-only
// difference.
var realFailureComments = []string{NoOriginalComment, DiffComment}

// ErrSelfComparison guards against comparing a location to itself with
// identical suffixes, which would trivially pass.
var ErrSelfComparison = errors.New("comparing files to themselves")

// Comparer is the pairwise comparison dependency (satisfied by
// comparator.Tool).
type Comparer interface {
	Compare(ctx context.Context, model, file1, file2, outDir string, opts comparator.Options) (bool, string, comparator.Note, error)
}

// Result is the immutable outcome of one batch comparison.
type Result struct {
	Success  bool
	Comments string
}

// Options tune one batch run.
type Options struct {
	// SaveOutput and OutputSuffix are forwarded to the comparator per pair.
	SaveOutput   bool
	OutputSuffix string
	// IgnoreFieldListDiffs treats field-list-only differences as matches.
	IgnoreFieldListDiffs bool
}

// Orchestrator wires the case context, archive, and comparator together.
type Orchestrator struct {
	Case    *casecfg.Case
	Archive archive.Archive
	Tool    Comparer
	Log     *zap.Logger
}

// New returns an Orchestrator with a no-op logger by default.
func New(c *casecfg.Case, arch archive.Archive, tool Comparer, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{Case: c, Archive: arch, Tool: tool, Log: log}
}

// CompareHists compares the dir1/suffix1 file set against dir2/suffix2 across
// every model component. Expected-but-unwelcome states (missing counterpart,
// field-list difference, content mismatch) land in the Result; only fatal
// precondition and contract violations return an error.
func (o *Orchestrator) CompareHists(ctx context.Context, dir1, suffix1, dir2, suffix2 string, opts Options) (*Result, error) {
	if dir1 == dir2 && suffix1 == suffix2 {
		return nil, fmt.Errorf("%w: dir %q suffix %q", ErrSelfComparison, dir1, suffix1)
	}

	c := o.Case
	var b strings.Builder
	fmt.Fprintf(&b, "Comparing hists for case '%s' dir1='%s', suffix1='%s',  dir2='%s' suffix2='%s'\n",
		c.Name, dir1, suffix1, dir2, suffix2)

	allSuccess := true
	numCompared := 0
	multiinstCouplerCompare := false

	for _, model := range c.ModelComponents() {
		if model == casecfg.CouplerTag && suffix2 == "multiinst" {
			multiinstCouplerCompare = true
		}
		fmt.Fprintf(&b, "  comparing model '%s'\n", model)

		hists1, err := o.Archive.GetLatestHistFiles(c.Name, model, dir1, suffix1, c.RefCase)
		if err != nil {
			return nil, fmt.Errorf("list hist files for %s in %s: %w", model, dir1, err)
		}
		hists2, err := o.Archive.GetLatestHistFiles(c.Name, model, dir2, suffix2, c.RefCase)
		if err != nil {
			return nil, fmt.Errorf("list hist files for %s in %s: %w", model, dir2, err)
		}

		if len(hists1) == 0 && len(hists2) == 0 {
			fmt.Fprintf(&b, "    no hist files found for model %s\n", model)
			continue
		}

		match, err := histfile.Match(model, hists1, hists2, suffix1, suffix2)
		if err != nil {
			return nil, err
		}

		for _, item := range match.OnlyInA {
			if strings.Contains(item, "initial") {
				continue
			}
			fmt.Fprintf(&b, "    File '%s' %s in '%s' with suffix '%s'\n", item, NoCompareComment, dir2, suffix2)
			allSuccess = false
		}
		for _, item := range match.OnlyInB {
			if strings.Contains(item, "initial") {
				continue
			}
			fmt.Fprintf(&b, "    File '%s' %s in '%s' with suffix '%s'\n", item, NoOriginalComment, dir1, suffix1)
			allSuccess = false
		}

		numCompared += len(match.Pairs)

		for _, pair := range match.Pairs {
			if !strings.Contains(pair.A, ".nc") {
				o.Log.Info("ignoring non-netcdf file", zap.String("file", pair.A))
				continue
			}
			matched, logPath, note, err := o.Tool.Compare(ctx, model,
				filepath.Join(dir1, pair.A), filepath.Join(dir2, pair.B), dir1,
				comparator.Options{
					MultiInstanceCoupler: multiinstCouplerCompare,
					SaveOutput:           opts.SaveOutput,
					OutputSuffix:         opts.OutputSuffix,
					IgnoreFieldListDiffs: opts.IgnoreFieldListDiffs,
				})
			if err != nil {
				return nil, err
			}

			if matched {
				fmt.Fprintf(&b, "    %s matched %s\n", pair.A, pair.B)
				continue
			}

			if note == comparator.NoteFieldListsDiffer {
				fmt.Fprintf(&b, "    %s %s %s\n", pair.A, FieldListsComment, pair.B)
			} else {
				fmt.Fprintf(&b, "    %s %s %s\n", pair.A, DiffComment, pair.B)
			}
			fmt.Fprintf(&b, "    cat %s\n", logPath)
			o.persistComparatorLog(logPath)
			allSuccess = false
		}
	}

	if numCompared == 0 && !c.CompareExempt() {
		allSuccess = false
		b.WriteString("Did not compare any hist files! Missing baselines?\n")
	}

	if allSuccess {
		b.WriteString("PASS")
	} else {
		b.WriteString("FAIL")
	}

	return &Result{Success: allSuccess, Comments: b.String()}, nil
}

// persistComparatorLog copies a mismatch log into the case directory for
// later inspection, skipping the copy when an identical log is already
// there. Copy failures are logged and swallowed; they never flip the batch
// outcome.
func (o *Orchestrator) persistComparatorLog(logPath string) {
	if o.Case.CaseRoot == "" {
		return
	}
	if _, err := os.Stat(logPath); err != nil {
		return
	}

	target := filepath.Join(o.Case.CaseRoot, filepath.Base(logPath))
	if _, err := os.Stat(target); err == nil {
		if same, err := fsutil.FilesEqual(logPath, target); err == nil && same {
			return
		}
	}
	if err := fsutil.SafeCopy(logPath, o.Case.CaseRoot); err != nil {
		o.Log.Warn("could not copy comparator log",
			zap.String("from", logPath), zap.String("to", o.Case.CaseRoot), zap.Error(err))
	}
}
