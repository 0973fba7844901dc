// Package comparator wraps the external bit-for-bit comparison executable
// (cprnc). It runs the tool on one file pair, captures its combined output,
// and classifies the summary line into a closed set of outcomes.
package comparator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Note qualifies a failed comparison.
type Note int

const (
	// NoteNone means no extra qualification.
	NoteNone Note = iota
	// NoteFieldListsDiffer means all shared fields are bit-for-bit but one
	// file carries diagnostic fields absent from the other.
	NoteFieldListsDiffer
)

// ErrUnrecognizedOutput indicates the comparator exited cleanly but its
// output contained none of the recognized summary phrases. This is a
// tool-contract violation, not a data difference.
var ErrUnrecognizedOutput = errors.New("no recognized summary phrase in comparator output")

// The summary phrases the comparator is contracted to emit on exit 0,
// checked in order. Anything else is ErrUnrecognizedOutput.
type outcome int

const (
	outcomeIdentical outcome = iota
	outcomeDifferent
	outcomeFieldListsDiffer
)

var outputMarkers = []struct {
	phrase string
	result outcome
}{
	{"files seem to be IDENTICAL", outcomeIdentical},
	{"the two files seem to be DIFFERENT", outcomeDifferent},
	{"the two files DIFFER only in their field lists", outcomeFieldListsDiffer},
}

// multiInstCouplerMarker is the relaxed check used for multi-instance coupler
// files, whose shapes legitimately differ: only real field differences count.
const multiInstCouplerMarker = " 0 had non-zero differences"

// Options control one Compare invocation.
type Options struct {
	// MultiInstanceCoupler selects the relaxed classification for coupler
	// history files from multi-instance runs.
	MultiInstanceCoupler bool
	// SaveOutput persists the tool output at the deterministic log path.
	// When false the output is read straight from the process, which avoids
	// write-permission issues in protected directories.
	SaveOutput bool
	// OutputSuffix, when non-empty, is appended to the log filename after a
	// '.' separator.
	OutputSuffix string
	// IgnoreFieldListDiffs treats field-list-only differences as a match.
	IgnoreFieldListDiffs bool
}

// Tool invokes one comparator executable.
type Tool struct {
	Exe string
	Log *zap.Logger
}

// New returns a Tool for the given executable path.
func New(exe string, log *zap.Logger) *Tool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tool{Exe: exe, Log: log}
}

// Compare runs the comparator on file1 and file2 and classifies the result.
// outDir is where the output log lives (and is returned in logPath even when
// the output is not persisted, so callers can name the comparison).
//
// A non-zero exit from the tool is reported as matched=false with no note:
// tool failure is never allowed to masquerade as a match. An unrecognized
// summary on a clean exit returns ErrUnrecognizedOutput.
func (t *Tool) Compare(ctx context.Context, model, file1, file2, outDir string, opts Options) (matched bool, logPath string, note Note, err error) {
	logPath = t.outputPath(model, file1, file2, outDir, opts.OutputSuffix)

	cmd := exec.CommandContext(ctx, t.Exe, "-m", file1, file2)
	out, runErr := cmd.CombinedOutput()

	if opts.SaveOutput {
		if werr := os.WriteFile(logPath, out, 0o644); werr != nil {
			return false, logPath, NoteNone, fmt.Errorf("write comparator log %s: %w", logPath, werr)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return false, logPath, NoteNone, ctx.Err()
		}
		// Exit status or spawn failure: the safe answer is "no match".
		t.Log.Warn("comparator failed",
			zap.String("exe", t.Exe),
			zap.String("file1", file1),
			zap.String("file2", file2),
			zap.Error(runErr))
		return false, logPath, NoteNone, nil
	}

	text := string(out)
	if opts.MultiInstanceCoupler {
		return strings.Contains(text, multiInstCouplerMarker), logPath, NoteNone, nil
	}

	for _, rule := range outputMarkers {
		if !strings.Contains(text, rule.phrase) {
			continue
		}
		switch rule.result {
		case outcomeIdentical:
			return true, logPath, NoteNone, nil
		case outcomeDifferent:
			return false, logPath, NoteNone, nil
		case outcomeFieldListsDiffer:
			if opts.IgnoreFieldListDiffs {
				return true, logPath, NoteNone, nil
			}
			return false, logPath, NoteFieldListsDiffer, nil
		}
	}
	return false, logPath, NoteNone, fmt.Errorf("%w: comparing %s and %s", ErrUnrecognizedOutput, file1, file2)
}

// outputPath builds the deterministic log filename. When exactly one of the
// two files carries an ensemble-instance index the index tokens are folded
// into the name so per-pair logs stay unique.
func (t *Tool) outputPath(model, file1, file2, outDir, suffix string) string {
	m1 := instanceToken(model, file1)
	m2 := instanceToken(model, file2)
	mstr := ""
	if m1 != m2 {
		mstr = m1 + m2
	}

	name := filepath.Base(file1) + mstr + ".cprnc.out"
	if suffix != "" {
		name += "." + suffix
	}
	return filepath.Join(outDir, name)
}

// instanceToken extracts the "_NNNN" ensemble index from a history filename,
// restricted to names carrying the ".h<digit?>." history-slot marker.
func instanceToken(model, file string) string {
	re, err := regexp.Compile(`.*` + regexp.QuoteMeta(model) + `[^_]*(_[0-9]{4})[.]h.?[.][^.]+?[.]nc`)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(file)
	if m == nil {
		return ""
	}
	return m[1]
}
