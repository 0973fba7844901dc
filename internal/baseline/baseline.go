// Package baseline implements the lifecycle of blessed reference output:
// comparing a run against its baseline, promoting a run to become the new
// baseline, and saving a run's files under a suffix for later comparison.
// All mutation of the shared baseline tree happens under the cross-process
// shared-area lock.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"histcomp/internal/archive"
	"histcomp/internal/casecfg"
	"histcomp/internal/compare"
	"histcomp/internal/fsutil"
	"histcomp/internal/histfile"
	"histcomp/internal/lock"
)

// BlessLogName is the append-only bless record kept per baseline directory.
const BlessLogName = "bless_log"

// blessTimeFormat matches the recorded date field: YYYY-MM-DD_HH:MM:SS.
const blessTimeFormat = "2006-01-02_15:04:05"

// ErrBaselineExists means the target baseline subdirectory is already
// populated and overwrite was not allowed.
var ErrBaselineExists = errors.New("refusing to overwrite existing baseline directory")

// ErrNoFiles means an operation that requires at least one history file
// processed none, which signals a broken run directory.
var ErrNoFiles = errors.New("no hist files found")

// SaveMode selects how SaveRunOutputs moves files aside.
type SaveMode int

const (
	// SaveCopy copies the latest batch only; originals stay in place so a
	// restart continuation can keep appending to them.
	SaveCopy SaveMode = iota
	// SaveRename renames every file belonging to the run, restarts included.
	SaveRename
)

// Manager binds the case context to the collaborators baseline operations
// need.
type Manager struct {
	Case    *casecfg.Case
	Archive archive.Archive
	Orch    *compare.Orchestrator
	Log     *zap.Logger
}

// NewManager returns a Manager with a no-op logger by default.
func NewManager(c *casecfg.Case, arch archive.Archive, orch *compare.Orchestrator, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{Case: c, Archive: arch, Orch: orch, Log: log}
}

// CompareBaseline compares the current run output against the blessed
// baseline. An absent baseline directory is a distinguished condition
// reported in the comments, not a content mismatch and not an error; the
// comparator is never invoked for it.
func (m *Manager) CompareBaseline(ctx context.Context, baselineDir string, opts compare.Options) (bool, string, error) {
	c := m.Case

	var basecmpDir string
	var dirsToCheck []string
	if baselineDir == "" {
		basecmpDir = c.BaselineCompareDir()
		dirsToCheck = []string{c.BaselineRoot, basecmpDir}
	} else {
		basecmpDir = baselineDir
		dirsToCheck = []string{basecmpDir}
	}

	for _, bdir := range dirsToCheck {
		if !isDir(bdir) {
			return false, fmt.Sprintf("ERROR %s baseline directory '%s' does not exist",
				compare.NoBaselinesComment, bdir), nil
		}
	}

	res, err := m.Orch.CompareHists(ctx, c.RunDir, "", basecmpDir, "", opts)
	if err != nil {
		return false, "", err
	}

	comments := res.Comments
	if c.ModelFlavor == "e3sm" {
		if last := lastBlessRecord(filepath.Join(basecmpDir, BlessLogName)); last != "" {
			comments += "\n  Most recent bless: " + last
		}
	}
	return res.Success, comments, nil
}

// GenerateBaseline promotes the current run output to become the new
// baseline. The whole operation holds the shared-area lock: baselines live
// on a shared filesystem that concurrent test instances bless into.
func (m *Manager) GenerateBaseline(ctx context.Context, baselineDir string, allowOverwrite bool) (ok bool, comments string, err error) {
	lockDir := m.Case.BaselineRoot
	if lockDir == "" {
		lockDir = baselineDir
	}
	area, err := lock.Acquire(ctx, lockDir, m.Log)
	if err != nil {
		return false, "", err
	}
	defer func() {
		if rerr := area.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return m.generateBaselineLocked(baselineDir, allowOverwrite)
}

func (m *Manager) generateBaselineLocked(baselineDir string, allowOverwrite bool) (bool, string, error) {
	c := m.Case

	basegenDir := baselineDir
	if basegenDir == "" {
		basegenDir = c.BaselineGenerateDir()
	}
	if err := os.MkdirAll(basegenDir, 0o755); err != nil {
		return false, "", fmt.Errorf("create baseline directory: %w", err)
	}
	if isDir(filepath.Join(basegenDir, c.Name)) && !allowOverwrite {
		return false, "", fmt.Errorf("%w: %s", ErrBaselineExists, filepath.Join(basegenDir, c.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generating baselines into '%s'\n", basegenDir)

	numGen := 0
	for _, model := range c.ModelComponents() {
		fmt.Fprintf(&b, "  generating for model '%s'\n", model)

		hists, err := m.Archive.GetLatestHistFiles(c.Name, model, c.RunDir, "", c.RefCase)
		if err != nil {
			return false, "", fmt.Errorf("list hist files for %s: %w", model, err)
		}
		m.Log.Debug("latest files", zap.String("model", model), zap.Strings("hists", hists))
		numGen += len(hists)

		for _, hist := range hists {
			offset := strings.LastIndex(hist, model)
			if offset < 0 {
				return false, "", fmt.Errorf("%w: tag %q in %q", histfile.ErrModelTagNotFound, model, hist)
			}
			target := filepath.Join(basegenDir, hist[offset:])
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return false, "", fmt.Errorf("remove stale baseline %s: %w", target, err)
			}
			if err := fsutil.SafeCopy(filepath.Join(c.RunDir, hist), target); err != nil {
				return false, "", err
			}
			fmt.Fprintf(&b, "    generating baseline '%s' from file %s\n", target, hist)
		}
	}

	m.archiveCouplerLog(basegenDir)

	if numGen == 0 && !c.GenerateExempt() {
		return false, "", fmt.Errorf("%w: could not generate any hist files for case '%s' in '%s', something is seriously wrong",
			ErrNoFiles, c.Name, c.RunDir)
	}

	if c.ModelFlavor == "e3sm" {
		if err := m.appendBlessRecord(basegenDir); err != nil {
			return false, "", err
		}
	}

	return true, b.String(), nil
}

// archiveCouplerLog keeps the most recent coupler log with the baseline,
// compressed under a date-free name so it stays generic. Absence is only a
// warning.
func (m *Manager) archiveCouplerLog(basegenDir string) {
	cplname := m.Case.CouplerName()
	newest := latestCouplerLog(m.Case.RunDir, cplname)
	if newest == "" {
		m.Log.Warn("no coupler log found",
			zap.String("coupler", cplname), zap.String("dir", m.Case.RunDir))
		return
	}

	target := filepath.Join(basegenDir, cplname+".log.gz")
	var err error
	if strings.HasSuffix(newest, ".gz") {
		err = fsutil.SafeCopy(newest, target)
	} else {
		err = fsutil.GzipCopy(newest, target)
	}
	if err != nil {
		m.Log.Warn("could not archive coupler log", zap.String("log", newest), zap.Error(err))
	}
}

// appendBlessRecord appends one "sha:<commit> date:<stamp>" line to the bless
// log, creating it if absent. The log is append-only and never rewritten.
func (m *Manager) appendBlessRecord(basegenDir string) error {
	path := filepath.Join(basegenDir, BlessLogName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open bless log: %w", err)
	}

	record := fmt.Sprintf("sha:%s date:%s\n", headCommit(m.Case.RepoRoot), time.Now().Format(blessTimeFormat))
	if _, err := f.WriteString(record); err != nil {
		f.Close()
		return fmt.Errorf("append bless log: %w", err)
	}
	return f.Close()
}

// SaveRunOutputs saves the run's history files under the given suffix so a
// re-run cannot blow them away. SaveCopy keeps originals in place (restart
// runs may continue filling them); SaveRename moves everything belonging to
// the run, with the coupler listed under its driver alias.
func (m *Manager) SaveRunOutputs(suffix string, mode SaveMode) (string, error) {
	switch mode {
	case SaveCopy:
		return m.copyHistFiles(suffix)
	case SaveRename:
		return m.renameAllHistFiles(suffix)
	default:
		return "", fmt.Errorf("unknown save mode %d", mode)
	}
}

func (m *Manager) copyHistFiles(suffix string) (string, error) {
	c := m.Case
	var b strings.Builder
	fmt.Fprintf(&b, "Copying hist files to suffix '%s'\n", suffix)

	numCopied := 0
	for _, model := range c.ModelComponents() {
		fmt.Fprintf(&b, "  Copying hist files for model '%s'\n", model)

		hists, err := m.Archive.GetLatestHistFiles(c.Name, model, c.RunDir, "", c.RefCase)
		if err != nil {
			return "", fmt.Errorf("list hist files for %s: %w", model, err)
		}
		numCopied += len(hists)

		for _, hist := range hists {
			src := filepath.Join(c.RunDir, hist)
			if !strings.HasSuffix(src, ".nc") {
				m.Log.Info("will not save non-netcdf file", zap.String("file", src))
				continue
			}
			dst := src + "." + suffix
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("remove stale save target %s: %w", dst, err)
			}
			fmt.Fprintf(&b, "    Copying '%s' to '%s'\n", src, dst)
			if err := fsutil.SafeCopy(src, dst); err != nil {
				return "", err
			}
		}
	}

	if numCopied == 0 {
		return "", fmt.Errorf("%w: copy failed in rundir '%s'", ErrNoFiles, c.RunDir)
	}
	return b.String(), nil
}

func (m *Manager) renameAllHistFiles(suffix string) (string, error) {
	c := m.Case
	var b strings.Builder
	fmt.Fprintf(&b, "Renaming hist files by adding suffix '%s'\n", suffix)

	numRenamed := 0
	for _, model := range c.ModelComponents() {
		fmt.Fprintf(&b, "  Renaming hist files for model '%s'\n", model)

		// The coupler's run files carry the driver name.
		mname := model
		if model == casecfg.CouplerTag {
			mname = "drv"
		}

		hists, err := m.Archive.GetAllHistFiles(mname, c.RunDir, c.RefCase)
		if err != nil {
			return "", fmt.Errorf("list hist files for %s: %w", mname, err)
		}
		numRenamed += len(hists)

		for _, hist := range hists {
			src := filepath.Join(c.RunDir, hist)
			dst := src + "." + suffix
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("remove stale save target %s: %w", dst, err)
			}
			fmt.Fprintf(&b, "    Renaming '%s' to '%s'\n", src, dst)
			if err := os.Rename(src, dst); err != nil {
				return "", fmt.Errorf("rename %s: %w", src, err)
			}
		}
	}

	if numRenamed == 0 {
		return "", fmt.Errorf("%w: renaming failed in rundir '%s'", ErrNoFiles, c.RunDir)
	}
	return b.String(), nil
}

// GenerateTestStatus mirrors the run's test status file into the baseline
// directory for cesm-flavored cases, which keep status with baselines.
// Best-effort: every failure is swallowed with a warning.
func (m *Manager) GenerateTestStatus(ctx context.Context, testDir, baselineDir, statusFile string) {
	if m.Case.ModelFlavor != "cesm" {
		return
	}

	area, err := lock.Acquire(ctx, baselineDir, m.Log)
	if err != nil {
		m.Log.Warn("could not lock baseline area for test status", zap.Error(err))
		return
	}
	defer area.Release()

	if err := fsutil.SafeCopy(filepath.Join(testDir, statusFile), baselineDir); err != nil {
		m.Log.Warn("could not copy test status to baselines",
			zap.String("from", filepath.Join(testDir, statusFile)), zap.Error(err))
	}
}

// latestCouplerLog returns the newest "<cplname>.log.*" file in dir, empty
// when none exist. Timestamped log names sort lexicographically.
func latestCouplerLog(dir, cplname string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var logs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), cplname+".log") {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) == 0 {
		return ""
	}
	sort.Strings(logs)
	return filepath.Join(dir, logs[len(logs)-1])
}

// lastBlessRecord returns the final line of a bless log, empty when the log
// is absent or empty.
func lastBlessRecord(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	last := lines[len(lines)-1]
	return strings.TrimSpace(last)
}

// headCommit resolves the checkout's HEAD commit for the bless record.
func headCommit(repoRoot string) string {
	if repoRoot == "" {
		return "unknown"
	}
	out, err := exec.Command("git", "-C", repoRoot, "rev-parse", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
