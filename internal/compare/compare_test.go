package compare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"histcomp/internal/casecfg"
	"histcomp/internal/comparator"
)

// fakeArchive serves canned file lists keyed by directory, model, and suffix.
type fakeArchive struct {
	files map[string][]string // "dir|model|suffix" -> names
}

func (f *fakeArchive) GetLatestHistFiles(caseName, model, dir, suffix, refCase string) ([]string, error) {
	return f.files[dir+"|"+model+"|"+suffix], nil
}

func (f *fakeArchive) GetAllHistFiles(model, dir, refCase string) ([]string, error) {
	return f.files[dir+"|"+model+"|"], nil
}

// fakeComparer records calls and returns scripted outcomes per file pair.
type fakeComparer struct {
	outcomes map[string]comparator.Note // base of file1 -> note; absent means matched
	fails    map[string]bool            // base of file1 -> forced mismatch
	calls    []comparator.Options
	logDir   string
}

func (f *fakeComparer) Compare(ctx context.Context, model, file1, file2, outDir string, opts comparator.Options) (bool, string, comparator.Note, error) {
	f.calls = append(f.calls, opts)
	base := filepath.Base(file1)
	logPath := filepath.Join(f.logDir, base+".cprnc.out")
	if note, ok := f.outcomes[base]; ok {
		_ = os.WriteFile(logPath, []byte("mismatch detail for "+base), 0o644)
		return false, logPath, note, nil
	}
	if f.fails[base] {
		_ = os.WriteFile(logPath, []byte("mismatch detail for "+base), 0o644)
		return false, logPath, comparator.NoteNone, nil
	}
	return true, logPath, comparator.NoteNone, nil
}

func testCase(t *testing.T) *casecfg.Case {
	t.Helper()
	c := casecfg.Default()
	c.Name = "CASE"
	c.TestKind = "ERS"
	c.RunDir = t.TempDir()
	c.CaseRoot = t.TempDir()
	c.Components = []string{"cam"}
	return c
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return lines[len(lines)-1]
}

func TestCompareHistsSelfComparison(t *testing.T) {
	o := New(testCase(t), &fakeArchive{}, &fakeComparer{logDir: t.TempDir()}, nil)
	_, err := o.CompareHists(context.Background(), "/run", "base", "/run", "base", Options{})
	if !errors.Is(err, ErrSelfComparison) {
		t.Fatalf("error = %v, want ErrSelfComparison", err)
	}

	// Same dir with distinct suffixes is the two-suffix regression compare.
	if _, err := o.CompareHists(context.Background(), "/run", "base", "/run", "rest", Options{}); err != nil {
		t.Fatalf("distinct suffixes: %v", err)
	}
}

func TestCompareHistsAllMatched(t *testing.T) {
	c := testCase(t)
	arch := &fakeArchive{files: map[string][]string{
		"/run|cam|":  {"CASE.cam.h0.X.nc"},
		"/base|cam|": {"cam.h0.X.nc"},
	}}
	o := New(c, arch, &fakeComparer{logDir: t.TempDir()}, nil)

	res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
	if err != nil {
		t.Fatalf("CompareHists: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false\n%s", res.Comments)
	}
	if lastLine(res.Comments) != "PASS" {
		t.Fatalf("last line = %q, want PASS", lastLine(res.Comments))
	}
	if !strings.Contains(res.Comments, "CASE.cam.h0.X.nc matched cam.h0.X.nc") {
		t.Fatalf("missing matched line:\n%s", res.Comments)
	}
}

func TestCompareHistsMismatchPersistsLog(t *testing.T) {
	c := testCase(t)
	arch := &fakeArchive{files: map[string][]string{
		"/run|cam|":  {"CASE.cam.h0.X.nc"},
		"/base|cam|": {"cam.h0.X.nc"},
	}}
	tool := &fakeComparer{
		logDir: t.TempDir(),
		fails:  map[string]bool{"CASE.cam.h0.X.nc": true},
	}
	o := New(c, arch, tool, nil)

	res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
	if err != nil {
		t.Fatalf("CompareHists: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if lastLine(res.Comments) != "FAIL" {
		t.Fatalf("last line = %q, want FAIL", lastLine(res.Comments))
	}
	if !strings.Contains(res.Comments, DiffComment) {
		t.Fatalf("missing %q:\n%s", DiffComment, res.Comments)
	}
	if !strings.Contains(res.Comments, "cat ") {
		t.Fatalf("missing cat escort line:\n%s", res.Comments)
	}

	copied := filepath.Join(c.CaseRoot, "CASE.cam.h0.X.nc.cprnc.out")
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("mismatch log not copied to case root: %v", err)
	}

	// A second run with an identical log already present must not fail.
	if _, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{}); err != nil {
		t.Fatalf("second CompareHists: %v", err)
	}
}

func TestCompareHistsFieldListNote(t *testing.T) {
	c := testCase(t)
	arch := &fakeArchive{files: map[string][]string{
		"/run|cam|":  {"CASE.cam.h0.X.nc"},
		"/base|cam|": {"cam.h0.X.nc"},
	}}
	tool := &fakeComparer{
		logDir:   t.TempDir(),
		outcomes: map[string]comparator.Note{"CASE.cam.h0.X.nc": comparator.NoteFieldListsDiffer},
	}
	o := New(c, arch, tool, nil)

	res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
	if err != nil {
		t.Fatalf("CompareHists: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.Contains(res.Comments, FieldListsComment) {
		t.Fatalf("missing %q:\n%s", FieldListsComment, res.Comments)
	}
	if strings.Contains(res.Comments, DiffComment) {
		t.Fatalf("field-list mismatch reported as real diff:\n%s", res.Comments)
	}
}

func TestCompareHistsMissingCounterparts(t *testing.T) {
	c := testCase(t)
	arch := &fakeArchive{files: map[string][]string{
		"/run|cam|":  {"CASE.cam.h0.X.nc", "CASE.cam.h1.X.nc", "CASE.cam.initial.X.nc"},
		"/base|cam|": {"cam.h0.X.nc"},
	}}
	o := New(c, arch, &fakeComparer{logDir: t.TempDir()}, nil)

	res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
	if err != nil {
		t.Fatalf("CompareHists: %v", err)
	}
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.Contains(res.Comments, "File 'CASE.cam.h1.X.nc' "+NoCompareComment) {
		t.Fatalf("missing no-counterpart line:\n%s", res.Comments)
	}
	// Initial-condition files are excluded from missing-file reporting.
	if strings.Contains(res.Comments, "initial") {
		t.Fatalf("initial file reported missing:\n%s", res.Comments)
	}
}

func TestCompareHistsZeroComparisons(t *testing.T) {
	t.Run("non_exempt_kind_fails", func(t *testing.T) {
		c := testCase(t)
		o := New(c, &fakeArchive{}, &fakeComparer{logDir: t.TempDir()}, nil)

		res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
		if err != nil {
			t.Fatalf("CompareHists: %v", err)
		}
		if res.Success {
			t.Fatal("Success = true, want false")
		}
		if !strings.Contains(res.Comments, "Missing baselines?") {
			t.Fatalf("missing missing-baselines indication:\n%s", res.Comments)
		}
		if !strings.Contains(res.Comments, "no hist files found for model cam") {
			t.Fatalf("missing skip line:\n%s", res.Comments)
		}
	})

	t.Run("exempt_kind_passes", func(t *testing.T) {
		c := testCase(t)
		c.TestKind = "PFS"
		o := New(c, &fakeArchive{}, &fakeComparer{logDir: t.TempDir()}, nil)

		res, err := o.CompareHists(context.Background(), "/run", "", "/base", "", Options{})
		if err != nil {
			t.Fatalf("CompareHists: %v", err)
		}
		if !res.Success {
			t.Fatalf("Success = false for exempt kind\n%s", res.Comments)
		}
	})
}

func TestCompareHistsMultiInstanceCouplerFlag(t *testing.T) {
	c := testCase(t)
	arch := &fakeArchive{files: map[string][]string{
		c.RunDir + "|cpl|base":      {"CASE.cpl.hi.X.nc.base"},
		c.RunDir + "|cpl|multiinst": {"CASE.cpl.hi.X.nc.multiinst"},
	}}
	tool := &fakeComparer{logDir: t.TempDir()}
	o := New(c, arch, tool, nil)

	_, err := o.CompareHists(context.Background(), c.RunDir, "base", c.RunDir, "multiinst", Options{})
	if err != nil {
		t.Fatalf("CompareHists: %v", err)
	}
	if len(tool.calls) == 0 {
		t.Fatal("comparator never invoked")
	}
	for _, opts := range tool.calls {
		if !opts.MultiInstanceCoupler {
			t.Fatal("coupler comparison missing MultiInstanceCoupler flag")
		}
	}
}
