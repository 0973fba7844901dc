package comparator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// stubTool writes a shell script that stands in for the comparator.
func stubTool(t *testing.T, script string) *Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub comparator scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "cprnc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(path, nil)
}

func TestCompareClassification(t *testing.T) {
	cases := []struct {
		name    string
		script  string
		opts    Options
		want    bool
		note    Note
		wantErr error
	}{
		{
			name:   "identical",
			script: `echo "files seem to be IDENTICAL"`,
			want:   true,
		},
		{
			name:   "different",
			script: `echo "the two files seem to be DIFFERENT"`,
			want:   false,
		},
		{
			name:   "field_lists_not_ignored",
			script: `echo "the two files DIFFER only in their field lists"`,
			want:   false,
			note:   NoteFieldListsDiffer,
		},
		{
			name:   "field_lists_ignored",
			script: `echo "the two files DIFFER only in their field lists"`,
			opts:   Options{IgnoreFieldListDiffs: true},
			want:   true,
		},
		{
			name:   "nonzero_exit_is_never_a_match",
			script: `echo "files seem to be IDENTICAL"; exit 1`,
			want:   false,
		},
		{
			name:    "unrecognized_output",
			script:  `echo "segfault in module xyz"`,
			wantErr: ErrUnrecognizedOutput,
		},
		{
			name:   "multiinst_coupler_relaxed",
			script: `echo "the two files seem to be DIFFERENT"; echo " 0 had non-zero differences"`,
			opts:   Options{MultiInstanceCoupler: true},
			want:   true,
		},
		{
			name:   "multiinst_coupler_real_diffs",
			script: `echo " 3 had non-zero differences"`,
			opts:   Options{MultiInstanceCoupler: true},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := stubTool(t, tc.script)
			matched, _, note, err := tool.Compare(context.Background(),
				"cam", "a.cam.h0.X.nc", "b.cam.h0.X.nc", t.TempDir(), tc.opts)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Compare error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if matched != tc.want {
				t.Fatalf("matched = %v, want %v", matched, tc.want)
			}
			if note != tc.note {
				t.Fatalf("note = %v, want %v", note, tc.note)
			}
		})
	}
}

func TestCompareSavesOutput(t *testing.T) {
	tool := stubTool(t, `echo "files seem to be IDENTICAL"`)
	outDir := t.TempDir()

	matched, logPath, _, err := tool.Compare(context.Background(),
		"cam", "CASE.cam.h0.X.nc", "base.cam.h0.X.nc", outDir,
		Options{SaveOutput: true, OutputSuffix: "rest"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !matched {
		t.Fatal("matched = false, want true")
	}
	if filepath.Base(logPath) != "CASE.cam.h0.X.nc.cprnc.out.rest" {
		t.Fatalf("logPath = %s", logPath)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log is empty")
	}
}

func TestCompareSkipsLogWithoutSaveOutput(t *testing.T) {
	tool := stubTool(t, `echo "files seem to be IDENTICAL"`)
	outDir := t.TempDir()

	_, logPath, _, err := tool.Compare(context.Background(),
		"cam", "CASE.cam.h0.X.nc", "base.cam.h0.X.nc", outDir, Options{})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Fatalf("log %s exists, want absent", logPath)
	}
}

func TestOutputPathInstanceDisambiguation(t *testing.T) {
	tool := New("/bin/true", nil)

	cases := []struct {
		name  string
		file1 string
		file2 string
		want  string
	}{
		{
			name:  "one_side_multi",
			file1: "CASE.cam_0001.h0.1850-01-08.nc",
			file2: "base.cam.h0.1850-01-08.nc",
			want:  "CASE.cam_0001.h0.1850-01-08.nc_0001.cprnc.out",
		},
		{
			name:  "both_single",
			file1: "CASE.cam.h0.1850-01-08.nc",
			file2: "base.cam.h0.1850-01-08.nc",
			want:  "CASE.cam.h0.1850-01-08.nc.cprnc.out",
		},
		{
			name:  "matching_instances_need_no_token",
			file1: "CASE.cam_0002.h0.1850-01-08.nc",
			file2: "base.cam_0002.h0.1850-01-08.nc",
			want:  "CASE.cam_0002.h0.1850-01-08.nc.cprnc.out",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tool.outputPath("cam", tc.file1, tc.file2, "/run", "")
			if filepath.Base(got) != tc.want {
				t.Fatalf("outputPath = %s, want base %s", got, tc.want)
			}
		})
	}
}

func TestInstanceTokenRequiresSlotMarker(t *testing.T) {
	if tok := instanceToken("cam", "CASE.cam_0001.r.1850-01-08.nc"); tok != "" {
		t.Fatalf("instanceToken on restart file = %q, want empty", tok)
	}
	if tok := instanceToken("cam", "CASE.cam_0001.h0.1850-01-08.nc"); tok != "_0001" {
		t.Fatalf("instanceToken = %q, want _0001", tok)
	}
}
