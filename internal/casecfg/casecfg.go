// Package casecfg loads the run-context description for one model case: the
// identifiers, directories, component list, and tool paths every comparison
// and baseline operation reads. The case file is YAML with environment
// overrides for the fields that vary by machine.
package casecfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CouplerTag is the fixed coupler component appended to every component walk.
const CouplerTag = "cpl"

// Case is the read-only run context for one model case.
type Case struct {
	// Name is the full case name, e.g. SMS_D_Ln9.f19_g16.A.mach_gnu.20260101.
	Name string `yaml:"name"`
	// BaseID is the case name without the testid, used to extract test
	// options such as the B (no-baseline) flag.
	BaseID string `yaml:"base_id"`
	// TestKind is the test class, e.g. SMS, ERS, PFS.
	TestKind string `yaml:"test_kind"`

	RunDir   string `yaml:"run_dir"`
	CaseRoot string `yaml:"case_root"`
	RefCase  string `yaml:"ref_case"`

	BaselineRoot string `yaml:"baseline_root"`
	// BaselineCompareName and BaselineGenerateName are the case-specific
	// subdirectories of BaselineRoot used by compare and generate.
	BaselineCompareName  string `yaml:"baseline_compare_name"`
	BaselineGenerateName string `yaml:"baseline_generate_name"`

	// Components are the active model component tags, without the coupler.
	Components []string `yaml:"components"`

	// CprncPath is the external bit-for-bit comparator executable.
	CprncPath string `yaml:"cprnc_path"`

	// CouplingInterface selects the coupler log name: "nuopc" uses med,
	// everything else cpl.
	CouplingInterface string `yaml:"coupling_interface"`
	// ModelFlavor gates flavor-specific behavior: "e3sm" keeps a bless log,
	// "cesm" mirrors the test status file into baselines.
	ModelFlavor string `yaml:"model_flavor"`
	// RepoRoot is the source checkout whose HEAD commit is recorded in the
	// bless log.
	RepoRoot string `yaml:"repo_root"`

	// CompareExemptKinds are test kinds allowed to produce zero comparisons.
	CompareExemptKinds []string `yaml:"compare_exempt_kinds"`
	// GenerateExemptKinds are test kinds allowed to generate zero baselines.
	GenerateExemptKinds []string `yaml:"generate_exempt_kinds"`

	// ResultsDB is the optional sqlite ledger of batch outcomes.
	ResultsDB string `yaml:"results_db"`
}

// Default returns a Case with the flavor-independent defaults filled in.
func Default() *Case {
	return &Case{
		TestKind:            "SMS",
		CouplingInterface:   "mct",
		ModelFlavor:         "e3sm",
		CompareExemptKinds:  []string{"PFS"},
		GenerateExemptKinds: []string{"PFS", "TSC"},
	}
}

// Load reads a case file, applying defaults and environment overrides.
func Load(path string) (*Case, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse case file %s: %w", path, err)
	}

	c.applyEnvOverrides()
	return c, nil
}

// applyEnvOverrides applies machine-level environment overrides.
func (c *Case) applyEnvOverrides() {
	if exe := os.Getenv("HISTCOMP_CPRNC"); exe != "" {
		c.CprncPath = exe
	}
	if root := os.Getenv("HISTCOMP_BASELINE_ROOT"); root != "" {
		c.BaselineRoot = root
	}
}

// Validate checks the fields every operation depends on.
func (c *Case) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("case name not set")
	}
	if c.RunDir == "" {
		return fmt.Errorf("run_dir not set for case %s", c.Name)
	}
	if len(c.Components) == 0 {
		return fmt.Errorf("no components configured for case %s", c.Name)
	}
	return nil
}

// ModelComponents returns the component tags to walk, coupler last, matching
// the order operations report in.
func (c *Case) ModelComponents() []string {
	out := make([]string, 0, len(c.Components)+1)
	out = append(out, c.Components...)
	out = append(out, CouplerTag)
	return out
}

// CouplerName returns the coupler component name used for log files, which
// depends on the coupling interface.
func (c *Case) CouplerName() string {
	if c.CouplingInterface == "nuopc" {
		return "med"
	}
	return CouplerTag
}

// BaselineCompareDir is the default directory CompareBaseline checks.
func (c *Case) BaselineCompareDir() string {
	return filepath.Join(c.BaselineRoot, c.BaselineCompareName)
}

// BaselineGenerateDir is the default directory GenerateBaseline writes.
func (c *Case) BaselineGenerateDir() string {
	return filepath.Join(c.BaselineRoot, c.BaselineGenerateName)
}

// TestOpts extracts the option tokens from the base id. A base id like
// "ERS_D_Ln9.f19_g16.A.mach_gnu" yields ["D", "Ln9"].
func (c *Case) TestOpts() []string {
	base := c.BaseID
	if base == "" {
		base = c.Name
	}
	first, _, _ := strings.Cut(base, ".")
	parts := strings.Split(first, "_")
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

// HasTestOpt reports whether the case carries the given test option.
func (c *Case) HasTestOpt(opt string) bool {
	for _, o := range c.TestOpts() {
		if o == opt {
			return true
		}
	}
	return false
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// CompareExempt reports whether this test kind may legitimately produce no
// comparisons (sentinel classes that output no history files by design).
func (c *Case) CompareExempt() bool {
	return contains(c.CompareExemptKinds, c.TestKind)
}

// GenerateExempt reports whether this test kind (or the B test option) may
// legitimately generate no baseline files.
func (c *Case) GenerateExempt() bool {
	return contains(c.GenerateExemptKinds, c.TestKind) || c.HasTestOpt("B")
}
