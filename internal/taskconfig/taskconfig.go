// Package taskconfig implements component C8, the script bridge: parsing a
// declarative build script into one or more CompileTask values and layering
// overrides on top (spec.md §6's CompileTask option table, §4.8's
// expansion). TOML parsing via github.com/BurntSushi/toml and environment
// override layering via github.com/spf13/viper replace the teacher's
// command-line-interception model, which doesn't fit here: a CompileTask is
// declarative up front, not derived from intercepting a compiler invocation.
package taskconfig

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/fbuildtools/fbuild/internal/dispatch"
)

// CompileTask mirrors spec.md §3/§6's option table field for field.
type CompileTask struct {
	Build             string   `toml:"build" mapstructure:"build"`
	Sources           []string `toml:"files" mapstructure:"files"`
	ObjDir            string   `toml:"objDir" mapstructure:"objDir"`
	Includes          []string `toml:"includes" mapstructure:"includes"`
	Defines           []string `toml:"defines" mapstructure:"defines"`
	CRT               string   `toml:"crt" mapstructure:"crt"`
	PchHeader         string   `toml:"pchHeader" mapstructure:"pchHeader"`
	PchSource         string   `toml:"pchSource" mapstructure:"pchSource"`
	WarnLevel         int      `toml:"warnLevel" mapstructure:"warnLevel"`
	WarningAsError    bool     `toml:"warningAsError" mapstructure:"warningAsError"`
	DisabledWarnings  []int    `toml:"disabledWarnings" mapstructure:"disabledWarnings"`
	ExtraArgs         string   `toml:"extraArgs" mapstructure:"extraArgs"`
	MpSkip            []string `toml:"mpSkip" mapstructure:"mpSkip"`
	Threads           int      `toml:"threads" mapstructure:"threads"`
	DependencyCheck   bool     `toml:"dependencyCheck" mapstructure:"dependencyCheck"`
	Toolchain         string   `toml:"toolchain" mapstructure:"toolchain"`
	ToolchainVersion  string   `toml:"toolchainVersion" mapstructure:"toolchainVersion"`
	Platform          string   `toml:"platform" mapstructure:"platform"`
	ArchiveOutput     string   `toml:"archiveOutput" mapstructure:"archiveOutput"`
}

// document is the on-disk shape: a script can configure multiple tasks
// (e.g. Debug and Release in one file).
type document struct {
	Task []CompileTask `toml:"task"`
}

// Overrides layers explicit CLI flags (highest precedence) on top of a parsed
// CompileTask, after Load has applied the FBUILD_* environment layer, per
// SPEC_FULL.md §6's expansion of the teacher's flag/env precedence idiom.
type Overrides struct {
	Threads         *int
	BuildKind       *string
	DependencyCheck *bool
}

// Load parses scriptPath, returning every [[task]] it declares, each with
// FBUILD_* environment overrides applied via viper (lowest precedence layer
// above the file itself).
func Load(scriptPath string) ([]CompileTask, error) {
	var doc document
	if _, err := toml.DecodeFile(scriptPath, &doc); err != nil {
		return nil, fmt.Errorf("taskconfig: could not parse %s: %w", scriptPath, err)
	}
	if len(doc.Task) == 0 {
		return nil, fmt.Errorf("taskconfig: %s declares no [[task]] blocks", scriptPath)
	}

	v := viper.New()
	v.SetEnvPrefix("FBUILD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	tasks := make([]CompileTask, len(doc.Task))
	for i, t := range doc.Task {
		applyEnvOverrides(&t, v)
		if err := validate(&t); err != nil {
			return nil, err
		}
		tasks[i] = t
	}
	return tasks, nil
}

func applyEnvOverrides(t *CompileTask, v *viper.Viper) {
	if v.IsSet("threads") {
		t.Threads = v.GetInt("threads")
	}
	if v.IsSet("build") {
		t.Build = v.GetString("build")
	}
	if v.IsSet("dependency_check") {
		t.DependencyCheck = v.GetBool("dependency_check")
	}
}

// Apply layers explicit CLI overrides (highest precedence) on top of t.
func (o Overrides) Apply(t *CompileTask) {
	if o.Threads != nil {
		t.Threads = *o.Threads
	}
	if o.BuildKind != nil {
		t.Build = *o.BuildKind
	}
	if o.DependencyCheck != nil {
		t.DependencyCheck = *o.DependencyCheck
	}
}

func validate(t *CompileTask) error {
	if t.Build == "" {
		t.Build = "debug"
	}
	t.Build = strings.ToLower(t.Build)
	if t.Build != "debug" && t.Build != "release" {
		return fmt.Errorf("taskconfig: build must be \"debug\" or \"release\", got %q", t.Build)
	}
	if len(t.Sources) == 0 {
		return fmt.Errorf("taskconfig: task declares no files")
	}
	if t.ObjDir == "" {
		t.ObjDir = t.Build
	}
	if t.Threads < 0 {
		return fmt.Errorf("taskconfig: threads must be >= 0, got %d", t.Threads)
	}
	if t.WarnLevel < 0 || t.WarnLevel > 4 {
		return fmt.Errorf("taskconfig: warnLevel must be 0..4, got %d", t.WarnLevel)
	}
	return nil
}

// CRT converts the string field into dispatch.CRT.
func (t CompileTask) CRTKind() dispatch.CRT {
	if strings.EqualFold(t.CRT, "dynamic") {
		return dispatch.CRTDynamic
	}
	return dispatch.CRTStatic
}
