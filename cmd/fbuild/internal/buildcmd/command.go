// Package buildcmd implements `fbuild build`, per SPEC_FULL.md §4.8's
// command tree. Subcommand-per-package layout follows the teacher's
// cmd/<bin>/internal/<verb> convention (yanhool-picoclaw
// cmd/picoclaw/internal/cron).
package buildcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbuildtools/fbuild/internal/build"
	"github.com/fbuildtools/fbuild/internal/common"
	"github.com/fbuildtools/fbuild/internal/taskconfig"
	"github.com/fbuildtools/fbuild/internal/toolchain"
)

func NewBuildCommand() *cobra.Command {
	var buildKind string
	var threads int
	var noDependencyCheck bool
	var toolchainName string
	var toolchainVersion string
	var logFile string
	var verbosity int

	cmd := &cobra.Command{
		Use:   "build <script.toml>",
		Short: "Compile the sources declared by a build script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath := args[0]

			logger, err := common.MakeLogger(logFile, int64(verbosity), true, true)
			if err != nil {
				return fmt.Errorf("fbuild: could not initialize logger: %w", err)
			}
			defer logger.Sync()

			tasks, err := taskconfig.Load(scriptPath)
			if err != nil {
				return err
			}

			var overrides taskconfig.Overrides
			if cmd.Flags().Changed("build") {
				overrides.BuildKind = &buildKind
			}
			if cmd.Flags().Changed("threads") {
				overrides.Threads = &threads
			}
			if noDependencyCheck {
				disabled := false
				overrides.DependencyCheck = &disabled
			}

			buildCtx := build.NewContext(logger)

			for _, task := range tasks {
				overrides.Apply(&task)

				tcCfg := toolchain.Config{Name: toolchainName, Version: toolchainVersion}
				if task.Toolchain != "" && toolchainName == "" {
					tcCfg.Name = task.Toolchain
				}
				if task.Platform == "x86" {
					tcCfg.Platform = toolchain.X86
				}

				result, err := buildCtx.RunTask(context.Background(), task, scriptPath, tcCfg, threads)
				if err != nil {
					return err
				}
				if result.ExitCode != 0 {
					return fmt.Errorf("fbuild: build task %q failed", task.Build)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&buildKind, "build", "", "override build kind (debug|release)")
	cmd.Flags().IntVar(&threads, "threads", 0, "override configured thread count")
	cmd.Flags().BoolVar(&noDependencyCheck, "no-dependency-check", false, "rebuild every source unconditionally")
	cmd.Flags().StringVar(&toolchainName, "toolchain", "", "explicit toolchain (msvc|emscripten)")
	cmd.Flags().StringVar(&toolchainVersion, "toolchain-version", "", "explicit toolchain install root")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file path (default: no log output)")
	cmd.Flags().IntVar(&verbosity, "verbosity", 0, "log verbosity (-1..2)")

	return cmd
}
