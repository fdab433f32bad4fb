// fbuild is a C/C++ build driver: given a set of source files and build
// settings, it decides which translation units need recompiling, invokes a
// native toolchain to produce object files, and optionally archives them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fbuildtools/fbuild/cmd/fbuild/internal/buildcmd"
	"github.com/fbuildtools/fbuild/cmd/fbuild/internal/cachecmd"
	"github.com/fbuildtools/fbuild/cmd/fbuild/internal/toolchaincmd"
)

func NewFbuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fbuild",
		Short:   "Incremental C/C++ build driver",
		Example: "fbuild build release.toml --threads 8",
	}

	cmd.AddCommand(
		buildcmd.NewBuildCommand(),
		cachecmd.NewCacheCommand(),
		toolchaincmd.NewToolchainCommand(),
	)

	return cmd
}

func main() {
	cmd := NewFbuildCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
