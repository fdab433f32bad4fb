// Package toolchaincmd implements `fbuild toolchain show`, a thin debugging
// wrapper around component C6's discovery, not a build operation.
package toolchaincmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbuildtools/fbuild/internal/toolchain"
)

func NewToolchainCommand() *cobra.Command {
	var name, version, platform string

	cmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Inspect toolchain discovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved toolchain, platform, and environment prelude",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := toolchain.Config{Name: name, Version: version}
			if platform == "x86" {
				cfg.Platform = toolchain.X86
			}
			tc, err := toolchain.Resolve(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "toolchain: %s\nplatform:  %s\nenvPrelude: %s\n", tc.Name(), tc.Platform(), tc.EnvPrelude())
			return nil
		},
	}
	show.Flags().StringVar(&name, "toolchain", "", "explicit toolchain (msvc|emscripten)")
	show.Flags().StringVar(&version, "toolchain-version", "", "explicit toolchain install root")
	show.Flags().StringVar(&platform, "platform", "", "x86|x64")

	cmd.AddCommand(show)
	return cmd
}
