// Package cachecmd implements `fbuild cache stat` and `fbuild cache clear`.
package cachecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbuildtools/fbuild/internal/build"
)

func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the timestamp/hash cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStatCommand(), newClearCommand())
	return cmd
}

func newStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print the timestamp cache file's location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, size, exists, err := build.CacheStat()
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (does not exist yet)\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", path, size)
			return nil
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the timestamp cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return build.CacheClear()
		},
	}
}
