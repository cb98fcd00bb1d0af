// Command afdstatconv converts statistics stores between schema layouts.
// It upgrades files written by older releases to the current layout,
// truncates live stores down to the archive layout, and prints layout
// information.
//
// The sampler must not be running against a file being rewritten; the
// tool takes the same exclusive lock the sampler holds and refuses to
// proceed when the store is in use.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/afdtools/afdstats/stat/migrate"
)

func main() {
	root := &cobra.Command{
		Use:           "afdstatconv",
		Short:         "convert AFD statistics stores between layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(convertCommand(), truncateCommand(), infoCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "afdstatconv: %v\n", err)
		os.Exit(1)
	}
}

func convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file> ...",
		Short: "upgrade stores to the current layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				converted, err := migrate.Convert(path)
				if err != nil {
					return err
				}
				if converted {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: converted\n", path)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: already current\n", path)
				}
			}
			return nil
		},
	}
}

func truncateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "truncate <file> ...",
		Short: "reduce stores to the archive layout, keeping day granularity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := migrate.Truncate(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: truncated\n", path)
			}
			return nil
		},
	}
}

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file> ...",
		Short: "print layout information for stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				info, err := migrate.Inspect(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s: %s store, %s layout, version %d, %d rows of %d bytes, %s\n",
					info.Path, info.Kind, info.Layout, info.Version,
					info.Rows, info.Stride, humanize.IBytes(uint64(info.Size)))
			}
			return nil
		},
	}
}
