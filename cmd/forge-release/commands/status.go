package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
)

func (a *app) newStatusCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "Show the state of a release",
		Long:  "Show the state of a release and its steps. Without an id the most recent release is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.journalStore()

			var (
				rel *domain.Release
				err error
			)
			if len(args) == 1 {
				rel, err = store.Load(cmd.Context(), args[0])
			} else {
				var releases []*domain.Release
				releases, err = store.List(cmd.Context())
				if err == nil && len(releases) == 0 {
					err = errors.New(errors.CodeNotFound, "no releases in the journal")
				}
				if err == nil {
					rel = releases[0]
				}
			}
			if err != nil {
				return err
			}

			if output == outputTable {
				fmt.Fprintln(a.stdout, releaseTable(rel))
				return nil
			}
			return encode(a.stdout, output, rel)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func (a *app) newListCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			releases, err := a.journalStore().List(cmd.Context())
			if err != nil {
				return err
			}
			if output != outputTable {
				if releases == nil {
					releases = []*domain.Release{}
				}
				return encode(a.stdout, output, releases)
			}
			if len(releases) == 0 {
				fmt.Fprintln(a.stdout, "no releases")
				return nil
			}
			fmt.Fprintln(a.stdout, listTable(releases))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the forge-release version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(a.stdout, Version)
		},
	}
}
