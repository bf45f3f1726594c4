package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"charmcraftcache/internal/pack"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var platformFlags []string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the pre-built wheels ccc pack would use, without downloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			orch, err := s.orchestrator(platformFlags, nil)
			if err != nil {
				return err
			}
			report, err := orch.Plan(runCtx)
			if err != nil {
				return err
			}
			renderResolution(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&platformFlags, "platform", nil, "Platform to resolve for (repeatable)")
	return cmd
}

func renderResolution(cmd *cobra.Command, report pack.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Charm: %s\n", report.Identity)
	fmt.Fprintf(out, "Platforms: %s\n", platformList(report.Platforms))
	if report.FromSource {
		if !report.Matched {
			fmt.Fprintln(out, "No pre-built wheels found; charmcraft will build every wheel from source.")
			fmt.Fprintln(out, "Run `ccc add` to request pre-built wheels for this charm.")
		} else {
			fmt.Fprintln(out, "Hub releases for this charm list no wheels; charmcraft will build from source.")
		}
		renderSkipped(cmd, report)
		return
	}

	result := report.Resolution
	rows := make([][]string, 0, len(result.Set))
	for _, artifact := range result.Artifacts() {
		rows = append(rows, []string{
			artifact.Name,
			humanize.IBytes(uint64(artifact.Size)),
			artifact.Record.Ref,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Wheel", "Size", "Ref"}, rows, 1))
	fmt.Fprintf(out, "%d wheels from %d build records, %s total\n",
		len(result.Set), len(result.Matched), humanize.IBytes(uint64(result.TotalSize())))
	renderSkipped(cmd, report)
}

func renderSkipped(cmd *cobra.Command, report pack.Report) {
	for _, skip := range report.Resolution.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped release %s: %v\n", skip.Record.Release, skip.Err)
	}
}
