package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"charmcraftcache/internal/platforms"
	"charmcraftcache/internal/tracking"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show charms submitted with ccc add",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			list, err := tracking.Load(cfg.Paths.TrackingFile)
			if err != nil {
				return err
			}
			entries := list.Entries()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No charms added yet; run `ccc add` inside a charm directory")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				ref := entry.Ref
				if ref == "" {
					ref = "-"
				}
				rows = append(rows, []string{
					entry.Repository,
					entry.Path,
					ref,
					strings.Join(entry.Platforms, ", "),
					humanize.Time(entry.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Repository", "Path", "Ref", "Platforms", "Updated"}, rows))
			return nil
		},
	}
}

func platformList(list []platforms.Platform) string {
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.String())
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
