package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/platforms"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	var platformFlags []string
	var charmcraftArgs []string

	cmd := &cobra.Command{
		Use:   "pack [flags] [charmcraft pack arguments]",
		Short: "Pack the charm in the current directory using pre-built wheels",
		Long: "Resolve the pre-built wheels published for this charm, place them in the " +
			"charm's shared cache and run `charmcraft pack` once per platform. Options " +
			"ccc does not know, and everything after --, are passed to charmcraft unchanged.",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
			flags.AddFlagSet(cmd.Flags())
			flags.AddFlagSet(cmd.InheritedFlags())
			extra, err := splitPackArgs(flags, args)
			if err != nil {
				return err
			}
			charmcraftArgs = extra
			if help, _ := cmd.Flags().GetBool("help"); help {
				return nil
			}
			_, err = ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if help, _ := cmd.Flags().GetBool("help"); help {
				return cmd.Help()
			}
			runCtx, s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.resetOnVersionChange(runCtx); err != nil {
				return err
			}
			orch, err := s.orchestrator(platformFlags, charmcraftArgs)
			if err != nil {
				return err
			}
			report, err := orch.Run(runCtx)
			if err != nil {
				return err
			}
			logger := logging.WithContext(runCtx, s.logger)
			if report.ExitCode != 0 {
				logger.Error("charmcraft pack failed",
					logging.String(logging.FieldPlatform, report.Failed),
					logging.Int("exit_code", report.ExitCode),
				)
				return &exitStatus{code: report.ExitCode}
			}
			logger.Info("packed charm",
				logging.String("charm", report.Identity.String()),
				logging.Int("platforms", len(report.Platforms)),
				logging.Int("wheels_downloaded", report.Summary.Downloaded),
				logging.Int("wheels_reused", report.Summary.Skipped),
				logging.String("downloaded", humanize.IBytes(uint64(report.Summary.Bytes))),
				logging.Bool("from_source", report.FromSource),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&platformFlags, "platform", nil, "Platform to pack, e.g. ubuntu@22.04:amd64 (repeatable)")
	return cmd
}

// splitPackArgs applies the options ccc itself knows to flags and returns every
// other argument, in order, for charmcraft. Arguments after "--" are never
// interpreted.
func splitPackArgs(flags *pflag.FlagSet, args []string) ([]string, error) {
	extra := []string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(extra, args[i+1:]...), nil
		}
		f, value, hasValue := lookupPackFlag(flags, arg)
		if f == nil {
			extra = append(extra, arg)
			continue
		}
		switch {
		case hasValue:
		case f.NoOptDefVal != "":
			value = f.NoOptDefVal
		case i+1 < len(args):
			i++
			value = args[i]
		default:
			return nil, fmt.Errorf("flag needs an argument: %s", arg)
		}
		if err := flags.Set(f.Name, value); err != nil {
			return nil, fmt.Errorf("invalid argument %q for %s: %w", value, arg, err)
		}
	}
	return extra, nil
}

// lookupPackFlag matches --name, --name=value, -x and -xvalue forms.
func lookupPackFlag(flags *pflag.FlagSet, arg string) (*pflag.Flag, string, bool) {
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		name, value, hasValue := strings.Cut(name, "=")
		return flags.Lookup(name), value, hasValue
	}
	if len(arg) < 2 || arg[0] != '-' {
		return nil, "", false
	}
	f := flags.ShorthandLookup(arg[1:2])
	if f == nil {
		return nil, "", false
	}
	if len(arg) == 2 {
		return f, "", false
	}
	if f.NoOptDefVal != "" {
		// Grouped boolean shorthands belong to charmcraft.
		return nil, "", false
	}
	return f, strings.TrimPrefix(arg[2:], "="), true
}

func parsePlatforms(values []string) ([]platforms.Platform, error) {
	out := make([]platforms.Platform, 0, len(values))
	for _, value := range values {
		p, err := platforms.ParsePlatform(value)
		if err != nil {
			return nil, fmt.Errorf("--platform: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
