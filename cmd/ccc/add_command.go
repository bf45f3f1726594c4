package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/platforms"
	"charmcraftcache/internal/tracking"
)

// launchBrowser opens url with the desktop's default handler.
var launchBrowser = func(ctx context.Context, target string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	return exec.CommandContext(ctx, opener, target).Start()
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Request pre-built wheels for the charm in the current directory",
		Long: "Record the charm in the local tracking list and print the hub issue URL " +
			"that adds its branch to the pre-built cache.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			logger := logging.WithContext(runCtx, s.logger)

			id, ref, err := s.addTarget(runCtx)
			if err != nil {
				return err
			}
			declared := declaredPlatforms(s.charmDir, logger)

			list, err := tracking.Load(s.cfg.Paths.TrackingFile)
			if err != nil {
				return err
			}
			if list.Add(id, ref, declared) {
				if err := list.Save(); err != nil {
					return err
				}
				logger.Info("charm added to tracking list",
					logging.String("charm", id.String()),
					logging.String("tracking_file", list.Path()),
				)
			}

			issueURL, err := addIssueURL(s.cfg.Hub.IssueURL, id, ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "To add your charm to the pre-built cache, open an issue here:\n\n%s\n\n", issueURL)
			fmt.Fprintln(out, "After the issue is opened it is processed automatically; wheels are usually published within an hour.")

			if shouldLaunchBrowser(out) {
				if err := launchBrowser(runCtx, issueURL); err != nil {
					logger.Debug("browser launch failed", logging.Error(err))
				}
			}
			return nil
		},
	}
}

// addTarget prefers the repository and branch tracked by HEAD's upstream,
// then the configured or detected identity without a ref.
func (s *session) addTarget(ctx context.Context) (charm.Identity, string, error) {
	if s.cfg.Charm.Repository == "" {
		if repo, branch, ok := s.detector.Upstream(ctx); ok {
			relPath, err := s.detector.RelativePath(ctx)
			if err != nil {
				return charm.Identity{}, "", err
			}
			id, err := charm.NewIdentity(repo, relPath)
			if err != nil {
				return charm.Identity{}, "", err
			}
			return id, branch, nil
		}
	}
	identities, err := s.identities()
	if err != nil {
		return charm.Identity{}, "", err
	}
	candidates, err := identities.Candidates(ctx)
	if err != nil {
		return charm.Identity{}, "", err
	}
	return candidates[0], "", nil
}

func declaredPlatforms(charmDir string, logger *slog.Logger) []string {
	doc, err := platforms.ParseFile(filepath.Join(charmDir, "charmcraft.yaml"))
	if err != nil {
		logging.WarnWithContext(logger, "unable to read platforms from charmcraft.yaml", "add_platforms",
			logging.Error(err),
			logging.Impact("tracking entry is recorded without platforms"),
		)
		return nil
	}
	names := make([]string, 0, len(doc.Platforms))
	for _, p := range doc.Platforms {
		names = append(names, p.String())
	}
	return names
}

func addIssueURL(base string, id charm.Identity, ref string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse hub issue url: %w", err)
	}
	q := u.Query()
	q.Set("template", "add_charm_branch.yaml")
	q.Set("labels", "add-charm")
	q.Set("title", "Add charm branch")
	q.Set("repo", id.Repository)
	if ref != "" {
		q.Set("ref", ref)
	}
	q.Set("charm-directory", id.Path)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func shouldLaunchBrowser(out any) bool {
	if os.Getenv("CI") == "true" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
