package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/logging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var cacheOnly bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete this charm's shared cache and run charmcraft clean",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			logger := logging.WithContext(runCtx, s.logger)

			identities, err := s.identities()
			if err != nil {
				return err
			}
			candidates, err := identities.Candidates(runCtx)
			if err != nil {
				return err
			}
			for _, id := range candidates {
				if err := s.cleanCache(runCtx, cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			if cacheOnly {
				return nil
			}
			code, err := s.charmcraft.Clean(runCtx)
			if err != nil {
				return err
			}
			if code != 0 {
				logger.Error("charmcraft clean failed", logging.Int("exit_code", code))
				return &exitStatus{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cacheOnly, "cache-only", false, "Only delete the shared cache; skip charmcraft clean")
	return cmd
}

func (s *session) cleanCache(ctx context.Context, out io.Writer, id charm.Identity) error {
	unlock, err := s.materializer.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()
	if err := s.materializer.Clean(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %s\n", s.materializer.CacheDir(id))
	return nil
}
