package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/charmcraft"
	"charmcraftcache/internal/config"
	"charmcraftcache/internal/github"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/materialize"
	"charmcraftcache/internal/pack"
	"charmcraftcache/internal/resolver"
	"charmcraftcache/internal/services"
	"charmcraftcache/internal/store"
)

// maxRetryDelay caps the doubling backoff between download attempts.
const maxRetryDelay = 10 * time.Second

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) isVerbose() bool {
	return c.verbose != nil && *c.verbose
}

func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	}
	if c.isVerbose() {
		opts.Level = "debug"
	}
	return logging.New(opts)
}

// session holds the collaborators one invocation needs.
type session struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	github       *github.Client
	registry     *hub.Registry
	resolver     *resolver.Resolver
	materializer *materialize.Materializer
	charmcraft   *charmcraft.Client
	detector     *charm.Detector
	charmDir     string
}

// openSession wires every collaborator from config. The returned context
// carries a fresh correlation ID.
func (c *commandContext) openSession(cmd *cobra.Command) (context.Context, *session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "config", "logger", "", err)
	}
	ctx := services.WithRequestID(cmd.Context(), uuid.NewString())

	st, err := store.Open(cfg.Paths.StateDB)
	if err != nil {
		return nil, nil, err
	}
	client, err := github.New(cfg.Hub.APIURL,
		github.WithToken(cfg.GitHub.Token),
		github.WithCache(st),
		github.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return nil, nil, services.Wrap(services.ErrConfiguration, "config", "github client", "", err)
	}
	packer, err := charmcraft.New(cfg.CharmcraftBinary(), cfg.Charmcraft.MinVersion,
		charmcraft.WithVerbose(c.isVerbose()),
		charmcraft.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return nil, nil, services.Wrap(services.ErrConfiguration, "config", "charmcraft", "", err)
	}
	charmDir, err := os.Getwd()
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("determine charm directory: %w", err)
	}

	var progress *os.File
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		progress = f
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		github:   client,
		registry: hub.NewRegistry(cfg.Hub.RegistryURL, client, logger),
		resolver: resolver.New(hub.NewAssetIndex(cfg.Hub.Repository, client),
			resolver.WithConcurrency(cfg.Download.Concurrency),
			resolver.WithLogger(logger),
		),
		materializer: materialize.New(cfg.CharmsDir(), client,
			materialize.WithConcurrency(cfg.Download.Concurrency),
			materialize.WithRetry(cfg.Download.RetryAttempts, cfg.RetryDelay(), maxRetryDelay),
			materialize.WithTimeout(cfg.DownloadTimeout()),
			materialize.WithLedger(st),
			materialize.WithLogger(logger),
			materialize.WithProgress(materialize.TerminalWriter(progress)),
		),
		charmcraft: packer,
		detector:   charm.NewDetector(charmDir, cfg.GitBinary(), charm.WithLogger(logger)),
		charmDir:   charmDir,
	}
	return ctx, s, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// identities honours the [charm] override before falling back to git.
func (s *session) identities() (pack.IdentitySource, error) {
	if s.cfg.Charm.Repository == "" {
		return s.detector, nil
	}
	id, err := charm.NewIdentity(s.cfg.Charm.Repository, s.cfg.Charm.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "charm.repository", "", err)
	}
	return pack.FixedIdentity(id), nil
}

func (s *session) orchestrator(requested []string, extra []string) (*pack.Orchestrator, error) {
	platformsRequested, err := parsePlatforms(requested)
	if err != nil {
		return nil, err
	}
	identities, err := s.identities()
	if err != nil {
		return nil, err
	}
	return pack.New(pack.Options{
		CharmDir:     s.charmDir,
		Requested:    platformsRequested,
		ExtraArgs:    extra,
		Identities:   identities,
		Registry:     s.registry,
		Resolver:     s.resolver,
		Materializer: s.materializer,
		Charmcraft:   s.charmcraft,
		Logger:       s.logger,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
