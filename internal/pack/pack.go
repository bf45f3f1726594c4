package pack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"charmcraftcache/internal/charm"
	"charmcraftcache/internal/hub"
	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/materialize"
	"charmcraftcache/internal/platforms"
	"charmcraftcache/internal/resolver"
	"charmcraftcache/internal/services"
)

// IdentitySource yields the charm's candidate identities in preference order.
type IdentitySource interface {
	Candidates(ctx context.Context) ([]charm.Identity, error)
}

// RegistryLoader loads the hub's ordered build records.
type RegistryLoader interface {
	Load(ctx context.Context) ([]hub.BuildRecord, error)
}

// CacheResolver merges the listings of an identity's build records.
type CacheResolver interface {
	Resolve(ctx context.Context, id charm.Identity, records []hub.BuildRecord) (resolver.Result, error)
}

// CacheMaterializer places wheels in an identity's shared cache directory.
type CacheMaterializer interface {
	CacheDir(id charm.Identity) string
	Lock(ctx context.Context, id charm.Identity) (func() error, error)
	Materialize(ctx context.Context, id charm.Identity, artifacts []hub.Artifact) (materialize.Summary, error)
}

// Packer runs charmcraft.
type Packer interface {
	CheckVersion(ctx context.Context) error
	Pack(ctx context.Context, platform, cacheDir string, extra []string) (int, error)
}

// FixedIdentity is an IdentitySource for an explicitly configured charm.
type FixedIdentity charm.Identity

// Candidates returns the configured identity.
func (f FixedIdentity) Candidates(context.Context) ([]charm.Identity, error) {
	return []charm.Identity{charm.Identity(f)}, nil
}

// Options wires an Orchestrator. Every collaborator is required.
type Options struct {
	// CharmDir holds charmcraft.yaml.
	CharmDir string
	// Requested are --platform values; empty selects every platform for HostArch.
	Requested []platforms.Platform
	HostArch  string
	// ExtraArgs are passed through to charmcraft pack.
	ExtraArgs []string

	Identities   IdentitySource
	Registry     RegistryLoader
	Resolver     CacheResolver
	Materializer CacheMaterializer
	Charmcraft   Packer
	Logger       *slog.Logger

	// OnTransition observes every state change.
	OnTransition func(State)
}

// Report describes a pack run.
type Report struct {
	Platforms []platforms.Platform
	Identity  charm.Identity
	// Matched reports whether the hub registry knows Identity.
	Matched    bool
	Resolution resolver.Result
	Summary    materialize.Summary
	CacheDir   string
	// FromSource is set when no pre-built wheels apply.
	FromSource bool
	// ExitCode is charmcraft's first non-zero exit code, or 0.
	ExitCode int
	// Failed names the platform whose pack exited non-zero.
	Failed string
}

// Orchestrator drives one ccc pack invocation through its states.
type Orchestrator struct {
	opts   Options
	state  State
	logger *slog.Logger
}

// New validates opts and returns an orchestrator in StateInit.
func New(opts Options) (*Orchestrator, error) {
	var missing []string
	if opts.Identities == nil {
		missing = append(missing, "identities")
	}
	if opts.Registry == nil {
		missing = append(missing, "registry")
	}
	if opts.Resolver == nil {
		missing = append(missing, "resolver")
	}
	if opts.Materializer == nil {
		missing = append(missing, "materializer")
	}
	if opts.Charmcraft == nil {
		missing = append(missing, "charmcraft")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pack: missing collaborators: %s", strings.Join(missing, ", "))
	}
	if opts.HostArch == "" {
		opts.HostArch = platforms.HostArchitecture()
	}
	if opts.CharmDir == "" {
		opts.CharmDir = "."
	}
	return &Orchestrator{
		opts:   opts,
		state:  StateInit,
		logger: logging.NewComponentLogger(opts.Logger, "pack"),
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Plan runs the stages up to StateCacheResolved without touching the cache
// directory or running charmcraft.
func (o *Orchestrator) Plan(ctx context.Context) (Report, error) {
	var report Report
	ctx, err := o.resolve(ctx, &report)
	if err != nil {
		return report, o.fail(ctx, err)
	}
	return report, nil
}

// Run executes the full pack flow. A stage error moves to StateFailed and
// is returned; charmcraft never runs after a failed stage. A non-zero
// charmcraft exit is reported in Report.ExitCode with a nil error.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report
	ctx, err := o.resolve(ctx, &report)
	if err != nil {
		return report, o.fail(ctx, err)
	}

	unlock, err := o.opts.Materializer.Lock(ctx, report.Identity)
	if err != nil {
		return report, o.fail(ctx, services.Wrap(services.ErrArtifactFetchFailed, string(StateMaterialized), "lock cache", "", err))
	}
	defer func() {
		if err := unlock(); err != nil {
			o.logger.Debug("cache unlock failed", logging.Error(err))
		}
	}()

	// An empty resolution still runs so wheels left from an earlier hub
	// release are removed before charmcraft reads the directory.
	report.CacheDir = o.opts.Materializer.CacheDir(report.Identity)
	summary, err := o.opts.Materializer.Materialize(ctx, report.Identity, report.Resolution.Artifacts())
	if err != nil {
		return report, o.fail(ctx, err)
	}
	report.Summary = summary
	ctx = o.transition(ctx, StateMaterialized)

	ctx = o.transition(ctx, StatePacking)
	for _, platform := range report.Platforms {
		platformCtx := services.WithPlatform(ctx, platform.String())
		logging.WithContext(platformCtx, o.logger).Info("packing platform", logging.String("label", platform.Label()))
		code, err := o.opts.Charmcraft.Pack(platformCtx, platform.String(), report.CacheDir, o.opts.ExtraArgs)
		if err != nil {
			return report, o.fail(ctx, err)
		}
		if code != 0 {
			report.ExitCode = code
			report.Failed = platform.String()
			o.transition(ctx, StateFailed)
			return report, nil
		}
	}
	o.transition(ctx, StateDone)
	return report, nil
}

// resolve runs StateConfigParsed through StateCacheResolved.
func (o *Orchestrator) resolve(ctx context.Context, report *Report) (context.Context, error) {
	logger := logging.WithContext(ctx, o.logger)
	if len(o.opts.ExtraArgs) > 0 {
		logger.Info("passing unrecognized arguments to charmcraft pack",
			logging.String("args", strings.Join(o.opts.ExtraArgs, " ")))
	}

	doc, err := platforms.ParseFile(filepath.Join(o.opts.CharmDir, "charmcraft.yaml"))
	if err != nil {
		return ctx, err
	}
	selected, err := platforms.Select(doc.Platforms, o.opts.Requested, o.opts.HostArch)
	if err != nil {
		return ctx, services.Wrap(services.ErrConfiguration, string(StateConfigParsed), "select platforms", "", err)
	}
	if len(selected) == 0 {
		return ctx, services.Wrap(services.ErrConfiguration, string(StateConfigParsed), "select platforms",
			fmt.Sprintf("no platform in charmcraft.yaml builds on this machine's architecture (%s)", o.opts.HostArch), nil)
	}
	report.Platforms = selected
	logger.Debug("platforms selected",
		logging.String("platforms", joinPlatforms(selected)),
		logging.Bool("strict_dependencies", doc.StrictDependencies),
	)
	if err := o.opts.Charmcraft.CheckVersion(ctx); err != nil {
		return ctx, err
	}
	ctx = o.transition(ctx, StateConfigParsed)

	candidates, err := o.opts.Identities.Candidates(ctx)
	if err != nil {
		return ctx, services.Wrap(services.ErrConfiguration, string(StateRegistryLoaded), "detect charm identity", "", err)
	}
	records, err := o.opts.Registry.Load(ctx)
	if err != nil {
		return ctx, err
	}
	ctx = o.transition(ctx, StateRegistryLoaded)

	id, matched := resolver.SelectIdentity(candidates, records)
	report.Identity = id
	report.Matched = matched
	ctx = services.WithCharm(ctx, id.Key())
	logger = logging.WithContext(ctx, o.logger)
	logger.Info("charm identity detected", logging.String("repository", id.Repository), logging.String("path", id.Path))

	result, err := o.opts.Resolver.Resolve(ctx, id, records)
	switch {
	case errors.Is(err, services.ErrNoCacheFound):
		report.FromSource = true
		logging.WarnWithContext(logger, "no pre-built wheels for this charm", "cache_miss",
			logging.Error(err),
			logging.Hint(services.Hint(err)),
			logging.Impact("charmcraft builds every wheel from source"),
		)
	case err != nil:
		return ctx, err
	case len(result.Set) == 0:
		report.FromSource = true
		logging.WarnWithContext(logger, "hub releases for this charm list no wheels", "cache_miss",
			logging.Int("skipped_records", len(result.Skipped)),
			logging.Impact("charmcraft builds every wheel from source"),
		)
	}
	report.Resolution = result
	return o.transition(ctx, StateCacheResolved), nil
}

func (o *Orchestrator) transition(ctx context.Context, next State) context.Context {
	o.state = next
	ctx = services.WithStage(ctx, string(next))
	logging.WithContext(ctx, o.logger).Debug("state transition",
		logging.String(logging.FieldEventType, "stage_transition"))
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(next)
	}
	return ctx
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	from := o.state
	o.transition(ctx, StateFailed)
	logging.WithContext(ctx, o.logger).Debug("pack failed",
		logging.String("from_stage", string(from)),
		logging.Error(err),
	)
	return err
}

func joinPlatforms(list []platforms.Platform) string {
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}
