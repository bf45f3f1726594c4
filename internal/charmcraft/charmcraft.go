package charmcraft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/mod/semver"

	"charmcraftcache/internal/logging"
	"charmcraftcache/internal/services"
)

// SharedCacheEnv names the environment variable charmcraft reads its shared
// cache directory from.
const SharedCacheEnv = "CRAFT_SHARED_CACHE"

// Executor abstracts command execution for testability.
type Executor interface {
	// Output runs binary and returns its stdout.
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
	// Run runs binary attached to the terminal with env added to the
	// inherited environment and returns its exit code. err is set only when
	// the process could not be run.
	Run(ctx context.Context, binary string, args, env []string) (int, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithVerbose appends -v to charmcraft invocations.
func WithVerbose(verbose bool) Option {
	return func(c *Client) {
		c.verbose = verbose
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client wraps charmcraft CLI interactions.
type Client struct {
	binary     string
	minVersion string
	verbose    bool
	exec       Executor
	logger     *slog.Logger
}

// New constructs a charmcraft client. minVersion is a dotted version such as
// "3.3.0"; an empty value disables the version gate.
func New(binary, minVersion string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("charmcraft binary required")
	}
	client := &Client{
		binary:     binary,
		minVersion: strings.TrimPrefix(strings.TrimSpace(minVersion), "v"),
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "charmcraft")
	return client, nil
}

// Version returns the installed charmcraft version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.exec.Output(ctx, c.binary, []string{"version", "--format", "json"})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrExternalTool, "preflight", "charmcraft version",
				fmt.Sprintf("charmcraft not installed. charmcraft >=%s required", c.minVersion), err)
		}
		return "", services.Wrap(services.ErrExternalTool, "preflight", "charmcraft version", "", err)
	}
	var payload struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(out, &payload); err != nil || strings.TrimSpace(payload.Version) == "" {
		return "", services.Wrap(services.ErrExternalTool, "preflight", "charmcraft version",
			fmt.Sprintf("unrecognized output %q", strings.TrimSpace(string(out))), err)
	}
	return strings.TrimSpace(payload.Version), nil
}

// CheckVersion fails unless the installed charmcraft is at least the
// configured minimum.
func (c *Client) CheckVersion(ctx context.Context) error {
	if c.minVersion == "" {
		return nil
	}
	version, err := c.Version(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug("charmcraft detected", logging.String("version", version))
	if semver.Compare(canonical(version), "v"+c.minVersion) < 0 {
		return services.Wrap(services.ErrExternalTool, "preflight", "charmcraft version",
			fmt.Sprintf("charmcraft %s installed. charmcraft >=%s required", version, c.minVersion), nil)
	}
	return nil
}

// Pack runs `charmcraft pack --platform <platform> [extra...]` with the shared
// cache pointed at cacheDir (skipped when empty) and returns charmcraft's
// exit code.
func (c *Client) Pack(ctx context.Context, platform, cacheDir string, extra []string) (int, error) {
	args := append([]string{"pack", "--platform", platform}, extra...)
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return 0, fmt.Errorf("create shared cache: %w", err)
		}
	}
	return c.run(ctx, args, cacheDir)
}

// Clean runs `charmcraft clean` and returns its exit code.
func (c *Client) Clean(ctx context.Context) (int, error) {
	return c.run(ctx, []string{"clean"}, "")
}

func (c *Client) run(ctx context.Context, args []string, cacheDir string) (int, error) {
	if c.verbose {
		args = append(args, "-v")
	}
	var env []string
	if cacheDir != "" {
		env = append(env, SharedCacheEnv+"="+cacheDir)
	}
	c.logger.Debug("running charmcraft",
		logging.String("command", c.binary+" "+strings.Join(args, " ")),
		logging.String("shared_cache_dir", cacheDir),
	)
	code, err := c.exec.Run(ctx, c.binary, args, env)
	if err != nil {
		return code, services.Wrap(services.ErrExternalTool, "pack", "run charmcraft", "", err)
	}
	if code != 0 {
		logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "charmcraft command failed", "charmcraft_failed",
			logging.String("command", args[0]),
			logging.Int("exit_code", code),
			logging.Hint("charmcraft's own output above describes the failure"),
		)
	}
	return code, nil
}

// canonical turns charmcraft's version string (e.g. "3.4.1.post12+g0a1b2c")
// into a semver value by keeping the leading numeric release segments.
func canonical(version string) string {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	end := 0
	for end < len(version) && (version[end] == '.' || (version[end] >= '0' && version[end] <= '9')) {
		end++
	}
	parts := strings.Split(strings.Trim(version[:end], "."), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.Canonical("v" + strings.Join(parts, "."))
}
