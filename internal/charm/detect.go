package charm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"charmcraftcache/internal/logging"
)

// ErrNotGitRepository is returned when the charm directory is not inside a git work tree.
var ErrNotGitRepository = errors.New("not in a git repository")

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, dir, binary string, args []string) (string, error)
}

// CommandError carries the stderr of a failed command.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", strings.Join(e.Args, " "), e.Err, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Option configures the detector.
type Option func(*Detector)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(d *Detector) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Detector discovers a charm's identity from git remotes and charm metadata.
type Detector struct {
	dir    string
	git    string
	exec   Executor
	logger *slog.Logger
}

// NewDetector builds a detector for the charm rooted at dir (the directory
// containing charmcraft.yaml).
func NewDetector(dir, gitBinary string, opts ...Option) *Detector {
	if strings.TrimSpace(gitBinary) == "" {
		gitBinary = "git"
	}
	d := &Detector{
		dir:    dir,
		git:    gitBinary,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "charm")
	return d
}

// RelativePath returns the path from the repository root to the charm directory.
func (d *Detector) RelativePath(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "rev-parse", "--show-prefix")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "not a git repository") {
			return "", ErrNotGitRepository
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("git not installed, unable to detect charm path: %w", err)
		}
		return "", err
	}
	return cleanPath(strings.TrimSpace(out))
}

// Candidates returns every plausible identity for the charm in detection
// order: the origin remote, metadata.yaml source (or charmcraft.yaml
// links.source), then the remaining remotes. Duplicates are dropped.
func (d *Detector) Candidates(ctx context.Context) ([]Identity, error) {
	relPath, err := d.RelativePath(ctx)
	if err != nil {
		return nil, err
	}

	var repos []string
	repo, err := d.remoteRepository(ctx, "origin")
	switch {
	case err != nil && !isNoSuchRemote(err):
		return nil, err
	case err == nil && repo != "":
		d.logger.Debug("repository candidate from remote", logging.String("remote", "origin"), logging.String("repository", repo))
		repos = append(repos, repo)
	case err == nil:
		logging.WarnWithContext(d.logger, "unable to parse GitHub repository from origin remote", "identity_detection",
			logging.Impact("falling back to charm metadata and other remotes"))
	}

	sources, err := metadataSources(d.dir)
	if err != nil {
		return nil, err
	}
	for _, url := range sources {
		if repo, ok := RepositoryFromURL(url); ok {
			d.logger.Debug("repository candidate from charm metadata", logging.String("repository", repo))
			repos = append(repos, repo)
		}
	}

	remotes, err := d.run(ctx, "remote")
	if err != nil {
		return nil, err
	}
	for _, remote := range strings.Fields(remotes) {
		if remote == "origin" {
			continue
		}
		repo, err := d.remoteRepository(ctx, remote)
		if err != nil {
			return nil, err
		}
		if repo != "" {
			d.logger.Debug("repository candidate from remote", logging.String("remote", remote), logging.String("repository", repo))
			repos = append(repos, repo)
		}
	}

	seen := make(map[Identity]struct{}, len(repos))
	out := make([]Identity, 0, len(repos))
	for _, repo := range repos {
		id, err := NewIdentity(repo, relPath)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.New("unable to detect the charm's GitHub repository; set [charm] repository in the config")
	}
	return out, nil
}

// Upstream returns the GitHub repository and remote branch tracked by the
// current branch. ok is false when HEAD is detached or has no upstream.
func (d *Detector) Upstream(ctx context.Context) (repository, branch string, ok bool) {
	local, err := d.run(ctx, "symbolic-ref", "--quiet", "HEAD")
	if err != nil || strings.TrimSpace(local) == "" {
		return "", "", false
	}
	upstream, err := d.run(ctx, "for-each-ref", "--format", "%(upstream:short)", strings.TrimSpace(local))
	if err != nil || strings.TrimSpace(upstream) == "" {
		return "", "", false
	}
	remote, branch, found := strings.Cut(strings.TrimSpace(upstream), "/")
	if !found {
		return "", "", false
	}
	repo, err := d.remoteRepository(ctx, remote)
	if err != nil || repo == "" {
		return "", "", false
	}
	return repo, branch, true
}

func (d *Detector) remoteRepository(ctx context.Context, remote string) (string, error) {
	url, err := d.run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	repo, ok := RepositoryFromURL(url)
	if !ok {
		d.logger.Debug("remote is not a GitHub repository", logging.String("remote", remote), logging.String("url", strings.TrimSpace(url)))
		return "", nil
	}
	return repo, nil
}

func (d *Detector) run(ctx context.Context, args ...string) (string, error) {
	return d.exec.Output(ctx, d.dir, d.git, args)
}

func isNoSuchRemote(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "No such remote")
}

// metadataSources reads source URLs from metadata.yaml, falling back to
// links.source in charmcraft.yaml. Both accept a string or a list.
func metadataSources(dir string) ([]string, error) {
	var metadata struct {
		Source yaml.Node `yaml:"source"`
	}
	if ok, err := readYAML(filepath.Join(dir, "metadata.yaml"), &metadata); err != nil {
		return nil, err
	} else if ok {
		if sources := stringOrList(&metadata.Source); len(sources) > 0 {
			return sources, nil
		}
	}

	var charmcraft struct {
		Links struct {
			Source yaml.Node `yaml:"source"`
		} `yaml:"links"`
	}
	if _, err := readYAML(filepath.Join(dir, "charmcraft.yaml"), &charmcraft); err != nil {
		return nil, err
	}
	return stringOrList(&charmcraft.Links.Source), nil
}

func readYAML(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func stringOrList(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" || node.Tag == "!!null" {
			return nil
		}
		return []string{node.Value}
	case yaml.SequenceNode:
		var out []string
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode && item.Value != "" {
				out = append(out, item.Value)
			}
		}
		return out
	default:
		return nil
	}
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, dir, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: append([]string{binary}, args...), Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}
