package migrate

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/acolita/svn2git/internal/config"
	"github.com/acolita/svn2git/internal/fetch"
	"github.com/acolita/svn2git/internal/ports"
)

const (
	defaultTagsDir     = "tags"
	defaultBranchesDir = "branches"
)

// InteractiveRunner runs git svn commands that may prompt for credentials
// or certificate trust.
type InteractiveRunner interface {
	RunGitSvnInteractive(ctx context.Context, dir string, args []string, password string) (int, error)
}

// Fetcher runs git svn fetch with retries.
type Fetcher interface {
	FetchWithRetry(ctx context.Context, spec ports.CommandSpec) (fetch.Progress, error)
}

// Grabber initializes the git svn repository, fetches the SVN history and
// collects the resulting branches and tags.
type Grabber struct {
	cmd         commands
	interactive InteractiveRunner
	fetcher     Fetcher
	cfg         *config.Config
	url         string
	creds       config.Credentials
	gitConfig   []string
	meta        MetaInfo
}

// NewGrabber creates a grabber for the SVN repository at url.
func NewGrabber(runner ports.CommandRunner, interactive InteractiveRunner, fetcher Fetcher, cfg *config.Config, url string, creds config.Credentials, gitConfig []string) *Grabber {
	return &Grabber{
		cmd:         commands{runner: runner, dir: cfg.WorkingDir},
		interactive: interactive,
		fetcher:     fetcher,
		cfg:         cfg,
		url:         url,
		creds:       creds,
		gitConfig:   gitConfig,
	}
}

// MetaInfo returns the branches and tags collected by the last fetch.
func (g *Grabber) MetaInfo() MetaInfo {
	return g.meta
}

func (g *Grabber) tagDirs() []string {
	if len(g.cfg.Layout.Tags) == 0 {
		return []string{defaultTagsDir}
	}
	return g.cfg.Layout.Tags
}

func (g *Grabber) branchDirs() []string {
	if len(g.cfg.Layout.Branches) == 0 {
		return []string{defaultBranchesDir}
	}
	return g.cfg.Layout.Branches
}

// InitArgs returns the arguments of "git svn" that initialize the repository.
func (g *Grabber) InitArgs() []string {
	layout := g.cfg.Layout
	args := []string{"init", "--prefix=svn/"}

	if g.creds.UserName != "" {
		args = append(args, "--username="+g.creds.UserName)
	}
	if !g.cfg.Metadata {
		args = append(args, "--no-metadata")
	}
	if g.cfg.NoMinimizeURL {
		args = append(args, "--no-minimize-url")
	}

	if layout.RootIsTrunk {
		args = append(args, "--trunk=/")
	} else {
		if !layout.NoTrunk && layout.Trunk != "" {
			args = append(args, "--trunk="+layout.Trunk)
		}
		if !layout.NoTags {
			for _, t := range g.tagDirs() {
				args = append(args, "--tags="+t)
			}
		}
		if !layout.NoBranches {
			for _, b := range g.branchDirs() {
				args = append(args, "--branches="+b)
			}
		}
	}

	return append(args, g.url)
}

// FetchSpec returns the git svn fetch command of the configured revision range.
func (g *Grabber) FetchSpec() ports.CommandSpec {
	args := []string{"svn", "fetch"}
	if r := g.cfg.Revision; r != "" {
		start, end, _ := strings.Cut(r, ":")
		if end == "" {
			end = "HEAD"
		}
		args = append(args, "-r", start+":"+end)
	}

	var tags, branches []string
	if !g.cfg.Layout.NoTags {
		tags = g.tagDirs()
	}
	if !g.cfg.Layout.NoBranches {
		branches = g.branchDirs()
	}
	if re := IgnorePathRegex(g.cfg.Layout, g.cfg.Exclude, tags, branches); re != "" {
		args = append(args, "--ignore-paths="+re)
	}

	return g.cmd.spec("git", args...)
}

// Clone initializes the repository, fetches the whole history and collects
// the branches.
func (g *Grabber) Clone(ctx context.Context) error {
	args := g.InitArgs()
	code, err := g.interactive.RunGitSvnInteractive(ctx, g.cmd.dir, args, g.creds.Password)
	if err != nil {
		return err
	}
	if code != 0 {
		return commandFailed(g.cmd.spec("git", append([]string{"svn"}, args...)...), code)
	}

	if g.cfg.Authors != "" {
		if err := g.cmd.must(ctx, "git", gitConfigArgs(g.gitConfig, "svn.authorsfile", g.cfg.Authors)...); err != nil {
			return err
		}
	}

	if _, err := g.fetcher.FetchWithRetry(ctx, g.FetchSpec()); err != nil {
		return err
	}

	return g.FetchBranches(ctx)
}

// FetchBranches lists the local and remote branches of the repository.
// Tags are the remote branches below svn/tags/.
func (g *Grabber) FetchBranches(ctx context.Context) error {
	local, err := g.branchList(ctx, "-l")
	if err != nil {
		return err
	}
	remote, err := g.branchList(ctx, "-r")
	if err != nil {
		return err
	}

	g.meta = MetaInfo{
		LocalBranches:  local,
		RemoteBranches: remote,
		Tags:           tagsOf(remote),
	}
	slog.Debug("branches found",
		slog.Int("local", len(local)),
		slog.Int("remote", len(remote)),
		slog.Int("tags", len(g.meta.Tags)),
	)
	return nil
}

// FetchRebaseBranches narrows the branches to the configured rebase branch.
// Exactly one local branch must match, and one or two remote branches: the
// SVN branch and, once pushed, its counterpart on the git remote.
func (g *Grabber) FetchRebaseBranches(ctx context.Context) error {
	if err := g.FetchBranches(ctx); err != nil {
		return err
	}

	name := g.cfg.RebaseBranch
	var local, remote []string
	for _, b := range g.meta.LocalBranches {
		if b == name {
			local = append(local, b)
		}
	}
	for _, b := range g.meta.RemoteBranches {
		if b == name || strings.HasSuffix(b, "/"+name) {
			remote = append(remote, b)
		}
	}

	switch {
	case len(local) == 0:
		return errorf("no local branch named %q found", name)
	case len(local) > 1:
		return errorf("too many matching local branches for %q: %s", name, strings.Join(local, ", "))
	case len(remote) > 2:
		return errorf("too many matching remote branches for %q: %s", name, strings.Join(remote, ", "))
	case len(remote) == 0:
		return errorf("no remote branch named %q found", name)
	}

	slog.Info("rebasing branch",
		slog.String("local", local[0]),
		slog.String("remote", strings.Join(remote, ",")),
	)
	g.meta = MetaInfo{LocalBranches: local, RemoteBranches: remote}
	return nil
}

func (g *Grabber) branchList(ctx context.Context, flag string) ([]string, error) {
	stdout, _, _, err := g.cmd.output(ctx, g.cmd.spec("git", "branch", flag, "--no-color"))
	if err != nil {
		return nil, err
	}
	return parseBranchList(stdout), nil
}

func hasBranch(branches []string, name string) bool {
	return slices.Contains(branches, name)
}
