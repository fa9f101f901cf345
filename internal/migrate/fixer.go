package migrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/acolita/svn2git/internal/config"
	"github.com/acolita/svn2git/internal/ports"
)

// Fixer turns the git svn remote refs into ordinary git branches and tags.
type Fixer struct {
	cmd       commands
	fetcher   Fetcher
	cfg       *config.Config
	meta      MetaInfo
	gitConfig []string
}

// NewFixer creates a fixer for the branches and tags in meta.
func NewFixer(runner ports.CommandRunner, fetcher Fetcher, cfg *config.Config, meta MetaInfo, gitConfig []string) *Fixer {
	return &Fixer{
		cmd:       commands{runner: runner, dir: cfg.WorkingDir},
		fetcher:   fetcher,
		cfg:       cfg,
		meta:      meta,
		gitConfig: gitConfig,
	}
}

func (f *Fixer) rebasing() bool {
	return f.cfg.Rebase || f.cfg.RebaseBranch != ""
}

// FixBranches creates a local tracking branch for every SVN branch. When
// rebasing, existing local branches and master are rebased onto their SVN
// branch instead.
func (f *Fixer) FixBranches(ctx context.Context) error {
	var svnBranches []string
	for _, b := range f.meta.RemoteBranches {
		if strings.HasPrefix(b, "svn/") && !hasBranch(f.meta.Tags, b) {
			svnBranches = append(svnBranches, b)
		}
	}

	if f.rebasing() {
		if _, err := f.fetcher.FetchWithRetry(ctx, f.cmd.spec("git", "svn", "fetch")); err != nil {
			return err
		}
	}

	for _, remote := range svnBranches {
		branch := strings.TrimPrefix(remote, "svn/")
		ref := "remotes/svn/" + branch

		if f.rebasing() && (hasBranch(f.meta.LocalBranches, branch) || branch == "trunk") {
			local := branch
			if branch == "trunk" {
				local = "master"
			}
			if err := f.cmd.must(ctx, "git", "checkout", "-f", local); err != nil {
				return err
			}
			if err := f.cmd.must(ctx, "git", "rebase", ref); err != nil {
				return err
			}
			continue
		}

		if branch == "trunk" || hasBranch(f.meta.LocalBranches, branch) {
			continue
		}

		code, err := f.cmd.run(ctx, "git", "branch", "--track", branch, ref)
		if err != nil {
			return err
		}
		if code != 0 {
			// git without tracking support for this ref
			if err := f.cmd.must(ctx, "git", "checkout", "-b", branch, ref); err != nil {
				return err
			}
			continue
		}
		if err := f.cmd.must(ctx, "git", "checkout", branch); err != nil {
			return err
		}
	}
	return nil
}

// FixTags replaces every svn/tags/* remote branch with an annotated tag
// carrying the subject, author and date of the tagged commit. The
// repository user.name and user.email are restored afterwards.
func (f *Fixer) FixTags(ctx context.Context) (err error) {
	if len(f.meta.Tags) == 0 {
		return nil
	}

	saved := map[string]string{}
	for _, key := range []string{"user.name", "user.email"} {
		stdout, _, _, runErr := f.cmd.output(ctx, f.cmd.spec("git", gitConfigArgs(f.gitConfig, "--get", key)...))
		if runErr != nil {
			return runErr
		}
		saved[key] = strings.TrimSpace(stdout)
	}
	defer func() {
		if restoreErr := f.restoreUser(ctx, saved); restoreErr != nil {
			err = multierror.Append(err, restoreErr)
		}
	}()

	for _, tag := range f.meta.Tags {
		if err := f.fixTag(ctx, strings.TrimSpace(tag)); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixer) fixTag(ctx context.Context, tag string) error {
	id := strings.TrimPrefix(tag, tagRefPrefix)

	field := func(format string) (string, error) {
		out, err := f.cmd.mustOutput(ctx, "git", "log", "-1", "--pretty=format:"+format, tag)
		return strings.Trim(out, "'"), err
	}
	subject, err := field("%s")
	if err != nil {
		return err
	}
	date, err := field("%ci")
	if err != nil {
		return err
	}
	author, err := field("%an")
	if err != nil {
		return err
	}
	email, err := field("%ae")
	if err != nil {
		return err
	}

	if err := f.cmd.must(ctx, "git", gitConfigArgs(f.gitConfig, "user.name", author)...); err != nil {
		return err
	}
	if err := f.cmd.must(ctx, "git", gitConfigArgs(f.gitConfig, "user.email", email)...); err != nil {
		return err
	}

	spec := f.cmd.spec("git", "tag", "-a", "-m", subject, id, tag)
	spec.Env = []string{"GIT_COMMITTER_DATE=" + date}
	code, err := f.cmd.runner.Run(ctx, spec, ports.OutputSink{})
	if err != nil {
		return err
	}
	if code != 0 {
		return commandFailed(spec, code)
	}

	slog.Debug("tag created", slog.String("tag", id), slog.String("date", date))
	return f.cmd.must(ctx, "git", "branch", "-d", "-r", tag)
}

func (f *Fixer) restoreUser(ctx context.Context, saved map[string]string) error {
	var result *multierror.Error
	for _, key := range []string{"user.name", "user.email"} {
		var err error
		if saved[key] == "" {
			err = f.cmd.tolerate(ctx, "git", gitConfigArgs(f.gitConfig, "--unset", key)...)
		} else {
			err = f.cmd.must(ctx, "git", gitConfigArgs(f.gitConfig, key, saved[key])...)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// FixTrunk makes master point at the SVN trunk. When rebasing or when the
// repository has no trunk, master is only checked out.
func (f *Fixer) FixTrunk(ctx context.Context) error {
	if hasBranch(f.meta.RemoteBranches, "svn/trunk") && !f.rebasing() {
		if err := f.cmd.must(ctx, "git", "checkout", "svn/trunk"); err != nil {
			return err
		}
		if err := f.cmd.tolerate(ctx, "git", "branch", "-D", "master"); err != nil {
			return err
		}
		return f.cmd.must(ctx, "git", "checkout", "-f", "-b", "master")
	}
	return f.cmd.must(ctx, "git", "checkout", "-f", "master")
}

// OptimizeRepos runs git gc.
func (f *Fixer) OptimizeRepos(ctx context.Context) error {
	return f.cmd.must(ctx, "git", "gc")
}
