package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/acolita/svn2git/internal/config"
	"github.com/acolita/svn2git/internal/expect"
	"github.com/acolita/svn2git/internal/fetch"
	"github.com/acolita/svn2git/internal/ports"
)

// Deps are the collaborators of a migration run.
type Deps struct {
	Runner   ports.CommandRunner
	Starter  ports.ProcessStarter
	Terminal ports.Terminal
	FS       ports.FileSystem
	Clock    ports.Clock
	// Out receives progress messages for the operator.
	Out io.Writer
}

// Migrator runs the migration stages in order: grab, fix, purge stale
// branches, push.
type Migrator struct {
	cfg   *config.Config
	args  []string
	creds config.Credentials
	deps  Deps
	cmd   commands
	url   string
}

// New creates a migrator. args are the positional arguments: the SVN URL
// for a fresh migration, nothing or the URL when rebasing.
func New(cfg *config.Config, args []string, creds config.Credentials, deps Deps) *Migrator {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Migrator{
		cfg:   cfg,
		args:  args,
		creds: creds,
		deps:  deps,
		cmd:   commands{runner: deps.Runner, dir: cfg.WorkingDir},
	}
}

// URL returns the SVN repository URL once Initialize succeeded.
func (m *Migrator) URL() string {
	return m.url
}

// Initialize checks the tools, the arguments and, when rebasing, that the
// working tree is clean.
func (m *Migrator) Initialize(ctx context.Context) error {
	code, err := m.cmd.run(ctx, "git", "svn", "--version")
	if err != nil {
		return err
	}
	if code != 0 {
		return errorf("git svn is not available (exit code %d); install the git-svn package", code)
	}

	if m.cfg.Authors == "" {
		m.cfg.Authors = m.defaultAuthorsFile()
	}

	switch {
	case m.cfg.Rebase:
		if err := m.verifyWorkingTreeIsClean(ctx); err != nil {
			return err
		}
	case m.cfg.RebaseBranch != "":
		if len(m.args) > 1 {
			return errorf("too many arguments")
		}
		if err := m.verifyWorkingTreeIsClean(ctx); err != nil {
			return err
		}
	case len(m.args) == 0:
		return errorf("missing SVN_URL parameter")
	case len(m.args) > 1:
		return errorf("too many arguments")
	}

	if len(m.args) > 0 {
		m.url = m.args[0]
	}
	if m.url == "" && m.cfg.StaleBranches.Purge != config.PurgeNothing {
		return errorf("the SVN URL is required to find stale branches")
	}
	return nil
}

func (m *Migrator) defaultAuthorsFile() string {
	home, err := m.deps.FS.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".svn2git", "authors")
	if _, err := m.deps.FS.Stat(path); err != nil {
		return ""
	}
	slog.Debug("using default authors file", slog.String("path", path))
	return path
}

func (m *Migrator) verifyWorkingTreeIsClean(ctx context.Context) error {
	spec := m.cmd.spec("git", "status", "--porcelain", "--untracked-files=no")
	stdout, stderr, code, err := m.cmd.output(ctx, spec)
	if err != nil {
		return err
	}
	if code != 0 {
		return commandFailed(spec, code)
	}
	if strings.TrimSpace(stdout) != "" || strings.TrimSpace(stderr) != "" {
		return errorf("you have local pending changes; the working tree must be clean in order to continue")
	}
	return nil
}

// Run executes every stage. Cached SVN credentials are hidden during the run
// and restored afterwards, whatever the outcome.
func (m *Migrator) Run(ctx context.Context) error {
	cache, err := NewCredentialCache(m.deps.FS)
	if err != nil {
		slog.Warn("cannot locate the SVN credential cache", slog.String("error", err.Error()))
	} else {
		m.disableCachedCredentials(cache)
		defer m.restoreCachedCredentials(cache)
	}

	if m.cfg.BreakLocks {
		if err := BreakLocks(m.deps.FS, m.cfg.GitDir()); err != nil {
			return &Error{Msg: "could not break git svn index locks", Err: err}
		}
	}

	gitConfig, err := probeGitConfig(ctx, m.cmd)
	if err != nil {
		return err
	}

	engine := fetch.NewEngine(m.deps.Runner, m.deps.Clock, m.fetchOptions())
	driver := expect.NewDriver(m.deps.Starter, m.deps.Terminal)
	grabber := NewGrabber(m.deps.Runner, driver, engine, m.cfg, m.url, m.creds, gitConfig)

	switch {
	case m.cfg.Rebase:
		err = grabber.FetchBranches(ctx)
	case m.cfg.RebaseBranch != "":
		err = grabber.FetchRebaseBranches(ctx)
	default:
		err = grabber.Clone(ctx)
	}
	if err != nil {
		return err
	}

	fixer := NewFixer(m.deps.Runner, engine, m.cfg, grabber.MetaInfo(), gitConfig)
	for _, stage := range []func(context.Context) error{
		fixer.FixBranches,
		fixer.FixTags,
		fixer.FixTrunk,
		fixer.OptimizeRepos,
	} {
		if err := stage(ctx); err != nil {
			return err
		}
	}

	pusher := NewPusher(m.deps.Runner, m.cfg.WorkingDir, m.cfg.Push.Remote)

	if m.cfg.StaleBranches.Purge != config.PurgeNothing {
		if err := m.purgeStaleBranches(ctx, grabber.MetaInfo()); err != nil {
			return err
		}
		if m.cfg.StaleBranches.Purge == config.PurgeLocalAndRemote {
			if err := pusher.PushPrune(ctx); err != nil {
				return err
			}
		}
	}

	if m.cfg.Push.Enabled {
		if err := pusher.PushAll(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) fetchOptions() fetch.Options {
	opts := fetch.Options{
		Attempts:   m.cfg.Fetch.Attempts,
		RetryDelay: m.cfg.Fetch.RetryDelay,
	}
	if m.cfg.Fetch.IgnoreGCErrors {
		opts.Cleanup = NewGCLogCleaner(m.deps.FS, m.cfg.GCLogPath()).Clean
	}
	return opts
}

func (m *Migrator) purgeStaleBranches(ctx context.Context, meta MetaInfo) error {
	deleter := NewStaleBranchDeleter(m.deps.Runner, m.deps.FS, m.cfg, m.url, m.creds, meta)
	svnBranches, err := deleter.QueryHeadSvnBranches(ctx)
	if err != nil {
		return err
	}
	if m.cfg.Layout.NoBranches {
		return nil
	}
	stale := deleter.BranchesToPurge(svnBranches)
	if len(stale) == 0 {
		return nil
	}
	purged, err := deleter.PurgeGitBranches(ctx, stale)
	if err != nil {
		return err
	}
	m.say("Deleted %d stale branch(es): %s", len(purged), strings.Join(purged, ", "))
	return nil
}

func (m *Migrator) disableCachedCredentials(cache *CredentialCache) {
	moved, err := cache.Disable()
	if err != nil {
		m.say("Failed to disable the cached credentials. The cached credentials will be used.")
		slog.Warn("disable cached credentials", slog.String("dir", cache.Dir()), slog.String("error", err.Error()))
		return
	}
	if moved > 0 {
		m.say("Temporarily disabled %d cached SVN credential(s).", moved)
	}
}

func (m *Migrator) restoreCachedCredentials(cache *CredentialCache) {
	restored, err := cache.Restore()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.say("Failed to recover the cached credentials.")
		slog.Warn("restore cached credentials", slog.String("dir", cache.Dir()), slog.String("error", err.Error()))
		return
	}
	if restored > 0 {
		m.say("Recovered %d cached SVN credential(s).", restored)
	}
}

func (m *Migrator) say(format string, args ...any) {
	fmt.Fprintf(m.deps.Out, format+"\n", args...)
}
