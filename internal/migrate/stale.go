package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/acolita/svn2git/internal/config"
	"github.com/acolita/svn2git/internal/ports"
)

// StaleBranchDeleter removes git branches whose SVN branch no longer exists
// at the head revision.
type StaleBranchDeleter struct {
	cmd   commands
	fs    ports.FileSystem
	cfg   *config.Config
	url   string
	creds config.Credentials
	meta  MetaInfo
}

// NewStaleBranchDeleter creates a deleter for the branches in meta.
func NewStaleBranchDeleter(runner ports.CommandRunner, fsys ports.FileSystem, cfg *config.Config, url string, creds config.Credentials, meta MetaInfo) *StaleBranchDeleter {
	return &StaleBranchDeleter{
		cmd:   commands{runner: runner, dir: cfg.WorkingDir},
		fs:    fsys,
		cfg:   cfg,
		url:   url,
		creds: creds,
		meta:  meta,
	}
}

// QueryHeadSvnBranches lists the branches present in every configured SVN
// branches directory at HEAD.
func (d *StaleBranchDeleter) QueryHeadSvnBranches(ctx context.Context) ([]string, error) {
	if d.cfg.Layout.NoBranches {
		slog.Debug("branches disabled, skipping SVN branch query")
		return nil, nil
	}

	code, err := d.cmd.run(ctx, "svn", "--version", "--quiet")
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, errorf("svn is not usable (exit code %d); it is required to find stale branches", code)
	}

	dirs := d.cfg.Layout.Branches
	if len(dirs) == 0 {
		dirs = []string{defaultBranchesDir}
	}

	var branches []string
	for _, dir := range dirs {
		args := []string{"ls", "--non-interactive"}
		if d.creds.UserName != "" {
			args = append(args, "--username", d.creds.UserName)
		}
		args = append(args, strings.TrimRight(d.url, "/")+"/"+dir)

		spec := d.cmd.spec("svn", args...)
		code, err := d.cmd.runner.Run(ctx, spec, ports.OutputSink{
			Stdout: func(line string) {
				if name := strings.TrimRight(strings.TrimSpace(line), "/"); name != "" {
					branches = append(branches, name)
				}
			},
		})
		if err != nil {
			return nil, err
		}
		if code != 0 {
			return nil, errorf("could not query SVN branches at %q", dir)
		}
	}

	slog.Debug("SVN branches at HEAD", slog.Int("count", len(branches)), slog.String("branches", strings.Join(branches, ",")))
	return branches, nil
}

// GitBranchName converts an SVN branch name the way git svn does: spaces
// become %20 and a leading dot becomes %2E.
func GitBranchName(svnBranch string) string {
	name := strings.ReplaceAll(svnBranch, " ", "%20")
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

// BranchesToPurge returns the local branches that have no SVN branch left.
// master and branches matching a protect pattern are never returned.
func (d *StaleBranchDeleter) BranchesToPurge(svnBranches []string) []string {
	existing := make(map[string]bool, len(svnBranches))
	for _, b := range svnBranches {
		existing[GitBranchName(b)] = true
	}

	var purge []string
	for _, local := range d.meta.LocalBranches {
		if local == "master" || existing[local] || d.protected(local) {
			continue
		}
		purge = append(purge, local)
	}
	return purge
}

func (d *StaleBranchDeleter) protected(branch string) bool {
	for _, pattern := range d.cfg.StaleBranches.Protect {
		ok, err := doublestar.Match(pattern, branch)
		if err != nil {
			slog.Warn("invalid protect pattern", slog.String("pattern", pattern), slog.String("error", err.Error()))
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// PurgeGitBranches deletes each branch locally together with its git svn
// remote ref and metadata. Failures are logged and the next branch is tried.
// It returns the branches that were removed.
func (d *StaleBranchDeleter) PurgeGitBranches(ctx context.Context, branches []string) ([]string, error) {
	var purged []string
	for _, branch := range branches {
		if err := d.cmd.tolerate(ctx, "git", "branch", "-D", branch); err != nil {
			return purged, err
		}

		remote := "svn/" + branch
		code, err := d.cmd.run(ctx, "git", "branch", "-d", "-r", remote)
		if err != nil {
			return purged, err
		}
		if code != 0 {
			slog.Warn("unable to delete remote branch",
				slog.String("branch", remote),
				slog.Int("exit_code", code),
			)
			continue
		}

		meta := filepath.Join(d.cfg.GitDir(), "svn", "refs", "remotes", "svn", branch)
		if err := d.fs.RemoveAll(meta); err != nil {
			slog.Warn("unable to delete git svn metadata",
				slog.String("path", meta),
				slog.String("error", err.Error()),
			)
		}
		purged = append(purged, branch)
	}

	if len(purged) > 0 {
		slog.Info("stale branches purged", slog.String("branches", fmt.Sprint(purged)))
	}
	return purged, nil
}
