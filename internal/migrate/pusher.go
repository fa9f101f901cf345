package migrate

import (
	"context"

	"github.com/acolita/svn2git/internal/ports"
)

// Pusher pushes the migrated repository to a git remote.
type Pusher struct {
	cmd    commands
	remote string
}

// NewPusher creates a pusher. An empty remote uses the default push remote.
func NewPusher(runner ports.CommandRunner, dir, remote string) *Pusher {
	return &Pusher{cmd: commands{runner: runner, dir: dir}, remote: remote}
}

func (p *Pusher) args(args ...string) []string {
	if p.remote != "" {
		args = append(args, p.remote)
	}
	return args
}

// PushAll pushes every branch.
func (p *Pusher) PushAll(ctx context.Context) error {
	if err := p.cmd.must(ctx, "git", p.args("push", "--all")...); err != nil {
		return &Error{Msg: "unable to push to git repository", Err: err}
	}
	return nil
}

// PushPrune deletes remote branches that no longer exist locally.
func (p *Pusher) PushPrune(ctx context.Context) error {
	if err := p.cmd.must(ctx, "git", p.args("push", "--prune")...); err != nil {
		return &Error{Msg: "unable to prune the git repository, does your git support 'git push --prune'?", Err: err}
	}
	return nil
}
