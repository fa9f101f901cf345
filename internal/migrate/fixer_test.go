package migrate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/acolita/svn2git/internal/fetch"
	"github.com/acolita/svn2git/internal/testing/fakes/fakerunner"
)

func TestFixer_FixBranches(t *testing.T) {
	meta := MetaInfo{
		LocalBranches:  []string{"master", "existing"},
		RemoteBranches: []string{"svn/trunk", "svn/feature", "svn/existing", "svn/tags/v1.0"},
		Tags:           []string{"svn/tags/v1.0"},
	}

	t.Run("tracking branches", func(t *testing.T) {
		runner := okRunner()
		f := NewFixer(runner, nil, testConfig(), meta, gitConfigLocal)
		if err := f.FixBranches(context.Background()); err != nil {
			t.Fatalf("FixBranches() error = %v", err)
		}
		want := []string{
			"git branch --track feature remotes/svn/feature",
			"git checkout feature",
		}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands = %q, want %q", got, want)
		}
	})

	t.Run("tracking unsupported", func(t *testing.T) {
		runner := okRunner()
		runner.On("git branch --track", fakerunner.Result{ExitCode: 128})
		f := NewFixer(runner, nil, testConfig(), meta, gitConfigLocal)
		if err := f.FixBranches(context.Background()); err != nil {
			t.Fatalf("FixBranches() error = %v", err)
		}
		want := []string{
			"git branch --track feature remotes/svn/feature",
			"git checkout -b feature remotes/svn/feature",
		}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands = %q, want %q", got, want)
		}
	})

	t.Run("rebase", func(t *testing.T) {
		cfg := testConfig()
		cfg.Rebase = true
		runner := okRunner()
		f := NewFixer(runner, fetch.NewEngine(runner, nil, fetch.Options{}), cfg, meta, gitConfigLocal)
		if err := f.FixBranches(context.Background()); err != nil {
			t.Fatalf("FixBranches() error = %v", err)
		}
		want := []string{
			"git svn fetch",
			"git checkout -f master",
			"git rebase remotes/svn/trunk",
			"git branch --track feature remotes/svn/feature",
			"git checkout feature",
			"git checkout -f existing",
			"git rebase remotes/svn/existing",
		}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands =\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("rebase conflict", func(t *testing.T) {
		cfg := testConfig()
		cfg.Rebase = true
		runner := okRunner()
		runner.On("git rebase", fakerunner.Result{ExitCode: 1})
		f := NewFixer(runner, fetch.NewEngine(runner, nil, fetch.Options{}), cfg, meta, gitConfigLocal)
		var merr *Error
		if err := f.FixBranches(context.Background()); !errors.As(err, &merr) {
			t.Fatalf("FixBranches() error = %v, want *Error", err)
		}
	})
}

func TestFixer_FixTags(t *testing.T) {
	meta := MetaInfo{
		RemoteBranches: []string{"svn/trunk", "svn/tags/v1.0"},
		Tags:           []string{"svn/tags/v1.0"},
	}

	script := func() *fakerunner.Runner {
		runner := okRunner()
		runner.On("git config --local --get user.name", ok("Alice"))
		runner.On("git config --local --get user.email", fakerunner.Result{ExitCode: 1})
		runner.On("git log -1 --pretty=format:%s", ok("'Release 1.0'"))
		runner.On("git log -1 --pretty=format:%ci", ok("2020-01-02 03:04:05 +0000"))
		runner.On("git log -1 --pretty=format:%an", ok("Bob"))
		runner.On("git log -1 --pretty=format:%ae", ok("bob@example.com"))
		return runner
	}

	t.Run("annotated tag", func(t *testing.T) {
		runner := script()
		f := NewFixer(runner, nil, testConfig(), meta, gitConfigLocal)
		if err := f.FixTags(context.Background()); err != nil {
			t.Fatalf("FixTags() error = %v", err)
		}

		want := []string{
			"git config --local --get user.name",
			"git config --local --get user.email",
			"git log -1 --pretty=format:%s svn/tags/v1.0",
			"git log -1 --pretty=format:%ci svn/tags/v1.0",
			"git log -1 --pretty=format:%an svn/tags/v1.0",
			"git log -1 --pretty=format:%ae svn/tags/v1.0",
			"git config --local user.name Bob",
			"git config --local user.email bob@example.com",
			"git tag -a -m Release 1.0 v1.0 svn/tags/v1.0",
			"git branch -d -r svn/tags/v1.0",
			"git config --local user.name Alice",
			"git config --local --unset user.email",
		}
		if got := runner.Lines(); !reflect.DeepEqual(got, want) {
			t.Errorf("commands =\n%q\nwant\n%q", got, want)
		}

		for _, call := range runner.Calls {
			if len(call.Args) > 0 && call.Args[0] == "tag" {
				if !reflect.DeepEqual(call.Env, []string{"GIT_COMMITTER_DATE=2020-01-02 03:04:05 +0000"}) {
					t.Errorf("tag env = %q", call.Env)
				}
				if call.Args[3] != "Release 1.0" {
					t.Errorf("tag message = %q", call.Args[3])
				}
			}
		}
	})

	t.Run("failure restores user", func(t *testing.T) {
		runner := script()
		runner.On("git tag", fakerunner.Result{ExitCode: 1})
		f := NewFixer(runner, nil, testConfig(), meta, gitConfigLocal)
		if err := f.FixTags(context.Background()); err == nil {
			t.Fatal("FixTags() error = nil, want failure")
		}
		lines := runner.Lines()
		if got := lines[len(lines)-2]; got != "git config --local user.name Alice" {
			t.Errorf("user.name not restored, commands = %q", lines)
		}
	})

	t.Run("no tags", func(t *testing.T) {
		runner := okRunner()
		f := NewFixer(runner, nil, testConfig(), MetaInfo{}, gitConfigLocal)
		if err := f.FixTags(context.Background()); err != nil {
			t.Fatalf("FixTags() error = %v", err)
		}
		if runner.CallCount() != 0 {
			t.Errorf("commands = %q, want none", runner.Lines())
		}
	})
}

func TestFixer_FixTrunk(t *testing.T) {
	tests := []struct {
		name   string
		remote []string
		rebase bool
		want   []string
	}{
		{
			name:   "trunk becomes master",
			remote: []string{"svn/trunk", "svn/feature"},
			want:   []string{"git checkout svn/trunk", "git branch -D master", "git checkout -f -b master"},
		},
		{
			name:   "no trunk",
			remote: []string{"svn/feature"},
			want:   []string{"git checkout -f master"},
		},
		{
			name:   "rebase keeps master",
			remote: []string{"svn/trunk"},
			rebase: true,
			want:   []string{"git checkout -f master"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Rebase = tt.rebase
			runner := okRunner()
			runner.On("git branch -D", fakerunner.Result{ExitCode: 1})
			f := NewFixer(runner, nil, cfg, MetaInfo{RemoteBranches: tt.remote}, gitConfigLocal)
			if err := f.FixTrunk(context.Background()); err != nil {
				t.Fatalf("FixTrunk() error = %v", err)
			}
			if got := runner.Lines(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commands = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFixer_OptimizeRepos(t *testing.T) {
	runner := okRunner()
	runner.On("git gc", fakerunner.Result{ExitCode: 1})
	f := NewFixer(runner, nil, testConfig(), MetaInfo{}, gitConfigLocal)

	var merr *Error
	if err := f.OptimizeRepos(context.Background()); !errors.As(err, &merr) {
		t.Fatalf("OptimizeRepos() error = %v, want *Error", err)
	}
	if got := runner.Lines(); !reflect.DeepEqual(got, []string{"git gc"}) {
		t.Errorf("commands = %q", got)
	}
}
