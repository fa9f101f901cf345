package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acolita/svn2git/internal/ports"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
}

func sh(script string) ports.CommandSpec {
	return ports.CommandSpec{Name: "/bin/sh", Args: []string{"-c", script}}
}

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, line)
}

func (l *lines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_ForwardsAndEchoesLines(t *testing.T) {
	requireShell(t)

	var out, errOut bytes.Buffer
	s := NewSession(&out, &errOut)

	var stdout, stderr lines
	code, err := s.Run(context.Background(),
		sh(`echo "r1 = abc (refs/remotes/svn/trunk)"; echo warning >&2; echo r2; printf 'crlf\r\n'`),
		ports.OutputSink{Stdout: stdout.add, Stderr: stderr.add},
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("Run() exit code = %d, want 0", code)
	}

	wantOut := []string{"r1 = abc (refs/remotes/svn/trunk)", "r2", "crlf"}
	if got := stdout.all(); !equal(got, wantOut) {
		t.Errorf("stdout lines = %q, want %q", got, wantOut)
	}
	if got := stderr.all(); !equal(got, []string{"warning"}) {
		t.Errorf("stderr lines = %q, want [warning]", got)
	}
	if out.String() != "r1 = abc (refs/remotes/svn/trunk)\nr2\ncrlf\n" {
		t.Errorf("console stdout = %q", out.String())
	}
	if errOut.String() != "warning\n" {
		t.Errorf("console stderr = %q", errOut.String())
	}
}

func TestRun_ExitCode(t *testing.T) {
	requireShell(t)

	code, err := NewSession(nil, nil).Run(context.Background(), sh("exit 3"), ports.OutputSink{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 3 {
		t.Errorf("Run() exit code = %d, want 3", code)
	}
}

func TestRun_LinesSplitAcrossWrites(t *testing.T) {
	requireShell(t)

	var stdout lines
	_, err := NewSession(nil, nil).Run(context.Background(),
		sh(`printf 'par'; sleep 0.1; printf 'tial\nsecond'; sleep 0.1; printf ' half\n'; printf 'no newline'`),
		ports.OutputSink{Stdout: stdout.add},
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"partial", "second half", "no newline"}
	if got := stdout.all(); !equal(got, want) {
		t.Errorf("stdout lines = %q, want %q", got, want)
	}
}

func TestRun_NilCallbacks(t *testing.T) {
	requireShell(t)

	code, err := NewSession(nil, nil).Run(context.Background(), sh("echo out; echo err >&2"), ports.OutputSink{})
	if err != nil || code != 0 {
		t.Errorf("Run() = %d, %v; want 0, nil", code, err)
	}
}

func TestRun_ArgString(t *testing.T) {
	requireShell(t)

	var stdout lines
	spec := ports.CommandSpec{Name: "/bin/sh", ArgString: `-c 'echo "hello world"'`}
	if _, err := NewSession(nil, nil).Run(context.Background(), spec, ports.OutputSink{Stdout: stdout.add}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := stdout.all(); !equal(got, []string{"hello world"}) {
		t.Errorf("stdout lines = %q, want [hello world]", got)
	}
}

func TestRun_WorkingDir(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	var stdout lines
	spec := sh("pwd -P")
	spec.Dir = dir
	if _, err := NewSession(nil, nil).Run(context.Background(), spec, ports.OutputSink{Stdout: stdout.add}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := stdout.all(); len(got) != 1 || got[0] != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestRun_ExtraEnv(t *testing.T) {
	requireShell(t)

	var stdout lines
	spec := sh(`echo "$SVN2GIT_TEST_DATE"`)
	spec.Env = []string{"SVN2GIT_TEST_DATE=2024-01-02 03:04:05 +0000"}
	if _, err := NewSession(nil, nil).Run(context.Background(), spec, ports.OutputSink{Stdout: stdout.add}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := stdout.all(); len(got) != 1 || got[0] != "2024-01-02 03:04:05 +0000" {
		t.Errorf("env output = %q", got)
	}
}

func TestRun_MissingTool(t *testing.T) {
	_, err := NewSession(nil, nil).Run(context.Background(),
		ports.CommandSpec{Name: "svn2git-no-such-tool", Args: []string{"--version"}},
		ports.OutputSink{},
	)

	var tm *ToolMissingError
	if !errors.As(err, &tm) {
		t.Fatalf("Run() error = %v, want *ToolMissingError", err)
	}
	if tm.Name != "svn2git-no-such-tool" {
		t.Errorf("ToolMissingError.Name = %q", tm.Name)
	}
	if !strings.Contains(err.Error(), "PATH") {
		t.Errorf("error %q should mention PATH", err.Error())
	}
	if !IsToolMissing(err) {
		t.Error("IsToolMissing() = false, want true")
	}
}

func TestRun_MissingWorkingDirIsNotToolMissing(t *testing.T) {
	requireShell(t)

	spec := sh("true")
	spec.Dir = filepath.Join(t.TempDir(), "missing")
	_, err := NewSession(nil, nil).Run(context.Background(), spec, ports.OutputSink{})
	if err == nil {
		t.Fatal("Run() error = nil, want an error")
	}
	if IsToolMissing(err) {
		t.Errorf("Run() error = %v, should not be reported as a missing tool", err)
	}
}

func TestRun_BadArgString(t *testing.T) {
	spec := ports.CommandSpec{Name: "/bin/sh", ArgString: `-c 'unterminated`}
	if _, err := NewSession(nil, nil).Run(context.Background(), spec, ports.OutputSink{}); err == nil {
		t.Error("Run() error = nil, want a parse error")
	}
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSession(nil, nil).Run(ctx, sh("echo should not run"), ports.OutputSink{})
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Run() error = %v, want ErrCancelled", err)
	}
}

func TestRun_CancelKillsBlockedChild(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once

	errCh := make(chan error, 1)
	go func() {
		_, err := NewSession(nil, nil).Run(ctx, sh("echo ready; sleep 30"), ports.OutputSink{
			Stdout: func(string) { once.Do(func() { close(started) }) },
		})
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Run() error = %v, want ErrCancelled", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, should match context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestRun_DeadlineExceeded(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewSession(nil, nil).Run(ctx, sh("sleep 30"), ports.OutputSink{})
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want ErrCancelled wrapping DeadlineExceeded", err)
	}
}

// alive reports whether pid is a live, non-zombie process.
func alive(t *testing.T, pid int) bool {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// the state follows the parenthesised command name
	stat := string(data)
	i := strings.LastIndex(stat, ")")
	if i < 0 || i+2 >= len(stat) {
		return false
	}
	state := stat[i+2]
	return state != 'Z' && state != 'X'
}

func TestRun_CancelKillsDescendants(t *testing.T) {
	requireShell(t)
	if runtime.GOOS != "linux" {
		t.Skip("reads /proc")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pidCh := make(chan int, 1)

	errCh := make(chan error, 1)
	go func() {
		_, err := NewSession(nil, nil).Run(ctx, sh("sleep 30 & echo $!; wait"), ports.OutputSink{
			Stdout: func(line string) {
				if pid, err := strconv.Atoi(line); err == nil {
					pidCh <- pid
				}
			},
		})
		errCh <- err
	}()

	pid := <-pidCh
	if !alive(t, pid) {
		t.Fatalf("grandchild %d not running before cancel", pid)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Run() error = %v, want ErrCancelled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	deadline := time.Now().Add(5 * time.Second)
	for alive(t, pid) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if alive(t, pid) {
		t.Errorf("grandchild %d still running after cancellation", pid)
	}
}

// ---------------------------------------------------------------------------
// Start
// ---------------------------------------------------------------------------

func readUntil(t *testing.T, r io.Reader, want string) {
	t.Helper()
	var got []byte
	buf := make([]byte, 1)
	for !strings.HasSuffix(string(got), want) {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("read stderr: %v (got %q)", err, got)
		}
		got = append(got, buf[0])
	}
}

func TestStart_Interactive(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	s := NewSession(&out, nil)

	p, err := s.Start(context.Background(), sh(`printf 'Password for alice: ' >&2; read pw; echo "got $pw"; exit 4`))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	readUntil(t, p.Stderr(), "Password for alice: ")
	if _, err := io.WriteString(p.Stdin(), "s3cret\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	if _, err := io.ReadAll(p.Stderr()); err != nil {
		t.Fatalf("drain stderr: %v", err)
	}

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if code != 4 {
		t.Errorf("Wait() exit code = %d, want 4", code)
	}
	if out.String() != "got s3cret\n" {
		t.Errorf("console stdout = %q, want %q", out.String(), "got s3cret\n")
	}

	// the exit code is read once and cached
	if again, _ := p.Wait(); again != 4 {
		t.Errorf("second Wait() = %d, want 4", again)
	}
}

func TestStart_CancelUnblocksStderrRead(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewSession(nil, nil).Start(ctx, sh("sleep 30"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	readDone := make(chan struct{})
	go func() {
		_, _ = io.ReadAll(p.Stderr())
		close(readDone)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-readDone:
	case <-time.After(10 * time.Second):
		t.Fatal("stderr read still blocked after cancellation")
	}

	code, err := p.Wait()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait() error = %v, want ErrCancelled", err)
	}
	if code != -1 {
		t.Errorf("Wait() exit code = %d, want -1", code)
	}
}

func TestStart_KillIsIdempotent(t *testing.T) {
	requireShell(t)

	p, err := NewSession(nil, nil).Start(context.Background(), sh("sleep 30"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := p.Kill(); err != nil {
		t.Errorf("Kill() error = %v, want nil", err)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("second Kill() error = %v, want nil", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Wait() blocked after Kill()")
	}
}

func TestStart_MissingTool(t *testing.T) {
	_, err := NewSession(nil, nil).Start(context.Background(), ports.CommandSpec{Name: "svn2git-no-such-tool"})
	if !IsToolMissing(err) {
		t.Errorf("Start() error = %v, want ToolMissingError", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestCommandLine(t *testing.T) {
	tests := []struct {
		spec ports.CommandSpec
		want string
	}{
		{ports.CommandSpec{Name: "git", Args: []string{"svn", "fetch"}}, "git svn fetch"},
		{ports.CommandSpec{Name: "git", Args: []string{"svn", "init", "--trunk=my trunk"}}, `git svn init '--trunk=my trunk'`},
		{ports.CommandSpec{Name: "git", ArgString: `svn fetch -r "1:HEAD"`}, "git svn fetch -r 1:HEAD"},
		{ports.CommandSpec{Name: "git"}, "git"},
	}
	for _, tt := range tests {
		if got := CommandLine(tt.spec); got != tt.want {
			t.Errorf("CommandLine(%+v) = %q, want %q", tt.spec, got, tt.want)
		}
	}
}

func TestArgvPrefersArgs(t *testing.T) {
	args, err := Argv(ports.CommandSpec{Name: "git", Args: []string{"status"}, ArgString: "ignored here"})
	if err != nil {
		t.Fatal(err)
	}
	if !equal(args, []string{"status"}) {
		t.Errorf("Argv() = %q, want [status]", args)
	}
}

func TestToolMissingErrorUnwrap(t *testing.T) {
	inner := errors.New("exec: not found")
	err := &ToolMissingError{Name: "svn", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ToolMissingError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), `"svn"`) {
		t.Errorf("Error() = %q, should name the tool", err.Error())
	}
}
