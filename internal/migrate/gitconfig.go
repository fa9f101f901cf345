package migrate

import (
	"context"
	"strings"
)

// probeGitConfig returns the git arguments that address the repository
// configuration. Old git versions do not know "config --local".
func probeGitConfig(ctx context.Context, c commands) ([]string, error) {
	stdout, stderr, _, err := c.output(ctx, c.spec("git", "config", "--local", "--get", "user.name"))
	if err != nil {
		return nil, err
	}
	if strings.Contains(stdout+"\n"+stderr, "unknown option") {
		return []string{"config"}, nil
	}
	return []string{"config", "--local"}, nil
}

func gitConfigArgs(base []string, args ...string) []string {
	out := make([]string, 0, len(base)+len(args))
	out = append(out, base...)
	return append(out, args...)
}
