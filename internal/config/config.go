// Package config handles configuration parsing for svn2git.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acolita/svn2git/internal/ports"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/svn2git/config.yaml or ~/.config/svn2git/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "svn2git", "config.yaml")
}

// PurgeOption selects what happens to git branches whose SVN branch is gone.
type PurgeOption string

const (
	PurgeNothing             PurgeOption = "nothing"
	PurgeLocal               PurgeOption = "delete_local"
	PurgeLocalAndRemote      PurgeOption = "delete_local_and_remote"
	defaultStaleBranchPurge              = PurgeNothing
	defaultTrunk                         = "trunk"
)

// Config represents the top-level configuration.
type Config struct {
	WorkingDir    string            `yaml:"working_dir"`
	Layout        LayoutConfig      `yaml:"layout"`
	Exclude       []string          `yaml:"exclude"`  // Perl regexes filtering fetched paths
	Revision      string            `yaml:"revision"` // START[:END]
	Metadata      bool              `yaml:"metadata"` // keep git-svn-id lines
	NoMinimizeURL bool              `yaml:"no_minimize_url"`
	Authors       string            `yaml:"authors"` // svn-to-git authors mapping file
	Credentials   CredentialsConfig `yaml:"credentials"`
	Fetch         FetchConfig       `yaml:"fetch"`
	Rebase        bool              `yaml:"rebase"`
	RebaseBranch  string            `yaml:"rebase_branch"`
	BreakLocks    bool              `yaml:"break_locks"`
	StaleBranches StaleBranchConfig `yaml:"stale_branches"`
	Push          PushConfig        `yaml:"push"`
	Logging       LoggingConfig     `yaml:"logging"`
	Verbose       bool              `yaml:"verbose"`
}

// LayoutConfig describes where trunk, branches and tags live in the SVN repository.
type LayoutConfig struct {
	Trunk       string   `yaml:"trunk"`
	Branches    []string `yaml:"branches"`
	Tags        []string `yaml:"tags"`
	RootIsTrunk bool     `yaml:"root_is_trunk"`
	NoTrunk     bool     `yaml:"no_trunk"`
	NoBranches  bool     `yaml:"no_branches"`
	NoTags      bool     `yaml:"no_tags"`
}

// FetchConfig controls the git svn fetch retry loop.
type FetchConfig struct {
	Attempts       int           `yaml:"attempts"`         // <= 0 retries forever
	IgnoreGCErrors bool          `yaml:"ignore_gc_errors"` // delete .git/gc.log between attempts
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// StaleBranchConfig controls purging of branches deleted in SVN.
type StaleBranchConfig struct {
	Purge   PurgeOption `yaml:"purge"`
	Protect []string    `yaml:"protect"` // glob patterns never purged
}

// PushConfig controls pushing the result to a git remote.
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Remote  string `yaml:"remote"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkingDir: ".",
		Layout: LayoutConfig{
			Trunk: defaultTrunk,
		},
		Credentials: CredentialsConfig{
			UserNameMethod: MethodArgs,
			PasswordMethod: MethodArgs,
		},
		StaleBranches: StaleBranchConfig{
			Purge: defaultStaleBranchPurge,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

var revisionRange = regexp.MustCompile(`^\d+(:(\d+|HEAD)?)?$`)

// Validate validates the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.Layout.Trunk == "" {
		c.Layout.Trunk = defaultTrunk
	}
	if c.StaleBranches.Purge == "" {
		c.StaleBranches.Purge = defaultStaleBranchPurge
	}
	if c.Verbose {
		c.Logging.Level = "debug"
	}

	if err := c.Credentials.validate(); err != nil {
		return err
	}

	switch c.StaleBranches.Purge {
	case PurgeNothing, PurgeLocal, PurgeLocalAndRemote:
	default:
		return fmt.Errorf("invalid stale branch purge option %q", c.StaleBranches.Purge)
	}

	if c.Revision != "" && !revisionRange.MatchString(c.Revision) {
		return fmt.Errorf("invalid revision range %q: want START_REV[:END_REV]", c.Revision)
	}

	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch retry delay must not be negative")
	}

	return nil
}

// GitDir returns the .git directory of the working tree.
func (c *Config) GitDir() string {
	return filepath.Join(c.WorkingDir, ".git")
}

// GCLogPath returns the path of the git gc log that blocks further gc runs.
func (c *Config) GCLogPath() string {
	return filepath.Join(c.GitDir(), "gc.log")
}
