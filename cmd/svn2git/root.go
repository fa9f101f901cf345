package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/acolita/svn2git/internal/adapters/realclock"
	"github.com/acolita/svn2git/internal/adapters/realdialog"
	"github.com/acolita/svn2git/internal/adapters/realfs"
	"github.com/acolita/svn2git/internal/adapters/realterm"
	"github.com/acolita/svn2git/internal/config"
	"github.com/acolita/svn2git/internal/logging"
	"github.com/acolita/svn2git/internal/migrate"
	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/process"
	"github.com/acolita/svn2git/internal/security"
)

// flagValues holds the command-line options. Only flags the operator set
// override the configuration file.
type flagValues struct {
	configPath string

	workingDir    string
	trunk         string
	branches      []string
	tags          []string
	rootIsTrunk   bool
	noTrunk       bool
	noBranches    bool
	noTags        bool
	exclude       []string
	revision      string
	metadata      bool
	noMinimizeURL bool
	authors       string

	username       string
	usernameMethod string
	password       string
	passwordMethod string

	fetchAttempts  int
	ignoreGCErrors bool
	retryDelay     time.Duration

	rebase       bool
	rebaseBranch string
	breakLocks   bool

	purge   string
	protect []string

	push   bool
	remote string

	verbose  bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "svn2git [flags] SVN_URL",
		Short: "Migrate an SVN repository to git",
		Long: `svn2git clones an SVN repository with git svn into the current directory,
retrying the fetch as long as it makes progress, then converts the SVN
branches and tags into git branches and annotated tags.

With --rebase or --rebasebranch an existing migration is brought up to date.`,
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, args, &fv)
		},
	}

	bindFlags(cmd.Flags(), &fv)
	cmd.AddCommand(newCredentialsCmd())
	return cmd
}

// bindFlags registers the migration flags on f.
func bindFlags(f *pflag.FlagSet, fv *flagValues) {
	f.StringVar(&fv.configPath, "config", "", "path to the configuration file (default $XDG_CONFIG_HOME/svn2git/config.yaml)")
	f.StringVarP(&fv.workingDir, "working-dir", "C", ".", "directory holding the git repository")
	f.StringVar(&fv.trunk, "trunk", "trunk", "subpath to trunk from the repository URL")
	f.StringSliceVar(&fv.branches, "branches", nil, "subpath to branches from the repository URL (repeatable)")
	f.StringSliceVar(&fv.tags, "tags", nil, "subpath to tags from the repository URL (repeatable)")
	f.BoolVar(&fv.rootIsTrunk, "rootistrunk", false, "use the repository root as trunk, no branches or tags")
	f.BoolVar(&fv.noTrunk, "notrunk", false, "do not import anything from trunk")
	f.BoolVar(&fv.noBranches, "nobranches", false, "do not import branches")
	f.BoolVar(&fv.noTags, "notags", false, "do not import tags")
	f.StringSliceVar(&fv.exclude, "exclude", nil, "Perl regex of paths to exclude from the fetch (repeatable)")
	f.StringVarP(&fv.revision, "revision", "r", "", "revision range START_REV[:END_REV] to fetch")
	f.BoolVarP(&fv.metadata, "metadata", "m", false, "keep the git-svn-id lines in commit messages")
	f.BoolVar(&fv.noMinimizeURL, "no-minimize-url", false, "do not connect to the repository root")
	f.StringVar(&fv.authors, "authors", "", "authors file mapping SVN users to git authors (default ~/.svn2git/authors)")

	f.StringVar(&fv.username, "username", "", "SVN username, or the variable holding it with --username-method=env")
	f.StringVar(&fv.usernameMethod, "username-method", "", "how --username is read: args, env, none, prompt")
	f.StringVar(&fv.password, "password", "", "SVN password, or the variable holding it with --password-method=env")
	f.StringVar(&fv.passwordMethod, "password-method", "", "how the password is read: args, env, none, keyring, prompt")

	f.IntVar(&fv.fetchAttempts, "fetch-attempts", 0, "failed fetches without progress tolerated in a row (0 retries forever)")
	f.BoolVar(&fv.ignoreGCErrors, "ignore-gc-errors", false, "delete .git/gc.log before retrying a fetch")
	f.DurationVar(&fv.retryDelay, "retry-delay", 0, "wait between fetch attempts")

	f.BoolVar(&fv.rebase, "rebase", false, "fetch new SVN commits and rebase every branch")
	f.StringVar(&fv.rebaseBranch, "rebasebranch", "", "fetch new SVN commits and rebase only this branch")
	f.BoolVar(&fv.breakLocks, "breaklocks", false, "delete stale git svn index.lock files before starting")

	f.StringVar(&fv.purge, "stale-svn-branch-purge", "", "branches deleted in SVN: nothing, delete_local, delete_local_and_remote")
	f.StringSliceVar(&fv.protect, "protect-branch", nil, "glob of branches never purged (repeatable)")

	f.BoolVar(&fv.push, "push", false, "push every branch when done")
	f.StringVar(&fv.remote, "remote", "", "git remote or URL to push to")

	f.BoolVarP(&fv.verbose, "verbose", "v", false, "log every command and its output")
	f.StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig reads the configuration file. Without --config the default
// file is used only when it exists.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		def := config.DefaultConfigPath()
		if def == "" {
			return config.DefaultConfig(), nil
		}
		if _, err := os.Stat(def); errors.Is(err, fs.ErrNotExist) {
			return config.DefaultConfig(), nil
		}
		path = def
	}
	return config.Load(path)
}

// applyFlags copies the flags the operator set onto cfg.
func applyFlags(flags *pflag.FlagSet, fv *flagValues, cfg *config.Config) {
	set := flags.Changed

	if set("working-dir") {
		cfg.WorkingDir = fv.workingDir
	}
	if set("trunk") {
		cfg.Layout.Trunk = fv.trunk
	}
	if set("branches") {
		cfg.Layout.Branches = fv.branches
	}
	if set("tags") {
		cfg.Layout.Tags = fv.tags
	}
	if set("rootistrunk") {
		cfg.Layout.RootIsTrunk = fv.rootIsTrunk
	}
	if set("notrunk") {
		cfg.Layout.NoTrunk = fv.noTrunk
	}
	if set("nobranches") {
		cfg.Layout.NoBranches = fv.noBranches
	}
	if set("notags") {
		cfg.Layout.NoTags = fv.noTags
	}
	if set("exclude") {
		cfg.Exclude = fv.exclude
	}
	if set("revision") {
		cfg.Revision = fv.revision
	}
	if set("metadata") {
		cfg.Metadata = fv.metadata
	}
	if set("no-minimize-url") {
		cfg.NoMinimizeURL = fv.noMinimizeURL
	}
	if set("authors") {
		cfg.Authors = fv.authors
	}

	if set("username") {
		cfg.Credentials.UserName = fv.username
	}
	if set("username-method") {
		cfg.Credentials.UserNameMethod = config.CredentialMethod(fv.usernameMethod)
	}
	if set("password") {
		cfg.Credentials.Password = fv.password
	}
	if set("password-method") {
		cfg.Credentials.PasswordMethod = config.CredentialMethod(fv.passwordMethod)
	}

	if set("fetch-attempts") {
		cfg.Fetch.Attempts = fv.fetchAttempts
	}
	if set("ignore-gc-errors") {
		cfg.Fetch.IgnoreGCErrors = fv.ignoreGCErrors
	}
	if set("retry-delay") {
		cfg.Fetch.RetryDelay = fv.retryDelay
	}

	if set("rebase") {
		cfg.Rebase = fv.rebase
	}
	if set("rebasebranch") {
		cfg.RebaseBranch = fv.rebaseBranch
	}
	if set("breaklocks") {
		cfg.BreakLocks = fv.breakLocks
	}

	if set("stale-svn-branch-purge") {
		cfg.StaleBranches.Purge = config.PurgeOption(fv.purge)
	}
	if set("protect-branch") {
		cfg.StaleBranches.Protect = fv.protect
	}

	if set("push") {
		cfg.Push.Enabled = fv.push
	}
	if set("remote") {
		cfg.Push.Remote = fv.remote
	}

	if set("log-level") {
		cfg.Logging.Level = fv.logLevel
	}
	if set("verbose") {
		cfg.Verbose = fv.verbose
	}
}

func runMigration(cmd *cobra.Command, args []string, fv *flagValues) error {
	cfg, err := loadConfig(fv.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), fv, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)
	slog.Debug("starting svn2git",
		slog.String("version", Version),
		slog.String("working_dir", cfg.WorkingDir),
	)

	url := ""
	if len(args) > 0 {
		url = args[0]
	}
	var secrets ports.SecretStore
	if cfg.Credentials.PasswordMethod == config.MethodKeyring {
		secrets = security.NewKeyringStore()
	}
	creds, err := cfg.Credentials.Resolve(url, config.CredentialSources{
		LookupEnv: os.LookupEnv,
		Secrets:   secrets,
		Dialog:    realdialog.New(os.Getenv("ACCESSIBLE") != ""),
	})
	if err != nil {
		return err
	}

	m := migrate.New(cfg, args, creds, migrate.Deps{
		Runner:   process.NewSession(os.Stdout, os.Stderr),
		Starter:  process.NewSession(os.Stdout, os.Stderr),
		Terminal: realterm.New(os.Stdin, os.Stderr),
		FS:       realfs.New(),
		Clock:    realclock.New(),
		Out:      cmd.OutOrStdout(),
	})

	ctx := cmd.Context()
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	return m.Run(ctx)
}
