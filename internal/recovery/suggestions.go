// Package recovery turns the output of failing svn and git commands into remediation hints.
package recovery

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Suggestion represents a recovery suggestion for an error.
type Suggestion struct {
	Error       string   // Description of the detected error
	Category    string   // Error category (lock, auth, network, etc.)
	Commands    []string // Suggested fix commands
	Explanation string   // Why this might fix the issue
	Confidence  float64  // Confidence that this suggestion will help
	Risky       bool     // If true, user should review before running
}

// Analyzer detects errors and suggests recovery actions.
type Analyzer struct {
	rules []recoveryRule
}

type recoveryRule struct {
	name    string
	pattern *regexp.Regexp
	suggest func(matches []string) *Suggestion
}

// NewAnalyzer creates a new error analyzer with default rules.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		rules: defaultRules(),
	}
}

// Analyze examines command output and returns recovery suggestions,
// highest confidence first.
func (a *Analyzer) Analyze(command, output string, exitCode int) []*Suggestion {
	if exitCode == 0 && !containsErrorIndicators(output) {
		return nil
	}

	var suggestions []*Suggestion
	for _, rule := range a.rules {
		if matches := rule.pattern.FindStringSubmatch(output); matches != nil {
			if suggestion := rule.suggest(matches); suggestion != nil {
				suggestions = append(suggestions, suggestion)
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	return suggestions
}

// AnalyzeLines is Analyze over output captured line by line.
func (a *Analyzer) AnalyzeLines(command string, lines []string, exitCode int) []*Suggestion {
	return a.Analyze(command, strings.Join(lines, "\n"), exitCode)
}

func containsErrorIndicators(output string) bool {
	lowered := strings.ToLower(output)
	indicators := []string{
		"error:", "error ", "failed", "failure", "fatal:",
		"svn: e", "permission denied", "no such file",
		"cannot", "unable to", "could not", "refused",
	}
	for _, ind := range indicators {
		if strings.Contains(lowered, ind) {
			return true
		}
	}
	return false
}

// Format renders suggestions as an indented hint block.
func Format(suggestions []*Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Possible causes:")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "\n  - %s: %s", s.Error, s.Explanation)
		for _, c := range s.Commands {
			fmt.Fprintf(&b, "\n      %s", c)
		}
	}
	return b.String()
}

func defaultRules() []recoveryRule {
	return []recoveryRule{
		// Stale index lock left behind by a killed git process
		{
			name:    "index_lock",
			pattern: regexp.MustCompile(`Unable to create '([^']*index\.lock)': File exists`),
			suggest: func(matches []string) *Suggestion {
				return &Suggestion{
					Error:       "Stale git index lock",
					Category:    "lock",
					Commands:    []string{"rm " + matches[1], "svn2git --break-locks ..."},
					Explanation: "A previous git process was interrupted and left its lock file behind. Remove it once no other git process is running.",
					Confidence:  0.9,
					Risky:       true,
				}
			},
		},

		// Automatic gc refusing to run because of an earlier failure
		{
			name:    "gc_log",
			pattern: regexp.MustCompile(`(?i)(\S*gc\.log)|The last gc run reported the following`),
			suggest: func(matches []string) *Suggestion {
				path := ".git/gc.log"
				if matches[1] != "" {
					path = strings.Trim(matches[1], "'\"`")
				}
				return &Suggestion{
					Error:       "Blocked automatic garbage collection",
					Category:    "gc",
					Commands:    []string{"rm " + path, "svn2git --ignore-gc-errors ..."},
					Explanation: "git leaves gc.log after a failed automatic gc and skips gc until it is removed, which can abort git svn fetch.",
					Confidence:  0.85,
				}
			},
		},

		// Rejected credentials
		{
			name:    "auth_failed",
			pattern: regexp.MustCompile(`(?i)(authorization failed|authentication failed|E170001|E215004|No more credentials)`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "SVN authentication failed",
					Category:    "auth",
					Commands:    []string{"svn2git credentials set <url> <username>", "svn2git --username <name> --password-method prompt ..."},
					Explanation: "The SVN server rejected the supplied username or password.",
					Confidence:  0.85,
				}
			},
		},

		// Untrusted server certificate
		{
			name:    "certificate",
			pattern: regexp.MustCompile(`(?i)(server certificate verification failed|E230001|certificate (has expired|issued for a different hostname))`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Untrusted SVN server certificate",
					Category:    "certificate",
					Commands:    []string{"svn ls <url>"},
					Explanation: "The server certificate was not accepted. Run svn once interactively and accept it permanently.",
					Confidence:  0.8,
				}
			},
		},

		// Transient network failures
		{
			name:    "network",
			pattern: regexp.MustCompile(`(?i)(connection (reset|refused|timed out)|E175002|E170013|E000104|E000110|Unable to connect to a repository|Network connection closed unexpectedly)`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Network failure talking to the SVN server",
					Category:    "network",
					Commands:    []string{"svn2git --fetch-attempts 0 ..."},
					Explanation: "The connection to the SVN server dropped. Fetching resumes where it stopped, so re-running or allowing unlimited attempts usually gets through.",
					Confidence:  0.7,
				}
			},
		},

		// Missing perl SVN bindings
		{
			name:    "svn_perl",
			pattern: regexp.MustCompile(`Can't locate SVN/Core\.pm`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "git svn is not installed",
					Category:    "package",
					Commands:    []string{"sudo apt install git-svn", "sudo dnf install git-svn"},
					Explanation: "git svn needs the Subversion perl bindings.",
					Confidence:  0.9,
				}
			},
		},

		// Memory exhaustion on huge revisions
		{
			name:    "out_of_memory",
			pattern: regexp.MustCompile(`(?i)(out of memory|cannot allocate memory)`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Out of memory",
					Category:    "memory",
					Commands:    []string{"svn2git --revision <start>:<end> ..."},
					Explanation: "git svn ran out of memory. Fetch the history in smaller revision ranges.",
					Confidence:  0.6,
				}
			},
		},

		// Permission denied
		{
			name:    "permission_denied",
			pattern: regexp.MustCompile(`(?i)permission denied`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Permission denied",
					Category:    "permission",
					Commands:    []string{"ls -la .git"},
					Explanation: "The working directory or one of its files is not writable by the current user.",
					Confidence:  0.6,
				}
			},
		},

		// Disk full
		{
			name:    "disk_full",
			pattern: regexp.MustCompile(`(?i)no space left on device`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Disk full",
					Category:    "disk",
					Commands:    []string{"df -h ."},
					Explanation: "The disk holding the working directory is full.",
					Confidence:  0.9,
				}
			},
		},
	}
}
