package migrate

import (
	"strings"

	"github.com/acolita/svn2git/internal/config"
)

// IgnorePathRegex builds the --ignore-paths regular expression for git svn
// from the exclude patterns. It returns "" when nothing is excluded.
//
// Each exclude pattern is anchored below trunk, below every tag and below
// every branch, so "doc/.*" drops trunk/doc and tags/v1/doc alike. With
// RootIsTrunk the patterns apply to the repository root.
func IgnorePathRegex(layout config.LayoutConfig, exclude, tags, branches []string) string {
	if len(exclude) == 0 {
		return ""
	}

	var prefixes []string
	if !layout.RootIsTrunk {
		if layout.Trunk != "" && !layout.NoTrunk {
			prefixes = append(prefixes, layout.Trunk+`[\/]`)
		}
		if !layout.NoTags {
			for _, t := range tags {
				prefixes = append(prefixes, t+`[\/][^\/]+[\/]`)
			}
		}
		if !layout.NoBranches {
			for _, b := range branches {
				prefixes = append(prefixes, b+`[\/][^\/]+[\/]`)
			}
		}
	}

	return "^(?:" + strings.Join(prefixes, "|") + ")(?:" + strings.Join(exclude, "|") + ")"
}
