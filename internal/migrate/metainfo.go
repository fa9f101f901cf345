package migrate

import (
	"strings"
)

// tagRefPrefix is the remote ref prefix git svn uses for SVN tags.
const tagRefPrefix = "svn/tags/"

// MetaInfo lists the branches and tags found after fetching.
type MetaInfo struct {
	LocalBranches  []string
	RemoteBranches []string
	Tags           []string
}

// parseBranchList parses the output of "git branch --no-color". The current
// branch marker is dropped.
func parseBranchList(output string) []string {
	fields := strings.Split(output, "\n")
	if len(fields) == 1 {
		fields = strings.Split(output, " ")
	}

	var branches []string
	for _, f := range fields {
		f = strings.TrimSpace(strings.ReplaceAll(f, "*", ""))
		if f == "" {
			continue
		}
		branches = append(branches, f)
	}
	return branches
}

func tagsOf(remote []string) []string {
	var tags []string
	for _, b := range remote {
		if strings.HasPrefix(b, tagRefPrefix) {
			tags = append(tags, b)
		}
	}
	return tags
}
