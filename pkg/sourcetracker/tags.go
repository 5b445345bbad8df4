package sourcetracker

import (
	"regexp"
	"sort"
	"strings"
)

var bracketSegment = regexp.MustCompile(`\[([^\[\]]*)\]`)

// Tags extracts the set of whiteboard tags from the bug's Whiteboard field:
// every bracketed segment, with interior spaces collapsed to '.', unioned
// with its bracketed form, plus the literal "bugzilla" which every bug
// carries regardless of whiteboard content.
func (b Bug) Tags() []string {
	set := map[string]struct{}{"bugzilla": {}}

	for _, m := range bracketSegment.FindAllStringSubmatch(b.Whiteboard, -1) {
		raw := strings.Join(strings.Fields(m[1]), ".")
		if raw == "" {
			continue
		}
		set[raw] = struct{}{}
		set["["+raw+"]"] = struct{}{}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}

	// Deterministic order: bracket-stripped forms before bracketed ones,
	// both lower-cased and alphabetized within their group.
	sort.Slice(tags, func(i, j int) bool {
		iBracketed := strings.HasPrefix(tags[i], "[")
		jBracketed := strings.HasPrefix(tags[j], "[")
		if iBracketed != jBracketed {
			return !iBracketed
		}
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})

	return tags
}

var trailingIssueKey = regexp.MustCompile(`([A-Z]+)-?(\d+)$`)

// LinkedIssueKey returns the first see_also URL whose host matches
// targetHostPattern and whose final path segment looks like a target-tracker
// issue key ([A-Z]+-?\d+), along with true. If none match, returns ("", false).
func (b Bug) LinkedIssueKey(targetHostPattern string) (string, bool) {
	for _, u := range b.SeeAlso {
		if !strings.Contains(u, targetHostPattern) {
			continue
		}
		segment := u
		if idx := strings.LastIndex(u, "/"); idx >= 0 {
			segment = u[idx+1:]
		}
		m := trailingIssueKey.FindStringSubmatch(segment)
		if m == nil {
			continue
		}
		key := m[1] + "-" + m[2]
		return key, true
	}
	return "", false
}
