package cluster

import "strings"

// DefaultHost is prepended to "organization/name" shorthands.
const DefaultHost = "https://github.com/"

// gitPrefixes mark inputs that are already clone URLs.
var gitPrefixes = []string{"https:", "http:", "git@github", "git@gitlab"}

// Repository is a resolved extension source.
type Repository struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
	URL          string `json:"url"`
}

// ResolveRepository turns a clone URL or an "organization/name[#ref]"
// shorthand into a Repository. URLs are kept verbatim, including any
// "#ref"; the name is the last path segment without the ref or a ".git"
// suffix.
func ResolveRepository(input string) (Repository, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Repository{}, &RepositoryParseError{Input: input, Reason: "empty repository"}
	}

	isURL := false
	for _, p := range gitPrefixes {
		if strings.HasPrefix(input, p) {
			isURL = true
			break
		}
	}

	path := input
	if strings.HasPrefix(input, "git@") {
		// scp-like syntax: git@host:org/name
		if i := strings.IndexByte(input, ':'); i >= 0 {
			path = input[i+1:]
		}
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return Repository{}, &RepositoryParseError{Input: input, Reason: "expected organization/name"}
	}

	name, _, _ := strings.Cut(parts[len(parts)-1], "#")
	name = strings.TrimSuffix(name, ".git")
	org := parts[len(parts)-2]
	if name == "" || org == "" {
		return Repository{}, &RepositoryParseError{Input: input, Reason: "empty organization or name"}
	}

	url := input
	if !isURL {
		url = DefaultHost + input
	}
	return Repository{Name: name, Organization: org, URL: url}, nil
}
