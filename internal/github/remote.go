package github

import (
	"fmt"
	"strings"
)

// ParseRemoteURL extracts the owner and repository name from a git remote
// URL. Handles https, ssh scp-like, and ssh URL forms, with or without a
// trailing ".git".
func ParseRemoteURL(url string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(url), ".git")

	var path string
	switch {
	case strings.HasPrefix(trimmed, "git@"):
		// git@github.com:owner/repo
		_, after, found := strings.Cut(trimmed, ":")
		if !found {
			return "", "", fmt.Errorf("unrecognized remote URL %q", url)
		}
		path = after
	case strings.Contains(trimmed, "://"):
		// https://github.com/owner/repo, ssh://git@github.com/owner/repo
		_, after, _ := strings.Cut(trimmed, "://")
		segments := strings.SplitN(after, "/", 2)
		if len(segments) != 2 {
			return "", "", fmt.Errorf("unrecognized remote URL %q", url)
		}
		path = segments[1]
	default:
		return "", "", fmt.Errorf("unrecognized remote URL %q", url)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("remote URL %q has no owner/repo path", url)
	}
	return parts[0], parts[1], nil
}
