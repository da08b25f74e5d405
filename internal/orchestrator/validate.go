package orchestrator

import (
	"fmt"
	"regexp"
)

// shellSafeRegex is the whitelist for names interpolated into shell
// commands. Anything outside it (spaces, quotes, `;`, backticks, `$`) is
// rejected before any dispatch is attempted.
var shellSafeRegex = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// UnsafeNameError reports a name that failed shell-safety validation.
type UnsafeNameError struct {
	Role string // "branch" or "base branch"
	Name string
}

func (e *UnsafeNameError) Error() string {
	return fmt.Sprintf("%s name %q contains characters that are not safe for shell commands", e.Role, e.Name)
}

// ValidateShellSafe rejects names that could break out of a rendered shell
// command. Empty names are unsafe too.
func ValidateShellSafe(role, name string) error {
	if name == "" || !shellSafeRegex.MatchString(name) {
		return &UnsafeNameError{Role: role, Name: name}
	}
	return nil
}
