package domain

import "errors"

// Git-specific errors surfaced by the provider.
var (
	// ErrNotGitRepo indicates the directory is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrDetachedHead indicates HEAD is not pointing to a branch.
	ErrDetachedHead = errors.New("detached HEAD state")

	// ErrNoRemoteHead indicates the remote has no HEAD symbolic-ref locally.
	ErrNoRemoteHead = errors.New("remote HEAD symbolic-ref not found")

	// ErrBranchNotFound indicates the named branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrRepositoryClosed indicates the provider no longer tracks the repository.
	ErrRepositoryClosed = errors.New("repository is closed")
)
