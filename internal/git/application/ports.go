// Package application defines ports (interfaces) for git access.
package application

import (
	"time"

	domain "github.com/zjrosen/switchyard/internal/git/domain"
	"github.com/zjrosen/switchyard/internal/pubsub"
)

// Repository is the per-working-copy port consumed by the tracker and
// orchestrator. Implementations must be safe for concurrent use.
type Repository interface {
	// Root returns the working-copy root path (the stable repository key).
	Root() string

	// Head returns the current branch short name, or "" for a detached HEAD.
	Head() (string, error)

	// Branches returns all local branches.
	Branches() ([]domain.BranchInfo, error)

	// LastCommitTime returns the committer timestamp of the branch tip.
	// Returns domain.ErrBranchNotFound when the ref cannot be resolved.
	LastCommitTime(branch string) (time.Time, error)

	// RemoteHead resolves refs/remotes/<remote>/HEAD to a branch short name
	// with the "<remote>/" prefix stripped. Returns domain.ErrNoRemoteHead
	// when the symbolic-ref does not exist.
	RemoteHead(remote string) (string, error)

	// RemoteURL returns the fetch URL of the named remote.
	RemoteURL(remote string) (string, error)

	// Checkout switches the working tree to the named branch. The
	// orchestrator deliberately does not use this for pull/merge; those go
	// through terminal dispatch so multi-step shell sequences stay visible.
	Checkout(branch string) error
}

// Provider enumerates tracked repositories and emits lifecycle/change events.
type Provider interface {
	// Repositories returns all currently tracked repositories.
	Repositories() []Repository

	// Get returns the tracked repository for the given root path.
	Get(path string) (Repository, bool)

	// Open starts tracking the repository rooted at path.
	Open(path string) (Repository, error)

	// Events returns a stream of repository lifecycle and change events.
	// Each subscription is individually revocable.
	Events() *pubsub.Subscription[domain.RepositoryEvent]

	// Close stops all watchers and event delivery.
	Close() error
}
