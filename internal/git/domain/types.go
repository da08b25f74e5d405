// Package domain provides domain types for git operations.
package domain

import "time"

// BranchInfo holds information about a local git branch.
type BranchInfo struct {
	Name      string // Short branch name (e.g., "main", "feature/auth")
	IsCurrent bool   // True if this is the currently checked out branch
}

// CommitInfo holds the commit metadata the ranked view needs.
type CommitInfo struct {
	Hash string    // Full 40-char SHA
	When time.Time // Committer timestamp
}

// EventType classifies repository lifecycle and change events.
type EventType string

const (
	// EventOpened fires when a repository starts being tracked.
	EventOpened EventType = "opened"
	// EventClosed fires when a repository stops being tracked.
	EventClosed EventType = "closed"
	// EventChanged fires when HEAD or a ref changed on disk.
	EventChanged EventType = "changed"
)

// RepositoryEvent is emitted by the provider's event stream.
type RepositoryEvent struct {
	Type EventType
	// Path is the repository root, the stable key for a repository handle.
	Path string
}
