package panel

import (
	"github.com/zjrosen/switchyard/internal/github"
	"github.com/zjrosen/switchyard/internal/tracker"
)

// snapshotKey is the single persisted-state key for the panel.
const snapshotKey = "panel"

// panelSnapshot is the last-rendered state, persisted so a cold start can
// paint something meaningful before live data arrives.
type panelSnapshot struct {
	BaseBranch   string                `json:"baseBranch"`
	Entries      []tracker.BranchEntry `json:"entries"`
	PullRequests []github.PullRequest  `json:"pullRequests"`
	Auth         github.AuthStatus     `json:"auth"`
}

// SnapshotStore persists opaque snapshots by key. Satisfied by the sqlite
// snapshot repository.
type SnapshotStore interface {
	Save(key string, payload []byte) error
	Load(key string) ([]byte, bool, error)
}
