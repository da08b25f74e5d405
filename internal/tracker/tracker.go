// Package tracker merges persisted MRU branch history with live repository
// state into the ranked view rendered by the panel.
package tracker

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/mru"
	"github.com/zjrosen/switchyard/internal/pubsub"
)

// MaxVisible caps the ranked view length.
const MaxVisible = 5

// NoCommitsLabel is the recency description for branches whose tip commit
// cannot be resolved.
const NoCommitsLabel = "no commits"

const (
	recencyTTL    = 30 * time.Second
	recencySweep  = time.Minute
	recencyKeySep = "\x00"
)

// Clock abstracts time for recency bucketing. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// BranchEntry is one row of the ranked view.
type BranchEntry struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"isCurrent"`
	Recency   string `json:"recency"`
}

// RankedBranchView is the derived, never-persisted projection of the MRU
// list against live repository state.
type RankedBranchView struct {
	RepoPath   string        `json:"repoPath"`
	BaseBranch string        `json:"baseBranch"`
	Entries    []BranchEntry `json:"entries"`
}

// ViewChangedEvent signals that the ranked view for a repository is stale
// and should be recomputed.
type ViewChangedEvent struct {
	RepoPath string
}

// Tracker owns the active repository handle and the per-repository MRU
// lists. Safe for concurrent use.
type Tracker struct {
	store  *mru.Store
	remote string
	clock  Clock

	// recency caches branch tip timestamps so repeated view renders do not
	// hammer the object store.
	recency *cache.Cache
	broker  *pubsub.Broker[ViewChangedEvent]

	mu     sync.Mutex
	active application.Repository
}

// New creates a tracker over the given MRU store. remote names the remote
// whose HEAD pointer defines the base branch, typically "origin".
func New(store *mru.Store, remote string) *Tracker {
	return &Tracker{
		store:   store,
		remote:  remote,
		clock:   systemClock{},
		recency: cache.New(recencyTTL, recencySweep),
		broker:  pubsub.NewBroker[ViewChangedEvent](),
	}
}

// SetClock replaces the clock. Test hook.
func (t *Tracker) SetClock(c Clock) {
	t.clock = c
}

// SetActiveRepository swaps the tracked handle and notifies view consumers.
// Does not itself fetch any repository data.
func (t *Tracker) SetActiveRepository(repo application.Repository) {
	t.mu.Lock()
	t.active = repo
	t.mu.Unlock()

	path := ""
	if repo != nil {
		path = repo.Root()
	}
	log.Debug(log.CatTracker, "Active repository changed", "repo", path)
	t.broker.Publish(ViewChangedEvent{RepoPath: path})
}

// ActiveRepository returns the currently tracked handle, or nil.
func (t *Tracker) ActiveRepository() application.Repository {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// OnRepositoryStateChanged records the repository's current HEAD into the
// MRU list and always publishes a view-changed notification, whether or not
// a branch could be read. The active handle is never disturbed: updates for
// a background repository must not steal focus from the active one.
func (t *Tracker) OnRepositoryStateChanged(repo application.Repository) {
	if repo == nil {
		return
	}

	head, err := repo.Head()
	if err != nil {
		log.Warn(log.CatTracker, "Failed to read HEAD on state change", "repo", repo.Root(), "error", err)
	} else if head != "" {
		if err := t.store.RecordVisit(repo.Root(), head); err != nil {
			log.ErrorErr(log.CatTracker, "Failed to record branch visit", err, "repo", repo.Root(), "branch", head)
		} else {
			log.Debug(log.CatTracker, "Recorded branch visit", "repo", repo.Root(), "branch", head)
		}
	}

	// Tip commits may have moved even when HEAD did not.
	t.invalidateRecency(repo.Root())
	t.broker.Publish(ViewChangedEvent{RepoPath: repo.Root()})
}

// ViewChanged returns a subscription delivering re-render notifications.
func (t *Tracker) ViewChanged() *pubsub.Subscription[ViewChangedEvent] {
	return t.broker.Subscribe()
}

// RankedView is a pure projection of the active repository's MRU list
// against live HEAD and commit metadata. A nil active handle yields an
// empty view. Per-branch metadata failures degrade only that branch's
// recency description.
func (t *Tracker) RankedView() RankedBranchView {
	repo := t.ActiveRepository()
	if repo == nil {
		return RankedBranchView{}
	}

	view := RankedBranchView{
		RepoPath:   repo.Root(),
		BaseBranch: ResolveBaseBranch(repo, t.remote),
	}

	ordered, err := t.store.Ordered(repo.Root())
	if err != nil {
		log.ErrorErr(log.CatTracker, "Failed to load MRU list", err, "repo", repo.Root())
		return view
	}

	head, err := repo.Head()
	if err != nil {
		log.Warn(log.CatTracker, "Failed to read HEAD for ranked view", "repo", repo.Root(), "error", err)
		head = ""
	}

	for _, name := range rankNames(ordered, view.BaseBranch) {
		view.Entries = append(view.Entries, BranchEntry{
			Name:      name,
			IsCurrent: name == head,
			Recency:   t.recencyFor(repo, name),
		})
	}
	return view
}

// rankNames orders the MRU list for display: the base branch floats to the
// front when present, the remainder keeps stored order, and the result is
// truncated to MaxVisible.
func rankNames(ordered []string, base string) []string {
	out := make([]string, 0, MaxVisible)
	for _, name := range ordered {
		if name == base {
			out = append(out, base)
			break
		}
	}
	for _, name := range ordered {
		if len(out) == MaxVisible {
			break
		}
		if name == base {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (t *Tracker) recencyFor(repo application.Repository, branch string) string {
	key := repo.Root() + recencyKeySep + branch
	if cached, found := t.recency.Get(key); found {
		if label, ok := cached.(string); ok {
			return label
		}
	}

	when, err := repo.LastCommitTime(branch)
	if err != nil {
		log.Debug(log.CatTracker, "No tip commit for branch", "repo", repo.Root(), "branch", branch, "error", err)
		t.recency.SetDefault(key, NoCommitsLabel)
		return NoCommitsLabel
	}

	label := formatRecency(t.clock.Now().Sub(when))
	t.recency.SetDefault(key, label)
	return label
}

func (t *Tracker) invalidateRecency(root string) {
	prefix := root + recencyKeySep
	for key := range t.recency.Items() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			t.recency.Delete(key)
		}
	}
}

// formatRecency buckets an elapsed duration into a short human label.
func formatRecency(elapsed time.Duration) string {
	switch {
	case elapsed < time.Minute:
		return "now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd", int(elapsed.Hours()/24))
	}
}
