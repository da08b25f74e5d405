package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/git/domain"
	"github.com/zjrosen/switchyard/internal/mru"
)

// fakeRepo implements application.Repository with canned data.
type fakeRepo struct {
	root        string
	head        string
	headErr     error
	remoteHead  string
	remoteErr   error
	commitTimes map[string]time.Time
}

var _ application.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) Root() string { return f.root }

func (f *fakeRepo) Head() (string, error) { return f.head, f.headErr }

func (f *fakeRepo) Branches() ([]domain.BranchInfo, error) {
	out := make([]domain.BranchInfo, 0, len(f.commitTimes))
	for name := range f.commitTimes {
		out = append(out, domain.BranchInfo{Name: name, IsCurrent: name == f.head})
	}
	return out, nil
}

func (f *fakeRepo) LastCommitTime(branch string) (time.Time, error) {
	when, ok := f.commitTimes[branch]
	if !ok {
		return time.Time{}, domain.ErrBranchNotFound
	}
	return when, nil
}

func (f *fakeRepo) RemoteHead(remote string) (string, error) {
	if f.remoteErr != nil {
		return "", f.remoteErr
	}
	return f.remoteHead, nil
}

func (f *fakeRepo) RemoteURL(remote string) (string, error) {
	return "https://github.com/acme/app.git", nil
}

func (f *fakeRepo) Checkout(branch string) error {
	f.head = branch
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestTracker(t *testing.T) (*Tracker, *mru.Store) {
	t.Helper()
	store := mru.NewStore(mru.NewMemoryPersistence())
	tr := New(store, "origin")
	return tr, store
}

func TestResolveBaseBranch(t *testing.T) {
	t.Run("uses remote HEAD when resolvable", func(t *testing.T) {
		repo := &fakeRepo{root: "/r", remoteHead: "develop"}
		assert.Equal(t, "develop", ResolveBaseBranch(repo, "origin"))
	})

	t.Run("falls back to main without erroring", func(t *testing.T) {
		repo := &fakeRepo{root: "/r", remoteErr: domain.ErrNoRemoteHead}
		assert.Equal(t, "main", ResolveBaseBranch(repo, "origin"))
	})
}

func TestTracker_SetActiveRepository(t *testing.T) {
	tr, _ := newTestTracker(t)
	repo := &fakeRepo{root: "/work/app"}

	sub := tr.ViewChanged()
	defer sub.Cancel()

	tr.SetActiveRepository(repo)

	assert.Same(t, repo, tr.ActiveRepository().(*fakeRepo))
	select {
	case ev := <-sub.C:
		assert.Equal(t, "/work/app", ev.RepoPath)
	case <-time.After(time.Second):
		t.Fatal("expected a view-changed event")
	}
}

func TestTracker_OnRepositoryStateChanged(t *testing.T) {
	t.Run("records the current HEAD", func(t *testing.T) {
		tr, store := newTestTracker(t)
		repo := &fakeRepo{root: "/work/app", head: "feature-x"}

		tr.OnRepositoryStateChanged(repo)

		ordered, err := store.Ordered("/work/app")
		require.NoError(t, err)
		assert.Equal(t, []string{"feature-x"}, ordered)
	})

	t.Run("detached HEAD records nothing but still notifies", func(t *testing.T) {
		tr, store := newTestTracker(t)
		repo := &fakeRepo{root: "/work/app", head: ""}

		sub := tr.ViewChanged()
		defer sub.Cancel()

		tr.OnRepositoryStateChanged(repo)

		ordered, err := store.Ordered("/work/app")
		require.NoError(t, err)
		assert.Empty(t, ordered)
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("expected a view-changed event")
		}
	})

	t.Run("HEAD read failure still notifies", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		repo := &fakeRepo{root: "/work/app", headErr: errors.New("boom")}

		sub := tr.ViewChanged()
		defer sub.Cancel()

		tr.OnRepositoryStateChanged(repo)

		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("expected a view-changed event")
		}
	})

	t.Run("background update preserves the active handle", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		activeRepo := &fakeRepo{root: "/work/active", head: "main"}
		background := &fakeRepo{root: "/work/other", head: "feature-y"}
		tr.SetActiveRepository(activeRepo)

		tr.OnRepositoryStateChanged(background)

		assert.Same(t, activeRepo, tr.ActiveRepository().(*fakeRepo))
	})
}

func TestTracker_RankedView(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("empty without an active repository", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		view := tr.RankedView()
		assert.Empty(t, view.Entries)
		assert.Empty(t, view.BaseBranch)
	})

	t.Run("base branch first and capped at five", func(t *testing.T) {
		tr, store := newTestTracker(t)
		tr.SetClock(fixedClock{now: now})

		repo := &fakeRepo{
			root:       "/work/app",
			head:       "feature-1",
			remoteHead: "main",
			commitTimes: map[string]time.Time{
				"main":      now.Add(-48 * time.Hour),
				"feature-1": now.Add(-30 * time.Second),
				"feature-2": now.Add(-5 * time.Minute),
				"feature-3": now.Add(-3 * time.Hour),
				"feature-4": now.Add(-10 * time.Hour),
				"feature-5": now.Add(-72 * time.Hour),
			},
		}
		tr.SetActiveRepository(repo)

		for _, b := range []string{"main", "feature-5", "feature-4", "feature-3", "feature-2", "feature-1"} {
			require.NoError(t, store.RecordVisit("/work/app", b))
		}

		view := tr.RankedView()
		require.Len(t, view.Entries, MaxVisible)
		assert.Equal(t, "main", view.BaseBranch)
		assert.Equal(t, "main", view.Entries[0].Name)
		assert.Equal(t, "feature-1", view.Entries[1].Name)
		assert.Equal(t, "feature-2", view.Entries[2].Name)
		assert.Equal(t, "feature-3", view.Entries[3].Name)
		assert.Equal(t, "feature-4", view.Entries[4].Name)

		assert.True(t, view.Entries[1].IsCurrent)
		assert.False(t, view.Entries[0].IsCurrent)

		assert.Equal(t, "2d", view.Entries[0].Recency)
		assert.Equal(t, "now", view.Entries[1].Recency)
		assert.Equal(t, "5m", view.Entries[2].Recency)
		assert.Equal(t, "3h", view.Entries[3].Recency)
		assert.Equal(t, "10h", view.Entries[4].Recency)
	})

	t.Run("base branch absent from MRU is not injected", func(t *testing.T) {
		tr, store := newTestTracker(t)
		repo := &fakeRepo{root: "/work/app", head: "feature-1", remoteHead: "main",
			commitTimes: map[string]time.Time{"feature-1": now}}
		tr.SetActiveRepository(repo)
		require.NoError(t, store.RecordVisit("/work/app", "feature-1"))

		view := tr.RankedView()
		require.Len(t, view.Entries, 1)
		assert.Equal(t, "main", view.BaseBranch)
		assert.Equal(t, "feature-1", view.Entries[0].Name)
	})

	t.Run("commit lookup failure degrades only that branch", func(t *testing.T) {
		tr, store := newTestTracker(t)
		tr.SetClock(fixedClock{now: now})
		repo := &fakeRepo{
			root:       "/work/app",
			head:       "feature-1",
			remoteHead: "main",
			commitTimes: map[string]time.Time{
				"feature-1": now.Add(-2 * time.Minute),
			},
		}
		tr.SetActiveRepository(repo)
		require.NoError(t, store.RecordVisit("/work/app", "ghost"))
		require.NoError(t, store.RecordVisit("/work/app", "feature-1"))

		view := tr.RankedView()
		require.Len(t, view.Entries, 2)
		assert.Equal(t, "2m", view.Entries[0].Recency)
		assert.Equal(t, NoCommitsLabel, view.Entries[1].Recency)
	})
}

func TestFormatRecency(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"seconds are now", 10 * time.Second, "now"},
		{"just under a minute", 59 * time.Second, "now"},
		{"minutes", 25 * time.Minute, "25m"},
		{"hours", 7 * time.Hour, "7h"},
		{"days", 53 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatRecency(tt.elapsed))
		})
	}
}
