package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/switchyard/internal/config"
	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/git/domain"
	"github.com/zjrosen/switchyard/internal/mru"
	"github.com/zjrosen/switchyard/internal/pubsub"
	"github.com/zjrosen/switchyard/internal/terminal"
	"github.com/zjrosen/switchyard/internal/tracker"
)

type fakeRepo struct {
	root       string
	head       string
	remoteHead string
	remoteErr  error
}

var _ application.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) Root() string          { return f.root }
func (f *fakeRepo) Head() (string, error) { return f.head, nil }

func (f *fakeRepo) Branches() ([]domain.BranchInfo, error) {
	return []domain.BranchInfo{{Name: f.head, IsCurrent: true}}, nil
}

func (f *fakeRepo) LastCommitTime(branch string) (time.Time, error) {
	return time.Time{}, domain.ErrBranchNotFound
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

type fakeProvider struct {
	repos  map[string]*fakeRepo
	broker *pubsub.Broker[domain.RepositoryEvent]
}

var _ application.Provider = (*fakeProvider)(nil)

func newFakeProvider(repos ...*fakeRepo) *fakeProvider {
	p := &fakeProvider{
		repos:  make(map[string]*fakeRepo),
		broker: pubsub.NewBroker[domain.RepositoryEvent](),
	}
	for _, r := range repos {
		if r == nil {
			continue
		}
		p.repos[r.root] = r
	}
	return p
}

func (p *fakeProvider) Repositories() []application.Repository {
	out := make([]application.Repository, 0, len(p.repos))
	for _, r := range p.repos {
		out = append(out, r)
	}
	return out
}

func (p *fakeProvider) Get(path string) (application.Repository, bool) {
	r, ok := p.repos[path]
	return r, ok
}

func (p *fakeProvider) Open(path string) (application.Repository, error) {
	r := &fakeRepo{root: path}
	p.repos[path] = r
	return r, nil
}

func (p *fakeProvider) Events() *pubsub.Subscription[domain.RepositoryEvent] {
	return p.broker.Subscribe()
}

func (p *fakeProvider) Close() error { return nil }

// fakeDispatcher records dispatched commands.
type fakeDispatcher struct {
	commands []string
	paths    []string
	result   terminal.Result
}

var _ Dispatcher = (*fakeDispatcher)(nil)

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{result: terminal.Result{OK: true, Lifecycle: terminal.LifecycleReused}}
}

func (d *fakeDispatcher) Name() string { return "switchyard" }

func (d *fakeDispatcher) RunCommand(repositoryPath, commandText string) terminal.Result {
	d.paths = append(d.paths, repositoryPath)
	d.commands = append(d.commands, commandText)
	return d.result
}

func (d *fakeDispatcher) OnClosed(ev terminal.ClosedEvent) {}

func newTestOrchestrator(t *testing.T, repo *fakeRepo) (*Orchestrator, *fakeDispatcher, *tracker.Tracker) {
	t.Helper()
	provider := newFakeProvider(repo)
	tr := tracker.New(mru.NewStore(mru.NewMemoryPersistence()), "origin")
	if repo != nil {
		tr.SetActiveRepository(repo)
	}
	dispatcher := newFakeDispatcher()
	o := New(provider, tr, dispatcher, terminal.NewTmuxHost(""), config.Defaults().Templates, "origin")
	return o, dispatcher, tr
}

func TestSwitchBranch(t *testing.T) {
	t.Run("dispatches the rendered switch command", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.SwitchBranch(context.Background(), "feature-x"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git checkout feature-x", dispatcher.commands[0])
		assert.Equal(t, "/work/app", dispatcher.paths[0])
	})

	t.Run("no repository", func(t *testing.T) {
		o, dispatcher, _ := newTestOrchestrator(t, nil)

		err := o.SwitchBranch(context.Background(), "feature-x")
		assert.ErrorIs(t, err, ErrNoActiveRepository)
		assert.Empty(t, dispatcher.commands)
	})

	t.Run("unsafe names never reach the dispatcher", func(t *testing.T) {
		for _, name := range []string{"bad; rm -rf /", "has space", "tick`whoami`", `quote"d`, "dollar$HOME", ""} {
			repo := &fakeRepo{root: "/work/app", head: "main"}
			o, dispatcher, _ := newTestOrchestrator(t, repo)

			err := o.SwitchBranch(context.Background(), name)

			var unsafe *UnsafeNameError
			assert.ErrorAs(t, err, &unsafe, "name %q should be rejected", name)
			assert.Empty(t, dispatcher.commands, "name %q must not be dispatched", name)
		}
	})

	t.Run("dispatch failure is surfaced with the failed step", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)
		dispatcher.result = terminal.Result{FailedStep: terminal.StepShow, Err: errors.New("boom")}

		err := o.SwitchBranch(context.Background(), "feature-x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), terminal.StepShow)
	})
}

func TestPullFromOrigin(t *testing.T) {
	t.Run("same branch pulls without switching", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.PullFromOrigin(context.Background(), "main"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git pull", dispatcher.commands[0])
	})

	t.Run("different branch composes switch and pull", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.PullFromOrigin(context.Background(), "release-1"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git checkout release-1 && git pull", dispatcher.commands[0])
	})

	t.Run("state transitions in-progress then idle", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, _, _ := newTestOrchestrator(t, repo)

		sub := o.OperationStateChanged()
		defer sub.Cancel()

		require.NoError(t, o.PullFromOrigin(context.Background(), "main"))

		first := <-sub.C
		assert.True(t, first.InProgress)
		assert.Equal(t, ActionPullFromOrigin, first.Action)
		assert.Equal(t, "switchyard", first.TerminalName)

		second := <-sub.C
		assert.False(t, second.InProgress)
		assert.Equal(t, ActionNone, second.Action)
		assert.Contains(t, second.Notice, "Watch the switchyard terminal")
	})

	t.Run("validation failure leaves state untouched", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		sub := o.OperationStateChanged()
		defer sub.Cancel()

		err := o.PullFromOrigin(context.Background(), "bad; rm -rf /")

		var unsafe *UnsafeNameError
		require.ErrorAs(t, err, &unsafe)
		assert.Empty(t, dispatcher.commands)
		assert.Equal(t, OperationState{}, o.OperationState())
		select {
		case st := <-sub.C:
			t.Fatalf("unexpected state transition: %+v", st)
		default:
		}
	})

	t.Run("dispatch failure still resets to idle", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)
		dispatcher.result = terminal.Result{FailedStep: terminal.StepSendText, Err: errors.New("boom")}

		err := o.PullFromOrigin(context.Background(), "main")
		require.Error(t, err)

		state := o.OperationState()
		assert.False(t, state.InProgress)
		assert.Contains(t, state.Notice, "failed")
	})

	t.Run("updates the MRU list after dispatch", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main"}
		o, _, tr := newTestOrchestrator(t, repo)

		require.NoError(t, o.PullFromOrigin(context.Background(), "main"))

		view := tr.RankedView()
		require.NotEmpty(t, view.Entries)
		assert.Equal(t, "main", view.Entries[0].Name)
	})
}

func TestMergeFromBase(t *testing.T) {
	t.Run("same branch merges the resolved base", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "feature-x", remoteHead: "develop"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.MergeFromBase(context.Background(), "feature-x"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git merge develop", dispatcher.commands[0])
	})

	t.Run("different branch composes switch and merge", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main", remoteHead: "develop"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.MergeFromBase(context.Background(), "feature-x"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git checkout feature-x && git merge develop", dispatcher.commands[0])
	})

	t.Run("falls back to main when the remote HEAD is unknown", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "feature-x", remoteErr: domain.ErrNoRemoteHead}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		require.NoError(t, o.MergeFromBase(context.Background(), "feature-x"))

		require.Len(t, dispatcher.commands, 1)
		assert.Equal(t, "git merge main", dispatcher.commands[0])
	})

	t.Run("unsafe target is rejected before dispatch", func(t *testing.T) {
		repo := &fakeRepo{root: "/work/app", head: "main", remoteHead: "develop"}
		o, dispatcher, _ := newTestOrchestrator(t, repo)

		err := o.MergeFromBase(context.Background(), "bad; rm -rf /")

		var unsafe *UnsafeNameError
		require.ErrorAs(t, err, &unsafe)
		assert.Empty(t, dispatcher.commands)
	})
}

func TestRun_RepositoryEvents(t *testing.T) {
	repo := &fakeRepo{root: "/work/app", head: "feature-x"}
	provider := newFakeProvider(repo)
	store := mru.NewStore(mru.NewMemoryPersistence())
	tr := tracker.New(store, "origin")
	dispatcher := newFakeDispatcher()
	o := New(provider, tr, dispatcher, terminal.NewTmuxHost(""), config.Defaults().Templates, "origin")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	// Adoption of pre-existing repositories sets the active handle and
	// records the current branch.
	require.Eventually(t, func() bool {
		return tr.ActiveRepository() != nil
	}, time.Second, 10*time.Millisecond)

	ordered, err := store.Ordered("/work/app")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature-x"}, ordered)

	// A change event records the new HEAD.
	repo.head = "feature-y"
	provider.broker.Publish(domain.RepositoryEvent{Type: domain.EventChanged, Path: "/work/app"})
	require.Eventually(t, func() bool {
		ordered, err := store.Ordered("/work/app")
		return err == nil && len(ordered) == 2 && ordered[0] == "feature-y"
	}, time.Second, 10*time.Millisecond)

	// Closing the active repository clears the handle.
	delete(provider.repos, "/work/app")
	provider.broker.Publish(domain.RepositoryEvent{Type: domain.EventClosed, Path: "/work/app"})
	require.Eventually(t, func() bool {
		return tr.ActiveRepository() == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

func TestRenderTemplate(t *testing.T) {
	t.Run("substitutes every occurrence", func(t *testing.T) {
		got := renderTemplate("echo {{targetBranch}} && git checkout {{targetBranch}}",
			config.DefaultSwitchTemplate,
			map[string]string{PlaceholderTargetBranch: "feature-x"})
		assert.Equal(t, "echo feature-x && git checkout feature-x", got)
	})

	t.Run("blank template falls back to the default", func(t *testing.T) {
		got := renderTemplate("   ", config.DefaultSwitchTemplate,
			map[string]string{PlaceholderTargetBranch: "feature-x"})
		assert.Equal(t, "git checkout feature-x", got)
	})

	t.Run("template rendering to empty falls back", func(t *testing.T) {
		got := renderTemplate("{{targetBranch}}", config.DefaultPullTemplate,
			map[string]string{PlaceholderTargetBranch: ""})
		assert.Equal(t, "git pull", got)
	})
}
