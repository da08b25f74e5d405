package panel

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/switchyard/internal/github"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/orchestrator"
	"github.com/zjrosen/switchyard/internal/pubsub"
	"github.com/zjrosen/switchyard/internal/tracker"
)

// rankedViewMsg delivers a freshly computed ranked view.
type rankedViewMsg struct {
	view tracker.RankedBranchView
}

// viewChangedMsg signals the ranked view is stale.
type viewChangedMsg struct{}

// opStateMsg delivers a git operation state transition.
type opStateMsg struct {
	state orchestrator.OperationState
}

// logEntryMsg delivers one appended log entry.
type logEntryMsg struct {
	entry log.Entry
}

// prsLoadedMsg delivers the pull-request list, or the error loading it.
type prsLoadedMsg struct {
	prs  []github.PullRequest
	auth github.AuthStatus
	err  error
}

// actionDoneMsg reports a completed user action.
type actionDoneMsg struct {
	err error
}

// snapshotLoadedMsg delivers the persisted cold-start snapshot.
type snapshotLoadedMsg struct {
	snapshot panelSnapshot
	found    bool
}

// refreshTickMsg drives the periodic pull-request refresh.
type refreshTickMsg struct{}

const (
	actionTimeout   = 10 * time.Second
	prRefreshPeriod = 2 * time.Minute
)

func (m Model) computeRankedView() tea.Cmd {
	tr := m.deps.Tracker
	return func() tea.Msg {
		return rankedViewMsg{view: tr.RankedView()}
	}
}

func waitViewChanged(sub *pubsub.Subscription[tracker.ViewChangedEvent]) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-sub.C; !ok {
			return nil
		}
		return viewChangedMsg{}
	}
}

func waitOpState(sub *pubsub.Subscription[orchestrator.OperationState]) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-sub.C
		if !ok {
			return nil
		}
		return opStateMsg{state: state}
	}
}

func waitLogEntry(sub *pubsub.Subscription[log.Entry]) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-sub.C
		if !ok {
			return nil
		}
		return logEntryMsg{entry: entry}
	}
}

func (m Model) runAction(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{err: action(ctx)}
	}
}

// loadPullRequests resolves the active repository's GitHub slug and fetches
// its open pull requests plus the auth status.
func (m Model) loadPullRequests() tea.Cmd {
	if m.deps.PullRequests == nil {
		return nil
	}
	source := m.deps.PullRequests
	tr := m.deps.Tracker
	remote := m.deps.Remote

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		auth := source.AuthStatus(ctx)

		repo := tr.ActiveRepository()
		if repo == nil {
			return prsLoadedMsg{auth: auth}
		}
		url, err := repo.RemoteURL(remote)
		if err != nil {
			return prsLoadedMsg{auth: auth, err: err}
		}
		owner, name, err := github.ParseRemoteURL(url)
		if err != nil {
			return prsLoadedMsg{auth: auth, err: err}
		}

		prs, err := source.ListOpenPullRequests(ctx, owner, name)
		return prsLoadedMsg{prs: prs, auth: auth, err: err}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(prRefreshPeriod, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m Model) loadSnapshot() tea.Cmd {
	if m.deps.Snapshots == nil {
		return nil
	}
	store := m.deps.Snapshots
	return func() tea.Msg {
		payload, found, err := store.Load(snapshotKey)
		if err != nil || !found {
			return snapshotLoadedMsg{}
		}
		var snap panelSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			log.Warn(log.CatUI, "Discarding unreadable panel snapshot", "error", err)
			return snapshotLoadedMsg{}
		}
		return snapshotLoadedMsg{snapshot: snap, found: true}
	}
}

func (m Model) saveSnapshot() tea.Cmd {
	if m.deps.Snapshots == nil {
		return nil
	}
	store := m.deps.Snapshots
	snap := panelSnapshot{
		BaseBranch:   m.view.BaseBranch,
		Entries:      m.view.Entries,
		PullRequests: m.prs,
		Auth:         m.auth,
	}
	return func() tea.Msg {
		payload, err := json.Marshal(snap)
		if err != nil {
			return nil
		}
		if err := store.Save(snapshotKey, payload); err != nil {
			log.Warn(log.CatUI, "Saving panel snapshot failed", "error", err)
		}
		return nil
	}
}
