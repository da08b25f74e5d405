// Package panel implements the switchyard TUI: an MRU branch list, the
// open pull requests for the active repository, and a live log view.
package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/switchyard/internal/github"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/orchestrator"
	"github.com/zjrosen/switchyard/internal/pubsub"
	"github.com/zjrosen/switchyard/internal/tracker"
	"github.com/zjrosen/switchyard/internal/ui/styles"
)

// Tab identifies one of the panel views.
type Tab int

const (
	TabBranches Tab = iota
	TabPullRequests
	TabLogs
)

var tabLabels = map[Tab]string{
	TabBranches:     "Branches",
	TabPullRequests: "Pull Requests",
	TabLogs:         "Logs",
}

// Actions is the slice of the orchestrator the panel invokes. Satisfied by
// *orchestrator.Orchestrator.
type Actions interface {
	SwitchBranch(ctx context.Context, targetBranch string) error
	PullFromOrigin(ctx context.Context, targetBranch string) error
	MergeFromBase(ctx context.Context, targetBranch string) error
	OperationState() orchestrator.OperationState
	OperationStateChanged() *pubsub.Subscription[orchestrator.OperationState]
}

var _ Actions = (*orchestrator.Orchestrator)(nil)

// PullRequestSource is the slice of the GitHub client the panel consumes.
type PullRequestSource interface {
	AuthStatus(ctx context.Context) github.AuthStatus
	ListOpenPullRequests(ctx context.Context, owner, repo string) ([]github.PullRequest, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int) error
	MarkReadyForReview(ctx context.Context, nodeID string) error
}

var _ PullRequestSource = (*github.Client)(nil)

// Deps are the collaborators the panel renders and drives. PullRequests and
// Snapshots may be nil; the matching features degrade quietly.
type Deps struct {
	Tracker      *tracker.Tracker
	Actions      Actions
	PullRequests PullRequestSource
	Snapshots    SnapshotStore
	Sink         *log.Sink
	Remote       string
	LevelFilter  log.Level
}

// Model is the root bubbletea model.
type Model struct {
	deps   Deps
	width  int
	height int
	tab    Tab

	// Branches tab
	view    tracker.RankedBranchView
	stale   bool // true until the first live ranked view arrives
	cursor  int
	opState orchestrator.OperationState

	// Pull Requests tab
	prs        []github.PullRequest
	prCursor   int
	prExpanded bool
	prBody     viewport.Model
	prLoading  bool
	prErr      error
	auth       github.AuthStatus
	spin       spinner.Model

	// Logs tab
	logs        []log.Entry
	levelFilter log.Level
	logView     viewport.Model

	viewSub  *pubsub.Subscription[tracker.ViewChangedEvent]
	stateSub *pubsub.Subscription[orchestrator.OperationState]
	logSub   *pubsub.Subscription[log.Entry]
}

// New creates the panel model.
func New(deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AccentColor)

	filter := deps.LevelFilter
	if filter == "" {
		filter = log.LevelInfo
	}

	m := Model{
		deps:        deps,
		stale:       true,
		spin:        sp,
		levelFilter: filter,
		prBody:      viewport.New(0, 0),
		logView:     viewport.New(0, 0),
	}
	// Subscriptions are created here rather than in Init so they survive
	// the value-copy semantics of the tea.Model interface.
	m.viewSub = deps.Tracker.ViewChanged()
	if deps.Actions != nil {
		m.stateSub = deps.Actions.OperationStateChanged()
	}
	if deps.Sink != nil {
		m.logs = deps.Sink.Snapshot()
		m.logSub = deps.Sink.Subscribe()
	}
	return m
}

// Init starts the initial loads and the subscription pumps.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loadSnapshot(),
		m.computeRankedView(),
		m.spin.Tick,
		refreshTick(),
		waitViewChanged(m.viewSub),
	}
	if m.stateSub != nil {
		cmds = append(cmds, waitOpState(m.stateSub))
	}
	if m.logSub != nil {
		cmds = append(cmds, waitLogEntry(m.logSub))
	}
	if cmd := m.loadPullRequests(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *Model) loadPullRequestsCmd() tea.Cmd {
	cmd := m.loadPullRequests()
	if cmd != nil {
		m.prLoading = true
	}
	return cmd
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewports()
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case snapshotLoadedMsg:
		// Live data beats the snapshot; only fill what is still stale.
		if msg.found && m.stale {
			m.view = tracker.RankedBranchView{BaseBranch: msg.snapshot.BaseBranch, Entries: msg.snapshot.Entries}
			if len(m.prs) == 0 {
				m.prs = msg.snapshot.PullRequests
				m.auth = msg.snapshot.Auth
			}
		}
		return m, nil

	case viewChangedMsg:
		return m, tea.Batch(m.computeRankedView(), waitViewChanged(m.viewSub))

	case rankedViewMsg:
		m.view = msg.view
		m.stale = false
		if m.cursor >= len(m.view.Entries) {
			m.cursor = max(0, len(m.view.Entries)-1)
		}
		return m, m.saveSnapshot()

	case opStateMsg:
		m.opState = msg.state
		return m, waitOpState(m.stateSub)

	case logEntryMsg:
		m.logs = append(m.logs, msg.entry)
		if len(m.logs) > log.DefaultCapacity {
			m.logs = m.logs[len(m.logs)-log.DefaultCapacity:]
		}
		m.refreshLogViewport()
		return m, waitLogEntry(m.logSub)

	case prsLoadedMsg:
		m.prLoading = false
		m.prErr = msg.err
		m.auth = msg.auth
		if msg.err == nil {
			m.prs = msg.prs
			if m.prCursor >= len(m.prs) {
				m.prCursor = max(0, len(m.prs)-1)
			}
		}
		return m, m.saveSnapshot()

	case refreshTickMsg:
		return m, tea.Batch(m.loadPullRequestsCmd(), refreshTick())

	case actionDoneMsg:
		if msg.err != nil {
			log.ErrorErr(log.CatUI, "Action failed", msg.err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	for tab := range tabLabels {
		if zone.Get(tabZoneID(tab)).InBounds(msg) {
			m.tab = tab
			return m, nil
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.tab = (m.tab + 1) % 3
		return m, nil
	case "shift+tab":
		m.tab = (m.tab + 2) % 3
		return m, nil

	case "r":
		return m, tea.Batch(m.computeRankedView(), m.loadPullRequestsCmd())
	}

	switch m.tab {
	case TabBranches:
		return m.handleBranchesKey(msg)
	case TabPullRequests:
		return m.handlePullRequestsKey(msg)
	case TabLogs:
		return m.handleLogsKey(msg)
	}
	return m, nil
}

func (m Model) handleBranchesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actions := m.deps.Actions

	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.view.Entries)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if branch, ok := m.selectedBranch(); ok && actions != nil {
			return m, m.runAction(func(ctx context.Context) error {
				return actions.SwitchBranch(ctx, branch)
			})
		}
	case "p":
		if branch, ok := m.selectedBranch(); ok && actions != nil {
			return m, m.runAction(func(ctx context.Context) error {
				return actions.PullFromOrigin(ctx, branch)
			})
		}
	case "m":
		if branch, ok := m.selectedBranch(); ok && actions != nil {
			return m, m.runAction(func(ctx context.Context) error {
				return actions.MergeFromBase(ctx, branch)
			})
		}
	}
	return m, nil
}

func (m Model) handlePullRequestsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.prExpanded {
			m.prBody.ScrollDown(1)
		} else if m.prCursor < len(m.prs)-1 {
			m.prCursor++
		}
	case "k", "up":
		if m.prExpanded {
			m.prBody.ScrollUp(1)
		} else if m.prCursor > 0 {
			m.prCursor--
		}
	case "enter":
		if m.prExpanded {
			m.prExpanded = false
			return m, nil
		}
		if pr, ok := m.selectedPR(); ok {
			m.prExpanded = true
			m.prBody.SetContent(m.renderPRBody(pr))
			m.prBody.GotoTop()
		}
	case "esc":
		m.prExpanded = false
	case "M":
		if pr, ok := m.selectedPR(); ok && m.deps.PullRequests != nil {
			return m, m.mergePullRequest(pr)
		}
	case "R":
		if pr, ok := m.selectedPR(); ok && pr.IsDraft && m.deps.PullRequests != nil {
			source := m.deps.PullRequests
			return m, m.runAction(func(ctx context.Context) error {
				return source.MarkReadyForReview(ctx, pr.NodeID)
			})
		}
	}
	return m, nil
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.logView.ScrollDown(1)
	case "k", "up":
		m.logView.ScrollUp(1)
	case "f":
		m.levelFilter = nextLevelFilter(m.levelFilter)
		m.refreshLogViewport()
	case "c":
		if m.deps.Sink != nil {
			m.deps.Sink.Clear()
		}
		m.logs = nil
		m.refreshLogViewport()
	}
	return m, nil
}

// mergePullRequest re-resolves the repository slug and merges via the API.
func (m Model) mergePullRequest(pr github.PullRequest) tea.Cmd {
	source := m.deps.PullRequests
	tr := m.deps.Tracker
	remote := m.deps.Remote
	return m.runAction(func(ctx context.Context) error {
		repo := tr.ActiveRepository()
		if repo == nil {
			return orchestrator.ErrNoActiveRepository
		}
		url, err := repo.RemoteURL(remote)
		if err != nil {
			return err
		}
		owner, name, err := github.ParseRemoteURL(url)
		if err != nil {
			return err
		}
		return source.MergePullRequest(ctx, owner, name, pr.Number)
	})
}

func (m Model) selectedBranch() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Entries) {
		return "", false
	}
	return m.view.Entries[m.cursor].Name, true
}

func (m Model) selectedPR() (github.PullRequest, bool) {
	if m.prCursor < 0 || m.prCursor >= len(m.prs) {
		return github.PullRequest{}, false
	}
	return m.prs[m.prCursor], true
}

func (m *Model) resizeViewports() {
	w := max(0, m.width-4)
	h := max(0, m.height-6)
	m.prBody.Width = w
	m.prBody.Height = h
	m.logView.Width = w
	m.logView.Height = h
	m.refreshLogViewport()
}

func (m *Model) refreshLogViewport() {
	atBottom := m.logView.AtBottom()
	m.logView.SetContent(m.renderLogLines())
	if atBottom {
		m.logView.GotoBottom()
	}
}

func (m Model) renderPRBody(pr github.PullRequest) string {
	body := pr.Body
	if strings.TrimSpace(body) == "" {
		body = "_no description_"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(20, m.prBody.Width)),
	)
	if err != nil {
		return wordwrap.String(body, max(20, m.prBody.Width))
	}
	out, err := renderer.Render(body)
	if err != nil {
		return wordwrap.String(body, max(20, m.prBody.Width))
	}
	return out
}

func nextLevelFilter(level log.Level) log.Level {
	switch level {
	case log.LevelDebug:
		return log.LevelInfo
	case log.LevelInfo:
		return log.LevelWarn
	case log.LevelWarn:
		return log.LevelError
	default:
		return log.LevelDebug
	}
}

func tabZoneID(tab Tab) string {
	return fmt.Sprintf("panel-tab-%d", int(tab))
}

// View renders the panel.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.tab {
	case TabBranches:
		b.WriteString(m.renderBranches())
	case TabPullRequests:
		b.WriteString(m.renderPullRequests())
	case TabLogs:
		b.WriteString(m.logView.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return zone.Scan(styles.Pane.Width(m.width - 2).Render(b.String()))
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, 3)
	for tab := TabBranches; tab <= TabLogs; tab++ {
		label := tabLabels[tab]
		style := styles.TabInactive
		if tab == m.tab {
			style = styles.TabActive
		}
		parts = append(parts, zone.Mark(tabZoneID(tab), style.Render(label)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderBranches() string {
	var b strings.Builder

	base := m.view.BaseBranch
	if base == "" {
		base = tracker.FallbackBaseBranch
	}
	b.WriteString(styles.Header.Render("Base: " + base))
	if m.stale && len(m.view.Entries) > 0 {
		b.WriteString(styles.Muted.Render("  (cached)"))
	}
	b.WriteString("\n\n")

	if len(m.view.Entries) == 0 {
		b.WriteString(styles.Muted.Render("No branches visited yet."))
		b.WriteString("\n")
	}

	nameWidth := 0
	for _, entry := range m.view.Entries {
		nameWidth = max(nameWidth, runewidth.StringWidth(entry.Name))
	}

	for i, entry := range m.view.Entries {
		marker := "  "
		if entry.IsCurrent {
			marker = "* "
		}
		line := fmt.Sprintf("%s%s  %s", marker,
			runewidth.FillRight(entry.Name, nameWidth),
			entry.Recency)

		switch {
		case i == m.cursor:
			b.WriteString(styles.Selected.Render("> " + line))
		case entry.IsCurrent:
			b.WriteString(styles.Header.Render("  " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.opState.Notice != "" {
		b.WriteString("\n")
		notice := wordwrap.String(m.opState.Notice, max(20, m.width-6))
		if m.opState.InProgress {
			b.WriteString(m.spin.View() + " " + styles.Notice.Render(notice))
		} else if strings.Contains(m.opState.Notice, "failed") {
			b.WriteString(styles.NoticeError.Render(notice))
		} else {
			b.WriteString(styles.Notice.Render(notice))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderPullRequests() string {
	if m.prExpanded {
		return m.prBody.View()
	}

	var b strings.Builder
	switch {
	case !m.auth.Authenticated:
		b.WriteString(styles.Muted.Render("Not signed in to GitHub."))
		b.WriteString("\n\n")
	case m.auth.Login != "":
		b.WriteString(styles.Muted.Render("Signed in as " + m.auth.Login))
		b.WriteString("\n\n")
	}

	if m.prLoading {
		b.WriteString(m.spin.View() + " Loading pull requests...\n")
		return b.String()
	}
	if m.prErr != nil {
		b.WriteString(styles.NoticeError.Render(wordwrap.String(m.prErr.Error(), max(20, m.width-6))))
		b.WriteString("\n")
		return b.String()
	}
	if len(m.prs) == 0 {
		b.WriteString(styles.Muted.Render("No open pull requests."))
		b.WriteString("\n")
		return b.String()
	}

	for i, pr := range m.prs {
		draft := ""
		if pr.IsDraft {
			draft = styles.Muted.Render(" [draft]")
		}
		line := fmt.Sprintf("#%d %s%s  %s",
			pr.Number, pr.Title, draft,
			styles.Muted.Render(pr.HeadRef+" -> "+pr.BaseRef))
		if i == m.prCursor {
			b.WriteString(styles.Selected.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderLogLines() string {
	minSeverity := m.levelFilter.Severity()
	var b strings.Builder
	for _, entry := range m.logs {
		if entry.Level.Severity() < minSeverity {
			continue
		}
		line := fmt.Sprintf("%s %-5s [%s] %s",
			entry.Time.Format("15:04:05"), entry.Level, entry.Category, entry.Message)
		b.WriteString(styles.ForLevel(string(entry.Level)).Render(line))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return styles.Muted.Render("No log entries at this level.")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	var help string
	switch m.tab {
	case TabBranches:
		help = "enter switch · p pull · m merge · r refresh · tab views · q quit"
	case TabPullRequests:
		help = "enter details · M merge · R ready · r refresh · tab views · q quit"
	case TabLogs:
		help = fmt.Sprintf("f filter (%s) · c clear · tab views · q quit", m.levelFilter)
	}
	return styles.Muted.Render(help)
}
