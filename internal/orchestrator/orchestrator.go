// Package orchestrator binds user actions to the pipeline of template
// rendering, safety validation, terminal dispatch, state tracking, and
// logging.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/switchyard/internal/config"
	"github.com/zjrosen/switchyard/internal/git/application"
	"github.com/zjrosen/switchyard/internal/git/domain"
	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/pubsub"
	"github.com/zjrosen/switchyard/internal/terminal"
	"github.com/zjrosen/switchyard/internal/tracker"
)

const tracerName = "github.com/zjrosen/switchyard/internal/orchestrator"

var (
	// ErrNoActiveRepository is returned when an action fires without a
	// tracked repository.
	ErrNoActiveRepository = errors.New("no active repository")

	// ErrOperationInProgress is returned when a pull or merge is requested
	// while another one is still dispatching.
	ErrOperationInProgress = errors.New("another git operation is already in progress")
)

// Dispatcher is the slice of the terminal dispatcher the orchestrator
// needs. Satisfied by *terminal.Dispatcher.
type Dispatcher interface {
	Name() string
	RunCommand(repositoryPath, commandText string) terminal.Result
	OnClosed(ev terminal.ClosedEvent)
}

var _ Dispatcher = (*terminal.Dispatcher)(nil)

// Orchestrator coordinates repository events, user actions, and terminal
// dispatch. Safe for concurrent use; pull and merge are single-flight.
type Orchestrator struct {
	provider   application.Provider
	tracker    *tracker.Tracker
	dispatcher Dispatcher
	host       terminal.Host
	templates  config.TemplatesConfig
	remote     string
	state      *operationStateHolder
	tracer     trace.Tracer

	// opMu makes pull/merge single-flight. TryLock so a second request
	// fails fast instead of queueing behind an operation the user may not
	// know is running.
	opMu sync.Mutex

	// knownMu guards known, the set of repository roots whose events are
	// already handled. Registration is idempotent per root.
	knownMu sync.Mutex
	known   map[string]struct{}
}

// New wires an orchestrator. remote names the remote used for base-branch
// resolution, typically "origin".
func New(provider application.Provider, tr *tracker.Tracker, dispatcher Dispatcher, host terminal.Host, templates config.TemplatesConfig, remote string) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		tracker:    tr,
		dispatcher: dispatcher,
		host:       host,
		templates:  templates,
		remote:     remote,
		state:      newOperationStateHolder(),
		tracer:     otel.Tracer(tracerName),
		known:      make(map[string]struct{}),
	}
}

// OperationState returns the current git operation state snapshot.
func (o *Orchestrator) OperationState() OperationState {
	return o.state.get()
}

// OperationStateChanged returns a subscription delivering every state
// transition.
func (o *Orchestrator) OperationStateChanged() *pubsub.Subscription[OperationState] {
	return o.state.subscribe()
}

// Run drives the event loop until ctx is cancelled: repository lifecycle
// and change events feed the tracker, terminal-closed events feed the
// dispatcher.
func (o *Orchestrator) Run(ctx context.Context) {
	events := o.provider.Events()
	defer events.Cancel()

	closed := o.host.Closed()
	defer closed.Cancel()

	// Repositories opened before Run are adopted up front.
	for _, repo := range o.provider.Repositories() {
		o.adoptRepository(repo)
	}

	log.Info(log.CatOrch, "Orchestrator running")
	for {
		select {
		case <-ctx.Done():
			log.Info(log.CatOrch, "Orchestrator stopping")
			return
		case ev := <-events.C:
			o.handleRepositoryEvent(ev)
		case ev := <-closed.C:
			o.dispatcher.OnClosed(ev)
		}
	}
}

func (o *Orchestrator) handleRepositoryEvent(ev domain.RepositoryEvent) {
	switch ev.Type {
	case domain.EventOpened:
		repo, ok := o.provider.Get(ev.Path)
		if !ok {
			log.Warn(log.CatOrch, "Opened event for unknown repository", "path", ev.Path)
			return
		}
		o.adoptRepository(repo)

	case domain.EventChanged:
		repo, ok := o.provider.Get(ev.Path)
		if !ok {
			return
		}
		o.tracker.OnRepositoryStateChanged(repo)

	case domain.EventClosed:
		o.knownMu.Lock()
		delete(o.known, ev.Path)
		o.knownMu.Unlock()

		active := o.tracker.ActiveRepository()
		if active != nil && active.Root() == ev.Path {
			o.tracker.SetActiveRepository(o.firstKnownRepository())
		}
		log.Info(log.CatOrch, "Repository closed", "path", ev.Path)
	}
}

// adoptRepository registers a repository exactly once per root. A second
// adoption for the same root is a no-op, so duplicate open events collapse.
func (o *Orchestrator) adoptRepository(repo application.Repository) {
	o.knownMu.Lock()
	if _, seen := o.known[repo.Root()]; seen {
		o.knownMu.Unlock()
		return
	}
	o.known[repo.Root()] = struct{}{}
	o.knownMu.Unlock()

	log.Info(log.CatOrch, "Repository opened", "path", repo.Root())
	if o.tracker.ActiveRepository() == nil {
		o.tracker.SetActiveRepository(repo)
	}
	o.tracker.OnRepositoryStateChanged(repo)
}

func (o *Orchestrator) firstKnownRepository() application.Repository {
	o.knownMu.Lock()
	defer o.knownMu.Unlock()
	for root := range o.known {
		if repo, ok := o.provider.Get(root); ok {
			return repo
		}
	}
	return nil
}

// SwitchBranch checks the target name, renders the switch template, and
// dispatches it. Treated as instantaneous: no operation-state transition.
func (o *Orchestrator) SwitchBranch(ctx context.Context, targetBranch string) error {
	_, span := o.tracer.Start(ctx, "orchestrator.switch_branch",
		trace.WithAttributes(attribute.String("branch.target", targetBranch)))
	defer span.End()

	opID := uuid.NewString()
	repo := o.tracker.ActiveRepository()
	if repo == nil {
		log.Error(log.CatOrch, "Switch requested without a repository", "op", opID)
		return ErrNoActiveRepository
	}

	if err := ValidateShellSafe("branch", targetBranch); err != nil {
		log.ErrorErr(log.CatOrch, "Rejected unsafe branch name", err, "op", opID)
		return err
	}

	cmd := renderTemplate(o.templates.SwitchBranch, config.DefaultSwitchTemplate,
		map[string]string{PlaceholderTargetBranch: targetBranch})

	res := o.dispatcher.RunCommand(repo.Root(), cmd)
	if !res.OK {
		log.ErrorErr(log.CatOrch, "Switch dispatch failed", res.Err,
			"op", opID, "step", res.FailedStep, "branch", targetBranch)
		return fmt.Errorf("switch dispatch failed at %s: %w", res.FailedStep, res.Err)
	}

	log.Info(log.CatOrch, "Switch command dispatched",
		"op", opID, "branch", targetBranch, "terminal", string(res.Lifecycle))
	return nil
}

// PullFromOrigin switches to the target branch if needed and pulls. The
// operation state transitions in-progress before dispatch and is reset to
// idle by a finalizer that runs on every path where dispatch started.
func (o *Orchestrator) PullFromOrigin(ctx context.Context, targetBranch string) error {
	_, span := o.tracer.Start(ctx, "orchestrator.pull_from_origin",
		trace.WithAttributes(attribute.String("branch.target", targetBranch)))
	defer span.End()

	opID := uuid.NewString()
	return o.runOperation(opID, ActionPullFromOrigin, targetBranch,
		fmt.Sprintf("Pulling %s from %s...", targetBranch, o.remote),
		func(repo application.Repository) (string, error) {
			if err := ValidateShellSafe("branch", targetBranch); err != nil {
				return "", err
			}
			pull := renderTemplate(o.templates.PullFromOrigin, config.DefaultPullTemplate,
				map[string]string{PlaceholderTargetBranch: targetBranch})
			return o.withSwitchPrefix(repo, targetBranch, pull), nil
		})
}

// MergeFromBase resolves the base branch, switches to the target branch if
// needed, and merges the base into it. The base name crosses a trust
// boundary (it comes from the remote, not the user), so it is validated
// like the target.
func (o *Orchestrator) MergeFromBase(ctx context.Context, targetBranch string) error {
	_, span := o.tracer.Start(ctx, "orchestrator.merge_from_base",
		trace.WithAttributes(attribute.String("branch.target", targetBranch)))
	defer span.End()

	opID := uuid.NewString()
	repo := o.tracker.ActiveRepository()
	if repo == nil {
		log.Error(log.CatOrch, "Merge requested without a repository", "op", opID)
		return ErrNoActiveRepository
	}
	baseBranch := tracker.ResolveBaseBranch(repo, o.remote)

	return o.runOperation(opID, ActionMergeFromBase, targetBranch,
		fmt.Sprintf("Merging %s into %s...", baseBranch, targetBranch),
		func(repo application.Repository) (string, error) {
			if err := ValidateShellSafe("branch", targetBranch); err != nil {
				return "", err
			}
			if err := ValidateShellSafe("base branch", baseBranch); err != nil {
				return "", err
			}
			merge := renderTemplate(o.templates.MergeFromBase, config.DefaultMergeTemplate,
				map[string]string{
					PlaceholderTargetBranch: targetBranch,
					PlaceholderBaseBranch:   baseBranch,
				})
			return o.withSwitchPrefix(repo, targetBranch, merge), nil
		})
}

// runOperation is the shared pull/merge pipeline: single-flight guard,
// pre-dispatch validation, in-progress transition, dispatch, MRU re-sync,
// and the guaranteed finalizer. A validation failure before dispatch leaves
// the previous state untouched apart from the error log entry.
func (o *Orchestrator) runOperation(opID string, action Action, targetBranch, startNotice string, compose func(application.Repository) (string, error)) (err error) {
	if !o.opMu.TryLock() {
		log.Warn(log.CatOrch, "Operation rejected, another is in progress", "op", opID, "action", string(action))
		return ErrOperationInProgress
	}
	defer o.opMu.Unlock()

	started := false
	defer func() {
		if !started {
			return
		}
		notice := fmt.Sprintf("Command sent. Watch the %s terminal for progress.", o.dispatcher.Name())
		if err != nil {
			notice = fmt.Sprintf("%s failed: %v", action, err)
		}
		o.state.setIdle(notice)
	}()

	defer func() {
		if err != nil {
			log.ErrorErr(log.CatOrch, "Operation failed", err, "op", opID, "action", string(action), "branch", targetBranch)
			log.Warn(log.CatOrch, "Check the terminal and the Logs view to continue", "op", opID)
		}
	}()

	repo := o.tracker.ActiveRepository()
	if repo == nil {
		return ErrNoActiveRepository
	}

	cmd, err := compose(repo)
	if err != nil {
		return err
	}

	o.state.setInProgress(action, o.dispatcher.Name(), startNotice)
	started = true

	res := o.dispatcher.RunCommand(repo.Root(), cmd)
	if !res.OK {
		return fmt.Errorf("dispatch failed at %s: %w", res.FailedStep, res.Err)
	}

	o.tracker.OnRepositoryStateChanged(repo)
	log.Info(log.CatOrch, "Operation dispatched",
		"op", opID, "action", string(action), "branch", targetBranch,
		"command", cmd, "terminal", string(res.Lifecycle))
	return nil
}

// withSwitchPrefix prepends the rendered switch command when HEAD differs
// from the target branch, producing `<switch> && <cmd>`.
func (o *Orchestrator) withSwitchPrefix(repo application.Repository, targetBranch, cmd string) string {
	head, err := repo.Head()
	if err != nil {
		log.Warn(log.CatOrch, "Failed to read HEAD, assuming branch change needed", "repo", repo.Root(), "error", err)
		head = ""
	}
	if head == targetBranch {
		return cmd
	}
	switchCmd := renderTemplate(o.templates.SwitchBranch, config.DefaultSwitchTemplate,
		map[string]string{PlaceholderTargetBranch: targetBranch})
	return switchCmd + " && " + cmd
}
