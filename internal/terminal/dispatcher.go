package terminal

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zjrosen/switchyard/internal/log"
)

// Dispatcher sequences commands into a single named terminal. It tracks at
// most one terminal reference; when the host reports that terminal closed,
// the reference is cleared and a replacement is created transparently on
// the next dispatch. The terminal itself is never force-closed.
type Dispatcher struct {
	mu      sync.Mutex
	host    Host
	name    string
	current *Info
}

// NewDispatcher creates a dispatcher owning the terminal with the given
// logical name.
func NewDispatcher(host Host, name string) *Dispatcher {
	return &Dispatcher{host: host, name: name}
}

// Name returns the logical terminal name.
func (d *Dispatcher) Name() string {
	return d.name
}

// OnClosed clears the tracked reference when the host reports our terminal
// closed. Events for other terminals are ignored.
func (d *Dispatcher) OnClosed(ev ClosedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil && d.current.ID == ev.ID {
		log.Debug(log.CatTerminal, "Tracked terminal closed", "id", ev.ID, "name", d.name)
		d.current = nil
	}
}

// RunCommand acquires the terminal, surfaces it, and types a directory
// change followed by the command text into it. Each step failure is
// reported with its step name; later steps are skipped.
func (d *Dispatcher) RunCommand(repositoryPath, commandText string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, lifecycle, err := d.acquire(repositoryPath)
	if err != nil {
		log.ErrorErr(log.CatTerminal, "Terminal acquisition failed", err, "name", d.name)
		return Result{FailedStep: StepCreateOrReuse, Err: err}
	}
	d.current = &info

	if err := d.host.Show(info.ID); err != nil {
		log.ErrorErr(log.CatTerminal, "Terminal show failed", err, "id", info.ID)
		return Result{FailedStep: StepShow, Lifecycle: lifecycle, Err: err}
	}

	if err := d.host.Focus(info.ID); err != nil {
		log.ErrorErr(log.CatTerminal, "Terminal focus failed", err, "id", info.ID)
		return Result{FailedStep: StepFocus, Lifecycle: lifecycle, Err: err}
	}

	cd := fmt.Sprintf("cd %q", repositoryPath)
	if err := d.host.SendText(info.ID, cd); err != nil {
		log.ErrorErr(log.CatTerminal, "Terminal send failed", err, "id", info.ID, "text", cd)
		return Result{FailedStep: StepSendText, Lifecycle: lifecycle, Err: err}
	}
	if err := d.host.SendText(info.ID, commandText); err != nil {
		log.ErrorErr(log.CatTerminal, "Terminal send failed", err, "id", info.ID, "text", commandText)
		return Result{FailedStep: StepSendText, Lifecycle: lifecycle, Err: err}
	}

	log.Debug(log.CatTerminal, "Command dispatched", "id", info.ID, "lifecycle", string(lifecycle), "command", commandText)
	return Result{OK: true, Lifecycle: lifecycle}
}

// acquire reuses the tracked terminal if it is still open, adopts an open
// terminal matching our name, or creates a new one rooted at dir.
func (d *Dispatcher) acquire(dir string) (Info, Lifecycle, error) {
	open, err := d.host.List()
	if err != nil {
		return Info{}, "", fmt.Errorf("failed to list terminals: %w", err)
	}

	if d.current != nil {
		for _, info := range open {
			if info.ID == d.current.ID {
				return info, LifecycleReused, nil
			}
		}
		// Closed out from under us; fall through to search/create.
		d.current = nil
	}

	for _, info := range open {
		if strings.EqualFold(info.Name, d.name) {
			return info, LifecycleReused, nil
		}
	}

	info, err := d.host.Create(d.name, dir)
	if err != nil {
		return Info{}, "", fmt.Errorf("failed to create terminal %s: %w", d.name, err)
	}
	return info, LifecycleCreated, nil
}
