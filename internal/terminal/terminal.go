// Package terminal owns the single long-lived terminal surface commands are
// dispatched into. The Dispatcher guarantees at most one terminal per
// logical name, reusing or recreating it across dispatches.
package terminal

import (
	"github.com/zjrosen/switchyard/internal/pubsub"
)

// Dispatch step names, reported verbatim in structured failures.
const (
	StepCreateOrReuse = "createOrReuse"
	StepShow          = "show"
	StepFocus         = "focus"
	StepSendText      = "sendText"
)

// Lifecycle reports how the terminal for a dispatch was obtained.
type Lifecycle string

const (
	LifecycleCreated Lifecycle = "created"
	LifecycleReused  Lifecycle = "reused"
)

// Info identifies one open terminal on the host.
type Info struct {
	ID   string
	Name string
}

// ClosedEvent reports that a terminal disappeared from the host.
type ClosedEvent struct {
	ID string
}

// Host is the port to the terminal multiplexer. Implementations must be
// safe for concurrent use.
type Host interface {
	// List returns the currently open terminals.
	List() ([]Info, error)

	// Create opens a new terminal with the given name, rooted at dir.
	Create(name, dir string) (Info, error)

	// Show makes the terminal visible.
	Show(id string) error

	// Focus gives the terminal input focus.
	Focus(id string) error

	// SendText types text into the terminal followed by a newline.
	SendText(id, text string) error

	// Closed returns a stream of terminal-closed events. The host discovers
	// closures on a best-effort basis; the Dispatcher additionally verifies
	// liveness on every dispatch.
	Closed() *pubsub.Subscription[ClosedEvent]
}

// Result is the structured outcome of one dispatch.
type Result struct {
	OK         bool
	FailedStep string
	Lifecycle  Lifecycle
	Err        error
}
