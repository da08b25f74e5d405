package orchestrator

import (
	"sync"

	"github.com/zjrosen/switchyard/internal/pubsub"
)

// Action identifies the multi-step git operation in flight.
type Action string

const (
	ActionNone           Action = ""
	ActionPullFromOrigin Action = "pullFromOrigin"
	ActionMergeFromBase  Action = "mergeFromBase"
)

// OperationState is the session-wide git operation status surfaced to the
// UI. Exactly one exists per session, not per repository. The in-progress
// window is narrow: it covers the synchronous dispatch only, not the shell
// command's actual runtime.
type OperationState struct {
	InProgress   bool   `json:"isInProgress"`
	Action       Action `json:"action,omitempty"`
	TerminalName string `json:"terminalName,omitempty"`
	Notice       string `json:"notice,omitempty"`
}

// operationStateHolder serializes state transitions and publishes each one.
type operationStateHolder struct {
	mu     sync.Mutex
	state  OperationState
	broker *pubsub.Broker[OperationState]
}

func newOperationStateHolder() *operationStateHolder {
	return &operationStateHolder{broker: pubsub.NewBroker[OperationState]()}
}

func (h *operationStateHolder) get() OperationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *operationStateHolder) setInProgress(action Action, terminalName, notice string) {
	h.set(OperationState{InProgress: true, Action: action, TerminalName: terminalName, Notice: notice})
}

func (h *operationStateHolder) setIdle(notice string) {
	h.set(OperationState{Notice: notice})
}

func (h *operationStateHolder) set(state OperationState) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.broker.Publish(state)
}

func (h *operationStateHolder) subscribe() *pubsub.Subscription[OperationState] {
	return h.broker.Subscribe()
}
