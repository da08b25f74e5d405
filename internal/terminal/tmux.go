package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/switchyard/internal/log"
	"github.com/zjrosen/switchyard/internal/pubsub"
)

const (
	tmuxBinary         = "tmux"
	tmuxCommandTimeout = 5 * time.Second

	// listFormat pairs window id and name with a unit separator, which tmux
	// forbids in window names.
	listSep    = "\x1f"
	listFormat = "#{window_id}" + listSep + "#{window_name}"
)

// TmuxHost implements Host on top of the tmux CLI, mapping each terminal to
// a named tmux window. tmux has no push notifications for window closure,
// so closed events are synthesized by diffing List results.
type TmuxHost struct {
	session string // target session; "" means the attached client's session
	run     func(args ...string) (string, error)

	mu     sync.Mutex
	known  map[string]struct{}
	broker *pubsub.Broker[ClosedEvent]
}

var _ Host = (*TmuxHost)(nil)

// NewTmuxHost creates a host dispatching into the given tmux session. An
// empty session targets whichever session the client is attached to.
func NewTmuxHost(session string) *TmuxHost {
	return &TmuxHost{
		session: session,
		run:     runTmuxCLI,
		known:   make(map[string]struct{}),
		broker:  pubsub.NewBroker[ClosedEvent](),
	}
}

// runTmuxCLI executes one tmux command with a hard timeout.
// SECURITY: executes only the tmux binary with application-constructed args.
func runTmuxCLI(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tmuxCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tmuxBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tmux %s failed: %s", args[0], msg)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// List returns the open windows, publishing closed events for windows that
// disappeared since the previous call.
func (h *TmuxHost) List() ([]Info, error) {
	args := []string{"list-windows", "-F", listFormat}
	if h.session != "" {
		args = append(args, "-t", h.session)
	} else {
		args = append(args, "-a")
	}

	out, err := h.run(args...)
	if err != nil {
		return nil, err
	}

	var open []Info
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		id, name, found := strings.Cut(line, listSep)
		if !found {
			log.Warn(log.CatTerminal, "Unparseable tmux window line", "line", line)
			continue
		}
		open = append(open, Info{ID: id, Name: name})
	}

	h.publishClosed(open)
	return open, nil
}

// Create opens a new window named name with its shell rooted at dir.
func (h *TmuxHost) Create(name, dir string) (Info, error) {
	args := []string{"new-window", "-P", "-F", "#{window_id}", "-n", name, "-c", dir}
	if h.session != "" {
		args = append(args, "-t", h.session+":")
	}

	id, err := h.run(args...)
	if err != nil {
		return Info{}, err
	}

	h.mu.Lock()
	h.known[id] = struct{}{}
	h.mu.Unlock()

	log.Debug(log.CatTerminal, "Created tmux window", "id", id, "name", name, "dir", dir)
	return Info{ID: id, Name: name}, nil
}

// Show selects the window so it becomes the session's visible window.
func (h *TmuxHost) Show(id string) error {
	_, err := h.run("select-window", "-t", id)
	return err
}

// Focus moves input focus to the window's active pane.
func (h *TmuxHost) Focus(id string) error {
	_, err := h.run("select-pane", "-t", id)
	return err
}

// SendText types text literally into the window, then a carriage return.
func (h *TmuxHost) SendText(id, text string) error {
	if _, err := h.run("send-keys", "-t", id, "-l", text); err != nil {
		return err
	}
	_, err := h.run("send-keys", "-t", id, "C-m")
	return err
}

// Closed returns a subscription for synthesized window-closed events.
func (h *TmuxHost) Closed() *pubsub.Subscription[ClosedEvent] {
	return h.broker.Subscribe()
}

func (h *TmuxHost) publishClosed(open []Info) {
	current := make(map[string]struct{}, len(open))
	for _, info := range open {
		current[info.ID] = struct{}{}
	}

	h.mu.Lock()
	var gone []string
	for id := range h.known {
		if _, ok := current[id]; !ok {
			gone = append(gone, id)
		}
	}
	h.known = current
	h.mu.Unlock()

	for _, id := range gone {
		log.Debug(log.CatTerminal, "tmux window closed", "id", id)
		h.broker.Publish(ClosedEvent{ID: id})
	}
}
