// Package gesture serializes permission-sensitive task starts behind a
// single user confirmation. Some hosts refuse to grant camera or
// microphone access outside a direct user-initiated action, so gated
// runners must not touch the capability until the user confirms.
package gesture

import (
	"context"
	"log/slog"
	"sync"
)

// Prompter renders the confirmation prompt. The engine only guarantees
// that at most one prompt is visible at a time; rendering is the host's
// concern.
type Prompter interface {
	// Show displays a prompt naming the capability being requested.
	Show(capability string)
	// Hide removes the currently visible prompt.
	Hide()
}

type request struct {
	capability string
	served     chan struct{}
}

// Gate is a single-slot confirmation primitive. The first request shows
// a prompt; requests arriving while one is visible queue behind it and
// are prompted in arrival order. A request whose context is cancelled
// leaves the queue, so a gated task never hangs silently.
type Gate struct {
	mu       sync.Mutex
	prompter Prompter
	queue    []*request
	visible  bool
}

// New creates a gate rendering through the given prompter.
func New(p Prompter) *Gate {
	return &Gate{prompter: p}
}

// Request queues a confirmation request for the named capability and
// blocks until the user confirms it or ctx is cancelled. On confirm the
// start action runs on the caller's goroutine and Request returns nil
// after it completes; the prompt is removed as soon as the confirm
// lands, regardless of the action's outcome.
func (g *Gate) Request(ctx context.Context, capability string, start func()) error {
	req := &request{capability: capability, served: make(chan struct{})}

	g.mu.Lock()
	g.queue = append(g.queue, req)
	if !g.visible {
		g.visible = true
		g.prompter.Show(capability)
	}
	g.mu.Unlock()

	select {
	case <-req.served:
		start()
		return nil
	case <-ctx.Done():
		g.withdraw(req)
		return ctx.Err()
	}
}

// Confirm reports the user's tap. It serves the request at the head of
// the queue, removes the prompt, and shows the next queued prompt if
// any. Confirm with nothing pending is a no-op and returns false.
func (g *Gate) Confirm() bool {
	g.mu.Lock()
	if len(g.queue) == 0 {
		g.mu.Unlock()
		return false
	}
	head := g.queue[0]
	g.queue = g.queue[1:]
	g.prompter.Hide()
	if len(g.queue) > 0 {
		g.prompter.Show(g.queue[0].capability)
	} else {
		g.visible = false
	}
	g.mu.Unlock()

	slog.Debug("gesture confirmed", "capability", head.capability)
	close(head.served)
	return true
}

// Pending returns the number of queued requests, visible prompt included.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Visible returns the capability of the prompt currently on screen.
func (g *Gate) Visible() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.visible || len(g.queue) == 0 {
		return "", false
	}
	return g.queue[0].capability, true
}

// withdraw removes a cancelled request. If it was the one on screen,
// the prompt moves on to the next in line.
func (g *Gate) withdraw(req *request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, r := range g.queue {
		if r != req {
			continue
		}
		g.queue = append(g.queue[:i], g.queue[i+1:]...)
		if i == 0 && g.visible {
			g.prompter.Hide()
			if len(g.queue) > 0 {
				g.prompter.Show(g.queue[0].capability)
			} else {
				g.visible = false
			}
		}
		return
	}
}
