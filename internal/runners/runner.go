// Package runners implements one execution unit per task kind. Runners
// communicate exclusively by emitting frames through a Reporter; they
// never return values to the dispatcher.
package runners

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/seaquell/outpost/pkg/protocol"
)

// FrameSender transmits one outbound frame. The session implements it;
// sends while the connection is down are dropped there, not here.
type FrameSender interface {
	Send(frame any)
}

// Runner executes one task kind. Run must arrange exactly one terminal
// result for the task on every path before it returns; the Reporter's
// first-wins guard backs that invariant.
type Runner interface {
	Kind() string
	Run(ctx context.Context, rep *Reporter, payload json.RawMessage)
}

// Reporter emits the frames for a single task id. Progress after the
// terminal result and second results are silently dropped, so whichever
// of a completion/timeout race loses becomes a no-op.
type Reporter struct {
	taskID string
	out    FrameSender
	done   atomic.Bool
}

// NewReporter creates a reporter bound to one task id.
func NewReporter(taskID string, out FrameSender) *Reporter {
	return &Reporter{taskID: taskID, out: out}
}

// TaskID returns the id this reporter emits for.
func (r *Reporter) TaskID() string { return r.taskID }

// Progress emits a progress frame unless the task already finished.
func (r *Reporter) Progress(pct int) {
	if r.done.Load() {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.out.Send(protocol.NewProgress(r.taskID, pct))
}

// Success emits the terminal success result. Returns false if a result
// was already sent.
func (r *Reporter) Success(result any) bool {
	return r.Finish(true, "", result)
}

// Fail emits the terminal failure result, optionally with partial data
// (e.g. points collected before a subscription error).
func (r *Reporter) Fail(errMsg string, partial any) bool {
	return r.Finish(false, errMsg, partial)
}

// Finish emits the terminal result with an explicit ok flag. Exactly the
// first call per task wins.
func (r *Reporter) Finish(ok bool, errMsg string, result any) bool {
	if !r.done.CompareAndSwap(false, true) {
		return false
	}
	if ok {
		r.out.Send(protocol.NewOKResult(r.taskID, result))
	} else {
		r.out.Send(protocol.NewErrorResult(r.taskID, errMsg, result))
	}
	return true
}

// Done reports whether the terminal result has been sent.
func (r *Reporter) Done() bool { return r.done.Load() }
