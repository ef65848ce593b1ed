// Package dispatch routes inbound task frames to their runners. It is a
// pure routing layer: no state survives between calls, no concurrency
// limit, no dedup or cancel-by-id.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seaquell/outpost/internal/runners"
	"github.com/seaquell/outpost/pkg/protocol"
)

// Dispatcher maps task kinds to registered runners and starts one
// goroutine per inbound task.
type Dispatcher struct {
	byKind map[string]runners.Runner
	out    runners.FrameSender
	tracer trace.Tracer
}

// New creates a dispatcher emitting frames through out.
func New(out runners.FrameSender) *Dispatcher {
	return &Dispatcher{
		byKind: make(map[string]runners.Runner),
		out:    out,
		tracer: otel.Tracer("outpost/dispatch"),
	}
}

// Register adds a runner under its own kind. Registration happens at
// startup, before any dispatch; the map is read-only afterwards.
func (d *Dispatcher) Register(r runners.Runner) {
	d.byKind[r.Kind()] = r
}

// RegisterAlias exposes an already registered runner under a second
// kind string (legacy task names).
func (d *Dispatcher) RegisterAlias(alias, kind string) {
	if r, ok := d.byKind[kind]; ok {
		d.byKind[alias] = r
	}
}

// Kinds returns the registered kind strings.
func (d *Dispatcher) Kinds() []string {
	kinds := make([]string, 0, len(d.byKind))
	for k := range d.byKind {
		kinds = append(kinds, k)
	}
	return kinds
}

// Dispatch routes one task frame. Unknown kinds produce exactly one
// failure result and no progress. Dispatch never blocks on the runner
// and returns before it completes.
func (d *Dispatcher) Dispatch(ctx context.Context, frame protocol.TaskFrame) {
	kind := frame.Task.Type
	rep := runners.NewReporter(frame.ID, d.out)

	r, ok := d.byKind[kind]
	if !ok {
		slog.Warn("task with unknown kind", "task", frame.ID, "kind", kind)
		rep.Fail(protocol.ErrUnknownTask, nil)
		return
	}

	slog.Info("task dispatched", "task", frame.ID, "kind", kind)
	go d.run(ctx, r, rep, kind, frame.Task.Payload)
}

func (d *Dispatcher) run(ctx context.Context, r runners.Runner, rep *runners.Reporter, kind string, payload json.RawMessage) {
	ctx, span := d.tracer.Start(ctx, "task.run",
		trace.WithAttributes(
			attribute.String("task.kind", kind),
			attribute.String("task.id", rep.TaskID()),
		))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			// One task's fault must not reach the session or its peers.
			slog.Error("task runner panicked", "task", rep.TaskID(), "kind", kind, "panic", p)
			rep.Fail(fmt.Sprintf("task failed: %v", p), nil)
		}
	}()

	r.Run(ctx, rep, payload)

	if !rep.Done() {
		// Backstop for the exactly-one-result invariant.
		slog.Error("runner returned without a result", "task", rep.TaskID(), "kind", kind)
		rep.Fail("task produced no result", nil)
	}
}
