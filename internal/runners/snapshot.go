package runners

import (
	"context"
	"encoding/json"

	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// SnapshotRunner re-collects the capability snapshot on demand. The
// same collector feeds the hello frame at session start.
type SnapshotRunner struct {
	Collector platform.SnapshotCollector
}

func (*SnapshotRunner) Kind() string { return protocol.KindInfoSnapshot }

func (s *SnapshotRunner) Run(ctx context.Context, rep *Reporter, _ json.RawMessage) {
	rep.Success(protocol.SnapshotResult{
		Kind:     protocol.KindInfoSnapshot,
		Snapshot: s.Collector.Collect(ctx),
	})
}
