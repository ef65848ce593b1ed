package runners

import (
	"context"
	"encoding/json"
	"math"
	"runtime"

	"github.com/seaquell/outpost/pkg/protocol"
)

// computeChunkTarget splits the work into ~2% progress increments.
const (
	computeChunkTarget = 50
	computeChunkMin    = 100
)

// CPURunner performs a bounded amount of placeholder work in chunks,
// yielding between chunks so concurrent tasks interleave. It has no
// failure path and does not support cancellation.
type CPURunner struct{}

func (CPURunner) Kind() string { return protocol.KindCPU }

func (CPURunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	var p protocol.CPUPayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	n := p.N
	chunk := (n + computeChunkTarget - 1) / computeChunkTarget
	if chunk < computeChunkMin {
		chunk = computeChunkMin
	}

	rep.Progress(0)

	var sink uint64
	for i := 0; i < n; {
		end := i + chunk
		if end > n {
			end = n
		}
		for ; i < end; i++ {
			sink += uint64(i)
		}
		pct := int(math.Round(float64(i) / float64(n) * 100))
		if pct > 100 {
			pct = 100
		}
		rep.Progress(pct)
		if i < n {
			runtime.Gosched()
		}
	}
	_ = sink

	rep.Success(protocol.CPUResult{Kind: protocol.KindCPU, Count: n})
}
