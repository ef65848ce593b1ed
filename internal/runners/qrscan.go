package runners

import (
	"context"
	"encoding/json"
	"time"

	"github.com/seaquell/outpost/internal/gesture"
	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// QRScanRunner samples camera frames for a bounded duration, attempting
// one detection per frame. Either a decode or the deadline produces the
// terminal result, never both: the sampling loop is sequential and the
// reporter drops a second terminal anyway.
type QRScanRunner struct {
	Cam  platform.Camera
	Det  platform.BarcodeDetector
	Gate *gesture.Gate
}

func (*QRScanRunner) Kind() string { return protocol.KindQRScan }

func (q *QRScanRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	// Checked before any acquisition so an unsupported host fails
	// without touching the camera or prompting the user.
	if q.Det == nil {
		rep.Fail("barcode detection not supported", nil)
		return
	}
	if q.Cam == nil {
		rep.Fail("camera not supported", nil)
		return
	}

	var p protocol.QRScanPayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	err := q.Gate.Request(ctx, "camera", func() {
		q.scan(ctx, rep, p)
	})
	if err != nil {
		rep.Fail("qr scan: permission prompt cancelled", nil)
	}
}

func (q *QRScanRunner) scan(ctx context.Context, rep *Reporter, p protocol.QRScanPayload) {
	stream, err := q.Cam.Open(ctx, p.Facing)
	if err != nil {
		rep.Fail("camera: "+err.Error(), nil)
		return
	}
	defer stream.Close()

	scanCtx, cancel := context.WithTimeout(ctx, time.Duration(p.DurationSec)*time.Second)
	defer cancel()

	frames := 0
	for {
		frame, err := stream.NextFrame(scanCtx)
		if err != nil {
			partial := protocol.QRScanResult{Kind: protocol.KindQRScan, Frames: frames}
			switch {
			case ctx.Err() != nil:
				rep.Fail("qr scan cancelled", partial)
			case scanCtx.Err() != nil:
				rep.Fail("no code found", partial)
			default:
				rep.Fail("camera: "+err.Error(), partial)
			}
			return
		}

		frames++
		if value, format, ok := q.Det.Detect(frame); ok {
			rep.Success(protocol.QRScanResult{
				Kind:   protocol.KindQRScan,
				Value:  value,
				Format: format,
				Frames: frames,
			})
			return
		}
	}
}
