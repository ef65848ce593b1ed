package runners

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/disintegration/imaging"

	"github.com/seaquell/outpost/internal/gesture"
	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

const (
	// cameraFrameTimeout bounds the wait for the first frame after the
	// stream opens.
	cameraFrameTimeout = 10 * time.Second
	// previewCapBytes caps the inline base64 preview.
	previewCapBytes = 64 * 1024
)

// CameraSnapshotRunner captures one scaled, compressed frame. The start
// is gated behind a user confirmation; the stream is closed on every
// path once opened.
type CameraSnapshotRunner struct {
	Cam  platform.Camera
	Gate *gesture.Gate
}

func (*CameraSnapshotRunner) Kind() string { return protocol.KindCameraSnap }

func (c *CameraSnapshotRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	if c.Cam == nil {
		rep.Fail("camera not supported", nil)
		return
	}

	var p protocol.CameraSnapshotPayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	err := c.Gate.Request(ctx, "camera", func() {
		c.capture(ctx, rep, p)
	})
	if err != nil {
		rep.Fail("camera: permission prompt cancelled", nil)
	}
}

func (c *CameraSnapshotRunner) capture(ctx context.Context, rep *Reporter, p protocol.CameraSnapshotPayload) {
	stream, err := c.Cam.Open(ctx, p.Facing)
	if err != nil {
		rep.Fail("camera: "+err.Error(), nil)
		return
	}
	defer stream.Close()

	frameCtx, cancel := context.WithTimeout(ctx, cameraFrameTimeout)
	defer cancel()

	frame, err := stream.NextFrame(frameCtx)
	if err != nil {
		rep.Fail("camera: no frame: "+err.Error(), nil)
		return
	}

	scaled := imaging.Fit(frame, p.MaxWidth, p.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	contentType := "image/jpeg"
	err = imaging.Encode(&buf, scaled, imaging.JPEG, imaging.JPEGQuality(p.Quality))
	if err != nil {
		// Fallback encoding before giving up.
		buf.Reset()
		contentType = "image/png"
		if err = imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
			rep.Fail("camera: encode: "+err.Error(), nil)
			return
		}
	}

	res := protocol.CameraSnapshotResult{
		Kind:        protocol.KindCameraSnap,
		Width:       scaled.Bounds().Dx(),
		Height:      scaled.Bounds().Dy(),
		Bytes:       buf.Len(),
		ContentType: contentType,
	}
	if p.IncludePreview && buf.Len() <= previewCapBytes {
		res.Preview = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	rep.Success(res)
}
