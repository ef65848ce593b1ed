package runners

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/seaquell/outpost/internal/gesture"
	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

const (
	micSamplePeriod = 100 * time.Millisecond
	clipCapBytes    = 64 * 1024
	clipEncoding    = "pcm16+zstd"
)

// MicSampleRunner records audio for a bounded duration, measuring peak
// amplitude and running-maximum RMS on a fixed sampling period, and
// compresses the recorded PCM into the result clip. Gated behind a user
// confirmation; stream and timers are torn down on every path.
type MicSampleRunner struct {
	Mic  platform.Microphone
	Gate *gesture.Gate
}

func (*MicSampleRunner) Kind() string { return protocol.KindMicSample }

func (m *MicSampleRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	if m.Mic == nil {
		rep.Fail("microphone not supported", nil)
		return
	}

	var p protocol.MicSamplePayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	err := m.Gate.Request(ctx, "microphone", func() {
		m.sample(ctx, rep, p)
	})
	if err != nil {
		rep.Fail("mic sample: permission prompt cancelled", nil)
	}
}

func (m *MicSampleRunner) sample(ctx context.Context, rep *Reporter, p protocol.MicSamplePayload) {
	stream, err := m.Mic.Open(ctx)
	if err != nil {
		rep.Fail("microphone: "+err.Error(), nil)
		return
	}
	defer stream.Close()

	duration := time.Duration(p.DurationSec) * time.Second
	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(micSamplePeriod)
	defer ticker.Stop()

	started := time.Now()
	var (
		recorded []int16
		window   []int16
		peak     float64
		maxRMS   float64
	)
	samples := stream.Samples()

	for {
		select {
		case chunk, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			recorded = append(recorded, chunk...)
			window = append(window, chunk...)
			for _, s := range chunk {
				if a := math.Abs(float64(s)) / 32768; a > peak {
					peak = a
				}
			}

		case <-ticker.C:
			if rms := rmsOf(window); rms > maxRMS {
				maxRMS = rms
			}
			window = window[:0]
			pct := int(float64(time.Since(started)) / float64(duration) * 100)
			if pct > 95 {
				pct = 95
			}
			rep.Progress(pct)

		case <-deadline.C:
			if rms := rmsOf(window); rms > maxRMS {
				maxRMS = rms
			}
			m.finalize(rep, p, stream.SampleRate(), recorded, peak, maxRMS)
			return

		case <-ctx.Done():
			rep.Fail("mic sample cancelled", nil)
			return
		}
	}
}

func (m *MicSampleRunner) finalize(rep *Reporter, p protocol.MicSamplePayload, rate int, recorded []int16, peak, maxRMS float64) {
	clip, err := compressClip(recorded)
	if err != nil {
		rep.Fail("mic sample: encode clip: "+err.Error(), nil)
		return
	}

	res := protocol.MicSampleResult{
		Kind:         protocol.KindMicSample,
		DurationMs:   int64(p.DurationSec) * 1000,
		SampleRate:   rate,
		Peak:         peak,
		MaxRMS:       maxRMS,
		ClipBytes:    len(clip),
		ClipEncoding: clipEncoding,
	}
	if p.IncludeClip && len(clip) <= clipCapBytes {
		res.Clip = base64.StdEncoding.EncodeToString(clip)
	}
	rep.Success(res)
}

// rmsOf returns the root-mean-square of one sampling window, normalized
// to 0..1.
func rmsOf(window []int16) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(window))) / 32768
}

// compressClip encodes the PCM as little-endian bytes and compresses
// them with zstd.
func compressClip(recorded []int16) ([]byte, error) {
	pcm := make([]byte, len(recorded)*2)
	for i, s := range recorded {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(pcm, nil), nil
}
