package protocol

// Task payloads. Each Normalize applies the documented defaults and
// floors so runners always see valid values; missing or malformed
// fields fall back rather than fail.

// CPUPayload drives the chunked placeholder-work task.
type CPUPayload struct {
	N int `json:"n"`
}

func (p *CPUPayload) Normalize() {
	switch {
	case p.N == 0:
		p.N = 10000
	case p.N < 0:
		p.N = 1
	}
}

// Fetch routing modes.
const (
	FetchModeClient = "client" // direct only, no fallback
	FetchModeAuto   = "auto"   // direct first, proxy on failure
	FetchModeServer = "server" // proxy only, the direct path is skipped
)

// FetchPayload drives the outbound HTTP GET task.
type FetchPayload struct {
	URL   string `json:"url"`
	Where string `json:"where"` // "client" | "auto" | "server"
}

func (p *FetchPayload) Normalize() {
	switch p.Where {
	case FetchModeClient, FetchModeServer:
	default:
		p.Where = FetchModeAuto
	}
}

// LocationOncePayload drives a single geolocation fix.
type LocationOncePayload struct {
	HighAccuracy bool  `json:"highAccuracy"`
	TimeoutMs    int64 `json:"timeoutMs"`
	MaximumAgeMs int64 `json:"maximumAgeMs"`
}

func (p *LocationOncePayload) Normalize() {
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = 10000
	}
	if p.TimeoutMs < 3000 {
		p.TimeoutMs = 3000
	}
	if p.MaximumAgeMs < 0 {
		p.MaximumAgeMs = 0
	}
}

// LocationWatchPayload drives a duration-bounded position subscription.
type LocationWatchPayload struct {
	HighAccuracy bool  `json:"highAccuracy"`
	DurationSec  int   `json:"durationSec"`
	MaximumAgeMs int64 `json:"maximumAgeMs"`
}

func (p *LocationWatchPayload) Normalize() {
	if p.DurationSec <= 0 {
		p.DurationSec = 15
	}
	if p.DurationSec < 3 {
		p.DurationSec = 3
	}
	if p.MaximumAgeMs < 0 {
		p.MaximumAgeMs = 0
	}
}

// CameraSnapshotPayload drives a single gated camera capture.
type CameraSnapshotPayload struct {
	Facing         string `json:"facing"` // "user" | "environment"
	MaxWidth       int    `json:"maxWidth"`
	MaxHeight      int    `json:"maxHeight"`
	Quality        int    `json:"quality"`        // JPEG quality 1..100
	IncludePreview bool   `json:"includePreview"` // inline base64 preview
}

func (p *CameraSnapshotPayload) Normalize() {
	if p.Facing != "environment" {
		p.Facing = "user"
	}
	if p.MaxWidth <= 0 {
		p.MaxWidth = 640
	}
	if p.MaxHeight <= 0 {
		p.MaxHeight = 480
	}
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = 70
	}
}

// QRScanPayload drives a duration-bounded gated barcode scan.
type QRScanPayload struct {
	Facing      string `json:"facing"`
	DurationSec int    `json:"durationSec"`
}

func (p *QRScanPayload) Normalize() {
	if p.Facing != "user" {
		p.Facing = "environment"
	}
	if p.DurationSec <= 0 {
		p.DurationSec = 10
	}
	if p.DurationSec < 3 {
		p.DurationSec = 3
	}
}

// MicSamplePayload drives a duration-bounded gated microphone sample.
type MicSamplePayload struct {
	DurationSec int  `json:"durationSec"`
	IncludeClip bool `json:"includeClip"` // inline base64 clip
}

func (p *MicSamplePayload) Normalize() {
	if p.DurationSec <= 0 {
		p.DurationSec = 5
	}
	if p.DurationSec < 1 {
		p.DurationSec = 1
	}
}
