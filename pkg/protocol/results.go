package protocol

// Result payloads carried in ResultFrame.Result. Every payload is tagged
// with its task kind so controllers can decode without tracking ids.

type CPUResult struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type FetchResult struct {
	Kind        string `json:"kind"`
	Status      int    `json:"status"`
	Size        int    `json:"size"`
	Millis      int64  `json:"millis"`
	Via         string `json:"via"` // "direct" | "proxy"
	ContentType string `json:"contentType,omitempty"`
	Body        string `json:"body,omitempty"` // truncated preview
}

type SnapshotResult struct {
	Kind     string         `json:"kind"`
	Snapshot map[string]any `json:"snapshot"`
}

// Coords is one geographic fix.
type Coords struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
	Altitude float64 `json:"altitude,omitempty"`
	Heading  float64 `json:"heading,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

type LocationOnceResult struct {
	Kind      string `json:"kind"`
	Coords    Coords `json:"coords"`
	Timestamp int64  `json:"timestamp"`
}

// WatchPoint is one accumulated fix in a location watch.
type WatchPoint struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
	TS       int64   `json:"ts"`
}

type LocationWatchResult struct {
	Kind   string       `json:"kind"`
	Count  int          `json:"count"`
	Points []WatchPoint `json:"points,omitempty"`
}

type CameraSnapshotResult struct {
	Kind        string `json:"kind"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Bytes       int    `json:"bytes"`
	ContentType string `json:"contentType"`
	Preview     string `json:"preview,omitempty"` // base64, size-capped
}

type QRScanResult struct {
	Kind   string `json:"kind"`
	Value  string `json:"value,omitempty"`
	Format string `json:"format,omitempty"`
	Frames int    `json:"frames"` // frames sampled
}

type MicSampleResult struct {
	Kind         string  `json:"kind"`
	DurationMs   int64   `json:"durationMs"`
	SampleRate   int     `json:"sampleRate"`
	Peak         float64 `json:"peak"`   // peak amplitude, 0..1
	MaxRMS       float64 `json:"maxRms"` // running-maximum RMS, 0..1
	ClipBytes    int     `json:"clipBytes"`
	ClipEncoding string  `json:"clipEncoding,omitempty"` // "pcm16+zstd"
	Clip         string  `json:"clip,omitempty"`         // base64, size-capped
}

// MediaDevice describes one input/output device. Labels may be empty
// without prior permission; ids are truncated for payload economy.
type MediaDevice struct {
	Kind  string `json:"kind"`
	ID    string `json:"deviceId"`
	Label string `json:"label"`
}

type MediaDevicesResult struct {
	Kind    string        `json:"kind"`
	Count   int           `json:"count"`
	Devices []MediaDevice `json:"devices"`
}
