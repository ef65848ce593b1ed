package protocol

// Task kind strings carried in TaskSpec.Type.
const (
	KindCPU           = "cpu"
	KindFetch         = "fetch"
	KindInfoSnapshot  = "info_snapshot"
	KindInfo          = "info" // legacy alias for info_snapshot
	KindLocationOnce  = "location_once"
	KindLocationWatch = "location_watch"
	KindCameraSnap    = "camera_snapshot"
	KindQRScan        = "qr_scan"
	KindMicSample     = "mic_sample"
	KindMediaDevices  = "media_devices"
)

// ErrUnknownTask is the error text of the failure result sent for an
// unrecognized task kind.
const ErrUnknownTask = "unknown task"
