// Package platform defines the boundary between the task engine and the
// host's capabilities (geolocation, camera, microphone, device listing).
// The engine depends only on these interfaces; real sensor bindings and
// test fakes both live behind them.
package platform

import (
	"context"
	"fmt"
	"image"
	"time"
)

// LocationError mirrors the platform geolocation error shape: a numeric
// code plus a human-readable message.
type LocationError struct {
	Code    int
	Message string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("geolocation: %d %s", e.Code, e.Message)
}

// Geolocation error codes.
const (
	LocationPermissionDenied    = 1
	LocationPositionUnavailable = 2
	LocationTimeout             = 3
)

// Position is one geographic fix from the location provider.
type Position struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	Altitude float64
	Heading  float64
	Speed    float64
	Time     time.Time
}

// LocationOptions tune a fix request or subscription.
type LocationOptions struct {
	HighAccuracy bool
	Timeout      time.Duration // single-fix only
	MaximumAge   time.Duration
}

// LocationWatch is a live position subscription. Exactly one of the two
// channels delivers per event; both are closed when the watch ends.
type LocationWatch interface {
	Updates() <-chan Position
	Errs() <-chan error
	// Stop ends the subscription. Safe to call more than once.
	Stop()
}

// LocationProvider is the geolocation capability.
type LocationProvider interface {
	CurrentPosition(ctx context.Context, opts LocationOptions) (Position, error)
	Watch(ctx context.Context, opts LocationOptions) (LocationWatch, error)
}

// CameraStream is an open camera capture. Close stops the underlying
// tracks and must be called on every path once Open succeeds.
type CameraStream interface {
	// NextFrame blocks until a frame is available or ctx is done.
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Camera is the camera capability. Facing is "user" or "environment".
type Camera interface {
	Open(ctx context.Context, facing string) (CameraStream, error)
}

// BarcodeDetector decodes machine-readable codes from frames. Detect
// returns ok=false when the frame holds no decodable code.
type BarcodeDetector interface {
	Detect(img image.Image) (value, format string, ok bool)
}

// AudioStream is an open microphone capture delivering PCM16 samples.
type AudioStream interface {
	// Samples yields chunks of signed 16-bit PCM. The channel is closed
	// when the stream ends or Close is called.
	Samples() <-chan []int16
	SampleRate() int
	Close() error
}

// Microphone is the audio-capture capability.
type Microphone interface {
	Open(ctx context.Context) (AudioStream, error)
}

// DeviceLister enumerates media input/output devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
}

// DeviceInfo is one enumerated device with its full id.
type DeviceInfo struct {
	Kind  string // "audioinput", "videoinput", "audiooutput"
	ID    string
	Label string // empty without prior permission
}

// Capabilities bundles everything the host exposes to the engine. Nil
// fields mean the capability is unsupported on this host.
type Capabilities struct {
	Location LocationProvider
	Camera   Camera
	Barcode  BarcodeDetector
	Mic      Microphone
	Devices  DeviceLister
}
