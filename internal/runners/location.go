package runners

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// locationErrText renders provider errors the way the wire contract
// expects: "geolocation: <code> <message>". Non-platform errors get the
// position-unavailable code.
func locationErrText(err error) string {
	var le *platform.LocationError
	if errors.As(err, &le) {
		return le.Error()
	}
	le = &platform.LocationError{Code: platform.LocationPositionUnavailable, Message: err.Error()}
	return le.Error()
}

// LocationOnceRunner requests a single geolocation fix.
type LocationOnceRunner struct {
	Loc platform.LocationProvider
}

func (*LocationOnceRunner) Kind() string { return protocol.KindLocationOnce }

func (l *LocationOnceRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	if l.Loc == nil {
		rep.Fail("geolocation not supported", protocol.LocationOnceResult{Kind: protocol.KindLocationOnce})
		return
	}

	var p protocol.LocationOncePayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	// Requesting; the fix itself may take the whole timeout.
	rep.Progress(5)

	timeout := time.Duration(p.TimeoutMs) * time.Millisecond
	fixCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pos, err := l.Loc.CurrentPosition(fixCtx, platform.LocationOptions{
		HighAccuracy: p.HighAccuracy,
		Timeout:      timeout,
		MaximumAge:   time.Duration(p.MaximumAgeMs) * time.Millisecond,
	})
	if err != nil {
		if fixCtx.Err() != nil && ctx.Err() == nil {
			err = &platform.LocationError{Code: platform.LocationTimeout, Message: "timeout expired"}
		}
		rep.Fail(locationErrText(err), protocol.LocationOnceResult{Kind: protocol.KindLocationOnce})
		return
	}

	rep.Success(protocol.LocationOnceResult{
		Kind: protocol.KindLocationOnce,
		Coords: protocol.Coords{
			Lat:      pos.Lat,
			Lon:      pos.Lon,
			Accuracy: pos.Accuracy,
			Altitude: pos.Altitude,
			Heading:  pos.Heading,
			Speed:    pos.Speed,
		},
		Timestamp: pos.Time.UnixMilli(),
	})
}

// LocationWatchRunner subscribes to position updates for a bounded
// duration, accumulating points. The wall-clock timer, not the update
// stream, ends the task; a successful result always carries the points
// gathered, possibly none.
type LocationWatchRunner struct {
	Loc platform.LocationProvider
}

func (*LocationWatchRunner) Kind() string { return protocol.KindLocationWatch }

func (l *LocationWatchRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	if l.Loc == nil {
		rep.Fail("geolocation not supported", protocol.LocationWatchResult{Kind: protocol.KindLocationWatch})
		return
	}

	var p protocol.LocationWatchPayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	rep.Progress(0)

	watch, err := l.Loc.Watch(ctx, platform.LocationOptions{
		HighAccuracy: p.HighAccuracy,
		MaximumAge:   time.Duration(p.MaximumAgeMs) * time.Millisecond,
	})
	if err != nil {
		rep.Fail(locationErrText(err), protocol.LocationWatchResult{Kind: protocol.KindLocationWatch})
		return
	}
	defer watch.Stop()

	deadline := time.NewTimer(time.Duration(p.DurationSec) * time.Second)
	defer deadline.Stop()

	var points []protocol.WatchPoint
	progress := 0
	updates, errs := watch.Updates(), watch.Errs()

	for {
		select {
		case pos, ok := <-updates:
			if !ok {
				// Stream ended early; keep waiting out the clock so the
				// no-result-before-the-deadline property holds.
				updates = nil
				continue
			}
			points = append(points, protocol.WatchPoint{
				Lat:      pos.Lat,
				Lon:      pos.Lon,
				Accuracy: pos.Accuracy,
				TS:       pos.Time.UnixMilli(),
			})
			progress += 10
			if progress > 95 {
				progress = 95
			}
			rep.Progress(progress)

		case werr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			rep.Fail(locationErrText(werr), protocol.LocationWatchResult{
				Kind:  protocol.KindLocationWatch,
				Count: len(points),
			})
			return

		case <-deadline.C:
			rep.Success(protocol.LocationWatchResult{
				Kind:   protocol.KindLocationWatch,
				Count:  len(points),
				Points: points,
			})
			return

		case <-ctx.Done():
			rep.Fail("geolocation: watch cancelled", protocol.LocationWatchResult{
				Kind:  protocol.KindLocationWatch,
				Count: len(points),
			})
			return
		}
	}
}
