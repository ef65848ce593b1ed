package runners

import (
	"context"
	"encoding/json"

	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/pkg/protocol"
)

// deviceIDMax is how much of a device id survives into the payload.
const deviceIDMax = 8

// MediaDevicesRunner lists available media input/output devices. Labels
// may be empty without prior permission; ids are truncated for payload
// economy.
type MediaDevicesRunner struct {
	Lister platform.DeviceLister
}

func (*MediaDevicesRunner) Kind() string { return protocol.KindMediaDevices }

func (d *MediaDevicesRunner) Run(ctx context.Context, rep *Reporter, _ json.RawMessage) {
	if d.Lister == nil {
		rep.Fail("device enumeration not supported", nil)
		return
	}

	list, err := d.Lister.Devices(ctx)
	if err != nil {
		rep.Fail("enumerate devices: "+err.Error(), nil)
		return
	}

	devices := make([]protocol.MediaDevice, 0, len(list))
	for _, dev := range list {
		devices = append(devices, protocol.MediaDevice{
			Kind:  dev.Kind,
			ID:    truncateID(dev.ID),
			Label: dev.Label,
		})
	}

	rep.Success(protocol.MediaDevicesResult{
		Kind:    protocol.KindMediaDevices,
		Count:   len(devices),
		Devices: devices,
	})
}

// truncateID keeps the first deviceIDMax characters, cutting on rune
// boundaries so multibyte ids stay valid UTF-8.
func truncateID(id string) string {
	runes := []rune(id)
	if len(runes) <= deviceIDMax {
		return id
	}
	return string(runes[:deviceIDMax]) + "…"
}
