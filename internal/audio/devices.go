package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes one input or output device
type DeviceInfo struct {
	Index   int
	Name    string
	Default bool
}

// Direction selects input or output devices
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

func (d Direction) deviceType() malgo.DeviceType {
	if d == Output {
		return malgo.Playback
	}
	return malgo.Capture
}

// ListDevices enumerates devices using a short-lived backend context.
func ListDevices(dir Direction) ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(dir.deviceType())
	if err != nil {
		return nil, fmt.Errorf("enumerate %s devices: %w", dir, err)
	}
	return describe(infos), nil
}

func describe(infos []malgo.DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		out[i] = DeviceInfo{
			Index:   i,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		}
	}
	return out
}

// deviceID resolves index against the devices of dir. A negative index selects the default.
func deviceID(ctx *malgo.AllocatedContext, dir Direction, index int) (*malgo.DeviceID, error) {
	if index < 0 {
		return nil, nil
	}
	infos, err := ctx.Devices(dir.deviceType())
	if err != nil {
		return nil, fmt.Errorf("enumerate %s devices: %w", dir, err)
	}
	if index >= len(infos) {
		return nil, fmt.Errorf("%w: %d (have %d %s devices)", ErrDeviceIndex, index, len(infos), dir)
	}
	id := infos[index].ID
	return &id, nil
}
