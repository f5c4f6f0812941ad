package device

import (
	"context"

	"github.com/2Fake/devolo-plc-api/internal/executor"
	"github.com/2Fake/devolo-plc-api/pkg/deviceapi"
	"github.com/2Fake/devolo-plc-api/pkg/plcnetapi"
)

// SyncDevice offers the Device lifecycle and its APIs as blocking calls.
// All calls run on one dedicated goroutine, in submission order.
type SyncDevice struct {
	dev  *Device
	exec *executor.Executor

	// DeviceAPI is nil when the device does not offer a device API.
	DeviceAPI *deviceapi.Sync
	// PlcNet is nil when the device does not offer a plcnet API.
	PlcNet *plcnetapi.Sync
}

// Sync returns the blocking view of d. Every call returns the same value.
func (d *Device) Sync() *SyncDevice {
	d.syncOnce.Do(func() {
		d.syncDev = &SyncDevice{dev: d, exec: executor.New()}
		d.guard.setExecutor(d.syncDev.exec)
	})
	return d.syncDev
}

// Device returns the underlying Device.
func (s *SyncDevice) Device() *Device { return s.dev }

// Connect is the blocking form of Device.Connect.
func (s *SyncDevice) Connect(opts ...ConnectOption) error {
	return executor.Do(s.exec, func(ctx context.Context) error {
		if err := s.dev.Connect(ctx, opts...); err != nil {
			return err
		}
		s.DeviceAPI, s.PlcNet = nil, nil
		if s.dev.DeviceAPI != nil {
			s.DeviceAPI = deviceapi.NewSync(s.dev.DeviceAPI, s.exec)
		}
		if s.dev.PlcNet != nil {
			s.PlcNet = plcnetapi.NewSync(s.dev.PlcNet, s.exec)
		}
		return nil
	})
}

// Disconnect is the blocking form of Device.Disconnect.
func (s *SyncDevice) Disconnect() error {
	return executor.Do(s.exec, func(context.Context) error {
		return s.dev.Disconnect()
	})
}

// Close disconnects and stops the executor. The SyncDevice cannot be used
// afterwards.
func (s *SyncDevice) Close() error {
	err := s.Disconnect()
	s.exec.Close()
	return err
}
