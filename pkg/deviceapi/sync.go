package deviceapi

import (
	"context"
	"time"

	"github.com/2Fake/devolo-plc-api/internal/executor"
)

// Sync exposes the device API as blocking calls. Every call runs on the
// executor it was created with, so calls made through one Sync are
// serialized.
type Sync struct {
	api  *DeviceAPI
	exec *executor.Executor
}

// NewSync wraps api. The executor is borrowed and not closed by Sync.
func NewSync(api *DeviceAPI, exec *executor.Executor) *Sync {
	return &Sync{api: api, exec: exec}
}

// API returns the wrapped handle.
func (s *Sync) API() *DeviceAPI { return s.api }

func (s *Sync) LEDSetting() (bool, error) {
	return executor.Call(s.exec, s.api.LEDSetting)
}

func (s *Sync) SetLEDSetting(enable bool) (bool, error) {
	return executor.Call(s.exec, func(ctx context.Context) (bool, error) {
		return s.api.SetLEDSetting(ctx, enable)
	})
}

func (s *Sync) WifiMultiAP() (*WifiMultiAP, error) {
	return executor.Call(s.exec, s.api.WifiMultiAP)
}

func (s *Sync) WifiRepeatedAccessPoints() ([]RepeatedAP, error) {
	return executor.Call(s.exec, s.api.WifiRepeatedAccessPoints)
}

func (s *Sync) StartWPSClone() (bool, error) {
	return executor.Call(s.exec, s.api.StartWPSClone)
}

func (s *Sync) FactoryReset() (bool, error) {
	return executor.Call(s.exec, s.api.FactoryReset)
}

func (s *Sync) Restart() (bool, error) {
	return executor.Call(s.exec, s.api.Restart)
}

func (s *Sync) Uptime() (time.Duration, error) {
	return executor.Call(s.exec, s.api.Uptime)
}

func (s *Sync) SupportInfo() (*SupportInfo, error) {
	return executor.Call(s.exec, s.api.SupportInfo)
}

func (s *Sync) CheckFirmwareAvailable() (*FirmwareCheck, error) {
	return executor.Call(s.exec, s.api.CheckFirmwareAvailable)
}

func (s *Sync) StartFirmwareUpdate() (bool, error) {
	return executor.Call(s.exec, s.api.StartFirmwareUpdate)
}

func (s *Sync) WifiConnectedStations() ([]ConnectedStation, error) {
	return executor.Call(s.exec, s.api.WifiConnectedStations)
}

func (s *Sync) WifiGuestAccess() (*GuestAccess, error) {
	return executor.Call(s.exec, s.api.WifiGuestAccess)
}

func (s *Sync) SetWifiGuestAccess(enable bool, duration time.Duration) (bool, error) {
	return executor.Call(s.exec, func(ctx context.Context) (bool, error) {
		return s.api.SetWifiGuestAccess(ctx, enable, duration)
	})
}

func (s *Sync) WifiNeighborAccessPoints() ([]NeighborAP, error) {
	return executor.Call(s.exec, s.api.WifiNeighborAccessPoints)
}

func (s *Sync) StartWPS() (bool, error) {
	return executor.Call(s.exec, s.api.StartWPS)
}
