package plcnetapi

import (
	"context"

	"github.com/2Fake/devolo-plc-api/internal/executor"
)

// Sync exposes the plcnet API as blocking calls on an executor.
type Sync struct {
	api  *PlcNetAPI
	exec *executor.Executor
}

// NewSync wraps api. The executor is borrowed and not closed by Sync.
func NewSync(api *PlcNetAPI, exec *executor.Executor) *Sync {
	return &Sync{api: api, exec: exec}
}

// API returns the wrapped handle.
func (s *Sync) API() *PlcNetAPI { return s.api }

func (s *Sync) NetworkOverview() (*LogicalNetwork, error) {
	return executor.Call(s.exec, s.api.NetworkOverview)
}

func (s *Sync) IdentifyDeviceStart() (bool, error) {
	return executor.Call(s.exec, s.api.IdentifyDeviceStart)
}

func (s *Sync) IdentifyDeviceStop() (bool, error) {
	return executor.Call(s.exec, s.api.IdentifyDeviceStop)
}

func (s *Sync) PairDevice() (bool, error) {
	return executor.Call(s.exec, s.api.PairDevice)
}

func (s *Sync) SetUserDeviceName(name string) (bool, error) {
	return executor.Call(s.exec, func(ctx context.Context) (bool, error) {
		return s.api.SetUserDeviceName(ctx, name)
	})
}
