package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/internal/ui"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/device"
	"github.com/2Fake/devolo-plc-api/pkg/network"
)

var errNoDeviceSelected = errors.New("no device selected")

// deviceOptions are applied to every connected device.
var deviceOptions []device.Option

// resolveIP turns --device into an IP address. Without --device the network is
// scanned and exactly one device must answer.
func resolveIP(ctx context.Context) (ip, mtNumber string, err error) {
	if deviceRef != "" {
		ip, serial, ok := registry.Lookup(deviceRef)
		if !ok {
			return "", "", fmt.Errorf("unknown device %q: use an IP address or scan first", deviceRef)
		}
		if known := registry.GetDevice(serial); known != nil {
			mtNumber = known.MTNumber
		}
		return ip, mtNumber, nil
	}

	devices, err := scan(ctx)
	if err != nil {
		return "", "", err
	}
	switch len(devices) {
	case 0:
		return "", "", fmt.Errorf("%w: no devices found, use --device to specify one", errNoDeviceSelected)
	case 1:
		for _, d := range devices {
			return d.IP.String(), d.MTNumber, nil
		}
	}

	serials := make([]string, 0, len(devices))
	for serial := range devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return "", "", fmt.Errorf("%w: found %d devices (%v), use --device to pick one", errNoDeviceSelected, len(devices), serials)
}

// scan browses the network for the configured timeout and remembers every
// device found.
func scan(ctx context.Context) (map[string]*device.Device, error) {
	timeout := registry.Preferences.ScanTimeoutDuration()

	var devices map[string]*device.Device
	err := ui.RunWithSpinner(ctx, os.Stderr, fmt.Sprintf("Scanning for devices (%s)", timeout), func(ctx context.Context) error {
		var err error
		devices, err = network.DiscoverNetwork(ctx, timeout, network.WithLogger(logging.Named("network")))
		return err
	})
	if err != nil {
		return nil, err
	}

	for serial, d := range devices {
		registry.RecordDevice(serial, d.IP.String(), "", d.MTNumber, "")
	}
	saveRegistry()
	return devices, nil
}

// connect resolves and connects the selected device. The caller must
// Disconnect it.
func connect(ctx context.Context) (*device.Device, error) {
	ip, mtNumber, err := resolveIP(ctx)
	if err != nil {
		return nil, err
	}

	opts := append([]device.Option{device.WithLogger(logging.Named("device"))}, deviceOptions...)
	if mtNumber != "" && mtNumber != "0" {
		opts = append(opts, device.WithMTNumber(mtNumber))
	}
	d, err := device.New(ip, opts...)
	if err != nil {
		return nil, err
	}
	if password != "" {
		d.SetPassword(password)
	}

	err = ui.RunWithSpinner(ctx, os.Stderr, "Connecting to "+ip, func(ctx context.Context) error {
		return d.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}

	if d.SerialNumber != "0" {
		registry.RecordDevice(d.SerialNumber, ip, d.Hostname, d.MTNumber, d.Product)
		saveRegistry()
	}
	return d, nil
}

// withDevice connects, runs fn and disconnects.
func withDevice(ctx context.Context, fn func(*device.Device) error) error {
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Disconnect(); err != nil {
			logging.Warn("Disconnect failed", zap.Error(err))
		}
	}()
	return fn(d)
}

// requireDeviceAPI returns an error when d offers no device API.
func requireDeviceAPI(d *device.Device, command string) error {
	if d.DeviceAPI == nil {
		return apierrors.NewFeatureNotSupportedError("device API", command)
	}
	return nil
}

// requirePlcNet returns an error when d offers no powerline API.
func requirePlcNet(d *device.Device, command string) error {
	if d.PlcNet == nil {
		return apierrors.NewFeatureNotSupportedError("plcnet API", command)
	}
	return nil
}

func saveRegistry() {
	if err := registry.Save(); err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
}
