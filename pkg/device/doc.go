// Package device is the entry point for talking to one devolo device.
//
// A Device is created for an IP address and connected with Connect, which
// discovers the device and plcnet APIs of that address via mDNS. Discovery
// first asks the device directly with unicast questions and falls back to
// multicast once if nothing answers. Connect fails with
// apierrors.ErrDeviceNotFound only when neither API was found.
//
//	d, err := device.New("192.0.2.10")
//	if err != nil {
//		return err
//	}
//	d.SetPassword(password)
//	if err := d.Connect(ctx); err != nil {
//		return err
//	}
//	defer d.Disconnect()
//
//	if d.DeviceAPI != nil {
//		on, err := d.DeviceAPI.LEDSetting(ctx)
//		...
//	}
//
// Resources passed in by the caller, an HTTP client via WithSession or an
// mDNS facility via WithZeroconf, are borrowed: Disconnect leaves them open.
// Everything the Device created itself is released by Disconnect.
//
// Sync returns a blocking view for callers without a context.
package device
