// Package deviceapi is the client for the device capability API of devolo
// devices (_dvl-deviceapi._tcp).
//
// A DeviceAPI is built from a resolved mDNS advertisement. Every method is
// guarded by the feature it needs: calling a method the hardware does not
// advertise in its Features property fails locally with a
// FeatureNotSupported error and never reaches the network.
//
//	api, err := deviceapi.New(ip, session, adv)
//	if err != nil {
//		return err
//	}
//	on, err := api.LEDSetting(ctx)
//
// Sync wraps a DeviceAPI with blocking methods for callers without a context.
package deviceapi
