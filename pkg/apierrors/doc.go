// Package apierrors defines the error taxonomy shared by the discovery engine,
// the HTTP transport and the capability APIs.
//
// Callers never see transport library errors directly. Every failure is one of:
//
//   - DeviceNotFound: both discovery phases (unicast, then multicast) expired
//   - DeviceUnavailable: the HTTP transport could not reach the device
//   - DevicePasswordProtected: the password and its SHA-256 hash were rejected
//   - FeatureNotSupported: a local guard rejected a capability call
//
// plus generic HTTP and parse errors. Use errors.Is with the sentinel values or
// the IsXxx helpers:
//
//	if errors.Is(err, apierrors.ErrDevicePasswordProtected) {
//	    // ask the user for the password
//	}
package apierrors
