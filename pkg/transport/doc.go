// Package transport performs authenticated HTTP requests against the device
// API and the PLC net API of a devolo device.
//
// Requests use HTTP digest authentication with the user "devolo". When the
// device answers 401 the password is replaced by its SHA-256 hex digest and
// the request is retried once; a second 401 is reported as
// apierrors.ErrDevicePasswordProtected. Unreachable devices are retried with
// exponential backoff before apierrors.ErrDeviceUnavailable is returned.
// Other non-2xx statuses are returned as HTTP errors without retry.
package transport
