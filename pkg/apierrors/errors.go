package apierrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeDeviceNotFound indicates discovery never found the device
	ErrTypeDeviceNotFound ErrorType = iota
	// ErrTypeDeviceUnavailable indicates the device could not be reached over HTTP
	ErrTypeDeviceUnavailable
	// ErrTypePasswordProtected indicates the password and its SHA-256 hash were both rejected
	ErrTypePasswordProtected
	// ErrTypeFeatureNotSupported indicates the hardware does not announce the requested feature
	ErrTypeFeatureNotSupported
	// ErrTypeHTTP indicates a non-2xx, non-401 HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a response or advertisement could not be decoded
	ErrTypeParse
)

// NetworkErrorSubtype provides more specific classification of unavailability
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeDeviceNotFound:
		return "Device Not Found"
	case ErrTypeDeviceUnavailable:
		return "Device Unavailable"
	case ErrTypePasswordProtected:
		return "Device Password Protected"
	case ErrTypeFeatureNotSupported:
		return "Feature Not Supported"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while finding or talking to a device
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	DeviceIP       string              // Device IP address (for context)
	Feature        string              // Missing feature (ErrTypeFeatureNotSupported only)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Err            error               // Underlying error (if any)
}

// Sentinel values for errors.Is. Any *DeviceError of the same Type matches.
var (
	ErrDeviceNotFound          = &DeviceError{Type: ErrTypeDeviceNotFound, Message: "device not found"}
	ErrDeviceUnavailable       = &DeviceError{Type: ErrTypeDeviceUnavailable, Message: "device unavailable"}
	ErrDevicePasswordProtected = &DeviceError{Type: ErrTypePasswordProtected, Message: "device is password protected"}
	ErrFeatureNotSupported     = &DeviceError{Type: ErrTypeFeatureNotSupported, Message: "feature not supported"}
)

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *DeviceError of the same category.
func (e *DeviceError) Is(target error) bool {
	t, ok := target.(*DeviceError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewNotFoundError creates the error returned when discovery is exhausted
func NewNotFoundError(ip string) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeDeviceNotFound,
		Message:  fmt.Sprintf("no devolo device answered for %s", ip),
		DeviceIP: ip,
	}
}

// NewPasswordProtectedError creates the error returned after the rehashed password was rejected too
func NewPasswordProtectedError(ip string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypePasswordProtected,
		Message:    "authentication failed with password and its hash",
		StatusCode: 401,
		DeviceIP:   ip,
	}
}

// NewFeatureNotSupportedError creates the error returned by a feature guard
func NewFeatureNotSupportedError(feature, method string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeFeatureNotSupported,
		Message: fmt.Sprintf("%s requires feature %q", method, feature),
		Feature: feature,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(ip string, statusCode int) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		DeviceIP:   ip,
	}
}

// NewParseError creates a decoding error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// ClassifyNetworkError turns a transport-level failure into a DeviceUnavailable
// error with a more specific subtype.
func ClassifyNetworkError(err error, deviceIP string) *DeviceError {
	if err == nil {
		return nil
	}

	classified := &DeviceError{
		Type:           ErrTypeDeviceUnavailable,
		Message:        "network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceIP:       deviceIP,
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded):
		classified.Message = "request timed out"
		classified.NetworkSubtype = NetworkErrorTimeout
	case errors.As(err, &dnsErr):
		classified.Message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
		classified.NetworkSubtype = NetworkErrorDNS
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		classified.Message = "device refused connection"
		classified.NetworkSubtype = NetworkErrorConnectionRefused
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EHOSTUNREACH):
		classified.Message = "host unreachable"
		classified.NetworkSubtype = NetworkErrorHostUnreachable
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ENETUNREACH):
		classified.Message = "network unreachable"
		classified.NetworkSubtype = NetworkErrorNetworkUnreachable
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			classified.Message = "request timed out"
			classified.NetworkSubtype = NetworkErrorTimeout
		}
	}

	return classified
}

func isType(err error, et ErrorType) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type == et
	}
	return false
}

// IsNotFound checks if discovery failed to find the device
func IsNotFound(err error) bool {
	return isType(err, ErrTypeDeviceNotFound)
}

// IsUnavailable checks if the device could not be reached
func IsUnavailable(err error) bool {
	return isType(err, ErrTypeDeviceUnavailable)
}

// IsPasswordProtected checks if authentication failed
func IsPasswordProtected(err error) bool {
	return isType(err, ErrTypePasswordProtected)
}

// IsFeatureNotSupported checks if a feature guard rejected the call
func IsFeatureNotSupported(err error) bool {
	return isType(err, ErrTypeFeatureNotSupported)
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	return isType(err, ErrTypeHTTP)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	return isType(err, ErrTypeParse)
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) []string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return nil
	}

	switch devErr.Type {
	case ErrTypeDeviceNotFound:
		return []string{
			"Check that the device is powered on and plugged in",
			"Verify the IP address (try 'devolo-plc scan')",
			"Make sure mDNS (UDP port 5353) is not blocked by a firewall",
			"Devices behind a different subnet cannot be discovered",
		}
	case ErrTypeDeviceUnavailable:
		hint := []string{"The device did not answer the HTTP request"}
		switch devErr.NetworkSubtype {
		case NetworkErrorTimeout:
			hint = append(hint, "The device may be in standby, try again in a moment")
		case NetworkErrorConnectionRefused:
			hint = append(hint, "The device API is not listening, the device may be rebooting")
		case NetworkErrorHostUnreachable, NetworkErrorNetworkUnreachable:
			hint = append(hint, "Check that you are on the same network as the device")
		}
		return hint
	case ErrTypePasswordProtected:
		return []string{
			"The device rejected the password",
			"Pass the device password with --password or DEVOLO_PLC_PASSWORD",
		}
	case ErrTypeFeatureNotSupported:
		return []string{
			fmt.Sprintf("This device does not announce the %q feature", devErr.Feature),
			"Run 'devolo-plc info' to list the features of the device",
		}
	case ErrTypeHTTP:
		if devErr.StatusCode >= 500 {
			return []string{
				fmt.Sprintf("The device returned an error (HTTP %d)", devErr.StatusCode),
				"Try restarting the device",
			}
		}
		return []string{fmt.Sprintf("The device returned HTTP error %d", devErr.StatusCode)}
	case ErrTypeParse:
		return []string{
			"The device sent a response that could not be decoded",
			"Check if a firmware update is available",
		}
	}
	return nil
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeDeviceNotFound:
		return "Device not found"
	case ErrTypeDeviceUnavailable:
		if devErr.NetworkSubtype == NetworkErrorTimeout {
			return "Device not responding (timeout)"
		}
		return "Device unavailable"
	case ErrTypePasswordProtected:
		return "Device is password protected"
	case ErrTypeFeatureNotSupported:
		return strings.TrimSpace("Feature not supported " + devErr.Feature)
	case ErrTypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", devErr.StatusCode)
	default:
		return devErr.Message
	}
}
