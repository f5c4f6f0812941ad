package config

import (
	"net/netip"
	"strings"
	"time"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by serial number
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is what the CLI remembers about one devolo device.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastIP   string    `yaml:"last_ip,omitempty"`   // Last known IP address
	Hostname string    `yaml:"hostname,omitempty"`  // mDNS hostname
	MTNumber string    `yaml:"mt_number,omitempty"` // Article number
	Product  string    `yaml:"product,omitempty"`   // Product name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last scan or connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ScanTimeout int    `yaml:"scan_timeout"`        // Network scan duration in seconds
	LogLevel    string `yaml:"log_level,omitempty"` // Default log level, silent if empty
	Format      string `yaml:"format,omitempty"`    // Default output format
}

func defaultPreferences() *Preferences {
	return &Preferences{
		ScanTimeout: 3,
		Format:      "detailed",
	}
}

// ScanTimeoutDuration returns ScanTimeout as a duration.
func (p *Preferences) ScanTimeoutDuration() time.Duration {
	if p == nil || p.ScanTimeout <= 0 {
		return 3 * time.Second
	}
	return time.Duration(p.ScanTimeout) * time.Second
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device metadata by serial number.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(serial string) *Device {
	return r.Devices[serial]
}

// EnsureDevice returns the entry for serial, creating it if needed.
func (r *Registry) EnsureDevice(serial string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[serial]; exists {
		return device
	}

	device := &Device{}
	r.Devices[serial] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp and IP for a device.
func (r *Registry) UpdateDeviceLastSeen(serial, ip string) {
	device := r.EnsureDevice(serial)
	device.LastSeen = time.Now()
	device.LastIP = ip
}

// RecordDevice stores what a scan or connection revealed about a device.
// Empty values do not overwrite known ones.
func (r *Registry) RecordDevice(serial, ip, hostname, mtNumber, product string) {
	r.UpdateDeviceLastSeen(serial, ip)
	device := r.Devices[serial]
	if hostname != "" {
		device.Hostname = hostname
	}
	if mtNumber != "" && mtNumber != "0" {
		device.MTNumber = mtNumber
	}
	if product != "" {
		device.Product = product
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(serial, nickname string) {
	device := r.EnsureDevice(serial)
	device.Nickname = nickname
}

// Lookup resolves ref to an IP address. ref may be an IP address, a serial
// number or a nickname (case insensitive). The second return value is the
// serial number, if known.
func (r *Registry) Lookup(ref string) (ip, serial string, ok bool) {
	if addr, err := netip.ParseAddr(ref); err == nil {
		for s, d := range r.Devices {
			if d.LastIP == addr.String() {
				return addr.String(), s, true
			}
		}
		return addr.String(), "", true
	}

	if d, exists := r.Devices[ref]; exists && d.LastIP != "" {
		return d.LastIP, ref, true
	}

	for s, d := range r.Devices {
		if d.Nickname != "" && strings.EqualFold(d.Nickname, ref) && d.LastIP != "" {
			return d.LastIP, s, true
		}
	}
	return "", "", false
}
