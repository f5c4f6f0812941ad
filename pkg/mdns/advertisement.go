package mdns

import (
	"errors"
	"net/netip"
	"strings"
)

// ErrNoAddress is returned when a resolved service carries no usable address.
var ErrNoAddress = errors.New("service info has no address")

// ServiceInfo is the raw result of resolving one service instance.
type ServiceInfo struct {
	Type      string
	Name      string
	Server    string
	Port      int
	Text      []byte
	Addresses []netip.Addr
}

// HasAddress reports whether addr is one of the resolved addresses.
func (s *ServiceInfo) HasAddress(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, a := range s.Addresses {
		if a.Unmap() == addr {
			return true
		}
	}
	return false
}

func (s *ServiceInfo) complete() bool {
	return s.Server != "" && s.Text != nil && len(s.Addresses) > 0
}

// Advertisement is the decoded, immutable view of one resolved service.
type Advertisement struct {
	ServiceType string
	Name        string
	Address     netip.Addr
	Port        int
	Hostname    string
	Properties  map[string]string
}

// NewAdvertisement decodes info. The first IPv4 address is preferred, then
// the first IPv6 address.
func NewAdvertisement(info *ServiceInfo) (Advertisement, error) {
	if info == nil || len(info.Addresses) == 0 {
		return Advertisement{}, ErrNoAddress
	}

	props, err := ParseTXT(info.Text)
	if err != nil {
		return Advertisement{}, err
	}

	addr := info.Addresses[0]
	for _, a := range info.Addresses {
		if a.Unmap().Is4() {
			addr = a
			break
		}
	}

	return Advertisement{
		ServiceType: info.Type,
		Name:        info.Name,
		Address:     addr.Unmap(),
		Port:        info.Port,
		Hostname:    info.Server,
		Properties:  props,
	}, nil
}

// IsEmpty reports whether no properties were received.
func (a Advertisement) IsEmpty() bool {
	return len(a.Properties) == 0
}

// Property returns the value for key, or "" when absent.
func (a Advertisement) Property(key string) string {
	return a.Properties[key]
}

// PropertyOr returns the value for key, or fallback when absent.
func (a Advertisement) PropertyOr(key, fallback string) string {
	if v, ok := a.Properties[key]; ok {
		return v
	}
	return fallback
}

// InstanceLabel returns the instance part of the service name, without the
// service type suffix.
func (a Advertisement) InstanceLabel() string {
	return strings.TrimSuffix(strings.TrimSuffix(a.Name, a.ServiceType), ".")
}
