package mdns

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdvertisement(t *testing.T) {
	txt, err := EncodeTXT(map[string]string{"MT": "2730", "path": "deviceapi"})
	require.NoError(t, err)

	info := &ServiceInfo{
		Type:   testServiceType,
		Name:   testInstance,
		Server: testHost,
		Port:   80,
		Text:   txt,
		Addresses: []netip.Addr{
			netip.MustParseAddr("fe80::1"),
			netip.MustParseAddr("192.0.2.10"),
		},
	}

	adv, err := NewAdvertisement(info)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), adv.Address, "IPv4 should be preferred")
	assert.Equal(t, 80, adv.Port)
	assert.Equal(t, testHost, adv.Hostname)
	assert.Equal(t, "2730", adv.Property("MT"))
	assert.Equal(t, "", adv.Property("missing"))
	assert.Equal(t, "0", adv.PropertyOr("SN", "0"))
	assert.False(t, adv.IsEmpty())
}

func TestNewAdvertisement_Errors(t *testing.T) {
	_, err := NewAdvertisement(nil)
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = NewAdvertisement(&ServiceInfo{Text: []byte("\x02MT")})
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = NewAdvertisement(&ServiceInfo{
		Text:      []byte("\x02MT"),
		Addresses: []netip.Addr{netip.MustParseAddr("192.0.2.10")},
	})
	assert.ErrorIs(t, err, ErrMalformedTXT)
}

func TestServiceInfo_HasAddress(t *testing.T) {
	info := &ServiceInfo{Addresses: []netip.Addr{netip.MustParseAddr("::ffff:192.0.2.10")}}
	assert.True(t, info.HasAddress(netip.MustParseAddr("192.0.2.10")))
	assert.False(t, info.HasAddress(netip.MustParseAddr("192.0.2.11")))
}
