package device

import (
	"context"
	"net/http"
	"net/netip"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/2Fake/devolo-plc-api/internal/devicetest"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/deviceapi"
	"github.com/2Fake/devolo-plc-api/pkg/discovery"
	"github.com/2Fake/devolo-plc-api/pkg/plcnetapi"
	"github.com/2Fake/devolo-plc-api/pkg/transport"
)

const (
	serial       = "1234567890123456"
	passwordHash = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
)

func deviceProps(props map[string]string) map[string]string {
	base := map[string]string{
		"SN":              serial,
		"MT":              "2730",
		"Path":            "/",
		"Version":         "v0",
		"Product":         "devolo Magic 2 WiFi next",
		"FirmwareVersion": "7.12.5.161",
		"FirmwareDate":    "2022-04-12T11:25:41",
	}
	for k, v := range props {
		base[k] = v
	}
	return base
}

func plcnetProps() map[string]string {
	return map[string]string{
		"PlcMacAddress": "AABBCCDDEEFF",
		"PlcTechnology": "G.hn Spirit",
		"Path":          "plcnetapi",
		"Version":       "v0",
	}
}

func newDevice(t *testing.T, server *devicetest.Server, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{
		WithPollInterval(time.Millisecond),
		WithMaxTicks(50),
		WithTransportOptions(transport.WithRetry(1, time.Millisecond)),
	}, opts...)
	d, err := New(server.Addr().String(), opts...)
	require.NoError(t, err)
	return d
}

func TestNew_InvalidIP(t *testing.T) {
	_, err := New("not an ip")
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	d, err := New("192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "0", d.MTNumber)
	assert.Equal(t, "0", d.SerialNumber)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), d.FirmwareDate)
	assert.Equal(t, StateDisconnected, d.State())
	assert.Nil(t, d.DeviceAPI)
	assert.Nil(t, d.PlcNet)
}

func TestConnect_DeviceAPIWithFeatures(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"Features": "wifi1"})))

	d := newDevice(t, server, WithZeroconf(zc))
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.True(t, d.Connected())
	assert.Equal(t, serial, d.SerialNumber)
	assert.Equal(t, "2730", d.MTNumber)
	assert.Equal(t, "devolo Magic 2 WiFi next", d.Product)
	assert.Equal(t, "7.12.5.161", d.FirmwareVersion)
	assert.Equal(t, time.Date(2022, 4, 12, 0, 0, 0, 0, time.UTC), d.FirmwareDate)
	assert.Equal(t, "devolo-0.local.", d.Hostname)
	assert.Nil(t, d.PlcNet)

	require.NotNil(t, d.DeviceAPI)
	assert.Equal(t, []string{"wifi1"}, d.DeviceAPI.Features())
	assert.Equal(t, "http://"+server.Listener.Addr().String()+"/v0/", d.DeviceAPI.URL())

	_, err := d.DeviceAPI.LEDSetting(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)
	assert.Empty(t, server.Requests())

	browses := zc.Browses()
	require.Len(t, browses, 1, "a partial result must not escalate")
	assert.False(t, browses[0].IsMulticast())
	assert.True(t, zc.AllCancelled())
}

func TestConnect_BothAPIs(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(), deviceProps(nil)))
	require.NoError(t, zc.Advertise(plcnetapi.ServiceType, server.Addr(), server.Port(), plcnetProps()))

	d := newDevice(t, server, WithZeroconf(zc), WithMaxTicks(5000))
	start := time.Now()
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.Less(t, time.Since(start), 2*time.Second, "a satisfied wait set ends discovery early")
	require.NotNil(t, d.DeviceAPI)
	require.NotNil(t, d.PlcNet)
	assert.Equal(t, "AABBCCDDEEFF", d.MAC)
	assert.Equal(t, "G.hn Spirit", d.Technology)
	assert.ElementsMatch(t, deviceapi.DefaultFeatures, d.DeviceAPI.Features())
}

func TestConnect_PlcNetOnly(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(plcnetapi.ServiceType, server.Addr(), server.Port(), plcnetProps()))

	d := newDevice(t, server, WithZeroconf(zc))
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.Nil(t, d.DeviceAPI)
	require.NotNil(t, d.PlcNet)
	assert.Equal(t, "0", d.SerialNumber)
	assert.Equal(t, "AABBCCDDEEFF", d.MAC)
}

func TestConnect_DeviceWithoutPlcNet(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046"})))

	d := newDevice(t, server, WithZeroconf(zc), WithMaxTicks(5000))
	start := time.Now()
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.Less(t, time.Since(start), 2*time.Second, "no need to wait for a plcnet API")
	assert.Nil(t, d.PlcNet)
}

func TestConnect_KnownMTSkipsPlcNet(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3254"})))
	require.NoError(t, zc.Advertise(plcnetapi.ServiceType, server.Addr(), server.Port(), plcnetProps()))

	d := newDevice(t, server, WithZeroconf(zc), WithMTNumber("3254"))
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.NotNil(t, d.DeviceAPI)
	assert.Nil(t, d.PlcNet, "the plcnet type must not be browsed")
}

func TestConnect_NotFound(t *testing.T) {
	zc := devicetest.NewZeroconf()
	d, err := New("192.0.2.10", WithZeroconf(zc), WithPollInterval(2*time.Millisecond), WithMaxTicks(25))
	require.NoError(t, err)

	start := time.Now()
	err = d.Connect(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, apierrors.ErrDeviceNotFound)
	assert.GreaterOrEqual(t, elapsed, 2*25*2*time.Millisecond, "both phases must run")
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, StateDisconnected, d.State())

	browses := zc.Browses()
	require.Len(t, browses, 2)
	assert.False(t, browses[0].IsMulticast())
	assert.True(t, browses[1].IsMulticast())
	assert.True(t, zc.AllCancelled())
	assert.Zero(t, zc.Closed(), "a borrowed zeroconf must stay open")
}

func TestConnect_IgnoresOtherDevices(t *testing.T) {
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, netip.MustParseAddr("192.0.2.99"), 80, deviceProps(nil)))

	d, err := New("192.0.2.10", WithZeroconf(zc), WithPollInterval(time.Millisecond), WithMaxTicks(20))
	require.NoError(t, err)

	assert.ErrorIs(t, d.Connect(context.Background()), apierrors.ErrDeviceNotFound)
	assert.Nil(t, d.DeviceAPI)
	assert.Equal(t, "0", d.SerialNumber)
}

func TestConnect_MulticastFallback(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	zc.SilenceUnicast()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(), deviceProps(nil)))

	d := newDevice(t, server, WithZeroconf(zc))
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.True(t, d.Multicast())
	assert.NotNil(t, d.DeviceAPI)
	assert.Len(t, zc.Browses(), 2)
}

func TestConnect_OwnedZeroconfReleasedOnFailure(t *testing.T) {
	zc := devicetest.NewZeroconf()
	factory := func(netip.Addr, *zap.Logger) (discovery.Zeroconf, error) { return zc, nil }

	d, err := New("192.0.2.10", WithZeroconfFactory(factory), WithPollInterval(time.Millisecond), WithMaxTicks(5))
	require.NoError(t, err)

	assert.Error(t, d.Connect(context.Background()))
	assert.Equal(t, 1, zc.Closed())
}

func TestConnect_ContextCancelled(t *testing.T) {
	zc := devicetest.NewZeroconf()
	d, err := New("192.0.2.10", WithZeroconf(zc))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Connect(ctx), context.Canceled)
	assert.Equal(t, StateDisconnected, d.State())
}

func TestConnect_Twice(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046"})))

	d := newDevice(t, server, WithZeroconf(zc))
	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.Len(t, zc.Browses(), 1, "connecting a connected device does nothing")
}

func TestDisconnect_Idempotent(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046"})))
	factory := func(netip.Addr, *zap.Logger) (discovery.Zeroconf, error) { return zc, nil }

	d := newDevice(t, server, WithZeroconfFactory(factory))
	assert.NoError(t, d.Disconnect(), "disconnecting a new device does nothing")

	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Disconnect())
	require.NoError(t, d.Disconnect())

	assert.Equal(t, StateDisconnected, d.State())
	assert.Equal(t, 1, zc.Closed(), "owned resources are released exactly once")
}

type trackingTransport struct {
	closed atomic.Int32
}

func (t *trackingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return http.DefaultTransport.RoundTrip(r)
}

func (t *trackingTransport) CloseIdleConnections() {
	t.closed.Add(1)
}

func TestDisconnect_KeepsBorrowedSession(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/v0/UptimeGet", nil)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046", "Features": "restart"})))

	rt := &trackingTransport{}
	session := &http.Client{Transport: rt}

	d := newDevice(t, server, WithZeroconf(zc))
	require.NoError(t, d.Connect(context.Background(), WithSession(session)))
	_, err := d.DeviceAPI.Uptime(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Disconnect())

	assert.Zero(t, rt.closed.Load(), "a borrowed session must not be closed")
	assert.Zero(t, zc.Closed())

	resp, err := session.Get(server.URL)
	require.NoError(t, err, "the session stays usable")
	_ = resp.Body.Close()
}

func TestSetPassword_Propagates(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(), deviceProps(nil)))
	require.NoError(t, zc.Advertise(plcnetapi.ServiceType, server.Addr(), server.Port(), plcnetProps()))

	d := newDevice(t, server, WithZeroconf(zc))
	d.SetPassword("before")
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	assert.Equal(t, "before", d.DeviceAPI.Password(), "the password is handed over on connect")
	assert.Equal(t, "before", d.PlcNet.Password())

	d.SetPassword("x")
	assert.Equal(t, "x", d.Password())
	assert.Equal(t, "x", d.DeviceAPI.Password())
	assert.Equal(t, "x", d.PlcNet.Password())
	assert.Empty(t, server.Requests(), "changing the password needs no network call")
}

func TestPasswordRehash(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Accept(passwordHash)
	server.Respond(http.MethodGet, "/v0/UptimeGet", nil)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046", "Features": "restart"})))

	d := newDevice(t, server, WithZeroconf(zc))
	d.SetPassword("password")
	require.NoError(t, d.Connect(context.Background()))
	defer d.Disconnect()

	_, err := d.DeviceAPI.Uptime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, passwordHash, d.DeviceAPI.Password())
	assert.Equal(t, 1, server.Rejected())
}

func TestCheckLeak(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046"})))

	tests := []struct {
		name    string
		opts    []ConnectOption
		connect bool
		warns   int
	}{
		{"owned session", nil, true, 1},
		{"borrowed session", []ConnectOption{WithSession(&http.Client{})}, true, 0},
		{"never connected", nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			d := newDevice(t, server, WithZeroconf(zc), WithLogger(zap.New(core)))
			if tt.connect {
				require.NoError(t, d.Connect(context.Background(), tt.opts...))
			}

			d.guard.check()
			assert.Equal(t, tt.warns, logs.FilterMessage("Please disconnect properly from the device").Len())
			_ = d.Disconnect()
		})
	}
}

func TestCheckLeak_Collected(t *testing.T) {
	server := devicetest.NewServer(t)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"MT": "3046"})))

	tests := []struct {
		name     string
		blocking bool
	}{
		{"context api", false},
		{"blocking api", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			func() {
				d := newDevice(t, server, WithZeroconf(zc), WithLogger(zap.New(core)))
				if tt.blocking {
					require.NoError(t, d.Sync().Connect())
				} else {
					require.NoError(t, d.Connect(context.Background()))
				}
			}()

			assert.Eventually(t, func() bool {
				runtime.GC()
				return logs.FilterMessage("Please disconnect properly from the device").Len() == 1
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestSyncDevice(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodPost, "/plcnetapi/v0/PairDeviceStart", nil)
	zc := devicetest.NewZeroconf()
	require.NoError(t, zc.Advertise(deviceapi.ServiceType, server.Addr(), server.Port(),
		deviceProps(map[string]string{"Features": "wifi1"})))
	require.NoError(t, zc.Advertise(plcnetapi.ServiceType, server.Addr(), server.Port(), plcnetProps()))

	d := newDevice(t, server, WithZeroconf(zc))
	s := d.Sync()
	assert.Same(t, s, d.Sync())

	require.NoError(t, s.Connect())
	require.NotNil(t, s.DeviceAPI)
	require.NotNil(t, s.PlcNet)

	_, err := s.DeviceAPI.LEDSetting()
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)

	ok, err := s.PlcNet.PairDevice()
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Close())
	assert.False(t, d.Connected())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

func TestParseFirmwareDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2022-04-12T11:25:41", time.Date(2022, 4, 12, 0, 0, 0, 0, time.UTC)},
		{"2021-10-01", time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"", epoch},
		{"garbage", epoch},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseFirmwareDate(tt.in), tt.in)
	}
}
