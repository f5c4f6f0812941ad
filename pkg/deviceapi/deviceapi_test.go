package deviceapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2Fake/devolo-plc-api/internal/devicetest"
	"github.com/2Fake/devolo-plc-api/internal/executor"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
	"github.com/2Fake/devolo-plc-api/pkg/transport"
)

func advertisement(server *devicetest.Server, props map[string]string) mdns.Advertisement {
	base := map[string]string{"Path": "deviceapi", "Version": "v0"}
	for k, v := range props {
		base[k] = v
	}
	return mdns.Advertisement{
		ServiceType: ServiceType,
		Address:     server.Addr(),
		Port:        server.Port(),
		Properties:  base,
	}
}

func newAPI(t *testing.T, server *devicetest.Server, features string) *DeviceAPI {
	t.Helper()
	props := map[string]string{}
	if features != "" {
		props["Features"] = features
	}
	api, err := New(server.Addr().String(), nil, advertisement(server, props),
		WithTransportOptions(transport.WithRetry(1, time.Millisecond)))
	require.NoError(t, err)
	return api
}

func TestNew(t *testing.T) {
	server := devicetest.NewServer(t)

	t.Run("default features", func(t *testing.T) {
		api := newAPI(t, server, "")
		assert.ElementsMatch(t, []string{"reset", "update", "led", "intmtg"}, api.Features())
	})

	t.Run("advertised features", func(t *testing.T) {
		api := newAPI(t, server, "wifi1,restart")
		assert.True(t, api.HasFeature(FeatureWifi1))
		assert.True(t, api.HasFeature(FeatureRestart))
		assert.False(t, api.HasFeature(FeatureLED))
	})

	t.Run("lowercase path", func(t *testing.T) {
		adv := mdns.Advertisement{
			Port:       80,
			Properties: map[string]string{"path": "/gateway", "Version": "v1"},
		}
		api, err := New("192.0.2.1", nil, adv)
		require.NoError(t, err)
		assert.Equal(t, "http://192.0.2.1:80/gateway/v1/", api.URL())
	})

	t.Run("missing version", func(t *testing.T) {
		adv := mdns.Advertisement{Port: 80, Properties: map[string]string{"Path": "deviceapi"}}
		_, err := New("192.0.2.1", nil, adv)
		assert.True(t, apierrors.IsParseError(err))
	})

	t.Run("missing port", func(t *testing.T) {
		adv := mdns.Advertisement{Properties: map[string]string{"Path": "deviceapi", "Version": "v0"}}
		_, err := New("192.0.2.1", nil, adv)
		assert.True(t, apierrors.IsParseError(err))
	})
}

func TestFeatureGuard(t *testing.T) {
	server := devicetest.NewServer(t)
	api := newAPI(t, server, "wifi1")
	ctx := context.Background()

	_, err := api.LEDSetting(ctx)
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)
	_, err = api.SetLEDSetting(ctx, true)
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)
	_, err = api.Restart(ctx)
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)
	_, err = api.WifiMultiAP(ctx)
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)
	_, err = api.SupportInfo(ctx)
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported)

	assert.Empty(t, server.Requests(), "guarded calls must not reach the device")
}

func TestLEDSetting(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/deviceapi/v0/LedSettingsGet", (&LedSettings{State: LEDOff}).Marshal())
	server.Respond(http.MethodPost, "/deviceapi/v0/LedSettingsSet", (&ResultResponse{Result: ResultSuccess}).Marshal())
	api := newAPI(t, server, "led")

	on, err := api.LEDSetting(context.Background())
	require.NoError(t, err)
	assert.False(t, on)

	ok, err := api.SetLEDSetting(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ok)

	requests := server.Requests()
	require.Len(t, requests, 2)
	var sent LedSettings
	require.NoError(t, sent.Unmarshal(requests[1].Body))
	assert.Equal(t, LEDOff, sent.State)
}

func TestRestartAndUptime(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodPost, "/deviceapi/v0/Restart", (&ResultResponse{Result: ResultFailed}).Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/UptimeGet", (&Uptime{Uptime: 90}).Marshal())
	api := newAPI(t, server, "restart")

	ok, err := api.Restart(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	uptime, err := api.Uptime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, uptime)
}

func TestFirmware(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/deviceapi/v0/UpdateFirmwareCheck",
		(&FirmwareCheck{Result: UpdateAvailable, NewFirmwareVersion: "5.8.0"}).Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/UpdateFirmwareStart", (&firmwareStart{Result: UpdateStarted}).Marshal())
	api := newAPI(t, server, "")

	check, err := api.CheckFirmwareAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UpdateAvailable, check.Result)
	assert.Equal(t, "5.8.0", check.NewFirmwareVersion)

	started, err := api.StartFirmwareUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
}

func TestWifi(t *testing.T) {
	server := devicetest.NewServer(t)
	stations := ConnectedStations{Stations: []ConnectedStation{
		{MACAddress: "AA:BB:CC:DD:EE:FF", VAPType: WifiVAPGuestAP, Band: WifiBand5G, RxRate: 87000, TxRate: 87000},
		{MACAddress: "11:22:33:44:55:66"},
	}}
	neighbors := NeighborAPs{NeighborAPs: []NeighborAP{
		{MACAddress: "AA:BB:CC:DD:EE:FF", SSID: "neighbor", Band: WifiBand2G, Channel: 1, Signal: -73, SignalBars: 1},
	}}
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiConnectedStationsGet", stations.Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiNeighborAPsGet", neighbors.Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiGuestAccessGet",
		(&GuestAccess{Enabled: true, SSID: "devolo-guest", Key: "secret", WPA: WPA2}).Marshal())
	server.Respond(http.MethodPost, "/deviceapi/v0/WifiGuestAccessSet", (&WifiResultResponse{Result: WifiSuccess}).Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiWpsPbcStart", (&WifiResultResponse{Result: WifiSuccess}).Marshal())
	api := newAPI(t, server, "wifi1")
	ctx := context.Background()

	gotStations, err := api.WifiConnectedStations(ctx)
	require.NoError(t, err)
	assert.Equal(t, stations.Stations, gotStations)

	gotNeighbors, err := api.WifiNeighborAccessPoints(ctx)
	require.NoError(t, err)
	require.Len(t, gotNeighbors, 1)
	assert.Equal(t, int32(-73), gotNeighbors[0].Signal)

	guest, err := api.WifiGuestAccess(ctx)
	require.NoError(t, err)
	assert.True(t, guest.Enabled)
	assert.Equal(t, "WIFI:S:devolo-guest;T:WPA;P:secret;;", guest.WifiURI())

	ok, err := api.SetWifiGuestAccess(ctx, true, 90*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = api.StartWPS(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	var set guestAccessSet
	for _, r := range server.Requests() {
		if r.Path == "/deviceapi/v0/WifiGuestAccessSet" {
			require.NoError(t, set.Unmarshal(r.Body))
		}
	}
	assert.True(t, set.Enable)
	assert.Equal(t, uint32(90), set.Duration)
}

func TestSupportInfo(t *testing.T) {
	server := devicetest.NewServer(t)
	dump := supportInfoDump{Info: SupportInfo{Items: []SupportInfoItem{
		{Label: "syslog", Content: []byte("boot ok")},
	}}}
	server.Respond(http.MethodGet, "/deviceapi/v0/SupportInfoDump", dump.Marshal())
	api := newAPI(t, server, "support")

	info, err := api.SupportInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Items, 1)
	assert.Equal(t, "syslog", info.Items[0].Label)
	assert.Equal(t, []byte("boot ok"), info.Items[0].Content)
}

func TestRepeaterAndMultiAP(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiMultiApGet",
		(&WifiMultiAP{Enabled: true, ControllerID: "AA:BB:CC:DD:EE:FF", ControllerIP: "192.0.2.1"}).Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiRepeatedAPsGet",
		(&RepeatedAPs{RepeatedAPs: []RepeatedAP{{MACAddress: "AA:BB:CC:DD:EE:FF", SSID: "home"}}}).Marshal())
	server.Respond(http.MethodGet, "/deviceapi/v0/WifiRepeaterWpsClonePbcStart", (&WifiResultResponse{Result: WifiFailed}).Marshal())
	api := newAPI(t, server, "multiap,repeater0")
	ctx := context.Background()

	multiAP, err := api.WifiMultiAP(ctx)
	require.NoError(t, err)
	assert.True(t, multiAP.Enabled)
	assert.Equal(t, "192.0.2.1", multiAP.ControllerIP)

	repeated, err := api.WifiRepeatedAccessPoints(ctx)
	require.NoError(t, err)
	require.Len(t, repeated, 1)
	assert.Equal(t, "home", repeated[0].SSID)

	ok, err := api.StartWPSClone(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordProtected(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Accept("correct")
	api := newAPI(t, server, "restart")
	api.SetPassword("wrong")

	_, err := api.Uptime(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrDevicePasswordProtected)
}

func TestGarbageResponse(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/deviceapi/v0/UptimeGet", []byte{0x08})
	api := newAPI(t, server, "restart")

	_, err := api.Uptime(context.Background())
	assert.ErrorContains(t, err, "UptimeGet")
}

func TestSync(t *testing.T) {
	server := devicetest.NewServer(t)
	server.Respond(http.MethodGet, "/deviceapi/v0/LedSettingsGet", (&LedSettings{State: LEDOn}).Marshal())
	exec := executor.New()
	defer exec.Close()

	s := NewSync(newAPI(t, server, "led"), exec)

	on, err := s.LEDSetting()
	require.NoError(t, err)
	assert.True(t, on)

	_, err = s.StartWPS()
	assert.ErrorIs(t, err, apierrors.ErrFeatureNotSupported, "blocking calls surface the same errors")
}

func TestWifiURI(t *testing.T) {
	tests := []struct {
		name   string
		access GuestAccess
		want   string
	}{
		{"wpa", GuestAccess{SSID: "guest", Key: "pw", WPA: WPA2}, "WIFI:S:guest;T:WPA;P:pw;;"},
		{"open", GuestAccess{SSID: "guest"}, "WIFI:S:guest;T:nopass;;"},
		{"escaped", GuestAccess{SSID: "a;b", Key: `c:d\`, WPA: WPA3}, `WIFI:S:a\;b;T:WPA;P:c\:d\\;;`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.access.WifiURI())
		})
	}
}
