package deviceapi

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/internal/pb"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
	"github.com/2Fake/devolo-plc-api/pkg/transport"
)

// ServiceType is the mDNS service type of the device API.
const ServiceType = "_dvl-deviceapi._tcp.local."

// Feature names as advertised in the Features TXT property.
const (
	FeatureIntmtg    = "intmtg"
	FeatureLED       = "led"
	FeatureMultiAP   = "multiap"
	FeatureRepeater0 = "repeater0"
	FeatureReset     = "reset"
	FeatureRestart   = "restart"
	FeatureSupport   = "support"
	FeatureUpdate    = "update"
	FeatureWifi1     = "wifi1"
)

// DefaultFeatures are assumed when a device does not advertise any.
var DefaultFeatures = []string{FeatureReset, FeatureUpdate, FeatureLED, FeatureIntmtg}

// Option configures a DeviceAPI.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	transport []transport.Option
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTransportOptions passes options to the underlying transport client.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) {
		o.transport = append(o.transport, opts...)
	}
}

// DeviceAPI is the handle for the device capability API of one device.
type DeviceAPI struct {
	client   *transport.Client
	features []string
	logger   *zap.Logger
}

// New creates a handle from a resolved advertisement. The advertisement must
// carry a port and the Path (or path) and Version properties.
func New(ip string, session *http.Client, adv mdns.Advertisement, opts ...Option) (*DeviceAPI, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Named("deviceapi")
	}

	path := adv.PropertyOr("Path", adv.Property("path"))
	apiVersion := adv.Property("Version")
	if path == "" || apiVersion == "" {
		return nil, apierrors.NewParseError(
			fmt.Sprintf("device API advertisement of %s lacks Path or Version", ip), nil)
	}
	if adv.Port == 0 {
		return nil, apierrors.NewParseError(
			fmt.Sprintf("device API advertisement of %s lacks a port", ip), nil)
	}

	features := DefaultFeatures
	if raw := adv.Property("Features"); raw != "" {
		features = strings.Split(raw, ",")
	}

	logger := o.logger.With(zap.String("ip", ip))
	topts := append([]transport.Option{transport.WithLogger(logger)}, o.transport...)

	return &DeviceAPI{
		client:   transport.NewClient(ip, adv.Port, path, apiVersion, session, topts...),
		features: slices.Clone(features),
		logger:   logger,
	}, nil
}

// Features returns the supported features.
func (a *DeviceAPI) Features() []string {
	return slices.Clone(a.features)
}

// HasFeature reports whether feature is supported.
func (a *DeviceAPI) HasFeature(feature string) bool {
	return slices.Contains(a.features, feature)
}

// URL returns the base URL of the API.
func (a *DeviceAPI) URL() string {
	return a.client.URL()
}

// Password returns the password currently used for authentication.
func (a *DeviceAPI) Password() string {
	return a.client.Password()
}

// SetPassword replaces the password used for authentication.
func (a *DeviceAPI) SetPassword(password string) {
	a.client.SetPassword(password)
}

func (a *DeviceAPI) require(feature, method string) error {
	if !a.HasFeature(feature) {
		return apierrors.NewFeatureNotSupportedError(feature, method)
	}
	return nil
}

func (a *DeviceAPI) get(ctx context.Context, endpoint string, timeout time.Duration, resp pb.Message) error {
	a.logger.Debug("Getting", zap.String("endpoint", endpoint))
	data, err := a.client.Get(ctx, endpoint, timeout)
	if err != nil {
		return err
	}
	return pb.Decode(data, resp, endpoint)
}

func (a *DeviceAPI) post(ctx context.Context, endpoint string, req, resp pb.Message, timeout time.Duration) error {
	a.logger.Debug("Posting", zap.String("endpoint", endpoint))
	var body []byte
	if req != nil {
		body = req.Marshal()
	}
	data, err := a.client.Post(ctx, endpoint, body, timeout)
	if err != nil {
		return err
	}
	return pb.Decode(data, resp, endpoint)
}

// LEDSetting reports whether the LEDs are on.
func (a *DeviceAPI) LEDSetting(ctx context.Context) (bool, error) {
	if err := a.require(FeatureLED, "LEDSetting"); err != nil {
		return false, err
	}
	var resp LedSettings
	if err := a.get(ctx, "LedSettingsGet", transport.DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.State == LEDOn, nil
}

// SetLEDSetting turns the LEDs on or off.
func (a *DeviceAPI) SetLEDSetting(ctx context.Context, enable bool) (bool, error) {
	if err := a.require(FeatureLED, "SetLEDSetting"); err != nil {
		return false, err
	}
	req := LedSettings{State: LEDOff}
	if enable {
		req.State = LEDOn
	}
	var resp ResultResponse
	if err := a.post(ctx, "LedSettingsSet", &req, &resp, transport.DefaultTimeout); err != nil {
		return false, err
	}
	return resp.Result == ResultSuccess, nil
}

// WifiMultiAP returns the mesh state.
func (a *DeviceAPI) WifiMultiAP(ctx context.Context) (*WifiMultiAP, error) {
	if err := a.require(FeatureMultiAP, "WifiMultiAP"); err != nil {
		return nil, err
	}
	var resp WifiMultiAP
	if err := a.get(ctx, "WifiMultiApGet", transport.DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WifiRepeatedAccessPoints returns the access points the device repeats.
func (a *DeviceAPI) WifiRepeatedAccessPoints(ctx context.Context) ([]RepeatedAP, error) {
	if err := a.require(FeatureRepeater0, "WifiRepeatedAccessPoints"); err != nil {
		return nil, err
	}
	var resp RepeatedAPs
	if err := a.get(ctx, "WifiRepeatedAPsGet", transport.DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.RepeatedAPs, nil
}

// StartWPSClone starts cloning the settings of a WPS enabled access point.
func (a *DeviceAPI) StartWPSClone(ctx context.Context) (bool, error) {
	if err := a.require(FeatureRepeater0, "StartWPSClone"); err != nil {
		return false, err
	}
	var resp WifiResultResponse
	if err := a.get(ctx, "WifiRepeaterWpsClonePbcStart", transport.DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.Result == WifiSuccess, nil
}

// FactoryReset resets the device to factory defaults.
func (a *DeviceAPI) FactoryReset(ctx context.Context) (bool, error) {
	if err := a.require(FeatureReset, "FactoryReset"); err != nil {
		return false, err
	}
	var resp ResultResponse
	if err := a.get(ctx, "FactoryResetStart", transport.DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.Result == ResultSuccess, nil
}

// Restart restarts the device.
func (a *DeviceAPI) Restart(ctx context.Context) (bool, error) {
	if err := a.require(FeatureRestart, "Restart"); err != nil {
		return false, err
	}
	var resp ResultResponse
	if err := a.post(ctx, "Restart", nil, &resp, transport.DefaultTimeout); err != nil {
		return false, err
	}
	return resp.Result == ResultSuccess, nil
}

// Uptime returns the device uptime.
func (a *DeviceAPI) Uptime(ctx context.Context) (time.Duration, error) {
	if err := a.require(FeatureRestart, "Uptime"); err != nil {
		return 0, err
	}
	var resp Uptime
	if err := a.get(ctx, "UptimeGet", transport.DefaultTimeout, &resp); err != nil {
		return 0, err
	}
	return time.Duration(resp.Uptime) * time.Second, nil
}

// SupportInfo collects the support dump. Assembling it takes the device a
// while, so the long timeout applies.
func (a *DeviceAPI) SupportInfo(ctx context.Context) (*SupportInfo, error) {
	if err := a.require(FeatureSupport, "SupportInfo"); err != nil {
		return nil, err
	}
	var resp supportInfoDump
	if err := a.get(ctx, "SupportInfoDump", transport.LongTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp.Info, nil
}

// CheckFirmwareAvailable asks the device to look for a firmware update.
func (a *DeviceAPI) CheckFirmwareAvailable(ctx context.Context) (*FirmwareCheck, error) {
	if err := a.require(FeatureUpdate, "CheckFirmwareAvailable"); err != nil {
		return nil, err
	}
	var resp FirmwareCheck
	if err := a.get(ctx, "UpdateFirmwareCheck", transport.LongTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartFirmwareUpdate starts installing a previously found update.
func (a *DeviceAPI) StartFirmwareUpdate(ctx context.Context) (bool, error) {
	if err := a.require(FeatureUpdate, "StartFirmwareUpdate"); err != nil {
		return false, err
	}
	var resp firmwareStart
	if err := a.get(ctx, "UpdateFirmwareStart", transport.DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.Result == UpdateStarted, nil
}

// WifiConnectedStations returns the connected wifi clients.
func (a *DeviceAPI) WifiConnectedStations(ctx context.Context) ([]ConnectedStation, error) {
	if err := a.require(FeatureWifi1, "WifiConnectedStations"); err != nil {
		return nil, err
	}
	var resp ConnectedStations
	if err := a.get(ctx, "WifiConnectedStationsGet", transport.DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.Stations, nil
}

// WifiGuestAccess returns the guest wifi settings.
func (a *DeviceAPI) WifiGuestAccess(ctx context.Context) (*GuestAccess, error) {
	if err := a.require(FeatureWifi1, "WifiGuestAccess"); err != nil {
		return nil, err
	}
	var resp GuestAccess
	if err := a.get(ctx, "WifiGuestAccessGet", transport.DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetWifiGuestAccess enables or disables the guest wifi. A zero duration
// keeps it enabled until disabled explicitly.
func (a *DeviceAPI) SetWifiGuestAccess(ctx context.Context, enable bool, duration time.Duration) (bool, error) {
	if err := a.require(FeatureWifi1, "SetWifiGuestAccess"); err != nil {
		return false, err
	}
	req := guestAccessSet{Enable: enable, Duration: uint32(duration / time.Minute)}
	var resp WifiResultResponse
	if err := a.post(ctx, "WifiGuestAccessSet", &req, &resp, transport.DefaultTimeout); err != nil {
		return false, err
	}
	return resp.Result == WifiSuccess, nil
}

// WifiNeighborAccessPoints scans for foreign access points.
func (a *DeviceAPI) WifiNeighborAccessPoints(ctx context.Context) ([]NeighborAP, error) {
	if err := a.require(FeatureWifi1, "WifiNeighborAccessPoints"); err != nil {
		return nil, err
	}
	var resp NeighborAPs
	if err := a.get(ctx, "WifiNeighborAPsGet", transport.LongTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.NeighborAPs, nil
}

// StartWPS starts WPS push button configuration.
func (a *DeviceAPI) StartWPS(ctx context.Context) (bool, error) {
	if err := a.require(FeatureWifi1, "StartWPS"); err != nil {
		return false, err
	}
	var resp WifiResultResponse
	if err := a.get(ctx, "WifiWpsPbcStart", transport.DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.Result == WifiSuccess, nil
}
