package plcnetapi

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/internal/pb"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
	"github.com/2Fake/devolo-plc-api/pkg/transport"
)

// ServiceType is the mDNS service type of the plcnet API.
const ServiceType = "_dvl-plcnetapi._tcp.local."

// DevicesWithoutPlcNet lists MT numbers of devices that have no powerline
// chip and therefore never advertise a plcnet API.
var DevicesWithoutPlcNet = []string{"3046", "3047", "3048", "3049", "3254", "3255", "3256"}

// HasPlcNet reports whether a device with the given MT number can offer a
// plcnet API. Unknown MT numbers are assumed to have one.
func HasPlcNet(mtNumber string) bool {
	return !slices.Contains(DevicesWithoutPlcNet, mtNumber)
}

// Option configures a PlcNetAPI.
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

// PlcNetAPI is the handle for the powerline network API of one device.
type PlcNetAPI struct {
	client *transport.Client
	mac    string
	logger *zap.Logger
}

// New creates a handle from a resolved advertisement. The advertisement must
// carry PlcMacAddress, Path and Version.
func New(ip string, session *http.Client, adv mdns.Advertisement, opts ...Option) (*PlcNetAPI, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Named("plcnetapi")
	}

	mac := adv.Property("PlcMacAddress")
	path := adv.Property("Path")
	apiVersion := adv.Property("Version")
	if mac == "" || path == "" || apiVersion == "" {
		return nil, apierrors.NewParseError(
			fmt.Sprintf("plcnet API advertisement of %s lacks PlcMacAddress, Path or Version", ip), nil)
	}

	logger := o.logger.With(zap.String("ip", ip), zap.String("mac", mac))
	topts := append([]transport.Option{transport.WithLogger(logger)}, o.transport...)

	return &PlcNetAPI{
		client: transport.NewClient(ip, adv.Port, path, apiVersion, session, topts...),
		mac:    mac,
		logger: logger,
	}, nil
}

// MAC returns the powerline MAC address of the device.
func (a *PlcNetAPI) MAC() string {
	return a.mac
}

// URL returns the base URL of the API.
func (a *PlcNetAPI) URL() string {
	return a.client.URL()
}

// Password returns the password currently used for authentication.
func (a *PlcNetAPI) Password() string {
	return a.client.Password()
}

// SetPassword replaces the password used for authentication.
func (a *PlcNetAPI) SetPassword(password string) {
	a.client.SetPassword(password)
}

// NetworkOverview returns all adapters of the powerline network and the data
// rates between them.
func (a *PlcNetAPI) NetworkOverview(ctx context.Context) (*LogicalNetwork, error) {
	a.logger.Debug("Getting network overview")
	data, err := a.client.Get(ctx, "GetNetworkOverview", transport.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var resp networkOverview
	if err := pb.Decode(data, &resp, "GetNetworkOverview"); err != nil {
		return nil, err
	}
	return &resp.Network, nil
}

// IdentifyDeviceStart makes the PLC LED blink.
func (a *PlcNetAPI) IdentifyDeviceStart(ctx context.Context) (bool, error) {
	a.logger.Debug("Starting LED blinking")
	return a.command(ctx, "IdentifyDeviceStart", &macRequest{MACAddress: a.mac})
}

// IdentifyDeviceStop stops the PLC LED blinking.
func (a *PlcNetAPI) IdentifyDeviceStop(ctx context.Context) (bool, error) {
	a.logger.Debug("Stopping LED blinking")
	return a.command(ctx, "IdentifyDeviceStop", &macRequest{MACAddress: a.mac})
}

// PairDevice starts pairing mode.
func (a *PlcNetAPI) PairDevice(ctx context.Context) (bool, error) {
	a.logger.Debug("Pairing")
	return a.command(ctx, "PairDeviceStart", &macRequest{MACAddress: a.mac})
}

// SetUserDeviceName renames the device.
func (a *PlcNetAPI) SetUserDeviceName(ctx context.Context, name string) (bool, error) {
	a.logger.Debug("Setting device name", zap.String("name", name))
	return a.command(ctx, "SetUserDeviceName", &macRequest{MACAddress: a.mac, UserDeviceName: name})
}

func (a *PlcNetAPI) command(ctx context.Context, endpoint string, req pb.Message) (bool, error) {
	data, err := a.client.Post(ctx, endpoint, req.Marshal(), transport.DefaultTimeout)
	if err != nil {
		return false, err
	}
	var resp resultResponse
	if err := pb.Decode(data, &resp, endpoint); err != nil {
		return false, err
	}
	return resp.Result == ResultSuccess, nil
}
