package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/executor"
	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/deviceapi"
	"github.com/2Fake/devolo-plc-api/pkg/discovery"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
	"github.com/2Fake/devolo-plc-api/pkg/plcnetapi"
	"github.com/2Fake/devolo-plc-api/pkg/transport"
)

// ErrConnectInProgress is returned by Connect while another Connect runs.
var ErrConnectInProgress = errors.New("connect already in progress")

// State is the connection state of a Device.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ZeroconfFactory opens an mDNS facility for target. The Device closes what
// the factory returns on disconnect.
type ZeroconfFactory func(target netip.Addr, logger *zap.Logger) (discovery.Zeroconf, error)

// Option configures a Device.
type Option func(*Device)

// WithZeroconf makes the Device use zc instead of opening its own mDNS
// socket. zc is borrowed and never closed by the Device.
func WithZeroconf(zc discovery.Zeroconf) Option {
	return func(d *Device) {
		d.zeroconf = zc
	}
}

// WithZeroconfFactory replaces how the Device opens its own mDNS facility.
func WithZeroconfFactory(f ZeroconfFactory) Option {
	return func(d *Device) {
		d.zeroconfFactory = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		d.logger = l
	}
}

// WithPollInterval sets how often discovery checks for results.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) {
		d.discoveryOpts = append(d.discoveryOpts, discovery.WithPollInterval(interval))
	}
}

// WithMaxTicks sets how many polls one discovery phase lasts.
func WithMaxTicks(n int) Option {
	return func(d *Device) {
		d.discoveryOpts = append(d.discoveryOpts, discovery.WithMaxTicks(n))
	}
}

// WithResolveTimeout bounds resolving a single advertisement.
func WithResolveTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		d.discoveryOpts = append(d.discoveryOpts, discovery.WithResolveTimeout(timeout))
	}
}

// WithMTNumber sets the article number when it is already known, for example
// from a network scan. Devices known to lack powerline are then not browsed
// for a plcnet API at all.
func WithMTNumber(mt string) Option {
	return func(d *Device) {
		d.MTNumber = mt
		d.mtKnown = true
	}
}

// WithTransportOptions configures the HTTP clients of the capability APIs.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(d *Device) {
		d.transportOpts = append(d.transportOpts, opts...)
	}
}

// ConnectOption configures a single Connect call.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	session *http.Client
}

// WithSession makes the capability APIs use session. It is borrowed and
// never closed by the Device.
func WithSession(session *http.Client) ConnectOption {
	return func(o *connectOptions) {
		o.session = session
	}
}

// Device is a devolo device reachable at one IP address.
//
// The summary fields and API handles are filled by Connect and must not be
// read while a Connect is running.
type Device struct {
	IP netip.Addr

	MAC             string
	MTNumber        string
	Product         string
	Technology      string
	SerialNumber    string
	FirmwareVersion string
	FirmwareDate    time.Time
	Hostname        string

	// DeviceAPI is nil when the device does not offer a device API.
	DeviceAPI *deviceapi.DeviceAPI
	// PlcNet is nil when the device does not offer a plcnet API.
	PlcNet *plcnetapi.PlcNetAPI

	mtKnown         bool
	zeroconfFactory ZeroconfFactory
	discoveryOpts   []discovery.Option
	transportOpts   []transport.Option
	logger          *zap.Logger

	mu           sync.Mutex
	state        State
	password     string
	multicast    bool
	zeroconf     discovery.Zeroconf
	ownsZeroconf bool
	session      *http.Client
	ownsSession  bool

	syncOnce sync.Once
	syncDev  *SyncDevice

	guard *leakGuard
}

// leakGuard is checked when its Device is collected. It must not point back
// to the Device, or the cleanup would keep the Device alive.
type leakGuard struct {
	mu          sync.Mutex
	connected   bool
	ownsSession bool
	logger      *zap.Logger
	exec        *executor.Executor
}

func (g *leakGuard) set(connected, ownsSession bool) {
	g.mu.Lock()
	g.connected, g.ownsSession = connected, ownsSession
	g.mu.Unlock()
}

func (g *leakGuard) setExecutor(e *executor.Executor) {
	g.mu.Lock()
	g.exec = e
	g.mu.Unlock()
}

// check warns when the Device went away while connected with a session it
// created, and stops the executor of its blocking view.
func (g *leakGuard) check() {
	g.mu.Lock()
	leaked := g.connected && g.ownsSession
	exec := g.exec
	g.mu.Unlock()

	if leaked {
		g.logger.Warn("Please disconnect properly from the device")
	}
	if exec != nil {
		exec.Close()
	}
}

// New creates a disconnected Device for ip.
func New(ip string, opts ...Option) (*Device, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q: %w", ip, err)
	}

	d := &Device{
		IP:              addr.Unmap(),
		MTNumber:        "0",
		SerialNumber:    "0",
		FirmwareDate:    epoch,
		zeroconfFactory: discovery.ListenZeroconf,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Named("device")
	}
	d.logger = d.logger.With(zap.Stringer("ip", d.IP))

	d.guard = &leakGuard{logger: d.logger}
	runtime.AddCleanup(d, (*leakGuard).check, d.guard)
	return d, nil
}

// State returns the connection state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connected reports whether the device is connected.
func (d *Device) Connected() bool {
	return d.State() == StateConnected
}

// Multicast reports whether the last discovery had to fall back to multicast.
func (d *Device) Multicast() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.multicast
}

// Password returns the device password.
func (d *Device) Password() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.password
}

// SetPassword sets the device password and hands it to both API handles.
// The handles may later replace it with its hash on their own.
func (d *Device) SetPassword(password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.password = password
	if d.DeviceAPI != nil {
		d.DeviceAPI.SetPassword(password)
	}
	if d.PlcNet != nil {
		d.PlcNet.SetPassword(password)
	}
}

// Connect discovers the device and creates its API handles. It fails with
// apierrors.ErrDeviceNotFound when neither API could be discovered.
// Connecting an already connected device does nothing.
func (d *Device) Connect(ctx context.Context, opts ...ConnectOption) error {
	var co connectOptions
	for _, opt := range opts {
		opt(&co)
	}

	d.mu.Lock()
	switch d.state {
	case StateConnected:
		d.mu.Unlock()
		return nil
	case StateConnecting:
		d.mu.Unlock()
		return ErrConnectInProgress
	}
	d.state = StateConnecting
	d.mu.Unlock()

	result, err := d.discover(ctx, co)
	if err != nil {
		_ = d.release()
		return err
	}

	if err := d.apply(result); err != nil {
		_ = d.release()
		return err
	}

	d.mu.Lock()
	d.state = StateConnected
	d.multicast = result.Multicast
	d.guard.set(true, d.ownsSession)
	d.mu.Unlock()

	d.logger.Info("Connected",
		zap.String("serial_number", d.SerialNumber),
		zap.Bool("device_api", d.DeviceAPI != nil),
		zap.Bool("plcnet_api", d.PlcNet != nil),
	)
	return nil
}

func (d *Device) discover(ctx context.Context, co connectOptions) (*discovery.Result, error) {
	d.mu.Lock()
	if co.session != nil {
		d.session, d.ownsSession = co.session, false
	} else {
		d.session, d.ownsSession = newSession(), true
	}
	zc := d.zeroconf
	if zc == nil {
		var err error
		zc, err = d.zeroconfFactory(d.IP, d.logger)
		if err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("failed to start mDNS: %w", err)
		}
		d.zeroconf, d.ownsZeroconf = zc, true
	}
	d.mu.Unlock()

	types := []string{deviceapi.ServiceType, plcnetapi.ServiceType}
	if d.mtKnown && !plcnetapi.HasPlcNet(d.MTNumber) {
		types = types[:1]
	}
	d.logger.Debug("Browsing for service types", zap.Strings("types", types))

	opts := append([]discovery.Option{
		discovery.WithServiceTypes(types...),
		discovery.WithWaitSet(waitSet),
		discovery.WithLogger(d.logger),
	}, d.discoveryOpts...)

	return discovery.New(zc, d.IP, opts...).Run(ctx)
}

// waitSet is satisfied once the device API arrived and, unless the article
// number rules it out, the plcnet API too.
func waitSet(s *discovery.State) bool {
	adv, ok := s.Get(deviceapi.ServiceType)
	if !ok {
		return false
	}
	if !plcnetapi.HasPlcNet(adv.PropertyOr("MT", "0")) {
		return true
	}
	_, ok = s.Get(plcnetapi.ServiceType)
	return ok
}

func (d *Device) apply(result *discovery.Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ip := d.IP.String()
	d.DeviceAPI, d.PlcNet = nil, nil

	if adv, ok := result.Advertisements[deviceapi.ServiceType]; ok {
		api, err := deviceapi.New(ip, d.session, adv,
			deviceapi.WithLogger(d.logger),
			deviceapi.WithTransportOptions(d.transportOpts...),
		)
		if err != nil {
			d.logger.Warn("Ignoring unusable device API advertisement", zap.Error(err))
		} else {
			d.applyDeviceInfo(adv)
			api.SetPassword(d.password)
			d.DeviceAPI = api
		}
	}

	if adv, ok := result.Advertisements[plcnetapi.ServiceType]; ok {
		api, err := plcnetapi.New(ip, d.session, adv,
			plcnetapi.WithLogger(d.logger),
			plcnetapi.WithTransportOptions(d.transportOpts...),
		)
		if err != nil {
			d.logger.Warn("Ignoring unusable plcnet API advertisement", zap.Error(err))
		} else {
			d.MAC = adv.Property("PlcMacAddress")
			d.Technology = adv.Property("PlcTechnology")
			api.SetPassword(d.password)
			d.PlcNet = api
		}
	}

	if d.DeviceAPI == nil && d.PlcNet == nil {
		return apierrors.NewNotFoundError(ip)
	}
	return nil
}

func (d *Device) applyDeviceInfo(adv mdns.Advertisement) {
	d.MTNumber = adv.PropertyOr("MT", "0")
	d.Product = adv.Property("Product")
	d.SerialNumber = adv.PropertyOr("SN", "0")
	d.FirmwareVersion = adv.Property("FirmwareVersion")
	d.FirmwareDate = parseFirmwareDate(adv.Property("FirmwareDate"))
	d.Hostname = adv.Hostname
}

// parseFirmwareDate reads the date part of a FirmwareDate property.
func parseFirmwareDate(s string) time.Time {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return epoch
	}
	return t
}

// Disconnect releases the resources the Device created itself. Borrowed
// resources stay open. It does nothing unless the device is connected.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	if d.state != StateConnected {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	err := d.release()
	d.logger.Debug("Disconnected")
	return err
}

// release closes owned resources and moves to StateDisconnected.
func (d *Device) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.ownsZeroconf && d.zeroconf != nil {
		err = d.zeroconf.Close()
		d.zeroconf, d.ownsZeroconf = nil, false
	}
	if d.ownsSession && d.session != nil {
		d.session.CloseIdleConnections()
	}
	d.session, d.ownsSession = nil, false
	d.state = StateDisconnected
	d.guard.set(false, false)
	return err
}

func newSession() *http.Client {
	return &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
}
