package network

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/pkg/device"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
)

const (
	// ServiceType is the device API service browsed for
	ServiceType = "_dvl-deviceapi._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultTimeout is how long a scan listens for answers
	DefaultTimeout = 3 * time.Second
)

// ExcludedMTNumbers are devolo Home Control central units. They advertise a
// device API but are no powerline devices.
var ExcludedMTNumbers = []string{"2600", "2601"}

// Scanner browses for mDNS services. *zeroconf.Resolver implements it.
//
// Browse must close entries once ctx is done.
type Scanner interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Option configures a scan.
type Option func(*options)

type options struct {
	scanner    Scanner
	logger     *zap.Logger
	deviceOpts []device.Option
}

// WithScanner replaces the default resolver.
func WithScanner(s Scanner) Option {
	return func(o *options) {
		o.scanner = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDeviceOptions are passed to every created Device.
func WithDeviceOptions(opts ...device.Option) Option {
	return func(o *options) {
		o.deviceOpts = append(o.deviceOpts, opts...)
	}
}

// DiscoverNetwork listens for device API advertisements for timeout and
// returns one disconnected Device per serial number.
func DiscoverNetwork(ctx context.Context, timeout time.Duration, opts ...Option) (map[string]*device.Device, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Named("network")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if o.scanner == nil {
		resolver, err := zeroconf.NewResolver(zeroconf.SelectIfaces(scanInterfaces()))
		if err != nil {
			return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
		}
		o.scanner = resolver
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	devices := make(map[string]*device.Device)
	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			serial, dev := o.deviceFromEntry(entry)
			if dev == nil {
				continue
			}
			mu.Lock()
			devices[serial] = dev
			mu.Unlock()
		}
	}()

	o.logger.Debug("Browsing for devices", zap.String("service", ServiceType), zap.Duration("timeout", timeout))
	if err := o.scanner.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	o.logger.Debug("Scan finished", zap.Int("devices", len(devices)))
	return devices, nil
}

// deviceFromEntry turns an advertisement into a Device. It returns nil for
// entries that are no powerline devices or cannot be used.
func (o *options) deviceFromEntry(entry *zeroconf.ServiceEntry) (string, *device.Device) {
	props, err := mdns.PropertiesFromStrings(entry.Text)
	if err != nil {
		o.logger.Debug("Discarding malformed advertisement", zap.String("instance", entry.Instance), zap.Error(err))
		return "", nil
	}

	mt := props["MT"]
	if slices.Contains(ExcludedMTNumbers, mt) {
		return "", nil
	}
	serial := props["SN"]
	if serial == "" {
		return "", nil
	}

	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0]
	} else {
		return "", nil
	}

	var opts []device.Option
	if mt != "" {
		opts = append(opts, device.WithMTNumber(mt))
	}
	dev, err := device.New(ip.String(), append(opts, o.deviceOpts...)...)
	if err != nil {
		o.logger.Debug("Discarding advertisement", zap.String("instance", entry.Instance), zap.Error(err))
		return "", nil
	}
	o.logger.Debug("Found device", zap.String("serial_number", serial), zap.Stringer("ip", ip))
	return serial, dev
}

// scanInterfaces returns the interfaces that are up, multicast capable and
// not loopback.
func scanInterfaces() []net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, iface)
	}
	return out
}
