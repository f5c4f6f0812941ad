package devicetest

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/2Fake/devolo-plc-api/pkg/discovery"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
)

// ErrUnknownService is returned by Zeroconf.Resolve for names never advertised.
var ErrUnknownService = errors.New("unknown service")

type service struct {
	serviceType string
	name        string
	info        mdns.ServiceInfo
}

type browser struct {
	mu        sync.Mutex
	cancelled bool
}

func (b *browser) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
}

// Zeroconf is an in-memory discovery.Zeroconf. Browse reports every matching
// advertised service right away.
type Zeroconf struct {
	mu              sync.Mutex
	services        []service
	silentUnicast   bool
	silentMulticast bool
	browses         []mdns.QueryOptions
	browsers        []*browser
	closed          int
}

var _ discovery.Zeroconf = (*Zeroconf)(nil)

// NewZeroconf returns a Zeroconf answering unicast and multicast browses.
func NewZeroconf() *Zeroconf {
	return &Zeroconf{}
}

// Advertise adds a service of serviceType at addr:port.
func (z *Zeroconf) Advertise(serviceType string, addr netip.Addr, port int, props map[string]string) error {
	text, err := mdns.EncodeTXT(props)
	if err != nil {
		return err
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	name := fmt.Sprintf("devolo-%d.%s", len(z.services), serviceType)
	z.services = append(z.services, service{
		serviceType: serviceType,
		name:        name,
		info: mdns.ServiceInfo{
			Type:      serviceType,
			Name:      name,
			Server:    fmt.Sprintf("devolo-%d.local.", len(z.services)),
			Port:      port,
			Text:      text,
			Addresses: []netip.Addr{addr},
		},
	})
	return nil
}

// SilenceUnicast makes browses with unicast questions go unanswered.
func (z *Zeroconf) SilenceUnicast() {
	z.mu.Lock()
	z.silentUnicast = true
	z.mu.Unlock()
}

// SilenceMulticast makes browses with multicast questions go unanswered.
func (z *Zeroconf) SilenceMulticast() {
	z.mu.Lock()
	z.silentMulticast = true
	z.mu.Unlock()
}

// Browse implements discovery.Zeroconf.
func (z *Zeroconf) Browse(types []string, handler mdns.Handler, opts mdns.QueryOptions) (discovery.Browser, error) {
	z.mu.Lock()
	b := &browser{}
	z.browses = append(z.browses, opts)
	z.browsers = append(z.browsers, b)
	silent := z.silentUnicast
	if opts.IsMulticast() {
		silent = z.silentMulticast
	}
	services := append([]service(nil), z.services...)
	z.mu.Unlock()

	if silent {
		return b, nil
	}
	for _, s := range services {
		for _, t := range types {
			if t == s.serviceType {
				handler(s.serviceType, s.name, mdns.ServiceAdded)
			}
		}
	}
	return b, nil
}

// Resolve implements discovery.Zeroconf.
func (z *Zeroconf) Resolve(ctx context.Context, serviceType, name string, opts mdns.QueryOptions) (*mdns.ServiceInfo, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	for _, s := range z.services {
		if s.serviceType == serviceType && s.name == name {
			info := s.info
			return &info, nil
		}
	}
	return nil, ErrUnknownService
}

// Close implements discovery.Zeroconf.
func (z *Zeroconf) Close() error {
	z.mu.Lock()
	z.closed++
	z.mu.Unlock()
	return nil
}

// Closed returns how often Close was called.
func (z *Zeroconf) Closed() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.closed
}

// Browses returns the options of every browse in order.
func (z *Zeroconf) Browses() []mdns.QueryOptions {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]mdns.QueryOptions(nil), z.browses...)
}

// AllCancelled reports whether every browser was cancelled.
func (z *Zeroconf) AllCancelled() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	for _, b := range z.browsers {
		b.mu.Lock()
		cancelled := b.cancelled
		b.mu.Unlock()
		if !cancelled {
			return false
		}
	}
	return true
}
