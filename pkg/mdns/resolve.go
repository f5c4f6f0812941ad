package mdns

import (
	"context"
	"net/netip"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/dns/dnsmessage"
)

// DefaultResolveTimeout bounds Resolve when ctx carries no deadline.
const DefaultResolveTimeout = time.Second

const initialResolveDelay = 200 * time.Millisecond

// Resolve asks for the SRV, TXT and address records of one instance.
//
// On timeout the partially resolved info is returned together with the
// context error.
func (c *Conn) Resolve(ctx context.Context, serviceType, name string, opts QueryOptions) (*ServiceInfo, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultResolveTimeout)
		defer cancel()
	}

	r := &resolution{
		info:    ServiceInfo{Type: serviceType, Name: name},
		name:    normalize(name),
		hosts:   make(map[string][]netip.Addr),
		updated: make(chan struct{}, 1),
	}

	unsubscribe := c.Subscribe(r.observe)
	defer unsubscribe()

	for _, rec := range c.Lookup(name, dnsmessage.TypeSRV) {
		r.observe(rec)
	}
	for _, rec := range c.Lookup(name, dnsmessage.TypeTXT) {
		r.observe(rec)
	}
	if server := r.server(); server != "" {
		for _, rec := range c.Lookup(server, dnsmessage.TypeA) {
			r.observe(rec)
		}
		for _, rec := range c.Lookup(server, dnsmessage.TypeAAAA) {
			r.observe(rec)
		}
	}

	delay := initialResolveDelay
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		info, questions := r.snapshot()
		if info.complete() {
			return info, nil
		}

		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-r.updated:
		case <-timer.C:
			if err := c.Query(questions, opts); err != nil {
				c.logger.Debug("Resolve query failed", zap.String("name", name), zap.Error(err))
			}
			timer.Reset(delay)
			delay *= 2
		}
	}
}

type resolution struct {
	mu      sync.Mutex
	info    ServiceInfo
	name    string
	hosts   map[string][]netip.Addr
	updated chan struct{}
}

func (r *resolution) observe(rec Record) {
	if rec.TTL == 0 {
		return
	}

	r.mu.Lock()
	changed := false
	switch rec.Type {
	case dnsmessage.TypeSRV:
		if normalize(rec.Name) == r.name {
			r.info.Server = rec.Target
			r.info.Port = int(rec.Port)
			changed = true
		}
	case dnsmessage.TypeTXT:
		if normalize(rec.Name) == r.name {
			r.info.Text = rec.Text
			changed = true
		}
	case dnsmessage.TypeA, dnsmessage.TypeAAAA:
		host := normalize(rec.Name)
		if !slices.Contains(r.hosts[host], rec.Addr) {
			r.hosts[host] = append(r.hosts[host], rec.Addr)
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		select {
		case r.updated <- struct{}{}:
		default:
		}
	}
}

func (r *resolution) server() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.Server
}

// snapshot returns a copy of the current info and the questions still needed.
func (r *resolution) snapshot() (*ServiceInfo, []Question) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.info
	if info.Server != "" {
		info.Addresses = slices.Clone(r.hosts[normalize(info.Server)])
	}

	var questions []Question
	if info.Server == "" || info.Text == nil {
		questions = append(questions,
			Question{Name: r.info.Name, Type: dnsmessage.TypeSRV},
			Question{Name: r.info.Name, Type: dnsmessage.TypeTXT},
		)
	}
	if info.Server != "" && len(info.Addresses) == 0 {
		questions = append(questions,
			Question{Name: info.Server, Type: dnsmessage.TypeA},
			Question{Name: info.Server, Type: dnsmessage.TypeAAAA},
		)
	}
	return &info, questions
}
