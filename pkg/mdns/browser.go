package mdns

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/dns/dnsmessage"
)

const (
	initialBrowseInterval = time.Second
	maxBrowseInterval     = 20 * time.Second
)

// StateChange describes what happened to a service instance.
type StateChange int

const (
	ServiceAdded StateChange = iota
	ServiceRemoved
	// ServiceUpdated is reported when the SRV or TXT data of a known
	// instance changes.
	ServiceUpdated
)

// String returns the change name
func (s StateChange) String() string {
	switch s {
	case ServiceAdded:
		return "Added"
	case ServiceRemoved:
		return "Removed"
	case ServiceUpdated:
		return "Updated"
	default:
		return "Unknown"
	}
}

// Handler receives browse events. It is called from a single goroutine per
// Browser and never after Cancel returns.
type Handler func(serviceType, name string, change StateChange)

// Browser periodically asks for PTR records of a set of service types and
// reports new, changed and removed instances.
type Browser struct {
	conn    *Conn
	types   map[string]string
	order   []string
	handler Handler
	opts    QueryOptions

	events      chan Record
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	once        sync.Once
}

// Browse starts a browser for types. Questions are sent immediately and then
// with doubling intervals.
func (c *Conn) Browse(types []string, handler Handler, opts QueryOptions) (*Browser, error) {
	if len(types) == 0 {
		return nil, errors.New("mdns: no service types to browse")
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Browser{
		conn:    c,
		types:   make(map[string]string, len(types)),
		order:   types,
		handler: handler,
		opts:    opts,
		events:  make(chan Record, 64),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, t := range types {
		b.types[normalize(t)] = t
	}

	b.unsubscribe = c.Subscribe(func(r Record) {
		switch r.Type {
		case dnsmessage.TypePTR:
			if _, ok := b.types[normalize(r.Name)]; !ok {
				return
			}
		case dnsmessage.TypeSRV, dnsmessage.TypeTXT:
			if b.instanceType(r.Name) == "" {
				return
			}
		default:
			return
		}
		select {
		case b.events <- r:
		case <-ctx.Done():
		}
	})

	go b.run(ctx)
	return b, nil
}

func (b *Browser) run(ctx context.Context) {
	defer close(b.done)

	seen := make(map[string]bool)
	// last SRV and TXT data per instance and record type
	data := make(map[string]string)
	handle := func(r Record) {
		if r.Type != dnsmessage.TypePTR {
			if r.TTL == 0 {
				return
			}
			key := normalize(r.Name)
			value := r.Target + ":" + strconv.Itoa(int(r.Port))
			if r.Type == dnsmessage.TypeTXT {
				value = string(r.Text)
			}
			old, known := data[r.key()]
			data[r.key()] = value
			if known && old != value && seen[key] {
				b.handler(b.instanceType(r.Name), r.Name, ServiceUpdated)
			}
			return
		}

		serviceType := b.types[normalize(r.Name)]
		key := normalize(r.PTR)
		if r.TTL == 0 {
			if seen[key] {
				delete(seen, key)
				delete(data, key+"|"+dnsmessage.TypeSRV.String())
				delete(data, key+"|"+dnsmessage.TypeTXT.String())
				b.handler(serviceType, r.PTR, ServiceRemoved)
			}
			return
		}
		if seen[key] {
			return
		}
		seen[key] = true
		b.handler(serviceType, r.PTR, ServiceAdded)
	}

	questions := make([]Question, 0, len(b.order))
	for _, t := range b.order {
		questions = append(questions, Question{Name: t, Type: dnsmessage.TypePTR})
		for _, r := range b.conn.Lookup(t, dnsmessage.TypePTR) {
			handle(r)
		}
	}

	interval := initialBrowseInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.events:
			handle(r)
		case <-timer.C:
			if err := b.conn.Query(questions, b.opts); err != nil {
				b.conn.logger.Debug("Browse query failed", zap.Error(err))
			}
			timer.Reset(interval)
			interval = min(interval*2, maxBrowseInterval)
		}
	}
}

// instanceType returns the browsed service type name is an instance of, or "".
func (b *Browser) instanceType(name string) string {
	name = normalize(name)
	for t, original := range b.types {
		if strings.HasSuffix(name, "."+t) {
			return original
		}
	}
	return ""
}

// Cancel stops the browser and waits until its goroutine has exited.
// It is safe to call more than once.
func (b *Browser) Cancel() {
	b.once.Do(func() {
		b.unsubscribe()
		b.cancel()
	})
	<-b.done
}
