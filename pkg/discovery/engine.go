package discovery

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
	"github.com/2Fake/devolo-plc-api/pkg/mdns"
)

const (
	// DeviceAPIServiceType is advertised by every device with a device API.
	DeviceAPIServiceType = "_dvl-deviceapi._tcp.local."
	// PlcNetAPIServiceType is advertised by devices with a powerline chip.
	PlcNetAPIServiceType = "_dvl-plcnetapi._tcp.local."

	DefaultPollInterval   = 10 * time.Millisecond
	DefaultMaxTicks       = 300
	DefaultResolveTimeout = time.Second
)

// Browser is a running browse operation.
type Browser interface {
	// Cancel stops the browser. No handler call happens after it returns.
	Cancel()
}

// Zeroconf is the mDNS facility the engine runs on.
type Zeroconf interface {
	Browse(types []string, handler mdns.Handler, opts mdns.QueryOptions) (Browser, error)
	Resolve(ctx context.Context, serviceType, name string, opts mdns.QueryOptions) (*mdns.ServiceInfo, error)
	Close() error
}

type connZeroconf struct {
	*mdns.Conn
}

func (c connZeroconf) Browse(types []string, handler mdns.Handler, opts mdns.QueryOptions) (Browser, error) {
	b, err := c.Conn.Browse(types, handler, opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewZeroconf adapts an mdns.Conn to Zeroconf.
func NewZeroconf(conn *mdns.Conn) Zeroconf {
	return connZeroconf{conn}
}

// ListenZeroconf opens an mdns.Conn restricted to the interfaces relevant to
// target.
func ListenZeroconf(target netip.Addr, logger *zap.Logger) (Zeroconf, error) {
	ifaces, err := mdns.RelevantInterfaces(target)
	if err != nil {
		logger.Debug("Could not list interfaces, using system default", zap.Error(err))
	}
	conn, err := mdns.Listen(mdns.WithInterfaces(ifaces), mdns.WithLogger(logger.Named("mdns")))
	if err != nil {
		return nil, err
	}
	return NewZeroconf(conn), nil
}

// Result is the outcome of a successful discovery.
type Result struct {
	Advertisements map[string]mdns.Advertisement
	Multicast      bool
	AttemptID      string
}

// WaitSet reports whether enough has been discovered to stop waiting.
type WaitSet func(*State) bool

// AllTypes is satisfied once every browsed type has an accepted advertisement.
func AllTypes(types []string) WaitSet {
	return func(s *State) bool {
		for _, t := range types {
			if _, ok := s.Get(t); !ok {
				return false
			}
		}
		return true
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithServiceTypes sets the service types to browse.
func WithServiceTypes(types ...string) Option {
	return func(e *Engine) {
		e.types = types
	}
}

// WithWaitSet sets the completion predicate. It defaults to AllTypes.
func WithWaitSet(w WaitSet) Option {
	return func(e *Engine) {
		e.satisfied = w
	}
}

// WithPollInterval sets the delay between completion checks.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithMaxTicks sets how many polls one phase lasts.
func WithMaxTicks(n int) Option {
	return func(e *Engine) {
		e.maxTicks = n
	}
}

// WithResolveTimeout bounds each resolve.
func WithResolveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.resolveTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAttemptID sets the id attached to every log line of the attempt.
func WithAttemptID(id string) Option {
	return func(e *Engine) {
		e.attemptID = id
	}
}

// Engine finds the advertisements of one device.
//
// It first sends targeted unicast questions. If a whole phase passes without
// any accepted advertisement it switches to multicast once. Only
// advertisements resolved at the target address are accepted.
type Engine struct {
	zc             Zeroconf
	target         netip.Addr
	types          []string
	satisfied      WaitSet
	pollInterval   time.Duration
	maxTicks       int
	resolveTimeout time.Duration
	logger         *zap.Logger
	attemptID      string

	mu          sync.Mutex
	browser     Browser
	cancelPhase context.CancelFunc
	phase       Phase
	browses     int
	resolves    sync.WaitGroup
}

// New creates an engine for target.
func New(zc Zeroconf, target netip.Addr, opts ...Option) *Engine {
	e := &Engine{
		zc:             zc,
		target:         target.Unmap(),
		types:          []string{DeviceAPIServiceType, PlcNetAPIServiceType},
		pollInterval:   DefaultPollInterval,
		maxTicks:       DefaultMaxTicks,
		resolveTimeout: DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.satisfied == nil {
		e.satisfied = AllTypes(e.types)
	}
	if e.attemptID == "" {
		e.attemptID = uuid.NewString()
	}
	if e.logger == nil {
		e.logger = logging.Named("discovery")
	}
	e.logger = e.logger.With(zap.String("attempt", e.attemptID), zap.Stringer("ip", e.target))
	return e
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Browses returns how many browse operations were started.
func (e *Engine) Browses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.browses
}

// Run performs the discovery attempt. It returns apierrors.ErrDeviceNotFound
// (wrapped) when both phases expire without any accepted advertisement.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	state := NewState(e.target)
	defer e.Stop()

	e.setPhase(PhaseUnicast)
	if err := e.runPhase(ctx, state, mdns.UnicastTo(e.target)); err != nil {
		return nil, err
	}

	if state.Empty() && state.escalate() {
		e.logger.Debug("Having trouble getting results via unicast messages. Switching to multicast")
		e.setPhase(PhaseMulticast)
		if err := e.runPhase(ctx, state, mdns.Multicast()); err != nil {
			return nil, err
		}
	}

	e.Stop()

	if state.Empty() {
		e.setPhase(PhaseTimedOut)
		e.logger.Debug("Device not found")
		return nil, apierrors.NewNotFoundError(e.target.String())
	}

	e.setPhase(PhaseSatisfied)
	return &Result{
		Advertisements: state.Snapshot(),
		Multicast:      state.Multicast(),
		AttemptID:      e.attemptID,
	}, nil
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

func (e *Engine) runPhase(ctx context.Context, state *State, opts mdns.QueryOptions) error {
	e.Stop()

	phaseCtx, cancel := context.WithCancel(ctx)
	handler := func(serviceType, name string, change mdns.StateChange) {
		if change == mdns.ServiceRemoved {
			return
		}
		e.resolves.Add(1)
		go func() {
			defer e.resolves.Done()
			e.resolve(phaseCtx, state, serviceType, name, opts)
		}()
	}

	browser, err := e.zc.Browse(e.types, handler, opts)
	if err != nil {
		cancel()
		return err
	}

	e.mu.Lock()
	e.browser = browser
	e.cancelPhase = cancel
	e.browses++
	e.mu.Unlock()

	for tick := 0; tick < e.maxTicks && !e.satisfied(state); tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
	return nil
}

func (e *Engine) resolve(ctx context.Context, state *State, serviceType, name string, opts mdns.QueryOptions) {
	rctx, cancel := context.WithTimeout(ctx, e.resolveTimeout)
	defer cancel()

	info, err := e.zc.Resolve(rctx, serviceType, name, opts)
	if info == nil || !info.HasAddress(e.target) {
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Debug("Could not resolve service", zap.String("name", name), zap.Error(err))
		}
		return
	}

	adv, err := mdns.NewAdvertisement(info)
	if err != nil {
		e.logger.Debug("Discarding malformed advertisement", zap.String("name", name), zap.Error(err))
		return
	}
	adv.ServiceType = serviceType
	adv.Address = e.target

	if ctx.Err() != nil {
		return
	}

	if state.Publish(adv) {
		e.logger.Debug("Adding service info",
			zap.String("service_type", serviceType),
			zap.Bool("multicast", state.Multicast()),
		)
	}
}

// Stop cancels the running browser and waits for in-flight resolves.
// It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	browser, cancel := e.browser, e.cancelPhase
	e.browser, e.cancelPhase = nil, nil
	e.mu.Unlock()

	if browser != nil {
		browser.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	e.resolves.Wait()
}
