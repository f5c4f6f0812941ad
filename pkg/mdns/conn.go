package mdns

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/dns/dnsmessage"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/2Fake/devolo-plc-api/internal/logging"
)

// Port is the mDNS port.
const Port = 5353

var (
	ipv4Group = netip.MustParseAddr("224.0.0.251")
	ipv6Group = netip.MustParseAddr("ff02::fb")
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("mdns: connection closed")

// QuestionType selects how responders should answer.
type QuestionType int

const (
	// QM asks for multicast replies.
	QM QuestionType = iota
	// QU asks for a unicast reply.
	QU
)

// QueryOptions controls where questions are sent.
type QueryOptions struct {
	// Addr is the unicast destination. The zero value sends to the multicast group.
	Addr netip.Addr
	// QuestionType sets the QU bit on outgoing questions.
	QuestionType QuestionType
}

// UnicastTo returns options for targeted QU questions sent to addr.
func UnicastTo(addr netip.Addr) QueryOptions {
	return QueryOptions{Addr: addr, QuestionType: QU}
}

// Multicast returns options for QM questions sent to the multicast group.
func Multicast() QueryOptions {
	return QueryOptions{QuestionType: QM}
}

// IsMulticast reports whether questions go to the multicast group.
func (o QueryOptions) IsMulticast() bool {
	return !o.Addr.IsValid()
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithInterfaces restricts multicast sends to ifaces.
func WithInterfaces(ifaces []net.Interface) ConnOption {
	return func(c *Conn) {
		c.ifaces = ifaces
	}
}

// WithPort overrides the destination port of every question.
func WithPort(port int) ConnOption {
	return func(c *Conn) {
		c.port = port
	}
}

// WithLogger sets the logger used for packet level debugging.
func WithLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = l
	}
}

type cacheEntry struct {
	Record
	expires time.Time
}

// Conn is an mDNS querier bound to an ephemeral UDP port.
//
// Because the source port is not 5353, responders answer every question with
// a unicast reply to the socket, for both targeted and multicast questions.
type Conn struct {
	logger *zap.Logger
	port   int
	ifaces []net.Interface

	conn4 *net.UDPConn
	pc4   *ipv4.PacketConn
	conn6 *net.UDPConn
	pc6   *ipv6.PacketConn

	sendMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	cache   map[string][]cacheEntry
	subs    map[uint64]func(Record)
	nextSub uint64

	wg sync.WaitGroup
}

// Listen opens the querier sockets. IPv6 support is best-effort.
func Listen(opts ...ConnOption) (*Conn, error) {
	c := &Conn{
		port:  Port,
		cache: make(map[string][]cacheEntry),
		subs:  make(map[uint64]func(Record)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Named("mdns")
	}

	conn4, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("failed to open mDNS socket: %w", err)
	}
	c.conn4 = conn4
	c.pc4 = ipv4.NewPacketConn(conn4)
	if err := c.pc4.SetMulticastTTL(255); err != nil {
		c.logger.Debug("Could not set multicast TTL", zap.Error(err))
	}

	if conn6, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified}); err == nil {
		c.conn6 = conn6
		c.pc6 = ipv6.NewPacketConn(conn6)
		if err := c.pc6.SetMulticastHopLimit(255); err != nil {
			c.logger.Debug("Could not set multicast hop limit", zap.Error(err))
		}
	} else {
		c.logger.Debug("IPv6 mDNS socket unavailable", zap.Error(err))
	}

	c.wg.Add(1)
	go c.readLoop(c.conn4)
	if c.conn6 != nil {
		c.wg.Add(1)
		go c.readLoop(c.conn6)
	}

	c.logger.Debug("mDNS querier listening",
		zap.Stringer("local_addr", conn4.LocalAddr()),
		zap.Int("interfaces", len(c.ifaces)),
	)

	return c, nil
}

// LocalAddr returns the IPv4 socket address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn4.LocalAddr()
}

// Query sends one packet holding all questions.
func (c *Conn) Query(questions []Question, opts QueryOptions) error {
	if c.isClosed() {
		return ErrClosed
	}

	pkt, err := buildQuery(questions, opts.QuestionType == QU)
	if err != nil {
		return err
	}
	logging.LogRawBytes(c.logger, "Sending mDNS query", pkt)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !opts.IsMulticast() {
		return c.sendUnicast(pkt, opts.Addr)
	}

	err = c.sendMulticast4(pkt)
	c.sendMulticast6(pkt)
	return err
}

func (c *Conn) sendUnicast(pkt []byte, addr netip.Addr) error {
	dst := netip.AddrPortFrom(addr.Unmap(), uint16(c.port))
	if dst.Addr().Is4() {
		_, err := c.conn4.WriteToUDPAddrPort(pkt, dst)
		return err
	}
	if c.conn6 == nil {
		return fmt.Errorf("cannot query %s: no IPv6 socket", addr)
	}
	_, err := c.conn6.WriteToUDPAddrPort(pkt, dst)
	return err
}

func (c *Conn) sendMulticast4(pkt []byte) error {
	dst := netip.AddrPortFrom(ipv4Group, uint16(c.port))
	if len(c.ifaces) == 0 {
		_, err := c.conn4.WriteToUDPAddrPort(pkt, dst)
		return err
	}

	var lastErr error
	sent := false
	for i := range c.ifaces {
		if err := c.pc4.SetMulticastInterface(&c.ifaces[i]); err != nil {
			lastErr = err
			continue
		}
		if _, err := c.conn4.WriteToUDPAddrPort(pkt, dst); err != nil {
			lastErr = err
			continue
		}
		sent = true
	}
	if !sent {
		return lastErr
	}
	return nil
}

func (c *Conn) sendMulticast6(pkt []byte) {
	if c.conn6 == nil {
		return
	}
	for i := range c.ifaces {
		iface := &c.ifaces[i]
		if err := c.pc6.SetMulticastInterface(iface); err != nil {
			continue
		}
		dst := netip.AddrPortFrom(ipv6Group.WithZone(iface.Name), uint16(c.port))
		if _, err := c.conn6.WriteToUDPAddrPort(pkt, dst); err != nil {
			c.logger.Debug("IPv6 multicast send failed", zap.String("interface", iface.Name), zap.Error(err))
		}
	}
}

func (c *Conn) readLoop(conn *net.UDPConn) {
	defer c.wg.Done()

	buf := make([]byte, 9000)
	for {
		n, src, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || c.isClosed() {
				return
			}
			c.logger.Debug("mDNS read failed", zap.Error(err))
			continue
		}

		records, err := parseResponse(buf[:n])
		if err != nil {
			c.logger.Debug("Ignoring malformed mDNS packet", zap.Stringer("from", src), zap.Error(err))
			continue
		}
		if len(records) == 0 {
			continue
		}
		logging.LogRawBytes(c.logger, "Received mDNS response", buf[:n])
		c.dispatch(records)
	}
}

func (c *Conn) dispatch(records []Record) {
	now := time.Now()

	c.mu.Lock()
	for _, r := range records {
		k := r.key()
		entries := c.cache[k]
		idx := -1
		for i, e := range entries {
			if sameData(e.Record, r) {
				idx = i
				break
			}
		}
		switch {
		case r.TTL == 0 && idx >= 0:
			entries = append(entries[:idx], entries[idx+1:]...)
		case r.TTL == 0:
		case idx >= 0:
			entries[idx] = cacheEntry{r, now.Add(time.Duration(r.TTL) * time.Second)}
		default:
			entries = append(entries, cacheEntry{r, now.Add(time.Duration(r.TTL) * time.Second)})
		}
		if len(entries) == 0 {
			delete(c.cache, k)
		} else {
			c.cache[k] = entries
		}
	}
	subs := make([]func(Record), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, r := range records {
		for _, fn := range subs {
			fn(r)
		}
	}
}

func sameData(a, b Record) bool {
	return a.PTR == b.PTR &&
		a.Target == b.Target &&
		a.Port == b.Port &&
		a.Addr == b.Addr &&
		bytes.Equal(a.Text, b.Text)
}

// Lookup returns the unexpired cached records for name and typ.
func (c *Conn) Lookup(name string, typ dnsmessage.Type) []Record {
	now := time.Now()
	k := Record{Name: name, Type: typ}.key()

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Record
	for _, e := range c.cache[k] {
		if now.Before(e.expires) {
			out = append(out, e.Record)
		}
	}
	return out
}

// Subscribe registers fn for every received record. fn runs on the reader
// goroutine and must not block. The returned function removes fn.
func (c *Conn) Subscribe(fn func(Record)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close shuts the sockets and waits for the reader goroutines.
// It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn4.Close()
	if c.conn6 != nil {
		_ = c.conn6.Close()
	}
	c.wg.Wait()
	return err
}
