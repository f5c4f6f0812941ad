package mdns

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

const (
	testServiceType = "_dvl-deviceapi._tcp.local."
	testInstance    = "devolo-1._dvl-deviceapi._tcp.local."
	testHost        = "devolo-1.local."
)

// testResponder answers questions on a loopback socket.
type testResponder struct {
	conn *net.UDPConn

	mu        sync.Mutex
	records   []Record
	questions []dnsmessage.Question
}

func newTestResponder(t *testing.T, records []Record) *testResponder {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	r := &testResponder{conn: conn, records: records}
	done := make(chan struct{})
	go r.serve(done)
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return r
}

func (r *testResponder) port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

func (r *testResponder) serve(done chan struct{}) {
	defer close(done)

	buf := make([]byte, 9000)
	for {
		n, src, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}

		var p dnsmessage.Parser
		if _, err := p.Start(buf[:n]); err != nil {
			continue
		}
		questions, err := p.AllQuestions()
		if err != nil {
			continue
		}

		r.mu.Lock()
		r.questions = append(r.questions, questions...)
		var answers []Record
		for _, q := range questions {
			for _, rec := range r.records {
				if rec.Type == q.Type && normalize(rec.Name) == normalize(q.Name.String()) {
					answers = append(answers, rec)
				}
			}
		}
		r.mu.Unlock()

		if len(answers) == 0 {
			continue
		}
		pkt, err := buildResponse(answers)
		if err != nil {
			continue
		}
		_, _ = r.conn.WriteToUDPAddrPort(pkt, src)
	}
}

func (r *testResponder) send(t *testing.T, to *Conn, records []Record) {
	t.Helper()
	pkt, err := buildResponse(records)
	require.NoError(t, err)
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: to.LocalAddr().(*net.UDPAddr).Port}
	_, err = r.conn.WriteToUDP(pkt, dst)
	require.NoError(t, err)
}

func (r *testResponder) seen() []dnsmessage.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dnsmessage.Question(nil), r.questions...)
}

func deviceRecords(t *testing.T) []Record {
	t.Helper()
	txt, err := EncodeTXT(map[string]string{"MT": "2730", "SN": "1234567890123456", "Path": "/", "Version": "v0"})
	require.NoError(t, err)

	return []Record{
		{Name: testServiceType, Type: dnsmessage.TypePTR, TTL: 120, PTR: testInstance},
		{Name: testInstance, Type: dnsmessage.TypeSRV, TTL: 120, Target: testHost, Port: 8080},
		{Name: testInstance, Type: dnsmessage.TypeTXT, TTL: 120, Text: txt},
		{Name: testHost, Type: dnsmessage.TypeA, TTL: 120, Addr: netip.MustParseAddr("127.0.0.1")},
	}
}

type event struct {
	serviceType string
	name        string
	change      StateChange
}

func collect() (Handler, func() []event) {
	var mu sync.Mutex
	var events []event
	h := func(serviceType, name string, change StateChange) {
		mu.Lock()
		events = append(events, event{serviceType, name, change})
		mu.Unlock()
	}
	get := func() []event {
		mu.Lock()
		defer mu.Unlock()
		return append([]event(nil), events...)
	}
	return h, get
}

func TestBrowseUnicast(t *testing.T) {
	responder := newTestResponder(t, deviceRecords(t))

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	handler, events := collect()
	browser, err := conn.Browse([]string{testServiceType}, handler, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	require.NoError(t, err)
	defer browser.Cancel()

	require.Eventually(t, func() bool { return len(events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, event{testServiceType, testInstance, ServiceAdded}, events()[0])

	questions := responder.seen()
	require.NotEmpty(t, questions)
	assert.Equal(t, dnsmessage.ClassINET|unicastResponseBit, questions[0].Class, "unicast browse should send QU questions")
}

func TestBrowseReportsRemoval(t *testing.T) {
	responder := newTestResponder(t, deviceRecords(t))

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	handler, events := collect()
	browser, err := conn.Browse([]string{testServiceType}, handler, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	require.NoError(t, err)
	defer browser.Cancel()

	require.Eventually(t, func() bool { return len(events()) == 1 }, 2*time.Second, 10*time.Millisecond)

	responder.send(t, conn, []Record{
		{Name: testServiceType, Type: dnsmessage.TypePTR, TTL: 0, PTR: testInstance},
	})

	require.Eventually(t, func() bool { return len(events()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ServiceRemoved, events()[1].change)
	assert.Empty(t, conn.Lookup(testServiceType, dnsmessage.TypePTR))
}

func TestBrowseReportsUpdate(t *testing.T) {
	responder := newTestResponder(t, deviceRecords(t))

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	handler, events := collect()
	browser, err := conn.Browse([]string{testServiceType}, handler, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	require.NoError(t, err)
	defer browser.Cancel()

	require.Eventually(t, func() bool { return len(events()) == 1 }, 2*time.Second, 10*time.Millisecond)

	txt, err := EncodeTXT(map[string]string{"MT": "2730", "SN": "1234567890123456", "Path": "/", "Version": "v1"})
	require.NoError(t, err)
	responder.send(t, conn, []Record{
		{Name: testInstance, Type: dnsmessage.TypeTXT, TTL: 120, Text: txt},
	})

	require.Eventually(t, func() bool { return len(events()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, event{testServiceType, testInstance, ServiceUpdated}, events()[1])
}

func TestBrowserCancel(t *testing.T) {
	responder := newTestResponder(t, nil)

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	handler, events := collect()
	browser, err := conn.Browse([]string{testServiceType}, handler, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	require.NoError(t, err)

	browser.Cancel()
	browser.Cancel()

	responder.send(t, conn, deviceRecords(t)[:1])
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, events(), "no events after Cancel")
}

func TestResolve(t *testing.T) {
	responder := newTestResponder(t, deviceRecords(t))

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := conn.Resolve(ctx, testServiceType, testInstance, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	require.NoError(t, err)

	assert.Equal(t, testHost, info.Server)
	assert.Equal(t, 8080, info.Port)
	assert.True(t, info.HasAddress(netip.MustParseAddr("127.0.0.1")))

	adv, err := NewAdvertisement(info)
	require.NoError(t, err)
	assert.Equal(t, "2730", adv.Property("MT"))
	assert.Equal(t, "devolo-1", adv.InstanceLabel())
}

func TestResolveTimeout(t *testing.T) {
	responder := newTestResponder(t, nil)

	conn, err := Listen(WithPort(responder.port()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	info, err := conn.Resolve(ctx, testServiceType, testInstance, UnicastTo(netip.MustParseAddr("127.0.0.1")))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, info)
	assert.Empty(t, info.Addresses)
}

func TestClosedConn(t *testing.T) {
	conn, err := Listen()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = conn.Browse([]string{testServiceType}, func(string, string, StateChange) {}, Multicast())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = conn.Resolve(context.Background(), testServiceType, testInstance, Multicast())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueryOptions(t *testing.T) {
	assert.True(t, Multicast().IsMulticast())
	assert.Equal(t, QM, Multicast().QuestionType)

	opts := UnicastTo(netip.MustParseAddr("192.0.2.1"))
	assert.False(t, opts.IsMulticast())
	assert.Equal(t, QU, opts.QuestionType)
}
