// Package devicetest provides an in-process devolo device API for tests.
//
// The server speaks HTTP digest authentication (MD5, qop=auth) the way the
// device firmware does and serves canned protobuf responses per route.
package devicetest

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"sync"
	"testing"

	"github.com/icholy/digest"
)

const (
	// Realm is the digest realm announced in challenges
	Realm = "devolo"

	nonce = "5e4fa0c7a2b51f5d"
)

// Request is a recorded authenticated request.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Server is an httptest server behind digest authentication.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	user      string
	passwords []string
	anyPass   bool
	routes    map[string]http.HandlerFunc
	requests  []Request
	rejected  int
}

// NewServer starts a server that accepts any password for user "devolo".
// It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		user:    "devolo",
		anyPass: true,
		routes:  make(map[string]http.HandlerFunc),
	}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// Accept restricts authentication to passwords.
func (s *Server) Accept(passwords ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords = passwords
	s.anyPass = false
}

// Handle registers h for method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = h
}

// Respond registers a fixed 200 response.
func (s *Server) Respond(method, path string, body []byte) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	})
}

// Requests returns the authenticated requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Rejected returns how many requests carried wrong credentials.
func (s *Server) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Addr returns the listening IP.
func (s *Server) Addr() netip.Addr {
	ap := netip.MustParseAddrPort(s.Listener.Addr().String())
	return ap.Addr()
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	auth := r.Header.Get("Authorization")
	if !s.authorized(r.Method, auth) {
		if auth != "" {
			s.mu.Lock()
			s.rejected++
			s.mu.Unlock()
		}
		w.Header().Set("WWW-Authenticate", challenge().String())
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
	h, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (s *Server) authorized(method, header string) bool {
	if header == "" {
		return false
	}
	cred, err := digest.ParseCredentials(header)
	if err != nil {
		return false
	}
	if cred.Username != s.user || cred.Realm != Realm || cred.Nonce != nonce {
		return false
	}

	s.mu.Lock()
	candidates, anyPassword := s.passwords, s.anyPass
	s.mu.Unlock()
	if anyPassword {
		return true
	}

	for _, password := range candidates {
		expected, err := digest.Digest(challenge(), digest.Options{
			Method:   method,
			URI:      cred.URI,
			Username: s.user,
			Password: password,
			Count:    cred.Nc,
			Cnonce:   cred.Cnonce,
		})
		if err == nil && expected.Response == cred.Response {
			return true
		}
	}
	return false
}

func challenge() *digest.Challenge {
	return &digest.Challenge{
		Realm:     Realm,
		Nonce:     nonce,
		QOP:       []string{"auth"},
		Algorithm: "MD5",
	}
}
