package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/icholy/digest"
	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/internal/version"
	"github.com/2Fake/devolo-plc-api/pkg/apierrors"
)

const (
	// DefaultUser is the digest user of every devolo API
	DefaultUser = "devolo"

	// DefaultTimeout is the default request timeout
	DefaultTimeout = 10 * time.Second

	// LongTimeout is used for calls that make the device do real work
	LongTimeout = 30 * time.Second

	// DefaultMaxAttempts is how often a request is tried when the device is unreachable
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the delay before the first retry
	DefaultRetryDelay = 5 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithRetry configures retry behavior for unreachable devices.
func WithRetry(maxAttempts int, retryDelay time.Duration) Option {
	return func(c *Client) {
		c.MaxAttempts = maxAttempts
		c.RetryDelay = retryDelay
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client performs digest authenticated requests against one device API.
//
// The password is shared state: after a 401 the client replaces it with its
// SHA-256 hex digest and retries once. Devices with a password set expect the
// hash, so later calls go straight to the right credentials.
type Client struct {
	// IP is the device address (IPv4 or IPv6)
	IP string

	// Port is the API port from the advertisement
	Port int

	// Path is the API path prefix from the advertisement
	Path string

	// Version is the API version from the advertisement
	Version string

	// User is the digest username (default: "devolo")
	User string

	// HTTPClient provides the connection pool and cookie jar
	HTTPClient *http.Client

	// MaxAttempts is the total number of tries for unreachable devices
	MaxAttempts int

	// RetryDelay is the initial delay between attempts
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff
	MaxRetryDelay time.Duration

	logger *zap.Logger

	mu       sync.RWMutex
	password string
}

// NewClient creates a client for http://{ip}:{port}/{path}/{version}/.
func NewClient(ip string, port int, path, apiVersion string, session *http.Client, opts ...Option) *Client {
	if session == nil {
		session = http.DefaultClient
	}
	c := &Client{
		IP:            ip,
		Port:          port,
		Path:          path,
		Version:       apiVersion,
		User:          DefaultUser,
		HTTPClient:    session,
		MaxAttempts:   DefaultMaxAttempts,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Named("transport")
	}
	c.logger = c.logger.With(zap.String("ip", ip))
	return c
}

// URL returns the base URL. Empty path segments are left out.
func (c *Client) URL() string {
	var b strings.Builder
	b.WriteString("http://")
	b.WriteString(net.JoinHostPort(c.IP, strconv.Itoa(c.Port)))
	b.WriteString("/")
	for _, segment := range []string{c.Path, c.Version} {
		segment = strings.Trim(segment, "/")
		if segment == "" {
			continue
		}
		b.WriteString(segment)
		b.WriteString("/")
	}
	return b.String()
}

// Password returns the current password.
func (c *Client) Password() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.password
}

// SetPassword replaces the password.
func (c *Client) SetPassword(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.password = password
}

// rehash replaces the password used for a rejected attempt with its SHA-256
// hex digest. If another request already changed it, the current value is
// kept and returned.
func (c *Client) rehash(rejected string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.password == rejected {
		sum := sha256.Sum256([]byte(rejected))
		c.password = hex.EncodeToString(sum[:])
	}
	return c.password
}

// Get performs a GET on subPath.
func (c *Client) Get(ctx context.Context, subPath string, timeout time.Duration) ([]byte, error) {
	return c.request(ctx, http.MethodGet, subPath, nil, timeout)
}

// Post performs a POST of body on subPath.
func (c *Client) Post(ctx context.Context, subPath string, body []byte, timeout time.Duration) ([]byte, error) {
	return c.request(ctx, http.MethodPost, subPath, body, timeout)
}

func (c *Client) request(ctx context.Context, method, subPath string, body []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	url := c.URL() + strings.TrimPrefix(subPath, "/")

	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 1; attempt <= max(c.MaxAttempts, 1); attempt++ {
		if attempt > 1 {
			c.logger.Debug("Retrying unreachable device",
				zap.Int("attempt", attempt),
				zap.Duration("delay", currentDelay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(currentDelay):
			}
			currentDelay = min(currentDelay*2, c.MaxRetryDelay)
		}

		data, err := c.attempt(ctx, method, url, body, timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !apierrors.IsUnavailable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// attempt performs one request, rehashing the password once on 401.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, timeout time.Duration) ([]byte, error) {
	password := c.Password()

	status, data, err := c.do(ctx, method, url, body, timeout, password)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		password = c.rehash(password)
		c.logger.Debug("Password rejected, retrying with hashed password")
		status, data, err = c.do(ctx, method, url, body, timeout, password)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, apierrors.NewPasswordProtectedError(c.IP)
		}
	}

	if status < 200 || status >= 300 {
		return nil, apierrors.NewHTTPError(c.IP, status)
	}

	logging.LogRawBytes(c.logger, "Response body", data)
	return data, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, timeout time.Duration, password string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	client := c.digestClient(password)
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, c.classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, c.classify(ctx, err)
	}

	return resp.StatusCode, data, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if parent := context.Cause(ctx); parent != nil && errors.Is(parent, context.Canceled) {
		return parent
	}
	return apierrors.ClassifyNetworkError(err, c.IP)
}

// digestClient wraps the shared session transport with digest credentials.
func (c *Client) digestClient(password string) *http.Client {
	base := c.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &digest.Transport{
			Username:  c.User,
			Password:  password,
			Transport: base,
		},
		Jar:           c.HTTPClient.Jar,
		CheckRedirect: c.HTTPClient.CheckRedirect,
	}
}
