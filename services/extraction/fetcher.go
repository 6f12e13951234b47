package extraction

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FetcherOptions configures the document fetcher
type FetcherOptions struct {
	UserAgent string
	Timeout   time.Duration

	// MaxBytes caps the document size
	MaxBytes int64

	// RatePerHost paces requests to any single host
	RatePerHost rate.Limit
	Burst       int

	// AllowPrivateNetworks lets URLs reach loopback, link-local and private
	// addresses. Off, every dial (redirects included) is checked against
	// the resolved IP.
	AllowPrivateNetworks bool
}

// ErrBlockedAddress is returned for document URLs that resolve to a
// non-public address
var ErrBlockedAddress = errors.New("document url resolves to a non-public address")

// FetchedDocument is a downloaded tender file
type FetchedDocument struct {
	URL      string
	MimeType string
	Data     []byte
}

// DocumentFetcher downloads tender documents with per-host pacing
type DocumentFetcher struct {
	client *http.Client
	opts   FetcherOptions
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDocumentFetcher creates a fetcher. A nil client gets one built from
// opts, with the address guard on its dialer. Timeout bounds every Fetch
// whichever client is used.
func NewDocumentFetcher(opts FetcherOptions, client *http.Client, logger *zap.Logger) *DocumentFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tender-gateway/1.0"
	}
	if client == nil {
		client = newGuardedClient(opts)
	}
	return &DocumentFetcher{
		client:   client,
		opts:     opts,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Options returns the effective options after defaults
func (f *DocumentFetcher) Options() FetcherOptions {
	return f.opts
}

func (f *DocumentFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads rawURL. The MIME type comes from the Content-Type header,
// falling back to content sniffing.
func (f *DocumentFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse document url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("unsupported document url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, eris.New("document url has no host")
	}
	if !f.opts.AllowPrivateNetworks {
		if ip := net.ParseIP(u.Hostname()); ip != nil && !isPublicIP(ip) {
			return nil, eris.Wrapf(ErrBlockedAddress, "fetch %s", u.Hostname())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if err := f.limiterFor(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "download document")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("download document: unexpected status %d from %s", resp.StatusCode, u.Host)
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return nil, eris.Errorf("document is %d bytes, limit is %d", resp.ContentLength, f.opts.MaxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "read document")
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, eris.Errorf("document exceeds %d bytes", f.opts.MaxBytes)
	}

	mimeType := mediaType(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mediaType(http.DetectContentType(data))
	}

	f.logger.Debug("document fetched",
		zap.String("host", u.Host),
		zap.String("mime_type", mimeType),
		zap.Int("bytes", len(data)),
	)

	return &FetchedDocument{URL: rawURL, MimeType: mimeType, Data: data}, nil
}

// mediaType strips parameters from a Content-Type value
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

func newGuardedClient(opts FetcherOptions) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.AllowPrivateNetworks {
		dialer.Control = guardDial
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: opts.Timeout, Transport: transport}
}

// guardDial runs after name resolution, so it sees the address actually dialed
func guardDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return eris.Wrap(err, "split dial address")
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return eris.Wrapf(ErrBlockedAddress, "dial %s", host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}
