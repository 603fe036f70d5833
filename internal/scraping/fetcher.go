// Package scraping holds the HTTP plumbing shared by every importer: the
// browser-like fetcher, robots.txt compliance and the bounded worker pool.
package scraping

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog/log"
	"github.com/semag-arcade/game-importer/pkg/config"
	"github.com/semag-arcade/game-importer/pkg/ratelimit"
)

// Response is a fully read HTTP response
type Response struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher issues browser-like GET and HEAD requests
type Fetcher struct {
	client  *http.Client
	config  *config.HTTPConfig
	referer string
	limiter *ratelimit.HostLimiter
	robots  *ComplianceEngine
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithReferer sends the given Referer header on every request
func WithReferer(referer string) Option {
	return func(f *Fetcher) { f.referer = referer }
}

// WithLimiter waits on a per-host limiter before each request
func WithLimiter(limiter *ratelimit.HostLimiter) Option {
	return func(f *Fetcher) { f.limiter = limiter }
}

// WithPoliteness waits the configured per-host delay between requests
func WithPoliteness(cfg *config.PolitenessConfig) Option {
	if cfg == nil {
		cfg = config.DefaultConfig().Politeness
	}
	return WithLimiter(ratelimit.NewHostLimiter(cfg.Delay.Duration))
}

// NewFetcher creates a fetcher from the http section of the config
func NewFetcher(cfg *config.HTTPConfig, opts ...Option) *Fetcher {
	if cfg == nil {
		cfg = config.DefaultConfig().HTTP
	}
	f := &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout.Duration},
		config: cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	if cfg.RespectRobots {
		f.robots = NewComplianceEngine(f.client, cfg.UserAgent)
	}
	return f
}

// Limiter returns the per-host limiter, or nil when requests are not spaced
func (f *Fetcher) Limiter() *ratelimit.HostLimiter {
	return f.limiter
}

// Referer returns the default Referer header, if any
func (f *Fetcher) Referer() string {
	return f.referer
}

// Get fetches rawURL and reads the decoded body. Non-2xx responses are
// returned as a *TransportError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := f.readBody(rawURL, resp)
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Fetch returns only the body of rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Head returns the status code of a HEAD request. Any status is returned
// without error; only transport failures produce one.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (int, error) {
	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	resp, err := f.send(ctx, req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Download streams rawURL into path, creating parent directories, and
// returns the number of bytes written. Partial files are removed.
func (f *Fetcher) Download(ctx context.Context, rawURL, path string) (int64, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	reader, err := decodeBody(resp)
	if err != nil {
		return 0, &TransportError{URL: rawURL, Err: err}
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", path, err)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	limit := f.config.MaxContentSize
	src := io.Reader(reader)
	if limit > 0 {
		src = io.LimitReader(reader, limit+1)
	}

	n, err := io.Copy(out, src)
	closeErr := out.Close()
	if err == nil && limit > 0 && n > limit {
		err = ErrContentTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, &TransportError{URL: rawURL, Err: err}
	}

	log.Debug().
		Str("url", rawURL).
		Str("path", path).
		Int64("bytes", n).
		Msg("Downloaded file")

	return n, nil
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := f.newRequest(ctx, method, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := f.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if f.limiter != nil {
			f.limiter.RecordError(ratelimit.HostOf(rawURL))
		}
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (f *Fetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", f.config.Accept)
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, br")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}
	return req, nil
}

func (f *Fetcher) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	rawURL := req.URL.String()

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}
		if !allowed {
			return nil, &TransportError{URL: rawURL, Err: ErrDisallowedByRobots}
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, &TransportError{URL: rawURL, Err: err}
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if f.limiter != nil {
			f.limiter.RecordError(ratelimit.HostOf(rawURL))
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("HTTP request")

	return resp, nil
}

func (f *Fetcher) readBody(rawURL string, resp *http.Response) ([]byte, error) {
	reader, err := decodeBody(resp)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer reader.Close()

	limit := f.config.MaxContentSize
	src := io.Reader(reader)
	if limit > 0 {
		src = io.LimitReader(reader, limit+1)
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, &TransportError{URL: rawURL, Err: ErrContentTooLarge}
	}
	return body, nil
}

// decodeBody undoes the Content-Encoding we asked for
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.NopCloser(strings.NewReader("")), nil
			}
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
