package scraping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// robotsSizeLimit caps how much of a robots.txt file is read
const robotsSizeLimit = 512 * 1024

// ComplianceEngine answers robots.txt questions with a per-host cache
type ComplianceEngine struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // nil value: no usable robots.txt
}

// NewComplianceEngine creates a robots.txt checker for the given agent
func NewComplianceEngine(client *http.Client, userAgent string) *ComplianceEngine {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ComplianceEngine{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the agent may fetch targetURL. A missing or
// unreadable robots.txt allows everything.
func (ce *ComplianceEngine) Allowed(ctx context.Context, targetURL string) (bool, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	ce.mu.Lock()
	robots, cached := ce.cache[baseURL]
	ce.mu.Unlock()

	if !cached {
		robots = ce.fetchRobotsTxt(ctx, baseURL+"/robots.txt")
		ce.mu.Lock()
		ce.cache[baseURL] = robots
		ce.mu.Unlock()
	}

	if robots == nil {
		return true, nil
	}

	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsedURL.RawQuery != "" {
		path += "?" + parsedURL.RawQuery
	}
	return robots.TestAgent(path, ce.userAgent), nil
}

// fetchRobotsTxt returns nil when robots.txt cannot be used
func (ce *ComplianceEngine) fetchRobotsTxt(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", ce.userAgent)

	resp, err := ce.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("robots_url", robotsURL).Msg("Could not fetch robots.txt, assuming allowed")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsSizeLimit))
	if err != nil {
		return nil
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		log.Debug().Err(err).Str("robots_url", robotsURL).Msg("Could not parse robots.txt, assuming allowed")
		return nil
	}
	return robots
}
