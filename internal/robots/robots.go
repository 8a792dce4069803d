// Package robots enforces the target site's crawl-exclusion rules.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// ErrDisallowed marks a URL the crawl depends on being blocked by the site's
// robots policy. It is fatal to the run so operators notice policy drift.
var ErrDisallowed = errors.New("blocked by robots policy")

// Policy reports whether a URL may be fetched.
type Policy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Guard enforces robots.txt for the single target site. The policy document
// is fetched once per run and cached.
type Guard struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	failOpen  bool
	logger    *zap.Logger

	once sync.Once
	data *robotstxt.RobotsData
	err  error
}

// NewGuard builds a Policy for the site rooted at baseURL. With enabled set
// to false every URL is permitted.
func NewGuard(enabled bool, baseURL, userAgent string, failOpen bool, logger *zap.Logger) (Policy, error) {
	if !enabled {
		return &allowAllPolicy{}, nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Guard{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   parsed,
		userAgent: userAgent,
		failOpen:  failOpen,
		logger:    logger,
	}, nil
}

// Allowed implements Policy.
func (g *Guard) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	g.once.Do(func() {
		g.data, g.err = g.load(ctx)
	})
	if g.err != nil {
		// The guard is advisory for a same-owner crawl target; treat an
		// unreachable policy as permission when configured fail-open.
		if g.failOpen {
			g.logger.Warn("robots fetch failed; allowing access",
				zap.String("host", g.baseURL.Host), zap.Error(g.err))
			return true
		}
		g.logger.Warn("robots fetch failed; denying access",
			zap.String("host", g.baseURL.Host), zap.Error(g.err))
		return false
	}
	group := g.data.FindGroup(g.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (g *Guard) load(ctx context.Context) (*robotstxt.RobotsData, error) {
	robotsURL := *g.baseURL
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

type allowAllPolicy struct{}

func (a *allowAllPolicy) Allowed(context.Context, string) bool { return true }
