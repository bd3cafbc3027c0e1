package scrape

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsGate answers whether a URL may be fetched, caching one robots.txt
// group per host. Hosts whose robots.txt cannot be loaded are allowed.
type RobotsGate struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// NewRobotsGate creates a gate for userAgent.
func NewRobotsGate(client *http.Client, userAgent string) *RobotsGate {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	group := g.groupFor(ctx, u)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (g *RobotsGate) groupFor(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	group, ok := g.groups[key]
	g.mu.Unlock()
	if ok {
		return group
	}

	group = g.load(ctx, key)

	g.mu.Lock()
	g.groups[key] = group
	g.mu.Unlock()
	return group
}

func (g *RobotsGate) load(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		zap.L().Debug("robots.txt unavailable, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		zap.L().Debug("robots.txt unparseable, allowing", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data.FindGroup(g.userAgent)
}
