// Package harvest walks search-results pagination and collects candidate
// vehicle-detail URLs.
package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quirkauto/inventory-crawler/internal/metrics"
	"github.com/quirkauto/inventory-crawler/internal/robots"
)

// Client fetches page bodies. Satisfied by *fetch.Client.
type Client interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Renderer re-fetches a page through headless Chrome.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// Detector decides whether a page is a JS app shell worth rendering.
type Detector interface {
	NeedsJS(body []byte) bool
}

// Config controls pagination and candidate matching.
type Config struct {
	BaseURL       string
	VDPPathMarker string
	MaxPages      int
	Pause         time.Duration
}

// Harvester walks SRP pagination and returns the union of two extraction
// strategies: URL fishing inside embedded JSON blobs, and anchor scanning.
// Either alone is known to miss candidates on this site's markup.
type Harvester struct {
	client    Client
	guard     robots.Policy
	renderer  Renderer
	detector  Detector
	base      *url.URL
	marker    string
	maxPages  int
	limiter   *rate.Limiter
	blobURLRx *regexp.Regexp
	logger    *zap.Logger
}

// New builds a Harvester. renderer and detector may be nil, which disables
// headless escalation.
func New(cfg Config, client Client, guard robots.Policy, renderer Renderer, detector Detector, logger *zap.Logger) (*Harvester, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	marker := cfg.VDPPathMarker
	if marker == "" {
		marker = "/vehicle"
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 20
	}
	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}
	return &Harvester{
		client:    client,
		guard:     guard,
		renderer:  renderer,
		detector:  detector,
		base:      base,
		marker:    marker,
		maxPages:  maxPages,
		limiter:   rate.NewLimiter(limit, 1),
		blobURLRx: regexp.MustCompile(`https?://[^"']+` + regexp.QuoteMeta(marker) + `[^"']+`),
		logger:    logger,
	}, nil
}

// Harvest walks pagination from startURL and returns candidate VDP URLs in
// first-seen order. A robots violation is fatal; a fetch failure mid-walk
// returns whatever has been accumulated so far.
func (h *Harvester) Harvest(ctx context.Context, startURL string) ([]string, error) {
	var candidates []string
	seenCandidates := make(map[string]struct{})
	add := func(raw string) {
		if _, dup := seenCandidates[raw]; dup {
			return
		}
		seenCandidates[raw] = struct{}{}
		candidates = append(candidates, raw)
	}

	next := startURL
	if resolved, err := h.resolve(startURL); err == nil {
		next = resolved
	}
	// Seeding with the start URL lets the cycle guard catch pagination
	// that loops back to page one.
	seenPages := map[string]struct{}{next: {}}

	for page := 1; page <= h.maxPages; page++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return candidates, fmt.Errorf("politeness wait: %w", err)
		}
		if !h.guard.Allowed(ctx, next) {
			return candidates, fmt.Errorf("%s: %w", next, robots.ErrDisallowed)
		}

		html, err := h.client.Fetch(ctx, next)
		if err != nil {
			h.logger.Warn("SRP fetch failed; returning partial harvest",
				zap.String("url", next), zap.Int("page", page), zap.Error(err))
			return candidates, nil
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			h.logger.Warn("SRP parse failed; returning partial harvest",
				zap.String("url", next), zap.Error(err))
			return candidates, nil
		}

		found := h.collectCandidates(doc, add)
		if found == 0 && h.renderer != nil && h.detector != nil && h.detector.NeedsJS([]byte(html)) {
			doc = h.escalate(ctx, next, doc, add)
		}

		nextHref, ok := findNextLink(doc)
		if !ok {
			break
		}
		resolved, err := h.resolve(nextHref)
		if err != nil {
			break
		}
		if _, cycled := seenPages[resolved]; cycled {
			h.logger.Warn("Pagination cycle detected; stopping harvest",
				zap.String("url", resolved), zap.Int("page", page))
			break
		}
		seenPages[resolved] = struct{}{}
		next = resolved
	}

	return candidates, nil
}

// escalate re-fetches the page through headless Chrome and reruns both
// strategies on the rendered DOM. Failures fall back to the static document.
func (h *Harvester) escalate(ctx context.Context, pageURL string, doc *goquery.Document, add func(string)) *goquery.Document {
	rendered, err := h.renderer.Render(ctx, pageURL)
	if err != nil {
		h.logger.Warn("Headless render failed; keeping static page",
			zap.String("url", pageURL), zap.Error(err))
		return doc
	}
	renderedDoc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return doc
	}
	metrics.HeadlessRenders.Inc()
	h.collectCandidates(renderedDoc, add)
	return renderedDoc
}

func (h *Harvester) collectCandidates(doc *goquery.Document, add func(string)) int {
	found := 0
	record := func(raw string) {
		found++
		add(raw)
	}

	// Strategy A: fish vehicle URLs out of embedded JSON blobs. These are
	// how the site's JS-rendered cards carry their links. HTML escaping
	// must stay off or query strings come back with & instead of &.
	doc.Find(`script[type="application/json"], script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return
		}
		var normalized bytes.Buffer
		enc := json.NewEncoder(&normalized)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(parsed); err != nil {
			return
		}
		for _, match := range h.blobURLRx.FindAllString(normalized.String(), -1) {
			record(match)
		}
	})

	// Strategy B: plain anchors, resolved against the site base.
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			return
		}
		resolved, err := h.resolve(href)
		if err != nil {
			return
		}
		if strings.Contains(resolved, h.marker) {
			record(resolved)
		}
	})

	return found
}

func (h *Harvester) resolve(href string) (string, error) {
	resolved, err := h.base.Parse(href)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}

// findNextLink prefers an explicit rel=next link, falling back to the first
// anchor whose visible text mentions "Next".
func findNextLink(doc *goquery.Document) (string, bool) {
	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok && href != "" {
		return href, true
	}
	var href string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), "Next") {
			href, _ = sel.Attr("href")
			return false
		}
		return true
	})
	return href, href != ""
}
