// Package directory discovers retail dining locations from the campus
// directory index and scrapes address and hours from each location page.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/dining-menu-sync/internal/headless/detector"
	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

// Defaults for the public directory.
const (
	DefaultIndexURL     = "https://purdue.campusdish.com/LocationsAndMenus"
	DefaultIndexTimeout = 15 * time.Second
	DefaultPageTimeout  = 10 * time.Second
	locationPathMarker  = "/LocationsAndMenus/"
)

var navLabels = map[string]struct{}{
	"map":        {},
	"menus":      {},
	"locations":  {},
	"home":       {},
	"catering":   {},
	"contact us": {},
}

// Entry is a location discovered on the index page.
type Entry struct {
	ID   string
	Name string
	URL  string
}

// Metadata is what a location page yields. Empty strings mean not found.
type Metadata struct {
	Address string
	Hours   string
}

// RenderDetector reports whether a static page needs a browser render.
type RenderDetector interface {
	NeedsRender(body []byte) bool
}

// Config controls the crawler.
type Config struct {
	IndexURL     string
	IndexTimeout time.Duration
	PageTimeout  time.Duration
	Address      []Strategy
	Hours        []Strategy
	Detector     RenderDetector
}

// Crawler walks the directory. Fallback, when set, renders the index with a
// browser if the static page yields no locations, and renders location pages
// the detector flags as script shells.
type Crawler struct {
	cfg      Config
	pages    menu.PageFetcher
	fallback menu.PageFetcher
	logger   *zap.Logger
}

// New builds a Crawler. fallback may be nil.
func New(cfg Config, pages, fallback menu.PageFetcher, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IndexURL == "" {
		cfg.IndexURL = DefaultIndexURL
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = DefaultIndexTimeout
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if len(cfg.Address) == 0 {
		cfg.Address = AddressStrategies
	}
	if len(cfg.Hours) == 0 {
		cfg.Hours = HoursStrategies
	}
	if cfg.Detector == nil {
		cfg.Detector = detector.NewHeuristic(0)
	}
	return &Crawler{cfg: cfg, pages: pages, fallback: fallback, logger: logger}
}

// Discover fetches the index and returns its location links in page order,
// deduplicated by compact id.
func (c *Crawler) Discover(ctx context.Context) ([]Entry, error) {
	entries, err := c.discoverWith(ctx, c.pages)
	if err != nil && c.fallback == nil {
		return nil, err
	}
	if len(entries) > 0 || c.fallback == nil {
		return entries, nil
	}
	c.logger.Info("index yielded no locations, rendering with browser", zap.String("url", c.cfg.IndexURL), zap.Error(err))
	return c.discoverWith(ctx, c.fallback)
}

func (c *Crawler) discoverWith(ctx context.Context, fetcher menu.PageFetcher) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.IndexTimeout)
	defer cancel()
	body, err := fetcher.FetchPage(ctx, c.cfg.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch directory index: %w", err)
	}
	entries, err := ParseIndex(c.cfg.IndexURL, body)
	if err != nil {
		return nil, err
	}
	c.logger.Info("directory index parsed", zap.Int("locations", len(entries)))
	return entries, nil
}

// ParseIndex extracts location entries from an index page.
func ParseIndex(indexURL string, body []byte) ([]Entry, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index html: %w", err)
	}
	var entries []Entry
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		full := base.ResolveReference(ref).String()
		if !strings.Contains(full, locationPathMarker) || full == indexURL {
			return
		}
		name := text(link)
		if name == "" {
			name = text(link.Find(".location-name").First())
		}
		if name == "" {
			return
		}
		if _, nav := navLabels[strings.ToLower(name)]; nav {
			return
		}
		id := menu.CompactID(name)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		entries = append(entries, Entry{ID: id, Name: name, URL: full})
	})
	return entries, nil
}

// Metadata fetches a location page and runs the extraction strategies. Any
// failure yields empty metadata.
func (c *Crawler) Metadata(ctx context.Context, pageURL string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()
	body, err := c.pages.FetchPage(ctx, pageURL)
	if err != nil {
		c.logger.Warn("location page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return Metadata{}
	}
	if c.fallback != nil && c.cfg.Detector.NeedsRender(body) {
		rendered, rerr := c.fallback.FetchPage(ctx, pageURL)
		if rerr != nil {
			c.logger.Warn("location page render failed", zap.String("url", pageURL), zap.Error(rerr))
		} else {
			body = rendered
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("location page parse failed", zap.String("url", pageURL), zap.Error(err))
		return Metadata{}
	}
	// Each attribute takes the first strategy that yields a valid value. A
	// selector that matches but fails its cleaner falls through to the next.
	return Metadata{
		Address: firstMatch(doc, c.cfg.Address),
		Hours:   firstMatch(doc, c.cfg.Hours),
	}
}

// text joins the text nodes under sel with single spaces.
func text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		*parts = append(*parts, n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}
