package seeder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/sirupsen/logrus"
)

// Page is the readable text of one crawled page.
type Page struct {
	Title string
	Text  string
}

// CrawlerConfig tunes politeness towards finlex.fi and kkv.fi.
type CrawlerConfig struct {
	UserAgent   string
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
	Verbose     bool
}

// Crawler fetches legal source pages with colly and extracts their text
// with goquery.
type Crawler struct {
	collector *colly.Collector
	logger    *logrus.Logger
}

func NewCrawler(cfg CrawlerConfig, logger *logrus.Logger) (*Crawler, error) {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	if cfg.Verbose {
		c.SetDebugger(&debug.LogDebugger{})
	}

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set crawl limits: %w", err)
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Crawler{collector: c, logger: logger}, nil
}

// Fetch visits url and returns its title and block-level text, one block
// per line.
func (cr *Crawler) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clone shares the transport and limits but not the callbacks.
	c := cr.collector.Clone()

	var page *Page
	var fetchErr error

	c.OnHTML("html", func(e *colly.HTMLElement) {
		page = extractPage(e.DOM)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", url, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil || page.Text == "" {
		return nil, fmt.Errorf("no content extracted from %s", url)
	}

	cr.logger.WithFields(logrus.Fields{
		"url":            url,
		"title":          page.Title,
		"content_length": len(page.Text),
	}).Debug("Page fetched")

	return page, nil
}

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, td"

func extractPage(doc *goquery.Selection) *Page {
	doc.Find("script, style, noscript, nav, header, footer, form, .breadcrumb, .cookie-consent").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	content := doc.Find("main, article, #content").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	var lines []string
	content.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Containers are skipped; their nested blocks are visited on their own.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})

	return &Page{Title: title, Text: strings.Join(lines, "\n")}
}
