package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/logging"
)

// MaxBatchFiles caps how many game files the batch scraper saves per game
const MaxBatchFiles = 3

// BatchResult is one game in a batch scrape summary
type BatchResult struct {
	URL    string   `json:"url"`
	Name   string   `json:"name,omitempty"`
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// BatchSummary is written to summary.json after a batch scrape
type BatchSummary struct {
	BaseURL           string        `json:"base_url"`
	TotalFound        int           `json:"total_found"`
	SkippedDuplicates int           `json:"skipped_duplicates"`
	NewGamesScraped   int           `json:"new_games_scraped"`
	Results           []BatchResult `json:"results"`
}

// Generic scrapes portals that follow the common /g/ and /games/ layout
type Generic struct {
	fetcher *scraping.Fetcher
	logger  zerolog.Logger
}

// NewGeneric creates a generic source
func NewGeneric(fetcher *scraping.Fetcher) *Generic {
	return &Generic{
		fetcher: fetcher,
		logger:  logging.GetSiteLogger("generic"),
	}
}

// IsGameLink reports whether href looks like a game page link
func IsGameLink(href string) bool {
	if strings.Contains(strings.ToLower(href), "category") {
		return false
	}
	return strings.Contains(href, "/g/") || strings.Contains(href, "/games/") || strings.Contains(href, "/en/g/")
}

// FindGameLinks collects game page links from baseURL in document order
func (g *Generic) FindGameLinks(ctx context.Context, baseURL string, max int) ([]string, error) {
	resp, err := g.fetcher.Get(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, err
	}

	links := newLinkSet(max)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if IsGameLink(href) {
			links.add(resolveURL(resp.URL, href))
		}
	})

	g.logger.Info().
		Str("url", baseURL).
		Int("links", len(links.links)).
		Msg("Found game links")

	return links.links, nil
}

// ScrapeGame saves the game page into dir and downloads up to
// MaxBatchFiles game files: embedded game iframes and SWF references.
func (g *Generic) ScrapeGame(ctx context.Context, gameURL, name, dir string) BatchResult {
	result := BatchResult{URL: gameURL, Name: name}

	resp, err := g.fetcher.Get(ctx, gameURL)
	if err != nil {
		result.Status = crawllist.StatusError
		result.Error = err.Error()
		return result
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Status = crawllist.StatusError
		result.Error = err.Error()
		return result
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), resp.Body, 0644); err != nil {
		result.Status = crawllist.StatusError
		result.Error = err.Error()
		return result
	}

	doc, err := parseDocument(resp.Body)
	if err != nil {
		result.Status = crawllist.StatusError
		result.Error = err.Error()
		return result
	}

	files := newLinkSet(MaxBatchFiles)
	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		abs := resolveURL(resp.URL, src)
		lower := strings.ToLower(abs)
		if strings.Contains(lower, "game") || strings.Contains(lower, "embed") {
			files.add(abs)
		}
	})
	for _, script := range inlineScripts(doc) {
		for _, swf := range findSWFs(script, resp.URL) {
			files.add(swf)
		}
	}

	for _, fileURL := range files.links {
		name := fileName(fileURL, "game_file")
		if _, err := g.fetcher.Download(ctx, fileURL, filepath.Join(dir, name)); err != nil {
			g.logger.Debug().Err(err).Str("url", fileURL).Msg("Game file download failed")
			continue
		}
		result.Files = append(result.Files, name)
	}

	result.Status = crawllist.StatusSuccess
	return result
}
