package sources

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/semag-arcade/game-importer/pkg/extractor"
	"github.com/semag-arcade/game-importer/pkg/logging"
)

// Setup modes
const (
	ModeRuffle   = "ruffle"
	ModeExternal = "external"
	ModeFull     = "full"
)

var scriptGamesPath = regexp.MustCompile(`["']([^"']*games/[^"']*)["']`)

// SetupResult describes how a Lagged game directory was built
type SetupResult struct {
	Mode     string
	PlayURL  string
	SWF      string // local file name in ruffle mode
	Cover    bool
	Manifest *localize.Manifest // full mode only
}

// Lagged scrapes lagged.com category and game pages
type Lagged struct {
	fetcher   *scraping.Fetcher
	localizer *localize.Localizer
	logger    zerolog.Logger
}

// NewLagged creates a Lagged source. localizer is only needed for full setup.
func NewLagged(fetcher *scraping.Fetcher, localizer *localize.Localizer) *Lagged {
	return &Lagged{
		fetcher:   fetcher,
		localizer: localizer,
		logger:    logging.GetSiteLogger("lagged"),
	}
}

// FindGameLinks collects game page links (/en/g/...) from a category page
// in document order. max <= 0 means no limit.
func (l *Lagged) FindGameLinks(ctx context.Context, categoryURL string, max int) ([]string, error) {
	resp, err := l.fetcher.Get(ctx, categoryURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, err
	}

	links := newLinkSet(max)
	doc.Find(`a[href*="/en/g/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links.add(resolveURL(resp.URL, href))
	})

	// thumbnails wrap their link in a container
	doc.Find(`[class*="thumb"] a[href], [class*="game"] a[href], [class*="Thumb"] a[href], [class*="Game"] a[href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/en/g/") {
			links.add(resolveURL(resp.URL, href))
		}
	})

	l.logger.Info().
		Str("category", categoryURL).
		Int("links", len(links.links)).
		Msg("Found game links")

	return links.links, nil
}

// ScrapeGame reads a game page and returns its crawl record. Failures are
// reported in the record, never as an error.
func (l *Lagged) ScrapeGame(ctx context.Context, gameURL string) crawllist.Record {
	rec := crawllist.Record{
		URL:  gameURL,
		Slug: catalog.URLSlug(gameURL),
	}

	resp, err := l.fetcher.Get(ctx, gameURL)
	if err != nil {
		rec.Status = crawllist.StatusError
		rec.Error = err.Error()
		return rec
	}

	doc, err := parseDocument(resp.Body)
	if err != nil {
		rec.Status = crawllist.StatusError
		rec.Error = err.Error()
		return rec
	}

	rec.Name = extractor.CleanTitle(doc.Find("title").First().Text())
	if rec.Name == "" {
		rec.Name = catalog.TitleFromSlug(rec.Slug)
	}
	rec.PlayURL = FindPlayURL(doc, resp.URL)
	rec.Status = crawllist.StatusSuccess
	return rec
}

// FindPlayURL returns the page that hosts the playable game: the first
// link containing /games/ or /play/, or else the first quoted "games/"
// path in an inline script.
func FindPlayURL(doc *goquery.Document, pageURL string) string {
	var playURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/games/") || strings.Contains(href, "/play/") {
			playURL = resolveURL(pageURL, href)
		}
		return playURL == ""
	})
	if playURL != "" {
		return playURL
	}

	for _, script := range inlineScripts(doc) {
		if m := scriptGamesPath.FindStringSubmatch(script); m != nil {
			if u := resolveURL(pageURL, m[1]); u != "" {
				return u
			}
		}
	}
	return ""
}

// Setup builds the game directory for a crawled record. In full mode the
// play page is localized; otherwise the first SWF is wrapped in a Ruffle
// page, falling back to an iframe wrapper. The cover is always attempted.
func (l *Lagged) Setup(ctx context.Context, rec crawllist.Record, dir string, full bool) (*SetupResult, error) {
	logger := logging.GetGameLogger("lagged", rec.Slug)
	name := rec.Name
	if name == "" {
		name = catalog.TitleFromSlug(rec.Slug)
	}

	var page *extractor.PageInfo
	gamePageURL := rec.URL
	if rec.URL != "" {
		if resp, err := l.fetcher.Get(ctx, rec.URL); err == nil {
			page, _ = extractor.ExtractPage(resp.Body)
			gamePageURL = resp.URL
		} else {
			logger.Debug().Err(err).Msg("Could not fetch game page")
		}
	}

	playURL := rec.PlayURL
	if playURL == "" && page != nil {
		playURL = playLink(page.Links, gamePageURL)
	}

	result := &SetupResult{PlayURL: playURL}

	var err error
	if full {
		err = l.setupFull(ctx, result, rec, dir)
	} else {
		err = l.setupRuffle(ctx, result, name, rec, dir, logger)
	}
	if err != nil {
		return nil, err
	}

	if page != nil {
		if coverErr := downloadCover(ctx, l.fetcher, resolveURL(gamePageURL, page.OGImage), dir); coverErr != nil {
			logger.Warn().Err(coverErr).Msg("No cover image")
		} else {
			result.Cover = true
		}
	}

	logger.Info().
		Str("mode", result.Mode).
		Bool("cover", result.Cover).
		Msg("Game set up")

	return result, nil
}

// playLink returns the first link that points at a play page
func playLink(links []string, pageURL string) string {
	for _, href := range links {
		if strings.Contains(href, "/games/") || strings.Contains(href, "/play/") {
			if u := resolveURL(pageURL, href); u != "" {
				return u
			}
		}
	}
	return ""
}

func (l *Lagged) setupFull(ctx context.Context, result *SetupResult, rec crawllist.Record, dir string) error {
	if l.localizer == nil {
		return fmt.Errorf("full setup needs a localizer")
	}
	target := result.PlayURL
	if target == "" {
		target = rec.URL
	}
	resp, err := l.fetcher.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("fetch play page: %w", err)
	}
	manifest, err := l.localizer.Localize(ctx, resp.Body, resp.URL, dir)
	if err != nil {
		return err
	}
	result.Mode = ModeFull
	result.Manifest = manifest
	return nil
}

func (l *Lagged) setupRuffle(ctx context.Context, result *SetupResult, name string, rec crawllist.Record, dir string, logger zerolog.Logger) error {
	external := func(target string) error {
		page, err := ExternalPage(name, target)
		if err != nil {
			return err
		}
		result.Mode = ModeExternal
		return writeIndex(dir, page)
	}

	if result.PlayURL == "" {
		logger.Warn().Msg("No play URL, writing external wrapper")
		return external(rec.URL)
	}

	resp, err := l.fetcher.Get(ctx, result.PlayURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not fetch play page, writing external wrapper")
		return external(result.PlayURL)
	}

	var swfs []string
	if doc, err := parseDocument(resp.Body); err == nil {
		for _, script := range inlineScripts(doc) {
			swfs = append(swfs, findSWFs(script, resp.URL)...)
		}
	}
	if len(swfs) == 0 {
		logger.Warn().Str("play_url", result.PlayURL).Msg("No SWF on play page, writing external wrapper")
		return external(result.PlayURL)
	}

	swfName := fileName(swfs[0], "game.swf")
	if _, err := l.fetcher.Download(ctx, swfs[0], filepath.Join(dir, swfName)); err != nil {
		logger.Warn().Err(err).Str("swf", swfs[0]).Msg("SWF download failed, writing external wrapper")
		return external(result.PlayURL)
	}

	page, err := RufflePage(name, swfName)
	if err != nil {
		return err
	}
	result.Mode = ModeRuffle
	result.SWF = swfName
	return writeIndex(dir, page)
}
