package sources

import (
	"context"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/extractor"
	"github.com/semag-arcade/game-importer/pkg/logging"
)

var (
	gameIframeSrc = regexp.MustCompile(`(?i)game|embed|swf`)

	// script patterns that point at the playable file
	gameScriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["']([^"'\s]*\.swf[^"'\s]*)["']`),
		regexp.MustCompile(`(?i)["']([^"'\s]*game[^"'\s]*\.(?:swf|html|js)[^"'\s]*)["']`),
		regexp.MustCompile(`(?i)gameUrl["']?\s*[:=]\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)src["']?\s*[:=]\s*["']([^"']+\.swf[^"']*)["']`),
	}
)

// EmbedMetadata is written to metadata.json after an embed scrape
type EmbedMetadata struct {
	SourceURL   string             `json:"source_url"`
	GameURLs    []string           `json:"game_urls"`
	GameFiles   []string           `json:"game_files"`
	TotalAssets int                `json:"total_assets"`
	Manifest    *localize.Manifest `json:"manifest"`
}

// Embed copies a single portal game page (Kongregate, CrazyGames and
// similar) together with the files of the embedded game.
type Embed struct {
	fetcher   *scraping.Fetcher
	localizer *localize.Localizer
	opts      localize.Options
	logger    zerolog.Logger
}

// NewEmbed creates an embed scraper. Game files matching opts.Exclude (ad
// networks, portal chrome) are never downloaded.
func NewEmbed(fetcher *scraping.Fetcher, localizer *localize.Localizer, opts localize.Options) *Embed {
	return &Embed{
		fetcher:   fetcher,
		localizer: localizer,
		opts:      opts,
		logger:    logging.GetLogger("embed"),
	}
}

// FindGameURLs returns embedded game locations in discovery order: the game
// iframe, object and embed tags, then URLs found in inline scripts.
func FindGameURLs(doc *goquery.Document, pageURL string) []string {
	urls := newLinkSet(0)

	iframe := doc.Find("iframe[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return strings.Contains(strings.ToLower(id), "game")
	}).First()
	if iframe.Length() == 0 {
		iframe = doc.Find("iframe[src]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			return gameIframeSrc.MatchString(src)
		}).First()
	}
	if src, ok := iframe.Attr("src"); ok {
		urls.add(resolveURL(pageURL, src))
	}

	doc.Find("object, embed").Each(func(_ int, s *goquery.Selection) {
		ref, _ := s.Attr("data")
		if ref == "" {
			ref, _ = s.Attr("src")
		}
		urls.add(resolveURL(pageURL, ref))
	})

	for _, script := range inlineScripts(doc) {
		for _, pattern := range gameScriptPatterns {
			for _, m := range pattern.FindAllStringSubmatch(script, -1) {
				urls.add(resolveURL(pageURL, m[1]))
			}
		}
	}
	return urls.links
}

// Scrape localizes pageURL into dir, follows the first embed page for
// nested game frames and SWF files, saves those under data/ and writes
// metadata.json.
func (e *Embed) Scrape(ctx context.Context, pageURL, dir string) (*EmbedMetadata, error) {
	resp, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, err
	}

	gameURLs := FindGameURLs(doc, resp.URL)
	for _, u := range gameURLs {
		e.logger.Info().Str("url", u).Msg("Found game URL")
	}

	downloads := newLinkSet(0)
	for _, u := range gameURLs {
		downloads.add(u)
	}
	if len(gameURLs) > 0 {
		for _, nested := range e.followEmbed(ctx, gameURLs[0]) {
			downloads.add(nested)
		}
	}

	manifest, err := e.localizer.Localize(ctx, resp.Body, resp.URL, dir)
	if err != nil {
		return nil, err
	}

	meta := &EmbedMetadata{
		SourceURL:   pageURL,
		GameURLs:    gameURLs,
		TotalAssets: len(manifest.Assets),
		Manifest:    manifest,
	}

	// game files share data/ with the localized assets
	paths := localize.NewAllocator()
	for _, a := range manifest.Assets {
		paths.Reserve(a.LocalPath, a.RemoteURL)
	}

	for _, u := range downloads.links {
		if e.opts.Excludes(u) {
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil {
			continue
		}
		localPath := paths.Allocate(extractor.KindData, parsed)
		if _, err := e.fetcher.Download(ctx, u, filepath.Join(dir, filepath.FromSlash(localPath))); err != nil {
			e.logger.Debug().Err(err).Str("url", u).Msg("Game file download failed")
			paths.Release(localPath)
			continue
		}
		meta.GameFiles = append(meta.GameFiles, localPath)
		meta.TotalAssets++
	}

	if err := crawllist.WriteJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return nil, err
	}

	e.logger.Info().
		Int("assets", meta.TotalAssets).
		Int("game_files", len(meta.GameFiles)).
		Msg("Embed scrape complete")

	return meta, nil
}

// followEmbed fetches an embed page and returns nested game frames and SWFs
func (e *Embed) followEmbed(ctx context.Context, embedURL string) []string {
	resp, err := e.fetcher.Get(ctx, embedURL)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", embedURL).Msg("Could not fetch embed page")
		return nil
	}

	var found []string
	if doc, err := parseDocument(resp.Body); err == nil {
		doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			lower := strings.ToLower(src)
			if strings.Contains(lower, "game") || strings.Contains(lower, "frame") {
				found = append(found, resolveURL(resp.URL, src))
			}
		})
	}
	found = append(found, findSWFs(string(resp.Body), resp.URL)...)
	return found
}
