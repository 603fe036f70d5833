// Package sources knows how to discover and download games from the
// individual aggregator sites.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/semag-arcade/game-importer/pkg/extractor"
)

var swfPattern = regexp.MustCompile(`(?i)["']([^"'\s]*\.swf[^"'\s]*)["']`)

// parseDocument parses an HTML body with goquery
func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// resolveURL joins ref onto base, returning "" for unusable references
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if extractor.IsSkippableRef(ref) {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u, err := b.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

// findSWFs returns absolute URLs of quoted .swf references in text
func findSWFs(text, base string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range swfPattern.FindAllStringSubmatch(text, -1) {
		if u := resolveURL(base, m[1]); u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// inlineScripts returns the text of every script element without src
func inlineScripts(doc *goquery.Document) []string {
	var out []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok {
			return
		}
		if text := s.Text(); strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	})
	return out
}

// fileName returns a filesystem-safe basename for a URL
func fileName(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

// downloadCover saves imageURL as dir/cover.png
func downloadCover(ctx context.Context, fetcher *scraping.Fetcher, imageURL, dir string) error {
	if imageURL == "" {
		return fmt.Errorf("no cover image")
	}
	_, err := fetcher.Download(ctx, imageURL, filepath.Join(dir, catalog.DefaultImage))
	return err
}

// linkSet collects absolute links in order, without duplicates, up to max
type linkSet struct {
	links []string
	seen  map[string]bool
	max   int
}

func newLinkSet(max int) *linkSet {
	return &linkSet{seen: make(map[string]bool), max: max}
}

func (s *linkSet) add(link string) {
	if link == "" || s.seen[link] || s.full() {
		return
	}
	s.seen[link] = true
	s.links = append(s.links, link)
}

func (s *linkSet) full() bool {
	return s.max > 0 && len(s.links) >= s.max
}
