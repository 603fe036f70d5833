// Package localize downloads the assets a game page depends on and rewrites
// the page so it loads them from the game directory.
package localize

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/semag-arcade/game-importer/pkg/config"
	"github.com/semag-arcade/game-importer/pkg/extractor"
	"github.com/semag-arcade/game-importer/pkg/logging"
	"golang.org/x/net/html"
)

// IndexFile is the page written into every game directory
const IndexFile = "index.html"

// Downloader saves a remote resource to a local path
type Downloader interface {
	Download(ctx context.Context, rawURL, path string) (int64, error)
}

// Options controls which references are downloaded
type Options struct {
	// AssetHosts are extra hosts treated as same-origin, e.g. a game CDN
	AssetHosts []string

	// CDNHosts are external engine hosts that are recorded but not copied
	CDNHosts []string

	// Exclude skips any reference whose URL contains one of these strings
	Exclude []string
}

// OptionsFrom builds Options from the localize section of the config
func OptionsFrom(cfg *config.LocalizeConfig, assetHosts ...string) Options {
	if cfg == nil {
		cfg = config.DefaultConfig().Localize
	}
	return Options{
		AssetHosts: assetHosts,
		CDNHosts:   cfg.CDNHosts,
		Exclude:    cfg.Exclude,
	}
}

// element attributes that load a resource
var structuralRefs = []struct {
	selector string
	attr     string
}{
	{"script[src]", "src"},
	{"link[rel~=stylesheet][href]", "href"},
	{"img[src]", "src"},
	{"link[rel*=icon][href]", "href"},
	{"iframe[src]", "src"},
	{"object[data]", "data"},
	{"object[src]", "src"},
	{"embed[src]", "src"},
	{"source[src]", "src"},
}

// Localizer rewrites game pages to use local copies of their assets
type Localizer struct {
	downloader Downloader
	opts       Options
	logger     zerolog.Logger
}

// New creates a Localizer
func New(downloader Downloader, opts Options) *Localizer {
	return &Localizer{
		downloader: downloader,
		opts:       opts,
		logger:     logging.GetLogger("localizer"),
	}
}

// run holds the state of a single Localize call
type run struct {
	*Localizer
	ctx      context.Context
	base     *url.URL
	dir      string
	manifest *Manifest

	local    map[string]string // remote URL -> local path
	failed   map[string]bool
	paths    *Allocator
	external map[string]bool
}

// Localize downloads the same-origin assets referenced by page, rewrites
// the references to local paths and writes the result to dir/index.html.
// Assets that fail to download keep their original reference.
func (l *Localizer) Localize(ctx context.Context, page []byte, origin, dir string) (*Manifest, error) {
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	r := &run{
		Localizer: l,
		ctx:       ctx,
		base:      originURL,
		dir:       dir,
		manifest:  &Manifest{},
		local:     make(map[string]string),
		failed:    make(map[string]bool),
		paths:     NewAllocator(),
		external:  make(map[string]bool),
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := originURL.Parse(strings.TrimSpace(href)); err == nil {
			r.base = b
		}
	}

	type attrKey struct {
		node *html.Node
		attr string
	}
	seen := make(map[attrKey]bool)

	for _, ref := range structuralRefs {
		doc.Find(ref.selector).Each(func(_ int, s *goquery.Selection) {
			key := attrKey{s.Get(0), ref.attr}
			if seen[key] {
				return
			}
			seen[key] = true

			value, _ := s.Attr(ref.attr)
			rel, _ := s.Attr("rel")
			kind := extractor.KindForTag(goquery.NodeName(s), rel)
			if localPath, ok := r.resolve(value, kind); ok {
				s.SetAttr(ref.attr, localPath)
			}
		})
	}

	// Inline script and style text
	doc.Find("script, style").Each(func(_ int, s *goquery.Selection) {
		if _, hasSrc := s.Attr("src"); hasSrc {
			return
		}
		for _, n := range s.Nodes {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					c.Data = r.rewriteText(c.Data)
				}
			}
		}
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// rewritten paths are relative to the game directory, not the remote base
	doc.Find("base").Remove()

	var out bytes.Buffer
	if err := html.Render(&out, doc.Nodes[0]); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create game directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), out.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", IndexFile, err)
	}

	sort.Strings(r.manifest.External)

	l.logger.Debug().
		Str("dir", dir).
		Int("assets", len(r.manifest.Assets)).
		Int("external", len(r.manifest.External)).
		Int("failed", len(r.manifest.Failed)).
		Strs("paths", r.manifest.LocalPaths()).
		Msg("Localized page")

	return r.manifest, nil
}

// rewriteText replaces asset references inside inline text, last first so
// earlier offsets stay valid.
func (r *run) rewriteText(text string) string {
	refs := extractor.ScanAssetRefs(text)
	for i := len(refs) - 1; i >= 0; i-- {
		ref := refs[i]
		if localPath, ok := r.resolve(ref.Value, ""); ok {
			text = text[:ref.Start] + localPath + text[ref.End:]
		}
	}
	return text
}

// resolve downloads a reference if it is same-origin and returns its
// local path. ok is false when the reference must be left untouched.
func (r *run) resolve(raw, kind string) (string, bool) {
	if extractor.IsSkippableRef(raw) || r.ctx.Err() != nil {
		return "", false
	}

	u, err := r.base.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	u.Fragment = ""
	remote := u.String()

	if r.opts.Excludes(remote) {
		return "", false
	}

	if !r.sameOrigin(u) {
		if r.isCDN(u) && !r.external[remote] {
			r.external[remote] = true
			r.manifest.External = append(r.manifest.External, remote)
		}
		return "", false
	}

	if localPath, ok := r.local[remote]; ok {
		return localPath, true
	}
	if r.failed[remote] {
		return "", false
	}

	if kind == "" {
		kind = extractor.KindForPath(u.Path)
	}
	localPath := r.paths.Allocate(kind, u)

	n, err := r.downloader.Download(r.ctx, remote, filepath.Join(r.dir, filepath.FromSlash(localPath)))
	if err != nil {
		r.logger.Debug().Err(err).Str("url", remote).Msg("Asset download failed, keeping original reference")
		r.failed[remote] = true
		r.paths.Release(localPath)
		r.manifest.Failed = append(r.manifest.Failed, Failure{URL: remote, Error: err.Error()})
		return "", false
	}

	r.local[remote] = localPath
	r.manifest.Assets = append(r.manifest.Assets, Asset{
		RemoteURL: remote,
		LocalPath: localPath,
		Kind:      kind,
		Bytes:     n,
	})
	return localPath, true
}

func (r *run) sameOrigin(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == strings.ToLower(r.base.Hostname()) {
		return true
	}
	return hostMatches(host, r.opts.AssetHosts)
}

func (r *run) isCDN(u *url.URL) bool {
	return hostMatches(strings.ToLower(u.Hostname()), r.opts.CDNHosts)
}

// hostMatches reports whether host equals or is a subdomain of any entry
func hostMatches(host string, hosts []string) bool {
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
