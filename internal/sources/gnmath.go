package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/semag-arcade/game-importer/pkg/logging"
	"github.com/tidwall/gjson"
)

// gn-math endpoints
const (
	GnMathSiteURL    = "https://gn-math.dev/"
	GnMathZonesURL   = "https://cdn.jsdelivr.net/gh/gn-math/assets@main/zones.json"
	GnMathCoversBase = "https://cdn.jsdelivr.net/gh/gn-math/covers@main/"
	GnMathHTMLBase   = "https://cdn.jsdelivr.net/gh/gn-math/html@main/"
)

// ZoneFallbackPrefix names games whose title has no usable slug
const ZoneFallbackPrefix = "zone"

// Zone is one game entry of zones.json
type Zone struct {
	ID     string
	Name   string
	Author string
}

// Candidate converts the zone to a catalog candidate
func (z Zone) Candidate() catalog.Candidate {
	return catalog.Candidate{
		DisplayName: z.Name,
		FallbackID:  z.ID,
	}
}

// Skip reports zones that are site notices rather than games
func (z Zone) Skip() bool {
	lower := strings.ToLower(z.Name)
	return strings.HasPrefix(z.Name, "[!]") ||
		strings.Contains(lower, "suggest") ||
		strings.Contains(lower, "comment")
}

// GnMathListing is an externally hosted catalog entry written by listing mode
type GnMathListing struct {
	catalog.Entry
	ImagePath string `json:"imagePath,omitempty"`
}

// GnMath reads the gn-math zone index and downloads zones locally
type GnMath struct {
	fetcher   *scraping.Fetcher
	localizer *localize.Localizer
	logger    zerolog.Logger

	SiteURL    string
	ZonesURL   string
	CoversBase string
	HTMLBase   string
}

// NewGnMath creates a gn-math source with the public endpoints
func NewGnMath(fetcher *scraping.Fetcher, localizer *localize.Localizer) *GnMath {
	return &GnMath{
		fetcher:    fetcher,
		localizer:  localizer,
		logger:     logging.GetSiteLogger("gn-math"),
		SiteURL:    GnMathSiteURL,
		ZonesURL:   GnMathZonesURL,
		CoversBase: GnMathCoversBase,
		HTMLBase:   GnMathHTMLBase,
	}
}

// FetchZones downloads zones.json. The file is either an object keyed by
// zone id or an array, in which case the index is the id.
func (g *GnMath) FetchZones(ctx context.Context) ([]Zone, error) {
	body, err := g.fetcher.Fetch(ctx, g.ZonesURL)
	if err != nil {
		return nil, err
	}
	zones, err := ParseZones(body)
	if err != nil {
		return nil, err
	}
	g.logger.Info().Int("zones", len(zones)).Msg("Fetched zones")
	return zones, nil
}

// ParseZones decodes a zones.json document in file order
func ParseZones(body []byte) ([]Zone, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("zones.json is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	var zones []Zone
	switch {
	case root.IsObject():
		root.ForEach(func(key, value gjson.Result) bool {
			zones = append(zones, zoneFrom(key.String(), value))
			return true
		})
	case root.IsArray():
		for i, value := range root.Array() {
			zones = append(zones, zoneFrom(fmt.Sprint(i), value))
		}
	default:
		return nil, fmt.Errorf("unexpected zones.json format")
	}
	return zones, nil
}

func zoneFrom(id string, value gjson.Result) Zone {
	z := Zone{ID: id}
	if value.IsObject() {
		if explicit := value.Get("id"); explicit.Exists() && explicit.String() != "" {
			z.ID = explicit.String()
		}
		for _, key := range []string{"name", "title", "zone"} {
			if v := strings.TrimSpace(value.Get(key).String()); v != "" {
				z.Name = v
				break
			}
		}
		for _, key := range []string{"author", "by"} {
			if v := value.Get(key).String(); v != "" {
				z.Author = v
				break
			}
		}
	} else if value.Type != gjson.Null {
		z.Name = strings.TrimSpace(value.String())
	}
	if z.Name == "" {
		z.Name = "Zone " + z.ID
	}
	return z
}

// Download saves a zone's page with its assets and cover into dir
func (g *GnMath) Download(ctx context.Context, zone Zone, dir string) (*localize.Manifest, error) {
	if g.localizer == nil {
		return nil, fmt.Errorf("download needs a localizer")
	}
	logger := logging.GetGameLogger("gn-math", zone.Name).With().Str("zone", zone.ID).Logger()

	page, err := g.fetcher.Fetch(ctx, g.HTMLBase+zone.ID+"/index.html")
	if err != nil {
		logger.Warn().Err(err).Msg("Could not download HTML, trying alternative")
		page, err = g.fetcher.Fetch(ctx, g.HTMLBase+zone.ID+".html")
		if err != nil {
			return nil, err
		}
	}

	manifest, err := g.localizer.Localize(ctx, page, g.HTMLBase+zone.ID+"/", dir)
	if err != nil {
		return nil, err
	}

	if err := downloadCover(ctx, g.fetcher, g.coverURL(zone), dir); err != nil {
		logger.Warn().Err(err).Msg("No cover image")
	}

	logger.Info().
		Int("assets", len(manifest.Assets)).
		Int("failed", len(manifest.Failed)).
		Msg("Downloaded zone")

	return manifest, nil
}

// Listing builds an externally hosted entry for a zone. imagePath is set
// when the cover exists upstream.
func (g *GnMath) Listing(ctx context.Context, zone Zone, directory, source string) GnMathListing {
	listing := GnMathListing{
		Entry: catalog.Entry{
			Name:      zone.Name,
			Directory: directory,
			Image:     catalog.DefaultImage,
			Source:    source,
			GameURL:   g.SiteURL + "#" + zone.ID,
		},
	}

	coverURL := g.coverURL(zone)
	if status, err := g.fetcher.Head(ctx, coverURL); err == nil && status == http.StatusOK {
		listing.ImagePath = coverURL
	}
	return listing
}

func (g *GnMath) coverURL(zone Zone) string {
	return g.CoversBase + zone.ID + ".png"
}
