package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *scraping.Fetcher {
	cfg := config.DefaultConfig().HTTP
	cfg.Timeout = config.Duration{Duration: 5 * time.Second}
	return scraping.NewFetcher(cfg)
}

func newTestLocalizer(f *scraping.Fetcher) *localize.Localizer {
	return localize.New(f, localize.OptionsFrom(config.DefaultConfig().Localize))
}

// laggedSite fakes the pages of a lagged.com category
func laggedSite(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/en/funny", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/en/g/moto-x3m">Moto</a>
<div class="thumb"><a href="/en/g/slope">Slope</a></div>
<a href="/en/g/moto-x3m">Moto again</a>
<a href="/en/funny?page=2">Next</a>
<div class="game-tile"><a href="/en/g/flash-game">Flash</a></div>
</body></html>`)
	})
	mux.HandleFunc("/en/g/moto-x3m", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Moto X3M - Play Free on Lagged</title>
<meta property="og:image" content="%s/img/moto.png"></head>
<body><a href="/games/moto-x3m/">Play</a></body></html>`, server.URL)
	})
	mux.HandleFunc("/en/g/slope", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Slope</title></head>
<body><script>var play = "/games/slope/index.html";</script></body></html>`)
	})
	mux.HandleFunc("/en/g/flash-game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Flash Game</title><meta property="og:image" content="/img/flash.png"></head>
<body><script>var g = "/games/flash-game/";</script></body></html>`)
	})
	mux.HandleFunc("/games/flash-game/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script>swfobject.embedSWF("files/flash.swf", "c");</script></body></html>`)
	})
	mux.HandleFunc("/games/flash-game/files/flash.swf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("FWS"))
	})
	mux.HandleFunc("/games/moto-x3m/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><script src="game.js"></script></head><body><canvas></canvas></body></html>`)
	})
	mux.HandleFunc("/games/moto-x3m/game.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("start()"))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png"))
	})

	server = httptest.NewServer(mux)
	return server
}

func TestLagged_FindGameLinks(t *testing.T) {
	server := laggedSite(t)
	defer server.Close()

	lagged := NewLagged(newTestFetcher(), nil)

	links, err := lagged.FindGameLinks(context.Background(), server.URL+"/en/funny", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		server.URL + "/en/g/moto-x3m",
		server.URL + "/en/g/slope",
		server.URL + "/en/g/flash-game",
	}, links)

	limited, err := lagged.FindGameLinks(context.Background(), server.URL+"/en/funny", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLagged_ScrapeGame(t *testing.T) {
	server := laggedSite(t)
	defer server.Close()

	lagged := NewLagged(newTestFetcher(), nil)
	ctx := context.Background()

	rec := lagged.ScrapeGame(ctx, server.URL+"/en/g/moto-x3m")
	assert.Equal(t, crawllist.StatusSuccess, rec.Status)
	assert.Equal(t, "moto-x3m", rec.Slug)
	assert.Equal(t, "Moto X3M", rec.Name)
	assert.Equal(t, server.URL+"/games/moto-x3m/", rec.PlayURL)

	// Play URL found in an inline script
	rec = lagged.ScrapeGame(ctx, server.URL+"/en/g/slope")
	assert.Equal(t, server.URL+"/games/slope/index.html", rec.PlayURL)

	rec = lagged.ScrapeGame(ctx, server.URL+"/en/g/missing")
	assert.Equal(t, crawllist.StatusError, rec.Status)
	assert.Contains(t, rec.Error, "404")
}

func TestLagged_SetupRuffle(t *testing.T) {
	server := laggedSite(t)
	defer server.Close()

	lagged := NewLagged(newTestFetcher(), nil)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "flash-game")

	rec := lagged.ScrapeGame(ctx, server.URL+"/en/g/flash-game")
	require.Equal(t, server.URL+"/games/flash-game/", rec.PlayURL)

	result, err := lagged.Setup(ctx, rec, dir, false)
	require.NoError(t, err)
	assert.Equal(t, ModeRuffle, result.Mode)
	assert.Equal(t, "flash.swf", result.SWF)
	assert.True(t, result.Cover)

	assert.FileExists(t, filepath.Join(dir, "flash.swf"))
	assert.FileExists(t, filepath.Join(dir, "cover.png"))

	page, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `url: "flash.swf"`)
	assert.Contains(t, string(page), "<title>Flash Game</title>")
}

func TestLagged_SetupFallsBackToExternal(t *testing.T) {
	server := laggedSite(t)
	defer server.Close()

	lagged := NewLagged(newTestFetcher(), nil)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "moto-x3m")

	// The moto play page has no SWF
	rec := lagged.ScrapeGame(ctx, server.URL+"/en/g/moto-x3m")
	result, err := lagged.Setup(ctx, rec, dir, false)
	require.NoError(t, err)
	assert.Equal(t, ModeExternal, result.Mode)

	page, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `<iframe src="`+server.URL+`/games/moto-x3m/"`)
}

func TestLagged_SetupFull(t *testing.T) {
	server := laggedSite(t)
	defer server.Close()

	fetcher := newTestFetcher()
	lagged := NewLagged(fetcher, newTestLocalizer(fetcher))
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "moto-x3m")

	rec := lagged.ScrapeGame(ctx, server.URL+"/en/g/moto-x3m")
	result, err := lagged.Setup(ctx, rec, dir, true)
	require.NoError(t, err)
	assert.Equal(t, ModeFull, result.Mode)
	require.NotNil(t, result.Manifest)
	assert.Equal(t, []string{"scripts/game.js"}, result.Manifest.LocalPaths())
	assert.FileExists(t, filepath.Join(dir, "scripts", "game.js"))
	assert.FileExists(t, filepath.Join(dir, "cover.png"))
}

func TestParseZones(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Zone
	}{
		{
			name: "object keyed by id",
			body: `{"7": {"name": "Drift Boss", "author": "MarketJS"}, "9": {"title": "Slope"}, "11": "Tunnel Rush", "12": {}}`,
			want: []Zone{
				{ID: "7", Name: "Drift Boss", Author: "MarketJS"},
				{ID: "9", Name: "Slope"},
				{ID: "11", Name: "Tunnel Rush"},
				{ID: "12", Name: "Zone 12"},
			},
		},
		{
			name: "array",
			body: `[{"id": 0, "name": "[!] Suggest a game"}, {"name": "2048", "by": "Gabriele"}]`,
			want: []Zone{
				{ID: "0", Name: "[!] Suggest a game"},
				{ID: "1", Name: "2048", Author: "Gabriele"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zones, err := ParseZones([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, zones)
		})
	}

	_, err := ParseZones([]byte(`"zones"`))
	assert.Error(t, err)
	_, err = ParseZones([]byte(`{broken`))
	assert.Error(t, err)
}

func TestZone_Skip(t *testing.T) {
	assert.True(t, Zone{Name: "[!] Read me"}.Skip())
	assert.True(t, Zone{Name: "Suggest a Game"}.Skip())
	assert.True(t, Zone{Name: "Comments"}.Skip())
	assert.False(t, Zone{Name: "Drift Boss"}.Skip())
}

func gnMathSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/zones.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 5, "name": "Drift Boss"}, {"id": 6, "name": "Old Game"}]`)
	})
	mux.HandleFunc("/html/5/index.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><script src="main.js"></script></head><body></body></html>`)
	})
	mux.HandleFunc("/html/5/main.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("boot()"))
	})
	mux.HandleFunc("/html/6.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><img src="title.png"></body></html>`)
	})
	mux.HandleFunc("/html/6/title.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png"))
	})
	mux.HandleFunc("/covers/5.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png"))
	})
	return httptest.NewServer(mux)
}

func newTestGnMath(server *httptest.Server) *GnMath {
	fetcher := newTestFetcher()
	g := NewGnMath(fetcher, newTestLocalizer(fetcher))
	g.ZonesURL = server.URL + "/assets/zones.json"
	g.HTMLBase = server.URL + "/html/"
	g.CoversBase = server.URL + "/covers/"
	return g
}

func TestGnMath_Download(t *testing.T) {
	server := gnMathSite(t)
	defer server.Close()

	g := newTestGnMath(server)
	ctx := context.Background()

	zones, err := g.FetchZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 2)

	dir := filepath.Join(t.TempDir(), "drift-boss")
	manifest, err := g.Download(ctx, zones[0], dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"scripts/main.js"}, manifest.LocalPaths())
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.FileExists(t, filepath.Join(dir, "cover.png"))

	// Zone 6 only has the flat .html page and no cover
	dir = filepath.Join(t.TempDir(), "old-game")
	manifest, err = g.Download(ctx, zones[1], dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"images/title.png"}, manifest.LocalPaths())
	assert.NoFileExists(t, filepath.Join(dir, "cover.png"))

	// Neither page exists
	_, err = g.Download(ctx, Zone{ID: "99", Name: "Ghost"}, filepath.Join(t.TempDir(), "ghost"))
	assert.Error(t, err)
}

func TestGnMath_Listing(t *testing.T) {
	server := gnMathSite(t)
	defer server.Close()

	g := newTestGnMath(server)
	g.SiteURL = "https://gn-math.dev/"

	withCover := g.Listing(context.Background(), Zone{ID: "5", Name: "Drift Boss"}, "drift-boss", "non-semag")
	assert.Equal(t, "https://gn-math.dev/#5", withCover.GameURL)
	assert.Equal(t, server.URL+"/covers/5.png", withCover.ImagePath)

	data, err := json.Marshal(withCover)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"name":"Drift Boss","directory":"drift-boss","image":"cover.png","source":"non-semag","gameUrl":"https://gn-math.dev/#5","imagePath":"%s/covers/5.png"}`, server.URL), string(data))

	noCover := g.Listing(context.Background(), Zone{ID: "6", Name: "Old Game"}, "old-game", "non-semag")
	assert.Empty(t, noCover.ImagePath)
}

func TestGeneric(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<a href="/g/bubble-shooter">Bubble</a>
<a href="/games/category/puzzle">Puzzle</a>
<a href="/games/tetris">Tetris</a>
<a href="/about">About</a>
</body></html>`)
	})
	mux.HandleFunc("/games/tetris", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<iframe src="/embed/tetris"></iframe>
<iframe src="/ads/banner"></iframe>
<script>load("tetris.swf"); load("bonus.swf"); load("extra.swf");</script>
</body></html>`)
	})
	mux.HandleFunc("/embed/tetris", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html></html>")) })
	mux.HandleFunc("/games/tetris.swf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("FWS")) })
	mux.HandleFunc("/games/bonus.swf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("FWS")) })
	server := httptest.NewServer(mux)
	defer server.Close()

	generic := NewGeneric(newTestFetcher())
	ctx := context.Background()

	links, err := generic.FindGameLinks(ctx, server.URL+"/", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/g/bubble-shooter", server.URL + "/games/tetris"}, links)

	dir := filepath.Join(t.TempDir(), "tetris")
	result := generic.ScrapeGame(ctx, server.URL+"/games/tetris", "Tetris", dir)
	assert.Equal(t, crawllist.StatusSuccess, result.Status)

	// At most three files are attempted: the embed iframe and the first two SWFs
	assert.Equal(t, []string{"tetris", "tetris.swf", "bonus.swf"}, result.Files)
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.NoFileExists(t, filepath.Join(dir, "extra.swf"))
}

func TestIsGameLink(t *testing.T) {
	assert.True(t, IsGameLink("/en/g/slope"))
	assert.True(t, IsGameLink("https://www.kongregate.com/games/x/y"))
	assert.False(t, IsGameLink("/games/Category/action"))
	assert.False(t, IsGameLink("/about"))
}

func TestEmbed_Scrape(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/games/whack-your-boss", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><link rel="icon" href="/favicon.ico">
<script src="https://pagead2.googlesyndication.com/ads.js"></script></head>
<body>
<iframe id="gameiframe" src="/embed/whack"></iframe>
<script>var gameUrl = "%s/files/whack.html";</script>
</body></html>`, server.URL)
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ico")) })
	mux.HandleFunc("/embed/whack", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><iframe src="/frames/game_frame.html"></iframe><script>var s = "whack.swf";</script></body></html>`)
	})
	mux.HandleFunc("/files/whack.html", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html></html>")) })
	mux.HandleFunc("/frames/game_frame.html", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html></html>")) })
	mux.HandleFunc("/embed/whack.swf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("FWS")) })
	server = httptest.NewServer(mux)
	defer server.Close()

	fetcher := newTestFetcher()
	embed := NewEmbed(fetcher, newTestLocalizer(fetcher), localize.OptionsFrom(config.DefaultConfig().Localize))

	dir := t.TempDir()
	meta, err := embed.Scrape(context.Background(), server.URL+"/games/whack-your-boss", dir)
	require.NoError(t, err)

	assert.Equal(t, []string{server.URL + "/embed/whack", server.URL + "/files/whack.html"}, meta.GameURLs)
	assert.ElementsMatch(t, []string{"data/whack", "data/whack.html", "data/game_frame.html", "data/whack.swf"}, meta.GameFiles)
	assert.FileExists(t, filepath.Join(dir, "data", "whack.swf"))
	assert.FileExists(t, filepath.Join(dir, "metadata.json"))

	page, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(page), `href="images/favicon.ico"`))
}

func TestEmbed_ScrapeKeepsSameNamedFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/games/twins", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script>
var first = "/a/game.swf";
var second = "/b/game.swf";
</script></body></html>`)
	})
	mux.HandleFunc("/a/game.swf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("first")) })
	mux.HandleFunc("/b/game.swf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("second")) })
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := newTestFetcher()
	embed := NewEmbed(fetcher, newTestLocalizer(fetcher), localize.Options{})

	dir := t.TempDir()
	meta, err := embed.Scrape(context.Background(), server.URL+"/games/twins", dir)
	require.NoError(t, err)

	require.Len(t, meta.GameFiles, 2)
	assert.ElementsMatch(t, []string{"data/game.swf", "data/game-1.swf"}, meta.GameFiles)

	contents := make(map[string]bool)
	for _, f := range meta.GameFiles {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f)))
		require.NoError(t, err)
		contents[string(data)] = true
	}
	assert.Equal(t, map[string]bool{"first": true, "second": true}, contents)
}

func TestWrapperPages(t *testing.T) {
	page, err := RufflePage(`Tom & Jerry's "Chase"`, "chase.swf")
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Tom &amp; Jerry&#39;s &#34;Chase&#34;</title>")
	assert.Contains(t, string(page), `url: "chase.swf"`)
	assert.Contains(t, string(page), "https://unpkg.com/@ruffle-rs/ruffle@latest")

	page, err = ExternalPage("Slope", "")
	require.NoError(t, err)
	assert.Contains(t, string(page), `<iframe src="https://lagged.com" allowfullscreen>`)

	page, err = ExternalPage("Bad", "javascript:alert(1)")
	require.NoError(t, err)
	assert.NotContains(t, string(page), "javascript:alert")
}
