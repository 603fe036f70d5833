package localize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gamePage = `<!DOCTYPE html>
<html>
<head>
	<title>Test Game</title>
	<link rel="stylesheet" href="style.css">
	<link rel="shortcut icon" href="/favicon.ico">
	<script src="https://unpkg.com/@ruffle-rs/ruffle"></script>
	<script src="https://pagead2.googlesyndication.com/pagead/show_ads.js"></script>
	<script src="/game.js"></script>
	<script src="/missing.js"></script>
</head>
<body>
	<img src="img/a.png">
	<img src="other/a.png">
	<img src="data:image/png;base64,AAAA">
	<a href="#top">top</a>
	<script>
		var wasm = "Build/game.wasm";
		var again = 'game.js';
	</script>
	<style>body { background: url(img/a.png); }</style>
	<embed src="https://elsewhere.example.com/movie.swf">
</body>
</html>`

type countingServer struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *countingServer) handler(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.hits[r.URL.Path]++
	c.mu.Unlock()

	switch r.URL.Path {
	case "/style.css":
		w.Write([]byte("body{}"))
	case "/favicon.ico":
		w.Write([]byte("ico"))
	case "/game.js":
		w.Write([]byte("console.log('game')"))
	case "/img/a.png", "/other/a.png":
		w.Write([]byte("png:" + r.URL.Path))
	case "/Build/game.wasm":
		w.Write([]byte("wasm"))
	default:
		http.NotFound(w, r)
	}
}

func newFetcher() *scraping.Fetcher {
	cfg := config.DefaultConfig().HTTP
	cfg.Timeout = config.Duration{Duration: 5 * time.Second}
	return scraping.NewFetcher(cfg)
}

func TestLocalize_RoundTrip(t *testing.T) {
	counter := &countingServer{hits: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(counter.handler))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "test-game")
	localizer := New(newFetcher(), OptionsFrom(config.DefaultConfig().Localize))

	manifest, err := localizer.Localize(context.Background(), []byte(gamePage), server.URL+"/", dir)
	require.NoError(t, err)

	// Every downloaded file exists under its kind directory
	assert.Equal(t, []string{
		"data/game.wasm",
		"images/a-1.png",
		"images/a.png",
		"images/favicon.ico",
		"scripts/game.js",
		"stylesheets/style.css",
	}, manifest.LocalPaths())
	for _, p := range manifest.LocalPaths() {
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(p)))
	}

	collided, err := os.ReadFile(filepath.Join(dir, "images", "a-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png:/other/a.png", string(collided))

	// Each URL is fetched once even when referenced several times
	assert.Equal(t, 1, counter.hits["/game.js"])
	assert.Equal(t, 1, counter.hits["/img/a.png"])

	// The failed asset is recorded and left in place
	require.Len(t, manifest.Failed, 1)
	assert.Equal(t, server.URL+"/missing.js", manifest.Failed[0].URL)

	// Allow-listed CDN references are reported, not copied
	assert.Equal(t, []string{"https://unpkg.com/@ruffle-rs/ruffle"}, manifest.External)
	assert.True(t, manifest.HasExternal())

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, `href="stylesheets/style.css"`)
	assert.Contains(t, page, `href="images/favicon.ico"`)
	assert.Contains(t, page, `src="scripts/game.js"`)
	assert.Contains(t, page, `src="images/a.png"`)
	assert.Contains(t, page, `src="images/a-1.png"`)
	assert.Contains(t, page, `var wasm = "data/game.wasm";`)
	assert.Contains(t, page, `var again = 'scripts/game.js';`)
	assert.Contains(t, page, `url(images/a.png)`)
	assert.Contains(t, page, `src="/missing.js"`)
	assert.Contains(t, page, `src="https://unpkg.com/@ruffle-rs/ruffle"`)
	assert.Contains(t, page, `src="https://pagead2.googlesyndication.com/pagead/show_ads.js"`)
	assert.Contains(t, page, `src="https://elsewhere.example.com/movie.swf"`)
	assert.Contains(t, page, `src="data:image/png;base64,AAAA"`)

	// Every local reference in the page resolves to a file
	for _, p := range manifest.LocalPaths() {
		assert.True(t, strings.Contains(page, p), p)
	}
}

type fakeDownloader struct {
	urls []string
	fail map[string]bool
}

func (f *fakeDownloader) Download(ctx context.Context, rawURL, path string) (int64, error) {
	f.urls = append(f.urls, rawURL)
	if f.fail[rawURL] {
		return 0, &scraping.TransportError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	return 4, os.WriteFile(path, []byte("data"), 0644)
}

func TestLocalize_BaseHrefAndAssetHosts(t *testing.T) {
	page := `<html><head><base href="https://games.example.com/moto/"></head><body>
<script src="loader.js"></script>
<script src="https://assets.example.net/moto/engine.js#v1"></script>
<img src="https://cdn.jsdelivr.net/gh/x/cover.png">
</body></html>`

	downloader := &fakeDownloader{}
	opts := Options{
		AssetHosts: []string{"example.net"},
		CDNHosts:   []string{"jsdelivr.net"},
	}

	dir := t.TempDir()
	manifest, err := New(downloader, opts).Localize(context.Background(), []byte(page), "https://www.example.com/en/g/moto", dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://games.example.com/moto/loader.js",
		"https://assets.example.net/moto/engine.js",
	}, downloader.urls)
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/gh/x/cover.png"}, manifest.External)
	assert.Equal(t, map[string]int{"scripts": 2}, manifest.CountByKind())
	assert.Equal(t, int64(8), manifest.TotalBytes())
	assert.True(t, manifest.HasExternal())

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	written := string(data)
	assert.NotContains(t, written, "<base")
	assert.NotContains(t, written, "games.example.com")
	assert.Contains(t, written, `<script src="scripts/loader.js">`)
	assert.Contains(t, written, `<script src="scripts/engine.js">`)
}

func TestLocalize_FailureKeepsReference(t *testing.T) {
	page := `<html><body><script src="/a.js"></script><script>load("/a.js")</script></body></html>`
	downloader := &fakeDownloader{fail: map[string]bool{"https://lagged.com/a.js": true}}

	dir := t.TempDir()
	manifest, err := New(downloader, Options{}).Localize(context.Background(), []byte(page), "https://lagged.com/", dir)
	require.NoError(t, err)

	// A failed URL is not retried within the same page
	assert.Len(t, downloader.urls, 1)
	require.Len(t, manifest.Failed, 1)

	assert.Contains(t, manifest.Failed[0].Error, "404")

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `src="/a.js"`)
	assert.Contains(t, string(data), `load("/a.js")`)
}

func TestLocalize_InvalidOrigin(t *testing.T) {
	_, err := New(&fakeDownloader{}, Options{}).Localize(context.Background(), []byte("<html></html>"), "not a url", t.TempDir())
	assert.Error(t, err)
}

func TestAllocator(t *testing.T) {
	paths := NewAllocator()
	paths.Reserve("data/game.swf", "https://a.example.com/game.swf")

	mustParse := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u
	}

	assert.Equal(t, "data/game.swf", paths.Allocate("data", mustParse("https://a.example.com/game.swf")))
	assert.Equal(t, "data/game-1.swf", paths.Allocate("data", mustParse("https://b.example.com/game.swf")))
	assert.Equal(t, "data/game-1.swf", paths.Allocate("data", mustParse("https://b.example.com/game.swf")))
	assert.Equal(t, "other/asset", paths.Allocate("other", mustParse("https://a.example.com/")))

	paths.Release("data/game-1.swf")
	assert.Equal(t, "data/game-1.swf", paths.Allocate("data", mustParse("https://c.example.com/game.swf")))
}

func TestOptions_Excludes(t *testing.T) {
	opts := Options{Exclude: []string{"doubleclick", "", "CrazyGames.com/portal"}}
	assert.True(t, opts.Excludes("https://ad.doubleclick.net/x.js"))
	assert.True(t, opts.Excludes("https://www.crazygames.com/portal/sdk.js"))
	assert.False(t, opts.Excludes("https://www.crazygames.com/game.js"))
	assert.False(t, Options{}.Excludes("https://example.com/a.js"))
}
