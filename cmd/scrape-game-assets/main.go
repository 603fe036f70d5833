// Command scrape-game-assets copies a single portal game page (Kongregate,
// CrazyGames and the like) with its assets and embedded game files.
package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/internal/sources"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/spf13/cobra"
)

var (
	opts       cli.Options
	outputDir  string
	referer    string
	assetHosts []string
)

var rootCmd = &cobra.Command{
	Use:   "scrape-game-assets <game-url>",
	Short: "Download a game page, its assets and the embedded game files",
	Example: `  scrape-game-assets https://www.kongregate.com/games/sokrates/whack-your-boss
  scrape-game-assets https://games.crazygames.com/en_US/veck-io/index.html \
      --referer https://www.crazygames.com/ --asset-host crazygames.com`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&outputDir, "output", "", "output directory (default scraped-<game>)")
	flags.StringVar(&referer, "referer", "", "Referer header sent with every request")
	flags.StringSliceVar(&assetHosts, "asset-host", nil, "extra host whose assets are copied like same-origin ones")
}

func main() {
	cli.Execute(rootCmd)
}

// defaultOutput names the directory after the last meaningful path segment
func defaultOutput(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "scraped-game"
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := catalog.Slugify(strings.TrimSuffix(segments[i], ".html")); seg != "" && seg != "index" {
			return "scraped-" + seg
		}
	}
	return "scraped-game"
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cli.Setup(&opts)
	if err != nil {
		return err
	}
	pageURL := args[0]
	if outputDir == "" {
		outputDir = defaultOutput(pageURL)
	}
	ctx, cancel := cli.Context()
	defer cancel()

	fmt.Println("🎮 Game Asset Scraper")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📄 Fetching %s...\n\n", pageURL)

	// every asset comes from the same few hosts, one after another
	fetchOpts := []scraping.Option{
		scraping.WithPoliteness(cfg.Politeness),
	}
	if referer != "" {
		fetchOpts = append(fetchOpts, scraping.WithReferer(referer))
	}
	fetcher := scraping.NewFetcher(cfg.HTTP, fetchOpts...)
	localOpts := localize.OptionsFrom(cfg.Localize, assetHosts...)
	embed := sources.NewEmbed(fetcher, localize.New(fetcher, localOpts), localOpts)

	meta, err := embed.Scrape(ctx, pageURL, outputDir)
	if err != nil {
		return err
	}

	fmt.Println("\n✅ Scraping complete!")
	fmt.Printf("📁 Output: %s\n", outputDir)
	fmt.Printf("📊 Total assets: %d (%.1f MiB localized)\n", meta.TotalAssets, float64(meta.Manifest.TotalBytes())/(1<<20))
	for kind, n := range meta.Manifest.CountByKind() {
		fmt.Printf("   %s: %d\n", kind, n)
	}
	fmt.Printf("🎮 Game files: %d\n", len(meta.GameFiles))
	if meta.Manifest.HasExternal() {
		fmt.Printf("🌐 External dependencies: %d\n", len(meta.Manifest.External))
	}
	if len(meta.Manifest.Failed) > 0 {
		fmt.Printf("⚠️  Failed downloads: %d\n", len(meta.Manifest.Failed))
	}
	return nil
}
