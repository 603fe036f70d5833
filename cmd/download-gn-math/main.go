// Command download-gn-math copies gn-math.dev zones into local game
// directories, one at a time, and appends them to the catalog.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/importer"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/internal/sources"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/semag-arcade/game-importer/pkg/ratelimit"
	"github.com/spf13/cobra"
)

var (
	opts      cli.Options
	maxGames  int
	gamesDir  string
	gamesJSON string
	delay     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "download-gn-math",
	Short: "Download new gn-math.dev games with their assets",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.IntVar(&maxGames, "max-games", 50, "maximum number of games to download")
	flags.StringVar(&gamesDir, "games-dir", "", "directory holding the game folders (default from config)")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file (default from config)")
	flags.DurationVar(&delay, "delay", 0, "minimum delay between requests to a host (default from config)")
}

func main() {
	cli.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cli.Setup(&opts)
	if err != nil {
		return err
	}
	if gamesDir == "" {
		gamesDir = cfg.Paths.GamesDir
	}
	if gamesJSON == "" {
		gamesJSON = cfg.Paths.GamesJSON
	}
	if !cmd.Flags().Changed("delay") {
		delay = cfg.Politeness.Delay.Duration
	}
	ctx, cancel := cli.Context()
	defer cancel()

	fmt.Println("GN-Math.dev Local Game Downloader")
	fmt.Println(strings.Repeat("=", 50))

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewHostLimiter(delay)
	fetcher := scraping.NewFetcher(cfg.HTTP, scraping.WithLimiter(limiter))
	gnmath := sources.NewGnMath(fetcher, localize.New(fetcher, localize.OptionsFrom(cfg.Localize)))

	fmt.Printf("Fetching zones from %s...\n", gnmath.ZonesURL)
	zones, err := gnmath.FetchZones(ctx)
	if err != nil {
		return fmt.Errorf("fetch zones: %w", err)
	}
	fmt.Printf("Found %d zones\n", len(zones))

	byID := make(map[string]sources.Zone, len(zones))
	var candidates []catalog.Candidate
	for _, zone := range zones {
		if zone.Skip() {
			continue
		}
		byID[zone.ID] = zone
		candidates = append(candidates, zone.Candidate())
	}

	im := importer.New(cat, gamesJSON, "gn-math", cfg.Paths.Source, sources.ZoneFallbackPrefix)
	im.Pool = scraping.PoolConfig{Workers: 1, JobTimeout: cfg.Pool.JobTimeout.Duration}
	im.Limit = maxGames
	im.GamesDir = gamesDir
	im.OnResult = func(r importer.Result) {
		switch r.Status {
		case crawllist.StatusSuccess:
			fmt.Printf("  ✓ Successfully downloaded: %s\n", r.Candidate.DisplayName)
		default:
			fmt.Printf("  ✗ Failed to download: %s\n", r.Candidate.DisplayName)
		}
	}

	fmt.Printf("\nDownloading up to %d games...\n\n", maxGames)

	report, err := im.Run(ctx, candidates, func(ctx context.Context, c catalog.Candidate) (*catalog.Entry, error) {
		manifest, err := gnmath.Download(ctx, byID[c.FallbackID], filepath.Join(gamesDir, c.DerivedSlug))
		if err != nil {
			return nil, err
		}
		fmt.Printf("    ✓ Downloaded %d assets\n", len(manifest.Assets))
		return im.Entry(c), nil
	})
	if err != nil {
		return err
	}

	if report.Imported > 0 {
		fmt.Printf("\n✓ Added %d games to %s\n", report.Imported, gamesJSON)
		fmt.Printf("✓ Total games: %d\n", cat.Len())
	} else {
		fmt.Println("\n⚠ No games were successfully downloaded")
	}

	for host, stats := range limiter.Stats() {
		fmt.Printf("   %s: %d requests, %d errors\n", host, stats.RequestCount, stats.ErrorCount)
	}
	return nil
}
