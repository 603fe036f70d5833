// Command batch-scraper saves the game pages found on a portal, together
// with their embedded game files, into an output directory for review.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/internal/sources"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/spf13/cobra"
)

var (
	opts      cli.Options
	maxGames  int
	workers   int
	outputDir string
	gamesJSON string
)

var rootCmd = &cobra.Command{
	Use:   "batch-scraper <url>",
	Short: "Scrape multiple games from a portal page",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.IntVar(&maxGames, "max-games", 10, "maximum number of games to scrape")
	flags.IntVar(&workers, "workers", 5, "number of parallel workers")
	flags.StringVar(&outputDir, "output", "scraped-games-batch", "output directory")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file used to skip known games (default from config)")
}

func main() {
	cli.Execute(rootCmd)
}

// gameDirName names the output folder after the last URL segment
func gameDirName(gameURL string) string {
	name := strings.NewReplacer("-", "_", " ", "_").Replace(catalog.URLSlug(gameURL))
	if name == "" {
		return "game"
	}
	return name
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cli.Setup(&opts)
	if err != nil {
		return err
	}
	if gamesJSON == "" {
		gamesJSON = cfg.Paths.GamesJSON
	}
	baseURL := args[0]
	ctx, cancel := cli.Context()
	defer cancel()

	fmt.Println("🎮 Batch Game Scraper")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}
	if cat.Len() > 0 {
		fmt.Printf("📚 Loaded %d existing games from %s\n", cat.Len(), gamesJSON)
	}

	generic := sources.NewGeneric(scraping.NewFetcher(cfg.HTTP))
	links, err := generic.FindGameLinks(ctx, baseURL, maxGames*2)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", baseURL, err)
	}
	if len(links) == 0 {
		fmt.Println("❌ No game links found")
		return nil
	}

	fmt.Printf("\n🔍 Checking %d games against existing list...\n", len(links))
	resolver := catalog.NewResolver(cat.Keys(), "")
	var fresh []string
	skipped := 0
	for _, link := range links {
		c := catalog.Candidate{SourceURL: link}
		if v := resolver.Claim(&c); v.Duplicate {
			skipped++
			continue
		}
		if len(fresh) < maxGames {
			fresh = append(fresh, link)
		}
	}
	if skipped > 0 {
		fmt.Printf("⏭️  Skipped %d games that already exist\n", skipped)
	}
	if len(fresh) == 0 {
		fmt.Println("✅ All games already exist in your collection!")
		return nil
	}

	fmt.Printf("\n📋 Found %d new games to scrape\n", len(fresh))
	fmt.Printf("⚙️  Using %d workers\n\n", workers)

	pool := scraping.PoolConfig{Workers: workers, JobTimeout: cfg.Pool.JobTimeout.Duration}
	jobs := scraping.RunPool(ctx, pool, fresh,
		func(ctx context.Context, link string) (sources.BatchResult, error) {
			name := gameDirName(link)
			return generic.ScrapeGame(ctx, link, name, filepath.Join(outputDir, name)), nil
		},
		func(r scraping.JobResult[string, sources.BatchResult]) {
			if r.Value.Status == crawllist.StatusSuccess {
				fmt.Printf("  ✓ %s\n", r.Value.Name)
			} else {
				fmt.Printf("  ✗ %s: %s\n", r.Value.URL, r.Value.Error)
			}
		})

	summary := sources.BatchSummary{
		BaseURL:           baseURL,
		TotalFound:        len(links),
		SkippedDuplicates: skipped,
	}
	for _, r := range jobs {
		summary.Results = append(summary.Results, r.Value)
		if r.Value.Status == crawllist.StatusSuccess {
			summary.NewGamesScraped++
		}
	}

	if err := crawllist.WriteJSON(filepath.Join(outputDir, "summary.json"), summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	abs, _ := filepath.Abs(outputDir)
	fmt.Println("\n✅ Complete!")
	fmt.Printf("📊 New games scraped: %d\n", summary.NewGamesScraped)
	fmt.Printf("⏭️  Skipped (duplicates): %d\n", skipped)
	fmt.Printf("📁 Output directory: %s\n", abs)
	return nil
}
