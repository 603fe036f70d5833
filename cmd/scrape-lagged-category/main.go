// Command scrape-lagged-category lists the games of a Lagged.com category
// that are not in the catalog yet. The list feeds setup-lagged-games.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
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
	gamesJSON string
	output    string
)

var rootCmd = &cobra.Command{
	Use:     "scrape-lagged-category <category-url>",
	Short:   "Find new games in a Lagged category",
	Example: "  scrape-lagged-category https://lagged.com/en/funny --max-games 20",
	Args:    cobra.ExactArgs(1),
	RunE:    run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.IntVar(&maxGames, "max-games", 20, "maximum number of new games to scrape")
	flags.IntVar(&workers, "workers", 5, "parallel game page requests")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file (default from config)")
	flags.StringVar(&output, "output", "lagged-games-list.json", "crawl list to write")
}

func main() {
	cli.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cli.Setup(&opts)
	if err != nil {
		return err
	}
	if gamesJSON == "" {
		gamesJSON = cfg.Paths.GamesJSON
	}
	ctx, cancel := cli.Context()
	defer cancel()

	fmt.Println("🎮 Lagged Category Scraper")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}

	lagged := sources.NewLagged(scraping.NewFetcher(cfg.HTTP), nil)

	// over-fetch since some links will already be in the catalog
	links, err := lagged.FindGameLinks(ctx, args[0], maxGames*2)
	if err != nil {
		return fmt.Errorf("fetch category: %w", err)
	}
	if len(links) == 0 {
		fmt.Println("❌ No games found")
		return nil
	}

	fmt.Printf("🔍 Checking %d games against existing list...\n", len(links))
	fresh, skipped := filterNew(cat, links, maxGames)
	if skipped > 0 {
		fmt.Printf("⏭️  Skipped %d games that already exist\n", skipped)
	}
	if len(fresh) == 0 {
		fmt.Println("✅ All games already exist in your collection!")
		return nil
	}

	fmt.Printf("\n📋 Scraping %d new games...\n\n", len(fresh))
	records := scrapeAll(ctx, lagged, cat, fresh, scraping.PoolConfig{
		Workers:    workers,
		JobTimeout: cfg.Pool.JobTimeout.Duration,
	})

	if err := crawllist.Save(output, records); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	summary := crawllist.Summarize(records)
	abs, _ := filepath.Abs(output)
	fmt.Println("\n✅ Complete!")
	fmt.Printf("📊 New games found: %d\n", summary.Success)
	fmt.Printf("⏭️  Skipped (duplicates): %d\n", skipped+summary.Skipped)
	if summary.Error > 0 {
		fmt.Printf("❌ Errors: %d\n", summary.Error)
	}
	fmt.Printf("📁 Saved to: %s\n", abs)
	return nil
}

// filterNew drops links whose slug is already known and keeps at most max
func filterNew(cat *catalog.Catalog, links []string, max int) ([]string, int) {
	resolver := catalog.NewResolver(cat.Keys(), "")
	var fresh []string
	skipped := 0
	for _, link := range links {
		c := catalog.Candidate{SourceURL: link, DerivedSlug: catalog.URLSlug(link)}
		if v := resolver.Claim(&c); v.Duplicate {
			log.Debug().Str("url", link).Str("matched", v.MatchedSet).Msg("Already in catalog")
			skipped++
			continue
		}
		if len(fresh) < max {
			fresh = append(fresh, link)
		}
	}
	return fresh, skipped
}

// scrapeAll reads every game page in the pool. A game whose title turns
// out to match a catalog entry is marked skipped.
func scrapeAll(ctx context.Context, lagged *sources.Lagged, cat *catalog.Catalog, links []string, pool scraping.PoolConfig) []crawllist.Record {
	existing := catalog.NewResolver(cat.Keys(), "")

	results := scraping.RunPool(ctx, pool, links,
		func(ctx context.Context, link string) (crawllist.Record, error) {
			rec := lagged.ScrapeGame(ctx, link)
			if rec.OK() {
				if v := existing.Check(&catalog.Candidate{DisplayName: rec.Name}); v.Duplicate {
					rec.Status = crawllist.StatusSkipped
					rec.Reason = "already exists"
				}
			}
			return rec, nil
		},
		func(r scraping.JobResult[string, crawllist.Record]) {
			rec := r.Value
			switch rec.Status {
			case crawllist.StatusSuccess:
				fmt.Printf("  ✓ %s\n", rec.Slug)
			case crawllist.StatusSkipped:
				fmt.Printf("  ⏭️  %s (already exists)\n", rec.Slug)
			default:
				fmt.Printf("  ✗ Error: %s\n", rec.Error)
			}
		})

	records := make([]crawllist.Record, 0, len(results))
	for _, r := range results {
		records = append(records, r.Value)
	}
	return records
}
