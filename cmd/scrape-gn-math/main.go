// Command scrape-gn-math writes the gn-math.dev zones that are not in the
// catalog as externally hosted entries for review.
package main

import (
	"context"
	"fmt"
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
	output    string
	gamesJSON string
)

var rootCmd = &cobra.Command{
	Use:   "scrape-gn-math",
	Short: "List new gn-math.dev games as externally hosted catalog entries",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&output, "output", "data/gn-math-games.json", "listing file to write")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file (default from config)")
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

	fmt.Println("GN-Math.dev Game Scraper")
	fmt.Println(strings.Repeat("=", 50))

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}

	// one cover HEAD per zone, all to the same CDN host
	gnmath := sources.NewGnMath(scraping.NewFetcher(cfg.HTTP, scraping.WithPoliteness(cfg.Politeness)), nil)
	zones, err := gnmath.FetchZones(ctx)
	if err != nil {
		return fmt.Errorf("fetch zones: %w", err)
	}

	listings := collect(ctx, gnmath, catalog.NewResolver(cat.Keys(), sources.ZoneFallbackPrefix), zones, cfg.Paths.Source)
	if len(listings) == 0 {
		fmt.Println("\n⚠ No new games found")
		return nil
	}

	if err := crawllist.WriteJSON(output, listings); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	fmt.Printf("\n✓ Found %d new games\n", len(listings))
	fmt.Printf("✓ Saved to %s\n", output)
	fmt.Println("\nNext step: Review the games and add them to games.json")
	return nil
}

func collect(ctx context.Context, gnmath *sources.GnMath, resolver *catalog.Resolver, zones []sources.Zone, source string) []sources.GnMathListing {
	var listings []sources.GnMathListing
	for _, zone := range zones {
		if ctx.Err() != nil {
			break
		}
		if zone.Skip() {
			continue
		}
		c := zone.Candidate()
		if v := resolver.Claim(&c); v.Duplicate {
			fmt.Printf("  ⏭ Skipping %s (already exists)\n", zone.Name)
			continue
		}

		listings = append(listings, gnmath.Listing(ctx, zone, c.DerivedSlug, source))
		if zone.Author != "" {
			fmt.Printf("  ✓ Added: %s (by %s)\n", zone.Name, zone.Author)
		} else {
			fmt.Printf("  ✓ Added: %s\n", zone.Name)
		}
	}
	return listings
}
