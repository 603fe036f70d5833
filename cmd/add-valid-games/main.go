// Command add-valid-games lists already downloaded Lagged games in the
// catalog, but only those whose directory holds playable game files.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/semag-arcade/game-importer/internal/admission"
	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/importer"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/spf13/cobra"
)

const maxSkippedShown = 10

var (
	opts      cli.Options
	listPath  string
	gamesDir  string
	gamesJSON string
)

var rootCmd = &cobra.Command{
	Use:   "add-valid-games",
	Short: "Add downloaded games that pass the admission check to the catalog",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&listPath, "list", "lagged-games-list.json", "crawl list written by scrape-lagged-category")
	flags.StringVar(&gamesDir, "games-dir", "", "directory holding the game folders (default from config)")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file (default from config)")
}

func main() {
	cli.Execute(rootCmd)
}

// displayName drops the " Game" suffix portals add to titles
func displayName(rec crawllist.Record) string {
	name := rec.Name
	if name == "" {
		name = catalog.TitleFromSlug(rec.Slug)
	}
	return strings.TrimSuffix(name, " Game")
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
	ctx, cancel := cli.Context()
	defer cancel()

	records, err := crawllist.Load(listPath)
	if err != nil {
		return err
	}

	fmt.Println("🎮 Adding Valid Lagged Games")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}
	gate, err := admission.NewGate(cfg.Admission)
	if err != nil {
		return err
	}

	im := importer.New(cat, gamesJSON, "lagged", cfg.Paths.Source, "")
	im.Pool = scraping.PoolConfigFrom(cfg.Pool)
	im.Gate = gate
	im.GamesDir = gamesDir

	var candidates []catalog.Candidate
	for _, rec := range crawllist.Successful(records) {
		if rec.Slug == "" {
			continue
		}
		candidates = append(candidates, catalog.Candidate{
			DisplayName: displayName(rec),
			SourceURL:   rec.URL,
			DerivedSlug: rec.Slug,
		})
	}

	// the directories already exist, so the job only builds the entry
	report, err := im.Run(ctx, candidates, func(ctx context.Context, c catalog.Candidate) (*catalog.Entry, error) {
		return im.Entry(c), nil
	})
	if err != nil {
		return err
	}

	for _, e := range report.Entries() {
		fmt.Printf("  ✓ %s\n", e.Directory)
	}
	var skipped []string
	for _, r := range report.Results {
		if r.Entry == nil {
			skipped = append(skipped, fmt.Sprintf("%s (%s)", r.Candidate.DerivedSlug, r.Reason))
		}
	}

	if report.Imported > 0 {
		fmt.Printf("\n✅ Added %d games to %s\n", report.Imported, gamesJSON)
	} else {
		fmt.Println("\n⚠️  No valid games to add")
	}

	if len(skipped) > 0 {
		fmt.Printf("\n⏭️  Skipped %d games:\n", len(skipped))
		for i, item := range skipped {
			if i == maxSkippedShown {
				fmt.Printf("    ... and %d more\n", len(skipped)-maxSkippedShown)
				break
			}
			fmt.Printf("    - %s\n", item)
		}
	}
	return nil
}
