// Command setup-lagged-games builds local game directories for the games in
// a crawl list and appends them to the catalog.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/semag-arcade/game-importer/internal/admission"
	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/importer"
	"github.com/semag-arcade/game-importer/internal/localize"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/internal/sources"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/spf13/cobra"
)

var (
	opts      cli.Options
	listPath  string
	gamesDir  string
	gamesJSON string
	workers   int
	full      bool
	validate  bool
)

var rootCmd = &cobra.Command{
	Use:   "setup-lagged-games",
	Short: "Download the games of a Lagged crawl list and add them to the catalog",
	Long: `Sets up every successful record of the crawl list. By default the first
SWF of the play page is wrapped in a Ruffle player, falling back to an iframe
wrapper. With --full the play page is copied with all of its assets.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&listPath, "list", "lagged-games-list.json", "crawl list written by scrape-lagged-category")
	flags.StringVar(&gamesDir, "games-dir", "", "directory holding the game folders (default from config)")
	flags.StringVar(&gamesJSON, "games-json", "", "catalog file (default from config)")
	flags.IntVar(&workers, "workers", 3, "games set up in parallel")
	flags.BoolVar(&full, "full", false, "copy the play page and its assets instead of wrapping the SWF")
	flags.BoolVar(&validate, "validate", false, "only list games whose directory passes the admission check")
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
	ctx, cancel := cli.Context()
	defer cancel()

	records, err := crawllist.Load(listPath)
	if err != nil {
		return fmt.Errorf("%w (run scrape-lagged-category first)", err)
	}

	fmt.Println("🎮 Setting up Lagged games locally")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	successful := crawllist.Successful(records)
	if len(successful) == 0 {
		fmt.Println("❌ No successful games to set up")
		return nil
	}

	cat, err := catalog.Load(gamesJSON)
	if err != nil {
		return err
	}

	var fetchOpts []scraping.Option
	if full {
		// full copies pull every asset of a play page from one host
		fetchOpts = append(fetchOpts, scraping.WithPoliteness(cfg.Politeness))
	}
	fetcher := scraping.NewFetcher(cfg.HTTP, fetchOpts...)
	lagged := sources.NewLagged(fetcher, localize.New(fetcher, localize.OptionsFrom(cfg.Localize)))

	im := importer.New(cat, gamesJSON, "lagged", cfg.Paths.Source, "")
	im.Pool = scraping.PoolConfig{Workers: workers, JobTimeout: cfg.Pool.JobTimeout.Duration}
	im.GamesDir = gamesDir
	if validate {
		if im.Gate, err = admission.NewGate(cfg.Admission); err != nil {
			return err
		}
	}
	im.OnResult = func(r importer.Result) {
		switch r.Status {
		case crawllist.StatusSuccess:
			fmt.Printf("  ✓ %s\n", r.Candidate.DerivedSlug)
		case crawllist.StatusError:
			fmt.Printf("  ✗ %s: %v\n", r.Candidate.DerivedSlug, r.Err)
		default:
			fmt.Printf("  ⏭️  %s (%s)\n", r.Candidate.DerivedSlug, r.Reason)
		}
	}

	bySlug := make(map[string]crawllist.Record, len(successful))
	candidates := make([]catalog.Candidate, 0, len(successful))
	for _, rec := range successful {
		if rec.Slug == "" {
			continue
		}
		bySlug[rec.Slug] = rec
		candidates = append(candidates, catalog.Candidate{
			DisplayName: rec.Name,
			SourceURL:   rec.URL,
			DerivedSlug: rec.Slug,
		})
	}

	fmt.Printf("📋 Setting up %d games...\n\n", len(candidates))

	var mu sync.Mutex
	modes := make(map[string]int)
	report, err := im.Run(ctx, candidates, func(ctx context.Context, c catalog.Candidate) (*catalog.Entry, error) {
		result, err := lagged.Setup(ctx, bySlug[c.DerivedSlug], filepath.Join(gamesDir, c.DerivedSlug), full)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		modes[result.Mode]++
		mu.Unlock()
		return im.Entry(c), nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	if report.Imported > 0 {
		fmt.Printf("✅ Added %d games to %s\n", report.Imported, gamesJSON)
	}
	fmt.Printf("✅ Complete! Set up %d/%d games locally\n", report.Imported, report.Discovered)
	for mode, n := range modes {
		fmt.Printf("   %s: %d\n", mode, n)
	}
	if report.Duplicates > 0 {
		fmt.Printf("⏭️  Already in catalog: %d\n", report.Duplicates)
	}
	if report.Failed > 0 {
		fmt.Printf("❌ Failed: %d\n", report.Failed)
	}
	return nil
}
