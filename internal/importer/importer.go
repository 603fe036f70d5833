// Package importer runs one crawl through the catalog: resolve candidates
// against games.json, download the novel ones in a worker pool and append
// the results in a single save.
package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/semag-arcade/game-importer/internal/admission"
	"github.com/semag-arcade/game-importer/internal/crawllist"
	"github.com/semag-arcade/game-importer/internal/scraping"
	"github.com/semag-arcade/game-importer/pkg/catalog"
	"github.com/semag-arcade/game-importer/pkg/logging"
)

// Job downloads one accepted candidate and returns its catalog entry. A nil
// entry with a nil error means the candidate produced nothing to list.
type Job func(ctx context.Context, c catalog.Candidate) (*catalog.Entry, error)

// Result is the outcome for a single candidate
type Result struct {
	Candidate catalog.Candidate
	Entry     *catalog.Entry
	Status    string // crawllist.StatusSuccess, StatusError or StatusSkipped
	Reason    string
	Err       error
	Duration  time.Duration
}

// Report summarizes an import run
type Report struct {
	RunID      string
	Discovered int
	Duplicates int
	Imported   int
	Failed     int
	Rejected   int
	Results    []Result
	Saved      bool
}

// Importer appends crawled games to a catalog file
type Importer struct {
	Catalog  *catalog.Catalog
	Resolver *catalog.Resolver
	Pool     scraping.PoolConfig

	Source   string // source tag written on new entries
	Site     string // used in log lines
	Path     string // games.json
	GamesDir string // parent of the game directories, for the gate

	// Limit caps how many novel candidates are run; zero means all
	Limit int

	// Gate, when set, rejects entries whose directory fails admission
	Gate *admission.Gate

	// OnResult is called as each job finishes, in completion order
	OnResult func(Result)
}

// New creates an importer for the catalog at path. The resolver is built
// from the catalog keys with the given slug fallback prefix.
func New(cat *catalog.Catalog, path, site, source, fallbackPrefix string) *Importer {
	return &Importer{
		Catalog:  cat,
		Resolver: catalog.NewResolver(cat.Keys(), fallbackPrefix),
		Pool:     scraping.PoolConfig{Workers: 1},
		Source:   source,
		Site:     site,
		Path:     path,
	}
}

// Entry builds the catalog entry for an accepted candidate
func (im *Importer) Entry(c catalog.Candidate) *catalog.Entry {
	entry := catalog.NewEntry(c, im.Source)
	return &entry
}

// Run resolves every candidate in discovery order, runs job for the novel
// ones and saves the catalog once if anything was added. Only a failed save
// is returned as an error; per-game failures are in the report.
func (im *Importer) Run(ctx context.Context, candidates []catalog.Candidate, job Job) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		Discovered: len(candidates),
	}
	logger := logging.GetRunLogger(report.RunID, im.Site)

	var novel []catalog.Candidate
	for _, c := range candidates {
		if im.Limit > 0 && len(novel) >= im.Limit {
			break
		}
		verdict := im.Resolver.Claim(&c)
		if verdict.Duplicate {
			logger.Info().
				Str("game", c.DisplayName).
				Str("key", verdict.MatchedKey).
				Str("matched", verdict.MatchedSet).
				Msg("Skipping duplicate")
			report.Duplicates++
			report.Results = append(report.Results, Result{
				Candidate: c,
				Status:    crawllist.StatusSkipped,
				Reason:    fmt.Sprintf("duplicate %s %q", verdict.MatchedSet, verdict.MatchedKey),
			})
			continue
		}
		novel = append(novel, c)
	}

	logger.Info().
		Int("discovered", report.Discovered).
		Int("duplicates", report.Duplicates).
		Int("to_import", len(novel)).
		Msg("Resolved candidates")

	// indexed by discovery order regardless of completion order
	judged := make([]Result, len(novel))
	results := scraping.RunPool(ctx, im.Pool, novel, scraping.JobFunc[catalog.Candidate, *catalog.Entry](job),
		func(r scraping.JobResult[catalog.Candidate, *catalog.Entry]) {
			res := im.judge(r)
			judged[r.Index] = res
			if im.OnResult != nil {
				im.OnResult(res)
			}
		})

	report.Failed = scraping.CountFailures(results)

	var accepted []catalog.Entry
	for _, res := range judged {
		switch {
		case res.Status == crawllist.StatusError:
			logger.Warn().Err(res.Err).Str("game", res.Candidate.DisplayName).Msg("Import failed")
		case res.Entry == nil:
			report.Rejected++
			logger.Info().Str("game", res.Candidate.DisplayName).Str("reason", res.Reason).Msg("Not listed")
		default:
			entry := *res.Entry
			if entry.Source == "" {
				entry.Source = im.Source
			}
			accepted = append(accepted, entry)
		}
		report.Results = append(report.Results, res)
	}

	before := im.Catalog.Len()
	if err := im.Catalog.Add(accepted...); err != nil {
		logger.Warn().Err(err).Msg("Some entries were not added")
	}
	report.Imported = im.Catalog.Len() - before

	if report.Imported > 0 {
		if err := im.Catalog.Save(im.Path); err != nil {
			return report, fmt.Errorf("save catalog: %w", err)
		}
		report.Saved = true
	}

	logger.Info().
		Int("imported", report.Imported).
		Int("failed", report.Failed).
		Int("rejected", report.Rejected).
		Bool("saved", report.Saved).
		Msg("Import run complete")

	return report, nil
}

// judge turns a pool result into a Result, applying the admission gate
func (im *Importer) judge(r scraping.JobResult[catalog.Candidate, *catalog.Entry]) Result {
	res := Result{
		Candidate: r.Item,
		Entry:     r.Value,
		Err:       r.Err,
		Duration:  r.Duration,
	}

	switch {
	case r.Err != nil:
		res.Status = crawllist.StatusError
		res.Entry = nil
		switch {
		case errors.Is(r.Err, context.DeadlineExceeded):
			res.Reason = "timed out"
		case scraping.IsTransportError(r.Err):
			res.Reason = "fetch failed"
		}
	case r.Value == nil:
		res.Status = crawllist.StatusSkipped
		res.Reason = "nothing to list"
	case im.Gate != nil:
		verdict := im.Gate.Check(filepath.Join(im.GamesDir, r.Value.Directory))
		res.Reason = verdict.Reason
		if verdict.Valid {
			res.Status = crawllist.StatusSuccess
		} else {
			res.Status = crawllist.StatusSkipped
			res.Entry = nil
		}
	default:
		res.Status = crawllist.StatusSuccess
	}
	return res
}

// Entries returns the entries of successful results in report order
func (r *Report) Entries() []catalog.Entry {
	var out []catalog.Entry
	for _, res := range r.Results {
		if res.Entry != nil {
			out = append(out, *res.Entry)
		}
	}
	return out
}
