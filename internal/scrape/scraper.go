package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gridironlab/gridiron-data/internal/extract"
	"github.com/gridironlab/gridiron-data/internal/index"
	"github.com/gridironlab/gridiron-data/internal/model"
	"github.com/gridironlab/gridiron-data/internal/store"
)

// Fetcher retrieves one URL's document text. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// failureThreshold is the batch failure fraction beyond which the
// concurrency ceiling shrinks by one for the rest of the run.
const failureThreshold = 0.3

// Scraper sequences discovery, fetch, extraction, and persistence. Each
// profile moves through fetch -> extract -> persist, or fails terminally
// for the run at whichever stage broke.
type Scraper struct {
	fetcher   Fetcher
	discovery *index.Discovery
	assembler *extract.Assembler
	store     store.Store

	// concurrency is the initial in-flight ceiling; the effective ceiling
	// only shrinks within a run.
	concurrency int
	logger      *slog.Logger
}

// New creates a Scraper.
func New(
	fetcher Fetcher,
	discovery *index.Discovery,
	assembler *extract.Assembler,
	st store.Store,
	concurrency int,
	logger *slog.Logger,
) *Scraper {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher:     fetcher,
		discovery:   discovery,
		assembler:   assembler,
		store:       st,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunFull performs the complete run: index discovery, profile scraping,
// and the summary report.
func (s *Scraper) RunFull(ctx context.Context, letters []string, maxPlayers int, resume bool) Result {
	start := time.Now()

	refs, err := s.RunIndex(ctx, letters)
	if err != nil && len(refs) == 0 {
		var r Result
		r.AddErrorf("index discovery: %v", err)
		r.Duration = time.Since(start)
		return r
	}
	if len(refs) == 0 {
		s.logger.Error("No player URLs found, aborting")
		var r Result
		r.AddError("no player URLs found")
		r.Duration = time.Since(start)
		return r
	}

	result := s.ScrapeProfiles(ctx, limitRefs(refs, maxPlayers), resume)
	result.Duration = time.Since(start)

	s.WriteSummaryReport(ctx, &result)
	return result
}

// RunIndex runs index discovery and persists the consolidated index.
func (s *Scraper) RunIndex(ctx context.Context, letters []string) ([]model.ProfileReference, error) {
	refs, err := s.discovery.DiscoverAll(ctx, letters)
	if err != nil {
		return refs, err
	}

	urls := make([]string, len(refs))
	for i, ref := range refs {
		urls[i] = ref.FullURL
	}
	doc := model.ConsolidatedIndex{
		ScrapedAt:    time.Now().UTC(),
		TotalPlayers: len(urls),
		PlayerURLs:   urls,
	}
	if err := s.store.Save(ctx, store.ConsolidatedIndexID, doc); err != nil {
		s.logger.Warn("Consolidated index save failed", "error", err)
	}
	return refs, nil
}

// RunPlayers scrapes profiles from a previously persisted consolidated
// index, without re-running discovery.
func (s *Scraper) RunPlayers(ctx context.Context, maxPlayers int, resume bool) Result {
	start := time.Now()

	var idx model.ConsolidatedIndex
	if err := s.store.Load(ctx, store.ConsolidatedIndexID, &idx); err != nil {
		var r Result
		r.AddErrorf("no existing player index, run index discovery first: %v", err)
		r.Duration = time.Since(start)
		return r
	}

	refs := make([]model.ProfileReference, 0, len(idx.PlayerURLs))
	for _, url := range idx.PlayerURLs {
		id := index.ProfileID(url)
		if id == "" {
			continue
		}
		refs = append(refs, model.ProfileReference{ID: id, FullURL: url})
	}

	result := s.ScrapeProfiles(ctx, limitRefs(refs, maxPlayers), resume)
	result.Duration = time.Since(start)

	s.WriteSummaryReport(ctx, &result)
	return result
}

// ScrapeProfiles dispatches the references through the concurrency-bounded
// fetch/extract/persist path. When resume is enabled, identifiers already
// persisted are skipped. Batches run at the current ceiling; a batch whose
// failure fraction exceeds the threshold shrinks the ceiling by one (floor
// 1) for the rest of the run.
func (s *Scraper) ScrapeProfiles(ctx context.Context, refs []model.ProfileReference, resume bool) Result {
	var result Result
	result.ProfilesFound = len(refs)

	queue := refs
	if resume {
		existing, err := s.store.ListIDs(ctx)
		if err != nil {
			result.AddErrorf("resolve resume set: %v", err)
			return result
		}
		queue = make([]model.ProfileReference, 0, len(refs))
		for _, ref := range refs {
			if _, done := existing[ref.ID]; done {
				result.Skipped++
				continue
			}
			queue = append(queue, ref)
		}
	}

	s.logger.Info("Starting profile scrape",
		"new", len(queue), "already_processed", result.Skipped, "concurrency", s.concurrency)
	if len(queue) == 0 {
		return result
	}

	limit := s.concurrency
	for len(queue) > 0 && ctx.Err() == nil {
		n := min(limit, len(queue))
		batch := queue[:n]
		queue = queue[n:]

		var mu sync.Mutex
		var wg sync.WaitGroup
		batchFailures := 0

		for _, ref := range batch {
			wg.Add(1)
			go func(ref model.ProfileReference) {
				defer wg.Done()
				err := s.scrapeOne(ctx, ref)

				mu.Lock()
				defer mu.Unlock()
				result.Dispatched++
				if err != nil {
					result.Failed++
					batchFailures++
					result.AddErrorf("%s: %v", ref.ID, err)
					s.logger.Error("Profile failed", "id", ref.ID, "error", err)
					return
				}
				result.Succeeded++
			}(ref)
		}
		wg.Wait()

		if float64(batchFailures)/float64(n) > failureThreshold && limit > 1 {
			limit--
			s.logger.Info("High failure rate detected, reducing concurrency",
				"failures", batchFailures, "batch", n, "limit", limit)
		}
	}

	s.logger.Info("Profile scrape complete", "summary", result.Summary())
	return result
}

// scrapeOne moves a single profile through fetch, extract, and persist.
func (s *Scraper) scrapeOne(ctx context.Context, ref model.ProfileReference) error {
	body, err := s.fetcher.Fetch(ctx, ref.FullURL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	record := s.assembler.Assemble(doc, ref.ID, ref.FullURL)
	if record.Empty() {
		return fmt.Errorf("no data extracted")
	}

	if err := s.store.Save(ctx, ref.ID, record); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	s.logger.Info("Scraped player", "id", ref.ID)
	return nil
}

func limitRefs(refs []model.ProfileReference, maxPlayers int) []model.ProfileReference {
	if maxPlayers > 0 && len(refs) > maxPlayers {
		return refs[:maxPlayers]
	}
	return refs
}
