// Package store provides the persistence backends for scraped player
// documents behind a single save/load/exists/list contract: a flat-file
// JSON store and a Postgres JSONB document store.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Load when no document exists for the id.
var ErrNotFound = errors.New("document not found")

// Housekeeping identifiers share the record namespace but are not player
// records; ListIDs excludes them so the resume set stays clean.
const (
	// IndexCachePrefix prefixes the per-letter index cache documents.
	IndexCachePrefix = "player_index_"
	// ConsolidatedIndexID holds the full-sweep profile URL list.
	ConsolidatedIndexID = "all_players_index"
	// SummaryReportID holds the per-run scrape summary.
	SummaryReportID = "scraping_summary"
)

// IsHousekeeping reports whether the identifier belongs to a housekeeping
// document rather than a player record.
func IsHousekeeping(id string) bool {
	return strings.HasPrefix(id, IndexCachePrefix) ||
		id == ConsolidatedIndexID ||
		id == SummaryReportID
}

// Store is the storage collaborator contract. Implementations must support
// safe concurrent single-record writes; no cross-record transactions are
// required.
type Store interface {
	// Save persists the document under the identifier, overwriting any
	// existing document.
	Save(ctx context.Context, id string, doc any) error

	// Load reads the document into out (a pointer). Returns ErrNotFound
	// when the identifier is absent.
	Load(ctx context.Context, id string, out any) error

	// Exists reports whether a document exists for the identifier.
	Exists(ctx context.Context, id string) (bool, error)

	// ListIDs returns the identifiers of all persisted player records,
	// excluding housekeeping documents. Used to build the resume set.
	ListIDs(ctx context.Context) (map[string]struct{}, error)

	// SaveBulk persists many documents, returning success and failure
	// counts. Backends without a native batch operation fall back to
	// repeated single saves.
	SaveBulk(ctx context.Context, docs map[string]any) (saved, failed int)
}

// saveEach is the SaveBulk fallback shared by backends without batching.
func saveEach(ctx context.Context, s Store, docs map[string]any) (saved, failed int) {
	for id, doc := range docs {
		if err := s.Save(ctx, id, doc); err != nil {
			failed++
			continue
		}
		saved++
	}
	return saved, failed
}
