// Package model defines the typed record shapes produced by extraction and
// persisted by the storage backends. JSON tags match the persisted document
// layout so records written by earlier runs remain loadable.
package model

import "time"

// ProfileReference identifies a player profile discovered on an index page.
// Immutable once created; deduplicated by ID across the alphabet sweep with
// first occurrence winning.
type ProfileReference struct {
	ID      string `json:"player_id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	FullURL string `json:"full_url"`
	// Details carries the surrounding listing text (school, years).
	Details string `json:"details"`
}

// RowRecord maps a column header to the cell text at the same position.
// A row with fewer cells than headers simply omits the trailing headers;
// cells beyond the header count are dropped.
type RowRecord map[string]string

// ExtractedTable is the ephemeral output of table extraction, consumed by
// the record assembler and never persisted on its own.
type ExtractedTable struct {
	Caption string
	Headers []string
	Rows    []RowRecord
}

// SeasonTable is one season-by-season statistics table.
type SeasonTable struct {
	Name string      `json:"table_name"`
	Rows []RowRecord `json:"data"`
}

// GameLog is one season's game-by-game table.
type GameLog struct {
	Season string      `json:"season"`
	Games  []RowRecord `json:"games"`
}

// PlayerRecord is the persisted unit, created once per profile on first
// successful scrape and treated as immutable thereafter.
type PlayerRecord struct {
	ID            string                 `json:"player_id"`
	SourceURL     string                 `json:"source_url"`
	ScrapedAt     time.Time              `json:"scraped_at"`
	PlayerInfo    map[string]string      `json:"player_info"`
	Schools       []string               `json:"schools,omitempty"`
	CareerStats   map[string][]RowRecord `json:"career_stats"`
	SeasonStats   []SeasonTable          `json:"season_stats"`
	GameLogs      []GameLog              `json:"game_logs"`
	AdvancedStats map[string][]RowRecord `json:"advanced_stats"`
}

// SectionCount reports how many statistics sections carry data, used by the
// run summary's data-quality sampling.
func (r *PlayerRecord) SectionCount() int {
	n := 0
	if len(r.CareerStats) > 0 {
		n++
	}
	if len(r.SeasonStats) > 0 {
		n++
	}
	if len(r.GameLogs) > 0 {
		n++
	}
	if len(r.AdvancedStats) > 0 {
		n++
	}
	return n
}

// Empty reports whether extraction produced no data at all for the profile.
func (r *PlayerRecord) Empty() bool {
	return len(r.PlayerInfo) == 0 && r.SectionCount() == 0
}

// ConsolidatedIndex is the housekeeping document holding every profile URL
// found by a full index sweep, in discovery order.
type ConsolidatedIndex struct {
	ScrapedAt    time.Time `json:"scraped_at"`
	TotalPlayers int       `json:"total_players"`
	PlayerURLs   []string  `json:"player_urls"`
}
