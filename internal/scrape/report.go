package scrape

import (
	"context"
	"time"

	"github.com/gridironlab/gridiron-data/internal/model"
	"github.com/gridironlab/gridiron-data/internal/store"
)

// sampleSize bounds how many records the data-quality check loads.
const sampleSize = 10

// SummaryReport is the housekeeping document capturing run totals and a
// sampled data-quality snapshot.
type SummaryReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	ScrapeSummary struct {
		TotalPlayersStored int    `json:"total_players_stored"`
		RunSummary         string `json:"run_summary"`
	} `json:"scrape_summary"`

	DataQuality struct {
		SampleSize           int     `json:"sample_size"`
		AvgSectionsPerPlayer float64 `json:"avg_sections_per_player"`
		AvgSeasonsPerPlayer  float64 `json:"avg_seasons_per_player"`
		PlayersWithCareer    int     `json:"players_with_career_stats"`
		PlayersWithGameLogs  int     `json:"players_with_game_logs"`
		CareerFraction       float64 `json:"career_fraction"`
		GameLogFraction      float64 `json:"game_log_fraction"`
	} `json:"data_quality"`
}

// WriteSummaryReport samples stored records, persists the summary under
// the report's housekeeping id, and logs the highlights. Report failures
// never affect the run result.
func (s *Scraper) WriteSummaryReport(ctx context.Context, result *Result) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		s.logger.Error("Summary report aborted", "error", err)
		return
	}

	report := SummaryReport{GeneratedAt: time.Now().UTC()}
	report.ScrapeSummary.TotalPlayersStored = len(ids)
	report.ScrapeSummary.RunSummary = result.Summary()

	sections, seasons := 0, 0
	sampled := 0
	for id := range ids {
		if sampled == sampleSize {
			break
		}
		var rec model.PlayerRecord
		if err := s.store.Load(ctx, id, &rec); err != nil {
			s.logger.Warn("Sample load failed", "id", id, "error", err)
			continue
		}
		sampled++
		sections += rec.SectionCount()
		seasons += len(rec.SeasonStats)
		if len(rec.CareerStats) > 0 {
			report.DataQuality.PlayersWithCareer++
		}
		if len(rec.GameLogs) > 0 {
			report.DataQuality.PlayersWithGameLogs++
		}
	}

	report.DataQuality.SampleSize = sampled
	if sampled > 0 {
		report.DataQuality.AvgSectionsPerPlayer = float64(sections) / float64(sampled)
		report.DataQuality.AvgSeasonsPerPlayer = float64(seasons) / float64(sampled)
		report.DataQuality.CareerFraction = float64(report.DataQuality.PlayersWithCareer) / float64(sampled)
		report.DataQuality.GameLogFraction = float64(report.DataQuality.PlayersWithGameLogs) / float64(sampled)
	}

	if err := s.store.Save(ctx, store.SummaryReportID, report); err != nil {
		s.logger.Error("Summary report save failed", "error", err)
		return
	}

	s.logger.Info("Scraping summary",
		"total_players", report.ScrapeSummary.TotalPlayersStored,
		"avg_sections", report.DataQuality.AvgSectionsPerPlayer,
		"avg_seasons", report.DataQuality.AvgSeasonsPerPlayer,
		"with_career", report.DataQuality.PlayersWithCareer,
		"with_game_logs", report.DataQuality.PlayersWithGameLogs)
}
