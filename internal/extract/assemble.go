package extract

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gridironlab/gridiron-data/internal/config"
	"github.com/gridironlab/gridiron-data/internal/model"
)

// statsTableSelector matches the site's statistics tables.
const statsTableSelector = "table.stats_table"

// infoLabels maps the metadata region's label prefixes to record keys.
var infoLabels = []struct {
	prefix string
	key    string
}{
	{"Position:", "position"},
	{"Height:", "height"},
	{"Weight:", "weight"},
	{"Born:", "born"},
	{"High School:", "high_school"},
}

// Assembler groups a profile page's tables into semantic buckets using
// caption-text predicates, and extracts the biographical metadata.
//
// The four passes are independent: each re-scans the full table set with
// its own predicate, so a table whose caption matches more than one
// category is claimed by every matching pass.
type Assembler struct {
	rules  config.CaptionRules
	logger *slog.Logger
}

// NewAssembler creates an assembler using the given classification rules.
func NewAssembler(rules config.CaptionRules, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{rules: rules, logger: logger}
}

// Assemble builds the full player record from a parsed profile page. Parse
// anomalies in one section leave that section empty without affecting the
// others.
func (a *Assembler) Assemble(doc *goquery.Document, id, sourceURL string) *model.PlayerRecord {
	record := &model.PlayerRecord{
		ID:            id,
		SourceURL:     sourceURL,
		ScrapedAt:     time.Now().UTC(),
		CareerStats:   map[string][]model.RowRecord{},
		AdvancedStats: map[string][]model.RowRecord{},
	}

	record.PlayerInfo, record.Schools = a.playerInfo(doc)
	record.SeasonStats = a.seasonStats(doc)

	doc.Find(statsTableSelector).Each(func(_ int, sel *goquery.Selection) {
		caption := tableCaption(sel)

		if captionMatches(caption, a.rules.CareerTerms) {
			if t := ParseTable(sel); len(t.Rows) > 0 {
				record.CareerStats[caption] = t.Rows
			}
		}
		if captionMatches(caption, a.rules.GameLogTerms) {
			if t := ParseTable(sel); len(t.Rows) > 0 {
				record.GameLogs = append(record.GameLogs, model.GameLog{
					Season: caption,
					Games:  t.Rows,
				})
			}
		}
		if captionMatches(caption, a.rules.AdvancedTerms) {
			if t := ParseTable(sel); len(t.Rows) > 0 {
				record.AdvancedStats[caption] = t.Rows
			}
		}
	})

	a.logger.Debug("Assembled record",
		"id", id,
		"season_tables", len(record.SeasonStats),
		"career_tables", len(record.CareerStats),
		"game_logs", len(record.GameLogs),
		"advanced_tables", len(record.AdvancedStats))

	return record
}

// seasonStats extracts every statistics table in the main content region
// whose caption does not match the skip-term list.
func (a *Assembler) seasonStats(doc *goquery.Document) []model.SeasonTable {
	var tables []model.SeasonTable

	mainContent(doc).Find(statsTableSelector).Each(func(_ int, sel *goquery.Selection) {
		caption := tableCaption(sel)
		if captionMatches(caption, a.rules.SkipTerms) {
			a.logger.Debug("Skipping table", "caption", caption)
			return
		}
		t := ParseTable(sel)
		if len(t.Rows) == 0 {
			a.logger.Debug("Table had no extractable data", "caption", caption)
			return
		}
		tables = append(tables, model.SeasonTable{Name: caption, Rows: t.Rows})
	})

	return tables
}

// playerInfo scans the metadata region for label-prefixed lines and
// collects distinct school affiliations from the main content, excluding
// links embedded in navigation, footer, or menu contexts.
func (a *Assembler) playerInfo(doc *goquery.Document) (map[string]string, []string) {
	info := map[string]string{}

	name := strings.TrimSpace(doc.Find(`h1[itemprop="name"]`).First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if name != "" {
		info["name"] = name
	}

	doc.Find("div#meta p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		for _, label := range infoLabels {
			if idx := strings.Index(text, label.prefix); idx >= 0 {
				value := strings.TrimSpace(text[idx+len(label.prefix):])
				if value != "" {
					info[label.key] = value
				}
				break
			}
		}
	})

	schools := a.schoolAffiliations(doc)
	if len(schools) > 0 {
		info["primary_school"] = schools[0]
	}

	return info, schools
}

func (a *Assembler) schoolAffiliations(doc *goquery.Document) []string {
	var schools []string
	seen := map[string]struct{}{}

	mainContent(doc).Find(`a[href*="` + config.SchoolPathPrefix + `"]`).Each(func(_ int, link *goquery.Selection) {
		name := strings.TrimSpace(link.Text())
		lower := strings.ToLower(name)
		if lower == "schools" || lower == "school" || len(name) < 2 {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		if inChromeContext(link) {
			return
		}
		seen[name] = struct{}{}
		schools = append(schools, name)
	})

	return schools
}

// mainContent returns the page's primary content region, preferring the
// site's #content container over <main> and finally <body>.
func mainContent(doc *goquery.Document) *goquery.Selection {
	if sel := doc.Find("div#content"); sel.Length() > 0 {
		return sel
	}
	if sel := doc.Find("main"); sel.Length() > 0 {
		return sel
	}
	return doc.Find("body")
}

// inChromeContext reports whether the link sits inside page chrome: a nav
// or footer element, or any ancestor whose id/class mentions navigation,
// footer, or menu.
func inChromeContext(link *goquery.Selection) bool {
	chrome := false
	link.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		switch goquery.NodeName(p) {
		case "nav", "footer":
			chrome = true
			return false
		}
		attrs := strings.ToLower(p.AttrOr("id", "") + " " + p.AttrOr("class", ""))
		for _, marker := range []string{"nav", "footer", "menu"} {
			if strings.Contains(attrs, marker) {
				chrome = true
				return false
			}
		}
		return true
	})
	return chrome
}
