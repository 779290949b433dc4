// Package extract converts the heterogeneous HTML statistics tables of a
// player profile page into uniform row records and assembles them into a
// typed player record.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gridironlab/gridiron-data/internal/model"
)

// placeholders are cell values that carry no data; a row whose every value
// is one of these is dropped.
var placeholders = map[string]struct{}{
	"":  {},
	"-": {},
	"—": {},
}

// ParseTable converts one table element into an ExtractedTable.
//
// Header resolution prefers the last <thead> row (the most specific row of
// a multi-row spanning header), falling back to the table's first row. A
// table yielding no headers produces no rows. Data rows come from <tbody>
// when present, else all rows except the first. The row that supplied the
// headers is never a data row; the HTML parser wraps bare rows in an
// implicit <tbody>, so a first-row header would otherwise reappear there.
// Rows containing a th[scope=col] cell are repeated header rows embedded
// in the body and are skipped.
func ParseTable(sel *goquery.Selection) model.ExtractedTable {
	table := model.ExtractedTable{Caption: tableCaption(sel)}

	headers, headerRow := resolveHeaders(sel)
	table.Headers = headers
	if len(headers) == 0 {
		return table
	}

	var dataRows *goquery.Selection
	if tbody := sel.Find("tbody").First(); tbody.Length() > 0 {
		dataRows = tbody.Find("tr")
	} else if all := sel.Find("tr"); all.Length() > 1 {
		dataRows = all.Slice(1, goquery.ToEnd)
	} else {
		return table
	}

	dataRows.Each(func(_ int, row *goquery.Selection) {
		if row.IsSelection(headerRow) {
			return
		}
		if row.Find(`th[scope="col"]`).Length() > 0 {
			return
		}
		rec := zipRow(table.Headers, row)
		if meaningful(rec) {
			table.Rows = append(table.Rows, rec)
		}
	})

	return table
}

func tableCaption(sel *goquery.Selection) string {
	caption := strings.TrimSpace(sel.Find("caption").First().Text())
	if caption == "" {
		return "Unknown"
	}
	return caption
}

// resolveHeaders returns the header names together with the row they came
// from, so the caller can exclude that row from the data rows.
func resolveHeaders(sel *goquery.Selection) ([]string, *goquery.Selection) {
	collect := func(row *goquery.Selection) []string {
		var headers []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if text := strings.TrimSpace(cell.Text()); text != "" {
				headers = append(headers, text)
			}
		})
		return headers
	}

	if headRows := sel.Find("thead tr"); headRows.Length() > 0 {
		row := headRows.Last()
		if headers := collect(row); len(headers) > 0 {
			return headers, row
		}
	}
	row := sel.Find("tr").First()
	return collect(row), row
}

// zipRow aligns cell texts positionally against header names. Short rows
// omit trailing headers; excess cells are dropped.
func zipRow(headers []string, row *goquery.Selection) model.RowRecord {
	rec := model.RowRecord{}
	row.Find("td, th").EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i >= len(headers) {
			return false
		}
		rec[headers[i]] = strings.TrimSpace(cell.Text())
		return true
	})
	return rec
}

// meaningful reports whether at least one value is neither empty nor a
// placeholder dash marker.
func meaningful(rec model.RowRecord) bool {
	for _, v := range rec {
		if _, placeholder := placeholders[v]; !placeholder {
			return true
		}
	}
	return false
}

// captionMatches reports whether the lowercased caption contains any of
// the terms.
func captionMatches(caption string, terms []string) bool {
	lower := strings.ToLower(caption)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
