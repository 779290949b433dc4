// Package index discovers player profile URLs by walking the site's
// paginated alphabetical listing pages.
package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gridironlab/gridiron-data/internal/config"
	"github.com/gridironlab/gridiron-data/internal/model"
	"github.com/gridironlab/gridiron-data/internal/store"
)

// Fetcher retrieves one URL's document text. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ProfileID derives the stable identifier from a profile URL: the final
// path segment with the profile suffix stripped. Pure; returns "" for URLs
// outside the profile path.
//
//	/cfb/players/john-smith-1.html -> john-smith-1
func ProfileID(url string) string {
	idx := strings.Index(url, config.ProfilePathPrefix)
	if idx < 0 {
		return ""
	}
	segment := url[idx+len(config.ProfilePathPrefix):]
	if !strings.HasSuffix(segment, config.ProfileSuffix) {
		return ""
	}
	return strings.TrimSuffix(segment, config.ProfileSuffix)
}

// Discovery paginates letter listing pages and extracts profile
// references. Per-letter results are cached in the storage collaborator;
// a cache hit short-circuits refetching that letter entirely.
type Discovery struct {
	fetcher Fetcher
	store   store.Store
	baseURL string
	logger  *slog.Logger
}

// NewDiscovery creates a Discovery rooted at baseURL.
func NewDiscovery(fetcher Fetcher, st store.Store, baseURL string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		fetcher: fetcher,
		store:   st,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// DiscoverLetter returns the profile references for one letter, walking
// page 1, 2, ... until a page yields zero profile links or its fetch
// fails. Non-empty results land in the per-letter cache document.
func (d *Discovery) DiscoverLetter(ctx context.Context, letter string) ([]model.ProfileReference, error) {
	cacheID := store.IndexCachePrefix + strings.ToLower(letter)

	// An empty cache document is a miss: a sweep that found nothing (or
	// failed outright) must be retried, not replayed.
	var cached []model.ProfileReference
	err := d.store.Load(ctx, cacheID, &cached)
	if err == nil && len(cached) > 0 {
		d.logger.Info("Using cached index", "letter", letter, "players", len(cached))
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.logger.Warn("Index cache read failed, refetching", "letter", letter, "error", err)
	}

	var refs []model.ProfileReference
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return refs, err
		}

		url := config.IndexPageURL(d.baseURL, letter, page)
		d.logger.Info("Scraping index page", "letter", letter, "page", page, "url", url)

		body, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			d.logger.Info("No more pages", "letter", letter, "stopped_at", page)
			break
		}

		pageRefs, err := d.extractProfiles(body)
		if err != nil {
			d.logger.Warn("Index page parse failed", "letter", letter, "page", page, "error", err)
			break
		}
		if len(pageRefs) == 0 {
			d.logger.Info("Empty index page, stopping pagination", "letter", letter, "page", page)
			break
		}
		refs = append(refs, pageRefs...)
	}

	d.logger.Info("Letter index complete", "letter", letter, "players", len(refs))

	if len(refs) > 0 {
		if err := d.store.Save(ctx, cacheID, refs); err != nil {
			d.logger.Warn("Index cache write failed", "letter", letter, "error", err)
		}
	}
	return refs, nil
}

// DiscoverAll walks the given letters (the full alphabet when nil) and
// returns all profile references deduplicated by full resolved URL, first
// occurrence winning, insertion order preserved.
func (d *Discovery) DiscoverAll(ctx context.Context, letters []string) ([]model.ProfileReference, error) {
	if len(letters) == 0 {
		letters = config.Alphabet
	}

	var all []model.ProfileReference
	seen := map[string]struct{}{}

	for _, letter := range letters {
		refs, err := d.DiscoverLetter(ctx, letter)
		if err != nil {
			if ctx.Err() != nil {
				return all, err
			}
			d.logger.Error("Letter discovery failed", "letter", letter, "error", err)
			continue
		}
		for _, ref := range refs {
			if _, dup := seen[ref.FullURL]; dup {
				continue
			}
			seen[ref.FullURL] = struct{}{}
			all = append(all, ref)
		}
	}

	d.logger.Info("Index discovery complete", "letters", len(letters), "players", len(all))
	return all, nil
}

// extractProfiles pulls profile links out of one listing page. An anchor
// qualifies when its target sits under the profile path, is not the bare
// listing path or an index page, ends with the profile suffix, and has
// enough path segments to name an individual profile.
func (d *Discovery) extractProfiles(body string) ([]model.ProfileReference, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var refs []model.ProfileReference
	doc.Find(`a[href*="` + config.ProfilePathPrefix + `"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		trimmed := strings.TrimSuffix(config.ProfilePathPrefix, "/")
		if href == config.ProfilePathPrefix || href == trimmed || strings.Contains(href, "index") {
			return
		}
		if !strings.HasSuffix(href, config.ProfileSuffix) || len(strings.Split(href, "/")) < 4 {
			return
		}

		name := strings.TrimSpace(link.Text())
		id := ProfileID(href)
		if id == "" || len(name) < 2 {
			return
		}

		details := ""
		if parent := link.Parent(); parent.Length() > 0 {
			details = strings.TrimSpace(parent.Text())
		}

		refs = append(refs, model.ProfileReference{
			ID:      id,
			Name:    name,
			URL:     href,
			FullURL: d.resolve(href),
			Details: details,
		})
	})

	return refs, nil
}

func (d *Discovery) resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return d.baseURL + href
}
