package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridironlab/gridiron-data/internal/config"
	"github.com/gridironlab/gridiron-data/internal/extract"
	"github.com/gridironlab/gridiron-data/internal/fetch"
	"github.com/gridironlab/gridiron-data/internal/index"
	"github.com/gridironlab/gridiron-data/internal/model"
	"github.com/gridironlab/gridiron-data/internal/store"
)

var testPlayerIDs = []string{"alan-ameche-1", "art-adams-1", "amos-avery-1"}

func profilePage(name string) string {
	return fmt.Sprintf(`<html><body><div id="content">
		<h1 itemprop="name">%s</h1>
		<div id="meta"><p>Position: RB</p></div>
		<table class="stats_table">
			<caption>Rushing</caption>
			<thead><tr><th>Year</th><th>Yds</th></tr></thead>
			<tbody><tr><td>1954</td><td>641</td></tr></tbody>
		</table>
		<table class="stats_table">
			<caption>Career Rushing</caption>
			<thead><tr><th>Span</th><th>Yds</th></tr></thead>
			<tbody><tr><td>1951-1954</td><td>3212</td></tr></tbody>
		</table>
	</div></body></html>`, name)
}

// newTestSite serves a one-letter index (page 1 with three profiles, page 2
// empty) plus the profile pages, counting every request.
func newTestSite(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/cfb/players/a-index.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="content">`)
		for _, id := range testPlayerIDs {
			fmt.Fprintf(w, `<p><a href="/cfb/players/%s.html">Player %s</a> RB 1951-1954</p>`, id, id)
		}
		fmt.Fprint(w, `</div></body></html>`)
	})
	mux.HandleFunc("/cfb/players/a-index-2.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="content"><p>no more players</p></div></body></html>`)
	})
	for _, id := range testPlayerIDs {
		id := id
		mux.HandleFunc("/cfb/players/"+id+".html", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, profilePage("Player "+id))
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestScraper(t *testing.T, baseURL string, st store.Store, concurrency int) *Scraper {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	limiter := fetch.NewLimiter(time.Millisecond)
	client, err := fetch.NewClient(fetch.Options{
		Timeout:       2 * time.Second,
		MaxRetries:    2,
		BaseBackoff:   time.Millisecond,
		MaxBackoff:    2 * time.Millisecond,
		PreJitterMax:  time.Millisecond,
		RetryAfterMin: time.Millisecond,
		RetryAfterMax: 2 * time.Millisecond,
		RetryAfterCap: 5 * time.Millisecond,
	}, limiter, logger)
	require.NoError(t, err)

	discovery := index.NewDiscovery(client, st, baseURL, logger)
	assembler := extract.NewAssembler(config.DefaultCaptionRules(), logger)
	return New(client, discovery, assembler, st, concurrency, logger)
}

func TestRunFull(t *testing.T) {
	srv, requests := newTestSite(t)
	st, err := store.NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	result := newTestScraper(t, srv.URL, st, 2).RunFull(ctx, []string{"A"}, 0, true)

	require.Equal(t, 3, result.ProfilesFound)
	require.Equal(t, 3, result.Dispatched)
	require.Equal(t, 3, result.Succeeded)
	require.Equal(t, 0, result.Failed)
	require.True(t, result.Success())
	require.Empty(t, result.Errors)

	// Two index pages plus three profiles.
	require.EqualValues(t, 5, requests.Load())

	for _, id := range testPlayerIDs {
		var rec model.PlayerRecord
		require.NoError(t, st.Load(ctx, id, &rec))
		require.Equal(t, "Player "+id, rec.PlayerInfo["name"])
		require.Len(t, rec.SeasonStats, 2)
		require.Len(t, rec.CareerStats, 1)
	}

	var idx model.ConsolidatedIndex
	require.NoError(t, st.Load(ctx, store.ConsolidatedIndexID, &idx))
	require.Equal(t, 3, idx.TotalPlayers)
	require.Len(t, idx.PlayerURLs, 3)

	var report SummaryReport
	require.NoError(t, st.Load(ctx, store.SummaryReportID, &report))
	require.Equal(t, 3, report.ScrapeSummary.TotalPlayersStored)
	require.Equal(t, 3, report.DataQuality.SampleSize)
	require.Equal(t, 3, report.DataQuality.PlayersWithCareer)
	require.InDelta(t, 1.0, report.DataQuality.CareerFraction, 1e-9)

	// A second resumed run finds the cached index and the persisted
	// records, so it touches the site not at all.
	second := newTestScraper(t, srv.URL, st, 2).RunFull(ctx, []string{"A"}, 0, true)

	require.Equal(t, 3, second.ProfilesFound)
	require.Equal(t, 3, second.Skipped)
	require.Equal(t, 0, second.Dispatched)
	require.True(t, second.Success())
	require.EqualValues(t, 5, requests.Load(), "resumed run must not refetch anything")
}

func TestRunFullHonorsMaxPlayers(t *testing.T) {
	srv, _ := newTestSite(t)
	st, err := store.NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	result := newTestScraper(t, srv.URL, st, 2).RunFull(context.Background(), []string{"A"}, 2, true)

	require.Equal(t, 2, result.ProfilesFound)
	require.Equal(t, 2, result.Succeeded)
}

func TestRunPlayersFromConsolidatedIndex(t *testing.T) {
	srv, requests := newTestSite(t)
	st, err := store.NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	urls := make([]string, len(testPlayerIDs))
	for i, id := range testPlayerIDs {
		urls[i] = srv.URL + "/cfb/players/" + id + ".html"
	}
	require.NoError(t, st.Save(ctx, store.ConsolidatedIndexID, model.ConsolidatedIndex{
		ScrapedAt:    time.Now().UTC(),
		TotalPlayers: len(urls),
		PlayerURLs:   urls,
	}))

	result := newTestScraper(t, srv.URL, st, 2).RunPlayers(ctx, 0, true)

	require.Equal(t, 3, result.Succeeded)
	require.True(t, result.Success())
	require.EqualValues(t, 3, requests.Load(), "index pages must not be fetched")
}

func TestRunPlayersWithoutIndex(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	result := newTestScraper(t, "https://stats.test", st, 1).RunPlayers(context.Background(), 0, true)

	require.Equal(t, 0, result.Dispatched)
	require.NotEmpty(t, result.Errors)
}

// mapFetcher serves canned bodies, failing everything absent.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("status 404 for %s", url)
	}
	return body, nil
}

func newDirectScraper(t *testing.T, fetcher Fetcher, concurrency int) (*Scraper, store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	assembler := extract.NewAssembler(config.DefaultCaptionRules(), logger)
	return New(fetcher, nil, assembler, st, concurrency, logger), st
}

func TestScrapeProfilesResumeSkipsPersisted(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		"https://stats.test/cfb/players/bob-brown-1.html": profilePage("Bob Brown"),
	}}
	s, st := newDirectScraper(t, fetcher, 1)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "alan-ameche-1", model.PlayerRecord{ID: "alan-ameche-1"}))

	refs := []model.ProfileReference{
		{ID: "alan-ameche-1", FullURL: "https://stats.test/cfb/players/alan-ameche-1.html"},
		{ID: "bob-brown-1", FullURL: "https://stats.test/cfb/players/bob-brown-1.html"},
	}
	result := s.ScrapeProfiles(ctx, refs, true)

	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 1, result.Dispatched)
	require.Equal(t, 1, result.Succeeded)
}

func TestScrapeProfilesRecordsFailures(t *testing.T) {
	s, _ := newDirectScraper(t, &mapFetcher{}, 3)

	refs := make([]model.ProfileReference, 4)
	for i := range refs {
		refs[i] = model.ProfileReference{
			ID:      fmt.Sprintf("ghost-%d", i),
			FullURL: fmt.Sprintf("https://stats.test/cfb/players/ghost-%d.html", i),
		}
	}
	result := s.ScrapeProfiles(context.Background(), refs, false)

	require.Equal(t, 4, result.Dispatched)
	require.Equal(t, 4, result.Failed)
	require.Equal(t, 0, result.Succeeded)
	require.Len(t, result.Errors, 4)
	require.False(t, result.Success())
	require.InDelta(t, 0.0, result.SuccessRate(), 1e-9)
}

// slowFailFetcher fails every request, holding each open long enough for
// batch peers to overlap, and records the in-flight count seen at the
// start of each call.
type slowFailFetcher struct {
	mu       sync.Mutex
	inflight int
	observed []int
}

func (f *slowFailFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.inflight++
	f.observed = append(f.observed, f.inflight)
	f.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return "", fmt.Errorf("status 500 for %s", url)
}

func maxOf(vals []int) int {
	m := 0
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func TestScrapeProfilesShrinksConcurrencyAfterFailures(t *testing.T) {
	fetcher := &slowFailFetcher{}
	s, _ := newDirectScraper(t, fetcher, 3)

	refs := make([]model.ProfileReference, 7)
	for i := range refs {
		refs[i] = model.ProfileReference{
			ID:      fmt.Sprintf("ghost-%d", i),
			FullURL: fmt.Sprintf("https://stats.test/cfb/players/ghost-%d.html", i),
		}
	}
	result := s.ScrapeProfiles(context.Background(), refs, false)

	require.Equal(t, 7, result.Dispatched)
	require.Equal(t, 7, result.Failed)

	// The all-failing batches walk the ceiling down one step at a time:
	// 3, then 2, then 1 and 1.
	obs := fetcher.observed
	require.Len(t, obs, 7)
	require.Equal(t, 3, maxOf(obs[:3]), "first batch runs at the initial ceiling")
	require.LessOrEqual(t, maxOf(obs[3:5]), 2, "second batch must run one lower")
	require.Equal(t, []int{1, 1}, obs[5:], "ceiling bottoms out at one and never rises")
}

func TestScrapeProfilesRejectsEmptyExtraction(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		"https://stats.test/cfb/players/blank-1.html": "<html><body></body></html>",
	}}
	s, st := newDirectScraper(t, fetcher, 1)

	refs := []model.ProfileReference{
		{ID: "blank-1", FullURL: "https://stats.test/cfb/players/blank-1.html"},
	}
	result := s.ScrapeProfiles(context.Background(), refs, false)

	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0], "no data extracted")

	exists, err := st.Exists(context.Background(), "blank-1")
	require.NoError(t, err)
	require.False(t, exists)
}
