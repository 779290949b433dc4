package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridironlab/gridiron-data/internal/model"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	st, err := NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	st := newTestFileStore(t)
	ctx := context.Background()

	record := model.PlayerRecord{
		ID:         "john-smith-1",
		SourceURL:  "https://example.test/cfb/players/john-smith-1.html",
		ScrapedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PlayerInfo: map[string]string{"name": "John Smith", "position": "QB"},
		SeasonStats: []model.SeasonTable{
			{Name: "Passing", Rows: []model.RowRecord{{"Year": "2022", "Yds": "3900"}}},
		},
	}
	require.NoError(t, st.Save(ctx, record.ID, record))

	exists, err := st.Exists(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, exists)

	var loaded model.PlayerRecord
	require.NoError(t, st.Load(ctx, record.ID, &loaded))
	require.Equal(t, record.ID, loaded.ID)
	require.Equal(t, record.PlayerInfo, loaded.PlayerInfo)
	require.Equal(t, record.SeasonStats, loaded.SeasonStats)
	require.True(t, record.ScrapedAt.Equal(loaded.ScrapedAt))
}

func TestFileStoreLoadMissing(t *testing.T) {
	st := newTestFileStore(t)

	var out model.PlayerRecord
	err := st.Load(context.Background(), "nobody-1", &out)
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := st.Exists(context.Background(), "nobody-1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestFileStoreListIDsSkipsHousekeeping(t *testing.T) {
	st := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "john-smith-1", map[string]string{"name": "John"}))
	require.NoError(t, st.Save(ctx, "jane-doe-1", map[string]string{"name": "Jane"}))
	require.NoError(t, st.Save(ctx, IndexCachePrefix+"a", []string{}))
	require.NoError(t, st.Save(ctx, ConsolidatedIndexID, map[string]int{"total_players": 2}))
	require.NoError(t, st.Save(ctx, SummaryReportID, map[string]string{}))

	ids, err := st.ListIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{
		"john-smith-1": {},
		"jane-doe-1":   {},
	}, ids)
}

func TestFileStoreSaveBulk(t *testing.T) {
	st := newTestFileStore(t)
	ctx := context.Background()

	saved, failed := st.SaveBulk(ctx, map[string]any{
		"john-smith-1": map[string]string{"name": "John"},
		"jane-doe-1":   map[string]string{"name": "Jane"},
		"broken-1":     make(chan int), // not serializable
	})
	require.Equal(t, 2, saved)
	require.Equal(t, 1, failed)

	for _, id := range []string{"john-smith-1", "jane-doe-1"} {
		exists, err := st.Exists(ctx, id)
		require.NoError(t, err)
		require.True(t, exists)
	}
}

func TestIsHousekeeping(t *testing.T) {
	require.True(t, IsHousekeeping(ConsolidatedIndexID))
	require.True(t, IsHousekeeping(SummaryReportID))
	require.True(t, IsHousekeeping(IndexCachePrefix+"q"))
	require.False(t, IsHousekeeping("john-smith-1"))
}
