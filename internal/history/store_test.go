package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/channelscope/internal/youtube"
)

func openTestStore(t *testing.T, clock clockwork.Clock) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndList(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	store := openTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, youtube.ChannelSummary{ID: "UC123", Title: "Gopher Channel", SubscriberCount: 1000, ViewCount: 500000, VideoCount: 42}))
	clock.Advance(24 * time.Hour)
	require.NoError(t, store.Record(ctx, youtube.ChannelSummary{ID: "UC123", Title: "Gopher Channel", SubscriberCount: 1100, ViewCount: 510000, VideoCount: 43}))
	require.NoError(t, store.Record(ctx, youtube.ChannelSummary{ID: "UCother", Title: "Other"}))

	snaps, err := store.List(ctx, "UC123", 0)
	require.NoError(t, err)

	require.Len(t, snaps, 2, "only the requested channel should be listed")
	assert.Equal(t, int64(1100), snaps[0].SubscriberCount, "newest snapshot should come first")
	assert.Equal(t, int64(1000), snaps[1].SubscriberCount)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), snaps[0].RecordedAt)
	assert.Equal(t, "Gopher Channel", snaps[1].Title)
}

func TestStore_ListLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := openTestStore(t, clock)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, store.Record(ctx, youtube.ChannelSummary{ID: "UC123", VideoCount: int64(i)}))
		clock.Advance(time.Minute)
	}

	snaps, err := store.List(ctx, "UC123", 2)
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.Equal(t, int64(4), snaps[0].VideoCount)
	assert.Equal(t, int64(3), snaps[1].VideoCount)
}

func TestStore_ListUnknownChannel(t *testing.T) {
	store := openTestStore(t, clockwork.NewFakeClock())

	snaps, err := store.List(context.Background(), "UCnobody", 10)

	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestStore_ReopenKeepsSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, youtube.ChannelSummary{ID: "UC123", Title: "Gopher Channel"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	snaps, err := reopened.List(ctx, "UC123", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
