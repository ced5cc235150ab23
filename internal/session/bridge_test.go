package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"backdesk/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *market.Dataset {
	return &market.Dataset{
		Ticker:    "AAPL",
		StartDate: "2023-01-01",
		EndDate:   "2023-01-31",
		Interval:  "1d",
		Records: []market.OHLCVRecord{
			{
				Timestamp: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
				Open:      market.Num(130.28), High: market.Num(130.9), Low: market.Num(124.17),
				Close: market.Num(125.07), Volume: market.Num(112117500),
			},
			{
				Timestamp: time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
				Open:      market.Num(126.89), Close: market.Num(126.36),
			},
		},
	}
}

func TestBridgeRoundTripMemory(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(NewMemoryKV(), "s1")

	_, ok := b.Load(ctx)
	assert.False(t, ok)

	ds := sampleDataset()
	require.NoError(t, b.Save(ctx, ds))
	got, ok := b.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, ds, got)
}

func TestBridgeRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	first := NewBridge(store, "page-one")
	require.NoError(t, first.Save(ctx, sampleDataset()))

	// a new bridge on the same session sees the saved dataset
	second := NewBridge(store, "page-one")
	got, ok := second.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, sampleDataset(), got)

	other := NewBridge(store, "someone-else")
	_, ok = other.Load(ctx)
	assert.False(t, ok)

	replacement := sampleDataset()
	replacement.Ticker = "MSFT"
	replacement.Records = replacement.Records[:1]
	require.NoError(t, first.Save(ctx, replacement))
	got, ok = second.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, replacement, got)
}

func TestBridgeCorruptStateIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	b := NewBridge(kv, "s1")

	for name, payload := range map[string]string{
		"not json":   `{"data":[`,
		"bad record": `{"data":[{"Date":"yesterday"}]}`,
		"empty":      `{"data":[]}`,
		"unordered":  `{"data":[{"Date":"2023-01-02T00:00:00Z"},{"Date":"2023-01-01T00:00:00Z"}]}`,
	} {
		require.NoError(t, kv.Put(ctx, "s1", datasetKey, []byte(payload)))
		ds, ok := b.Load(ctx)
		assert.False(t, ok, name)
		assert.Nil(t, ds, name)
	}
}

type failingKV struct{ *MemoryKV }

func (failingKV) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func TestBridgeUnreadableStoreIsAbsent(t *testing.T) {
	_, ok := NewBridge(failingKV{NewMemoryKV()}, "s1").Load(context.Background())
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "old", datasetKey, []byte(`{"data":[]}`)))
	n, err := store.Purge(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Purge(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok, err := store.Get(ctx, "old", datasetKey)
	require.NoError(t, err)
	assert.False(t, ok)

	mem := NewMemoryKV()
	require.NoError(t, mem.Put(ctx, "a", "k", []byte("{}")))
	n, _ = mem.Purge(ctx, time.Now().Add(time.Minute))
	assert.Equal(t, int64(1), n)
}
