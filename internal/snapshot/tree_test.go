package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

func newTestTree() (*Tree, *memStore) {
	store := newMemStore()
	tree := NewTree("test_kind", &memTxRunner{store: store})
	return tree, store
}

func TestRecordSnapshotFirstWriteIsFull(t *testing.T) {
	tree, store := newTestTree()
	a := pid(t, "550e8400-e29b-41d4-a716-446655440000")
	ts := time.Unix(0, 0).UTC()

	err := tree.RecordSnapshot(context.Background(), StatsSnapshot{UTCTimestamp: ts, PlayerStats: map[player.ID]uint64{a: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.fulls) != 1 {
		t.Fatalf("expected one full snapshot point, got %d", len(store.fulls))
	}
	if len(store.diffs) != 0 {
		t.Fatalf("expected no diffs on the very first write, got %d", len(store.diffs))
	}
}

func TestRecordSnapshotSecondWriteExtendsAsDiff(t *testing.T) {
	tree, store := newTestTree()
	a := pid(t, "550e8400-e29b-41d4-a716-446655440000")
	ctx := context.Background()

	if err := tree.RecordSnapshot(ctx, StatsSnapshot{UTCTimestamp: time.Unix(0, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 1}}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := tree.RecordSnapshot(ctx, StatsSnapshot{UTCTimestamp: time.Unix(100, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2}}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if len(store.fulls) != 1 {
		t.Errorf("expected the root full snapshot to stay the only one, got %d", len(store.fulls))
	}
	if len(store.diffs) != 1 {
		t.Fatalf("expected the second write to land as exactly one diff point, got %d", len(store.diffs))
	}
}

func TestRecordSnapshotThenSearchNewestBeforeRoundTrips(t *testing.T) {
	tree, _ := newTestTree()
	a := pid(t, "550e8400-e29b-41d4-a716-446655440000")
	b := pid(t, "660e8400-e29b-41d4-a716-446655440000")
	ctx := context.Background()

	writes := []StatsSnapshot{
		{UTCTimestamp: time.Unix(0, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 1, b: 1}},
		{UTCTimestamp: time.Unix(100, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2, b: 1}},
		{UTCTimestamp: time.Unix(200, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2, b: 9}},
	}
	for _, w := range writes {
		if err := tree.RecordSnapshot(ctx, w); err != nil {
			t.Fatalf("RecordSnapshot(%v): %v", w.UTCTimestamp, err)
		}
	}

	got, found, err := tree.SearchSnapshot(ctx, NewestBefore(time.Unix(150, 0).UTC()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if got.PlayerStats[a] != 2 || got.PlayerStats[b] != 1 {
		t.Errorf("got %+v, want a=2,b=1 (the second write)", got.PlayerStats)
	}
}

func TestRecordSnapshotThenSearchOldestAfterRoundTrips(t *testing.T) {
	tree, _ := newTestTree()
	a := pid(t, "550e8400-e29b-41d4-a716-446655440000")
	ctx := context.Background()

	writes := []StatsSnapshot{
		{UTCTimestamp: time.Unix(0, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 1}},
		{UTCTimestamp: time.Unix(100, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2}},
		{UTCTimestamp: time.Unix(200, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 3}},
	}
	for _, w := range writes {
		if err := tree.RecordSnapshot(ctx, w); err != nil {
			t.Fatalf("RecordSnapshot(%v): %v", w.UTCTimestamp, err)
		}
	}

	got, found, err := tree.SearchSnapshot(ctx, OldestAfter(time.Unix(150, 0).UTC()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if got.PlayerStats[a] != 3 {
		t.Errorf("got a=%d, want 3 (the third write)", got.PlayerStats[a])
	}
}

func TestRecordSnapshotRejectsZeroValuePlayerID(t *testing.T) {
	tree, store := newTestTree()
	ctx := context.Background()

	var zero player.ID
	err := tree.RecordSnapshot(ctx, StatsSnapshot{UTCTimestamp: time.Unix(0, 0).UTC(), PlayerStats: map[player.ID]uint64{zero: 1}})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a *ValidationError, got %v", err)
	}
	if len(store.fulls) != 0 {
		t.Errorf("expected the rejected snapshot to leave the store untouched, got %d full points", len(store.fulls))
	}
}

func TestSearchSnapshotNoMatchReturnsFalseNotError(t *testing.T) {
	tree, _ := newTestTree()
	got, found, err := tree.SearchSnapshot(context.Background(), NewestBefore(time.Unix(0, 0).UTC()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Errorf("expected no match against an empty store, got %+v", got)
	}
}

func TestRecordSnapshotManyWritesShareOneRootFullSnapshot(t *testing.T) {
	tree, store := newTestTree()
	a := pid(t, "550e8400-e29b-41d4-a716-446655440000")
	ctx := context.Background()

	const n = 20
	for i := 0; i < n; i++ {
		ts := time.Unix(int64(i)*100, 0).UTC()
		if err := tree.RecordSnapshot(ctx, StatsSnapshot{UTCTimestamp: ts, PlayerStats: map[player.ID]uint64{a: uint64(i)}}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if len(store.fulls) != 1 {
		t.Errorf("expected a single root full snapshot across %d monotonically increasing writes, got %d", n, len(store.fulls))
	}
	if len(store.diffs) != n-1 {
		t.Errorf("expected %d diff points, got %d", n-1, len(store.diffs))
	}

	got, found, err := tree.SearchSnapshot(ctx, NewestBefore(time.Unix(int64(n-1)*100, 0).UTC()))
	if err != nil || !found {
		t.Fatalf("SearchSnapshot failed: found=%v err=%v", found, err)
	}
	if got.PlayerStats[a] != uint64(n-1) {
		t.Errorf("got a=%d, want %d", got.PlayerStats[a], n-1)
	}
}
