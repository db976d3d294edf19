package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// sqliteSchema is a SQLite-flavored rendering of the same four tables Schema
// describes for MySQL (AUTOINCREMENT instead of AUTO_INCREMENT, no inline
// KEY clauses, no ENGINE/CHARSET). modernc.org/sqlite backs these tests in
// place of a live MySQL server, the way the teacher's own snapshot tests run
// against in-memory layers rather than a real disk database.
func sqliteSchema(tables statkind.TableNames) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY AUTOINCREMENT, recorded_at DATETIME NOT NULL)`, tables.FullSnapshotPoint),
		fmt.Sprintf(`CREATE TABLE %s (full_snapshot_point_id INTEGER NOT NULL, player_id TEXT NOT NULL, value INTEGER NOT NULL, PRIMARY KEY (full_snapshot_point_id, player_id))`, tables.FullSnapshot),
		fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY AUTOINCREMENT, root_full_snapshot_point_id INTEGER NOT NULL, previous_diff_point_id INTEGER, recorded_at DATETIME NOT NULL)`, tables.DiffPoint),
		fmt.Sprintf(`CREATE TABLE %s (diff_point_id INTEGER NOT NULL, player_id TEXT NOT NULL, value INTEGER NOT NULL, PRIMARY KEY (diff_point_id, player_id))`, tables.Diff),
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// :memory: sqlite drops its one connection's state once idle; pin to
	// a single connection so every statement in a test sees the same DB.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema(statkind.BreakCount.Tables()) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func testPlayer(t *testing.T, s string) player.ID {
	t.Helper()
	p, err := player.ParseID(s)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", s, err)
	}
	return p
}

func TestStoreFullSnapshotPointRoundTrips(t *testing.T) {
	db := newTestDB(t)
	runner := NewTxRunner(db, statkind.BreakCount)
	ctx := context.Background()
	a := testPlayer(t, "550e8400-e29b-41d4-a716-446655440000")
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var id uint64
	err := runner.RunSerializable(ctx, func(ctx context.Context, store snapshot.Store) error {
		var err error
		id, err = store.CreateFullSnapshotPoint(ctx, ts)
		if err != nil {
			return err
		}
		return store.InsertFullRows(ctx, id, map[player.ID]uint64{a: 42})
	})
	if err != nil {
		t.Fatalf("write transaction: %v", err)
	}

	var full snapshot.FullSnapshotPoint
	err = runner.RunSerializable(ctx, func(ctx context.Context, store snapshot.Store) error {
		var err error
		full, err = store.ReadFullPoint(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("read transaction: %v", err)
	}
	if full.FullSnapshot.PlayerStats[a] != 42 {
		t.Errorf("got %v, want a=42", full.FullSnapshot.PlayerStats)
	}
	if !full.RecordedAt.Equal(ts) {
		t.Errorf("RecordedAt = %v, want %v", full.RecordedAt, ts)
	}
}

func TestStoreDiffChainRoundTripsThroughTree(t *testing.T) {
	db := newTestDB(t)
	runner := NewTxRunner(db, statkind.BreakCount)
	tree := snapshot.NewTree("break_count", runner)
	ctx := context.Background()
	a := testPlayer(t, "550e8400-e29b-41d4-a716-446655440000")
	b := testPlayer(t, "660e8400-e29b-41d4-a716-446655440000")

	writes := []snapshot.StatsSnapshot{
		{UTCTimestamp: time.Unix(0, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 1, b: 1}},
		{UTCTimestamp: time.Unix(3600, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2, b: 1}},
		{UTCTimestamp: time.Unix(7200, 0).UTC(), PlayerStats: map[player.ID]uint64{a: 2, b: 9}},
	}
	for _, w := range writes {
		if err := tree.RecordSnapshot(ctx, w); err != nil {
			t.Fatalf("RecordSnapshot(%v): %v", w.UTCTimestamp, err)
		}
	}

	got, found, err := tree.SearchSnapshot(ctx, snapshot.NewestBefore(time.Unix(5000, 0).UTC()))
	if err != nil {
		t.Fatalf("SearchSnapshot: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if got.PlayerStats[a] != 2 || got.PlayerStats[b] != 1 {
		t.Errorf("got %+v, want a=2,b=1", got.PlayerStats)
	}
}

func TestStoreReadDiffPointsReportsMissingIDs(t *testing.T) {
	db := newTestDB(t)
	runner := NewTxRunner(db, statkind.BreakCount)
	ctx := context.Background()

	err := runner.RunSerializable(ctx, func(ctx context.Context, store snapshot.Store) error {
		_, err := store.ReadDiffPoints(ctx, []uint64{999})
		return err
	})
	if err == nil {
		t.Fatal("expected an integrity error for a nonexistent diff point id")
	}
	var integrityErr *snapshot.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected *snapshot.IntegrityError, got %T: %v", err, err)
	}
	if len(integrityErr.MissingDiffPointIDs) != 1 || integrityErr.MissingDiffPointIDs[0] != 999 {
		t.Errorf("MissingDiffPointIDs = %v, want [999]", integrityErr.MissingDiffPointIDs)
	}
}
