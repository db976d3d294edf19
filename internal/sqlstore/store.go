package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// Store implements internal/snapshot.Store against one already-open
// transaction and one statistic kind's table quartet. Table names are
// trusted identifiers from statkind.Kind.Tables(), never user input, so
// building queries with fmt.Sprintf around them carries no injection risk;
// every value that does come from outside (timestamps, player ids, stat
// values) is passed as a driver parameter.
type Store struct {
	tx     *sql.Tx
	tables statkind.TableNames
}

// New wraps tx, scoped to one kind's tables. Callers never construct this
// directly outside of TxRunner.RunSerializable.
func New(tx *sql.Tx, kind statkind.Kind) *Store {
	return &Store{tx: tx, tables: kind.Tables()}
}

func (s *Store) CreateFullSnapshotPoint(ctx context.Context, now time.Time) (uint64, error) {
	res, err := s.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (recorded_at) VALUES (?)", s.tables.FullSnapshotPoint),
		now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert full snapshot point: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: last insert id: %w", err)
	}
	return uint64(id), nil
}

func (s *Store) InsertFullRows(ctx context.Context, id uint64, stats map[player.ID]uint64) error {
	if len(stats) == 0 {
		return nil
	}
	stmt, err := s.tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (full_snapshot_point_id, player_id, value) VALUES (?, ?, ?)", s.tables.FullSnapshot))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare full snapshot rows: %w", err)
	}
	defer stmt.Close()
	for pid, value := range stats {
		if _, err := stmt.ExecContext(ctx, id, pid.String(), value); err != nil {
			return fmt.Errorf("sqlstore: insert full snapshot row for %s: %w", pid, err)
		}
	}
	return nil
}

func (s *Store) CreateDiffPoint(ctx context.Context, rootID uint64, previousDiffID *uint64, ts time.Time) (uint64, error) {
	res, err := s.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (root_full_snapshot_point_id, previous_diff_point_id, recorded_at) VALUES (?, ?, ?)", s.tables.DiffPoint),
		rootID, nullableID(previousDiffID), ts.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert diff point: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: last insert id: %w", err)
	}
	return uint64(id), nil
}

func (s *Store) InsertDiffRows(ctx context.Context, id uint64, stats map[player.ID]uint64) error {
	if len(stats) == 0 {
		return nil
	}
	stmt, err := s.tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (diff_point_id, player_id, value) VALUES (?, ?, ?)", s.tables.Diff))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare diff rows: %w", err)
	}
	defer stmt.Close()
	for pid, value := range stats {
		if _, err := stmt.ExecContext(ctx, id, pid.String(), value); err != nil {
			return fmt.Errorf("sqlstore: insert diff row for %s: %w", pid, err)
		}
	}
	return nil
}

func (s *Store) ReadFullPoint(ctx context.Context, id uint64) (snapshot.FullSnapshotPoint, error) {
	var recordedAt time.Time
	err := s.tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT recorded_at FROM %s WHERE id = ?", s.tables.FullSnapshotPoint), id).
		Scan(&recordedAt)
	if err == sql.ErrNoRows {
		return snapshot.FullSnapshotPoint{}, &snapshot.IntegrityError{MissingDiffPointIDs: []uint64{id}}
	}
	if err != nil {
		return snapshot.FullSnapshotPoint{}, fmt.Errorf("sqlstore: read full snapshot point %d: %w", id, err)
	}

	stats, err := s.readRows(ctx, s.tables.FullSnapshot, "full_snapshot_point_id", id)
	if err != nil {
		return snapshot.FullSnapshotPoint{}, err
	}
	return snapshot.FullSnapshotPoint{
		ID:           id,
		RecordedAt:   recordedAt,
		FullSnapshot: snapshot.StatsSnapshot{UTCTimestamp: recordedAt, PlayerStats: stats},
	}, nil
}

func (s *Store) ReadDiffPoints(ctx context.Context, ids []uint64) (map[uint64]snapshot.DiffPoint, error) {
	out := make(map[uint64]snapshot.DiffPoint, len(ids))
	var missing []uint64
	for _, id := range ids {
		dp, found, err := s.readOneDiffPoint(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			missing = append(missing, id)
			continue
		}
		out[id] = dp
	}
	if len(missing) > 0 {
		return nil, &snapshot.IntegrityError{MissingDiffPointIDs: missing}
	}
	return out, nil
}

func (s *Store) readOneDiffPoint(ctx context.Context, id uint64) (snapshot.DiffPoint, bool, error) {
	var rootID uint64
	var previousID sql.NullInt64
	var recordedAt time.Time
	err := s.tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT root_full_snapshot_point_id, previous_diff_point_id, recorded_at FROM %s WHERE id = ?", s.tables.DiffPoint), id).
		Scan(&rootID, &previousID, &recordedAt)
	if err == sql.ErrNoRows {
		return snapshot.DiffPoint{}, false, nil
	}
	if err != nil {
		return snapshot.DiffPoint{}, false, fmt.Errorf("sqlstore: read diff point %d: %w", id, err)
	}

	diffs, err := s.readRows(ctx, s.tables.Diff, "diff_point_id", id)
	if err != nil {
		return snapshot.DiffPoint{}, false, err
	}
	return snapshot.DiffPoint{
		ID:             id,
		RootFullID:     rootID,
		PreviousDiffID: fromNullableID(previousID),
		RecordedAt:     recordedAt,
		Diff:           snapshot.SnapshotDiff{UTCTimestamp: recordedAt, PlayerStatsDiffs: diffs},
	}, true, nil
}

func (s *Store) ReadDiffPointsOverFull(ctx context.Context, rootID uint64) (map[uint64]snapshot.DiffPoint, error) {
	rows, err := s.tx.QueryContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE root_full_snapshot_point_id = ?", s.tables.DiffPoint), rootID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list diff points over %d: %w", rootID, err)
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlstore: scan diff point id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make(map[uint64]snapshot.DiffPoint, len(ids))
	for _, id := range ids {
		dp, found, err := s.readOneDiffPoint(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out[id] = dp
		}
	}
	return out, nil
}

func (s *Store) FindFullPointMatching(ctx context.Context, cond snapshot.SearchCondition) (snapshot.PointRef, bool, error) {
	query, arg := matchQuery(s.tables.FullSnapshotPoint, cond)
	return s.findRef(ctx, query, arg, true)
}

func (s *Store) FindDiffPointMatching(ctx context.Context, cond snapshot.SearchCondition) (snapshot.PointRef, bool, error) {
	query, arg := matchQuery(s.tables.DiffPoint, cond)
	return s.findRef(ctx, query, arg, false)
}

func (s *Store) findRef(ctx context.Context, query string, arg time.Time, isFull bool) (snapshot.PointRef, bool, error) {
	var id uint64
	var ts time.Time
	err := s.tx.QueryRowContext(ctx, query, arg).Scan(&id, &ts)
	if err == sql.ErrNoRows {
		return snapshot.PointRef{}, false, nil
	}
	if err != nil {
		return snapshot.PointRef{}, false, fmt.Errorf("sqlstore: find matching point: %w", err)
	}
	return snapshot.PointRef{ID: id, Timestamp: ts, IsFull: isFull}, true, nil
}

func matchQuery(table string, cond snapshot.SearchCondition) (string, time.Time) {
	if cond.IsNewestBefore() {
		return fmt.Sprintf("SELECT id, recorded_at FROM %s WHERE recorded_at <= ? ORDER BY recorded_at DESC LIMIT 1", table), cond.At().UTC()
	}
	return fmt.Sprintf("SELECT id, recorded_at FROM %s WHERE recorded_at >= ? ORDER BY recorded_at ASC LIMIT 1", table), cond.At().UTC()
}

func (s *Store) FindLatestFullBefore(ctx context.Context, ts time.Time) (uint64, bool, error) {
	var id uint64
	err := s.tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE recorded_at <= ? ORDER BY recorded_at DESC LIMIT 1", s.tables.FullSnapshotPoint),
		ts.UTC()).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: find latest full before %v: %w", ts, err)
	}
	return id, true, nil
}

func (s *Store) RootOfDiff(ctx context.Context, id uint64) (uint64, error) {
	var rootID uint64
	err := s.tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT root_full_snapshot_point_id FROM %s WHERE id = ?", s.tables.DiffPoint), id).
		Scan(&rootID)
	if err == sql.ErrNoRows {
		return 0, &snapshot.IntegrityError{MissingDiffPointIDs: []uint64{id}}
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: root of diff %d: %w", id, err)
	}
	return rootID, nil
}

func (s *Store) DiffPredecessorMap(ctx context.Context, rootID uint64, tsUpperBound time.Time) (map[uint64]*uint64, error) {
	rows, err := s.tx.QueryContext(ctx,
		fmt.Sprintf("SELECT id, previous_diff_point_id FROM %s WHERE root_full_snapshot_point_id = ? AND recorded_at <= ?", s.tables.DiffPoint),
		rootID, tsUpperBound.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: diff predecessor map over %d: %w", rootID, err)
	}
	defer rows.Close()

	out := make(map[uint64]*uint64)
	for rows.Next() {
		var id uint64
		var prev sql.NullInt64
		if err := rows.Scan(&id, &prev); err != nil {
			return nil, fmt.Errorf("sqlstore: scan predecessor row: %w", err)
		}
		out[id] = fromNullableID(prev)
	}
	return out, rows.Err()
}

func (s *Store) readRows(ctx context.Context, table, pointColumn string, pointID uint64) (map[player.ID]uint64, error) {
	rows, err := s.tx.QueryContext(ctx,
		fmt.Sprintf("SELECT player_id, value FROM %s WHERE %s = ?", table, pointColumn), pointID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read rows from %s: %w", table, err)
	}
	defer rows.Close()

	out := map[player.ID]uint64{}
	for rows.Next() {
		var rawID string
		var value uint64
		if err := rows.Scan(&rawID, &value); err != nil {
			return nil, fmt.Errorf("sqlstore: scan row from %s: %w", table, err)
		}
		pid := player.MustParseID(rawID)
		out[pid] = value
	}
	return out, rows.Err()
}

func nullableID(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func fromNullableID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
