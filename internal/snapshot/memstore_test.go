package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

// memStore is an in-memory Store, the way the teacher's own snapshot tests
// drive difflayer/disklayer logic against layers built directly in Go rather
// than against a live disk database. It is not safe for concurrent use;
// memTxRunner runs every transaction directly against it, with no locking
// and no isolation.
type memStore struct {
	nextID uint64

	fulls map[uint64]FullSnapshotPoint
	diffs map[uint64]DiffPoint
}

func newMemStore() *memStore {
	return &memStore{fulls: map[uint64]FullSnapshotPoint{}, diffs: map[uint64]DiffPoint{}}
}

func (m *memStore) allocID() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateFullSnapshotPoint(_ context.Context, now time.Time) (uint64, error) {
	id := m.allocID()
	m.fulls[id] = FullSnapshotPoint{ID: id, RecordedAt: now, FullSnapshot: StatsSnapshot{UTCTimestamp: now, PlayerStats: map[player.ID]uint64{}}}
	return id, nil
}

func (m *memStore) InsertFullRows(_ context.Context, id uint64, stats map[player.ID]uint64) error {
	full := m.fulls[id]
	cp := make(map[player.ID]uint64, len(stats))
	for k, v := range stats {
		cp[k] = v
	}
	full.FullSnapshot.PlayerStats = cp
	m.fulls[id] = full
	return nil
}

func (m *memStore) CreateDiffPoint(_ context.Context, rootID uint64, previousDiffID *uint64, ts time.Time) (uint64, error) {
	id := m.allocID()
	m.diffs[id] = DiffPoint{ID: id, RootFullID: rootID, PreviousDiffID: previousDiffID, RecordedAt: ts}
	return id, nil
}

func (m *memStore) InsertDiffRows(_ context.Context, id uint64, stats map[player.ID]uint64) error {
	dp := m.diffs[id]
	cp := make(map[player.ID]uint64, len(stats))
	for k, v := range stats {
		cp[k] = v
	}
	dp.Diff = SnapshotDiff{UTCTimestamp: dp.RecordedAt, PlayerStatsDiffs: cp}
	m.diffs[id] = dp
	return nil
}

func (m *memStore) ReadFullPoint(_ context.Context, id uint64) (FullSnapshotPoint, error) {
	full, ok := m.fulls[id]
	if !ok {
		return FullSnapshotPoint{}, &IntegrityError{}
	}
	return full, nil
}

func (m *memStore) ReadDiffPoints(_ context.Context, ids []uint64) (map[uint64]DiffPoint, error) {
	out := make(map[uint64]DiffPoint, len(ids))
	var missing []uint64
	for _, id := range ids {
		dp, ok := m.diffs[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out[id] = dp
	}
	if len(missing) > 0 {
		return nil, &IntegrityError{MissingDiffPointIDs: missing}
	}
	return out, nil
}

func (m *memStore) ReadDiffPointsOverFull(_ context.Context, rootID uint64) (map[uint64]DiffPoint, error) {
	out := map[uint64]DiffPoint{}
	for id, dp := range m.diffs {
		if dp.RootFullID == rootID {
			out[id] = dp
		}
	}
	return out, nil
}

func (m *memStore) FindFullPointMatching(_ context.Context, cond SearchCondition) (PointRef, bool, error) {
	return findMatching(fullRefs(m.fulls), cond)
}

func (m *memStore) FindDiffPointMatching(_ context.Context, cond SearchCondition) (PointRef, bool, error) {
	return findMatching(diffRefs(m.diffs), cond)
}

func (m *memStore) FindLatestFullBefore(_ context.Context, ts time.Time) (uint64, bool, error) {
	var best uint64
	var bestTS time.Time
	found := false
	for id, full := range m.fulls {
		if full.RecordedAt.Before(ts) || full.RecordedAt.Equal(ts) {
			if !found || full.RecordedAt.After(bestTS) {
				best, bestTS, found = id, full.RecordedAt, true
			}
		}
	}
	return best, found, nil
}

func (m *memStore) RootOfDiff(_ context.Context, id uint64) (uint64, error) {
	dp, ok := m.diffs[id]
	if !ok {
		return 0, &IntegrityError{MissingDiffPointIDs: []uint64{id}}
	}
	return dp.RootFullID, nil
}

func (m *memStore) DiffPredecessorMap(_ context.Context, rootID uint64, tsUpperBound time.Time) (map[uint64]*uint64, error) {
	out := map[uint64]*uint64{}
	for id, dp := range m.diffs {
		if dp.RootFullID == rootID && !dp.RecordedAt.After(tsUpperBound) {
			out[id] = dp.PreviousDiffID
		}
	}
	return out, nil
}

func fullRefs(fulls map[uint64]FullSnapshotPoint) []PointRef {
	refs := make([]PointRef, 0, len(fulls))
	for id, f := range fulls {
		refs = append(refs, PointRef{ID: id, Timestamp: f.RecordedAt, IsFull: true})
	}
	return refs
}

func diffRefs(diffs map[uint64]DiffPoint) []PointRef {
	refs := make([]PointRef, 0, len(diffs))
	for id, d := range diffs {
		refs = append(refs, PointRef{ID: id, Timestamp: d.RecordedAt, IsFull: false})
	}
	return refs
}

func findMatching(refs []PointRef, cond SearchCondition) (PointRef, bool, error) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp.Before(refs[j].Timestamp) })
	if cond.IsNewestBefore() {
		found := false
		var best PointRef
		for _, r := range refs {
			if !r.Timestamp.After(cond.At()) && (!found || r.Timestamp.After(best.Timestamp)) {
				best, found = r, true
			}
		}
		return best, found, nil
	}
	for _, r := range refs {
		if !r.Timestamp.Before(cond.At()) {
			return r, true, nil
		}
	}
	return PointRef{}, false, nil
}

// memTxRunner runs every transaction against the same memStore, with no
// rollback support — tests that need rollback behavior construct their own
// TxRunner. Good enough to exercise Tree's happy paths and the reconstruction
// helpers end to end.
type memTxRunner struct {
	store *memStore
}

func (r *memTxRunner) RunSerializable(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	return fn(ctx, r.store)
}
