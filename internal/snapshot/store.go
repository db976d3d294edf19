package snapshot

import (
	"context"
	"time"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

// SearchCondition selects which point SearchSnapshot should resolve to.
// Exactly one of the two constructors below should be used; the zero value
// is not a valid condition.
type SearchCondition struct {
	newestBefore bool
	at           time.Time
}

// NewestBefore matches the latest point at or before t.
func NewestBefore(t time.Time) SearchCondition { return SearchCondition{newestBefore: true, at: t} }

// OldestAfter matches the earliest point at or after t.
func OldestAfter(t time.Time) SearchCondition { return SearchCondition{newestBefore: false, at: t} }

// IsNewestBefore reports which of the two conditions this is.
func (c SearchCondition) IsNewestBefore() bool { return c.newestBefore }

// At returns the instant the condition is relative to.
func (c SearchCondition) At() time.Time { return c.at }

// PointRef names either a full snapshot point or a diff point, without
// carrying its player rows — what the store's matching queries return
// before the caller decides whether (and how) to load the rest.
type PointRef struct {
	ID        uint64
	Timestamp time.Time
	IsFull    bool
}

// Store is the transactional capability the core snapshot algorithms are
// built against: a key-ordered, transactional persistence layer for one
// statistic kind's four tables (spec §4.3, §6). Every method runs inside
// the caller's already-open transaction — Store never begins or commits one
// itself (spec §5: transactions are scoped by the caller, e.g. Tree).
//
// internal/sqlstore is the one production implementation, backed by
// database/sql; internal/snapshot's own tests use an in-memory fake
// implementing this same interface, the way the teacher's snapshot package
// is tested against in-memory layers instead of a live disk database.
type Store interface {
	CreateFullSnapshotPoint(ctx context.Context, now time.Time) (id uint64, err error)
	InsertFullRows(ctx context.Context, id uint64, stats map[player.ID]uint64) error

	CreateDiffPoint(ctx context.Context, rootID uint64, previousDiffID *uint64, ts time.Time) (id uint64, err error)
	InsertDiffRows(ctx context.Context, id uint64, stats map[player.ID]uint64) error

	ReadFullPoint(ctx context.Context, id uint64) (FullSnapshotPoint, error)
	// ReadDiffPoints loads every id in ids. It returns an *IntegrityError if
	// any requested id has no corresponding row.
	ReadDiffPoints(ctx context.Context, ids []uint64) (map[uint64]DiffPoint, error)
	ReadDiffPointsOverFull(ctx context.Context, rootID uint64) (map[uint64]DiffPoint, error)

	FindFullPointMatching(ctx context.Context, cond SearchCondition) (PointRef, bool, error)
	FindDiffPointMatching(ctx context.Context, cond SearchCondition) (PointRef, bool, error)
	FindLatestFullBefore(ctx context.Context, ts time.Time) (uint64, bool, error)

	RootOfDiff(ctx context.Context, id uint64) (uint64, error)
	// DiffPredecessorMap returns, for every diff point under rootID whose
	// timestamp is <= tsUpperBound, its id mapped to its PreviousDiffID
	// (nil for a diff hanging directly off the root).
	DiffPredecessorMap(ctx context.Context, rootID uint64, tsUpperBound time.Time) (map[uint64]*uint64, error)
}
