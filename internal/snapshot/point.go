package snapshot

import "time"

// FullSnapshotPoint is a persisted, complete snapshot of every player's
// value for one statistic kind at one instant. It is the root of a diff
// forest: zero or more DiffPoint chains hang off it.
type FullSnapshotPoint struct {
	ID           uint64
	RecordedAt   time.Time
	FullSnapshot StatsSnapshot
}

// DiffPoint is a persisted delta against its chain. PreviousDiffID is nil
// when the diff hangs directly off the root full snapshot.
type DiffPoint struct {
	ID             uint64
	RootFullID     uint64
	PreviousDiffID *uint64
	RecordedAt     time.Time
	Diff           SnapshotDiff
}

// DiffSequence is a full snapshot point followed by an ordered, contiguous
// chain of diff points from Base to the tip (Diffs[len(Diffs)-1]).
type DiffSequence struct {
	Base  FullSnapshotPoint
	Diffs []DiffPoint
}

// Tip returns the last diff point in the sequence, or (DiffPoint{}, false)
// if the sequence is just the bare base.
func (s DiffSequence) Tip() (DiffPoint, bool) {
	if len(s.Diffs) == 0 {
		return DiffPoint{}, false
	}
	return s.Diffs[len(s.Diffs)-1], true
}

// Len returns the post-write chain length this sequence represents: 1 for
// the bare base, or len(Diffs)+1 once at least one diff is appended. This is
// the "depth" the heuristic's bound-compliance checks (spec §8, property 5)
// are stated against.
func (s DiffSequence) Len() int {
	return len(s.Diffs) + 1
}

// IntoSnapshotAtTip folds every diff onto the base, in order, yielding the
// StatsSnapshot this sequence represents. The result's timestamp is the tip
// diff's timestamp, or the base's timestamp if there are no diffs.
func (s DiffSequence) IntoSnapshotAtTip() StatsSnapshot {
	current := s.Base.FullSnapshot
	for _, d := range s.Diffs {
		current = d.Diff.ApplyTo(current)
	}
	return current
}
