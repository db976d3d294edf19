package snapshot

import (
	"time"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

// StatsSnapshot is a complete, point-in-time view of one statistic kind
// across every known player. It is the public value type RecordSnapshot
// accepts and SearchSnapshot returns; it never touches the database itself.
type StatsSnapshot struct {
	UTCTimestamp time.Time
	PlayerStats  map[player.ID]uint64
}

// SnapshotDiff carries only the players whose value changed relative to
// some earlier StatsSnapshot. It is what gets persisted as a DiffPoint's
// rows (spec §4.1).
type SnapshotDiff struct {
	UTCTimestamp     time.Time
	PlayerStatsDiffs map[player.ID]uint64
}

// ApplyTo returns a new StatsSnapshot equal to base with every entry in d
// inserted or overwritten, timestamped at d's own timestamp. base is not
// mutated.
func (d SnapshotDiff) ApplyTo(base StatsSnapshot) StatsSnapshot {
	merged := make(map[player.ID]uint64, len(base.PlayerStats)+len(d.PlayerStatsDiffs))
	for id, v := range base.PlayerStats {
		merged[id] = v
	}
	for id, v := range d.PlayerStatsDiffs {
		merged[id] = v
	}
	return StatsSnapshot{UTCTimestamp: d.UTCTimestamp, PlayerStats: merged}
}

// DiffTo returns the SnapshotDiff that, applied to s, yields other: one
// entry per player whose value in other differs from its value in s
// (including players present in other but absent from s). Players present
// only in s are dropped — the upstream fetcher always returns the complete
// current population, so a player missing from other has, by construction,
// left that population (spec §4.1).
func (s StatsSnapshot) DiffTo(other StatsSnapshot) SnapshotDiff {
	diffs := make(map[player.ID]uint64)
	for id, v := range other.PlayerStats {
		if old, ok := s.PlayerStats[id]; !ok || old != v {
			diffs[id] = v
		}
	}
	return SnapshotDiff{UTCTimestamp: other.UTCTimestamp, PlayerStatsDiffs: diffs}
}

// SizeOfDiffTo returns the number of players whose value differs between s
// and other, counted over the union of both key sets. Used by the heuristic
// chooser to weigh candidate base diff sequences without materializing a
// full SnapshotDiff for each one.
func (s StatsSnapshot) SizeOfDiffTo(other StatsSnapshot) int {
	count := 0
	for id, v := range other.PlayerStats {
		if old, ok := s.PlayerStats[id]; !ok || old != v {
			count++
		}
	}
	for id := range s.PlayerStats {
		if _, ok := other.PlayerStats[id]; !ok {
			count++
		}
	}
	return count
}
