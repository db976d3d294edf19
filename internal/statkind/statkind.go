// Package statkind enumerates the statistic kinds the store tracks and the
// SQL table-name family each kind is persisted under. The incremental
// snapshot store (internal/snapshot, internal/sqlstore) is written once,
// generically, and parameterized per call site by a Kind value from this
// package — mirroring the teacher's single diffLayer/diskLayer
// implementation shared across every account/storage tree, rather than the
// source Rust system's one-trait-impl-per-statistic duplication.
package statkind

import "fmt"

// Kind identifies one of the tracked per-player statistics.
type Kind struct {
	name string
}

// Name returns the lower_snake_case identifier used both in log output and
// as the SQL table-name prefix (e.g. "break_count").
func (k Kind) Name() string {
	return k.name
}

func (k Kind) String() string {
	return k.name
}

var (
	BreakCount = Kind{"break_count"}
	BuildCount = Kind{"build_count"}
	PlayTicks  = Kind{"play_ticks"}
	VoteCount  = Kind{"vote_count"}
)

// All is the full set of kinds a deployment wires up; cmd/statshistd ranges
// over this to start one scheduler ticker and one Store per kind.
var All = []Kind{BreakCount, BuildCount, PlayTicks, VoteCount}

// Parse looks up a Kind by its Name(), for config files and CLI flags.
func Parse(name string) (Kind, error) {
	for _, k := range All {
		if k.name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("statkind: unknown kind %q", name)
}

// TableNames is the four physical table names backing one Kind, following
// the "<K>_full_snapshot_point" / "<K>_full_snapshot" / "<K>_diff_point" /
// "<K>_diff" layout of spec §6.
type TableNames struct {
	FullSnapshotPoint string
	FullSnapshot      string
	DiffPoint         string
	Diff              string
}

// Tables derives the four table names for k.
func (k Kind) Tables() TableNames {
	return TableNames{
		FullSnapshotPoint: k.name + "_full_snapshot_point",
		FullSnapshot:      k.name + "_full_snapshot",
		DiffPoint:         k.name + "_diff_point",
		Diff:              k.name + "_diff",
	}
}
