package snapshot

import (
	"math"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

// maxDiffsPerRoot bounds chain fan-out: beyond this many diff points under
// one root, a write always starts a fresh full snapshot instead of even
// considering an extension (spec §4.6).
const maxDiffsPerRoot = 2500

// maxChainLength bounds reconstruction cost: a chosen base diff sequence
// that would make the chain longer than this, post-write, is rejected in
// favor of a fresh full snapshot (spec §4.5 step 6, §4.6 step 4).
const maxChainLength = 1000

// DiffSequenceChoice is the result of choosing a base diff sequence to
// extend: either an optimal sequence to extend with one more diff, or a
// signal that the caller should write a new full snapshot instead.
type DiffSequenceChoice struct {
	Sequence DiffSequence
	Found    bool
}

// ChooseBaseDiffSequence picks the diff-chain ancestor that minimizes the
// loss function of spec §4.6 for writing target on top of base, given every
// diff point currently recorded over base with a timestamp before target's.
//
// allDiffsOverBase is exactly what Store.ReadDiffPointsOverFull returns,
// already filtered by the caller (RecordSnapshot, spec §4.5 step 3) to
// diffs with timestamp < target.UTCTimestamp.
func ChooseBaseDiffSequence(base FullSnapshotPoint, allDiffsOverBase map[uint64]DiffPoint, target StatsSnapshot) (DiffSequenceChoice, error) {
	if len(allDiffsOverBase) == 0 {
		return DiffSequenceChoice{Sequence: DiffSequence{Base: base}, Found: true}, nil
	}
	if len(allDiffsOverBase) > maxDiffsPerRoot {
		return DiffSequenceChoice{}, nil
	}

	tip := latestByTimestamp(allDiffsOverBase)

	predMap := make(map[uint64]*uint64, len(allDiffsOverBase))
	for id, dp := range allDiffsOverBase {
		predMap[id] = dp.PreviousDiffID
	}
	orderedIDs, err := orderedDiffChain(tip.ID, predMap)
	if err != nil {
		return DiffSequenceChoice{}, err
	}
	candidate := DiffSequence{Base: base, Diffs: make([]DiffPoint, len(orderedIDs))}
	for i, id := range orderedIDs {
		candidate.Diffs[i] = allDiffsOverBase[id]
	}

	prefix := chooseSubSequence(candidate, target)
	if prefix.Len() > maxChainLength {
		return DiffSequenceChoice{}, nil
	}
	return DiffSequenceChoice{Sequence: prefix, Found: true}, nil
}

func latestByTimestamp(diffs map[uint64]DiffPoint) DiffPoint {
	var latest DiffPoint
	first := true
	for _, dp := range diffs {
		if first || dp.RecordedAt.After(latest.RecordedAt) {
			latest = dp
			first = false
		}
	}
	return latest
}

// chooseSubSequence scans candidate's diffs from the base outward,
// returning the prefix (possibly empty) that minimizes
// loss(depth, totalDiffs, extendCost). Ties favor the earliest (shortest)
// depth, since the scan keeps only strictly smaller losses.
//
// The remaining-map shrinking trick it uses to compute extendCost in O(1)
// amortized per step, instead of recomputing target.SizeOfDiffTo(candidate
// folded so far) at every depth, is valid only because statistics are
// monotonically non-decreasing per player (spec §3, §4.6): once a player's
// value along the chain reaches its target, a later diff in the same chain
// cannot move it away from that target, so it can be dropped from
// `remaining` for good. A kind that can decrease would need the O(n)
// recomputation instead.
func chooseSubSequence(candidate DiffSequence, target StatsSnapshot) DiffSequence {
	remaining := make(map[player.ID]uint64)
	for id, v := range candidate.Base.FullSnapshot.DiffTo(target).PlayerStatsDiffs {
		remaining[id] = v
	}

	bestDepth := 1
	bestLoss := loss(1, 0, len(remaining))

	totalDiffs := 0
	for i, dp := range candidate.Diffs {
		depth := i + 2 // depth 1 is the bare base; this is the (i+1)-th diff appended.
		totalDiffs += len(dp.Diff.PlayerStatsDiffs)
		for id, v := range dp.Diff.PlayerStatsDiffs {
			if want, ok := remaining[id]; ok && want == v {
				delete(remaining, id)
			}
		}
		l := loss(depth, totalDiffs, len(remaining))
		if l < bestLoss {
			bestLoss = l
			bestDepth = depth
		}
	}

	return DiffSequence{Base: candidate.Base, Diffs: append([]DiffPoint(nil), candidate.Diffs[:bestDepth-1]...)}
}

// loss implements loss(depth, total_diffs, extend_cost) = (extend_cost + 1)
// * log20(extend_cost + total_diffs + depth + 1), spec §4.6.
func loss(depth, totalDiffs, extendCost int) float64 {
	return float64(extendCost+1) * log20(float64(extendCost+totalDiffs+depth+1))
}

func log20(x float64) float64 {
	return math.Log(x) / math.Log(20)
}
