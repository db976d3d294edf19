package snapshot

import "context"

// orderedDiffChain walks predMap from tipID back to the diff point whose
// predecessor is nil (the one hanging directly off the root), then reverses
// the walk so the result reads root-to-tip: [hanger, ..., tipID]. It is the
// one place cycle detection happens for diff ancestry, shared by
// reconstruction (ConstructDiffSequenceLeadingUpTo) and the heuristic's own
// candidate-sequence walk (heuristic.go), mirroring how the source system
// threads a single cycle_free_path helper through both call sites.
func orderedDiffChain(tipID uint64, predMap map[uint64]*uint64) ([]uint64, error) {
	tipToRoot, err := BuildCycleFreePath(tipID, func(id uint64) (uint64, bool) {
		prev, ok := predMap[id]
		if !ok || prev == nil {
			return 0, false
		}
		return *prev, true
	})
	if err != nil {
		return nil, err
	}
	reversed := make([]uint64, len(tipToRoot))
	for i, id := range tipToRoot {
		reversed[len(tipToRoot)-1-i] = id
	}
	return reversed, nil
}

// ConstructDiffSequenceLeadingUpTo rebuilds the DiffSequence a given point
// belongs to (spec §4.4). If point refers to a full snapshot, the result has
// no diffs. Otherwise it walks the point's predecessor chain back to its
// root, batch-loads every diff point on the chain, and orders them base to
// tip.
func ConstructDiffSequenceLeadingUpTo(ctx context.Context, store Store, point PointRef) (DiffSequence, error) {
	if point.IsFull {
		base, err := store.ReadFullPoint(ctx, point.ID)
		if err != nil {
			return DiffSequence{}, err
		}
		return DiffSequence{Base: base}, nil
	}

	rootID, err := store.RootOfDiff(ctx, point.ID)
	if err != nil {
		return DiffSequence{}, err
	}
	predMap, err := store.DiffPredecessorMap(ctx, rootID, point.Timestamp)
	if err != nil {
		return DiffSequence{}, err
	}
	orderedIDs, err := orderedDiffChain(point.ID, predMap)
	if err != nil {
		return DiffSequence{}, err
	}
	loaded, err := store.ReadDiffPoints(ctx, orderedIDs)
	if err != nil {
		return DiffSequence{}, err
	}
	diffs := make([]DiffPoint, len(orderedIDs))
	for i, id := range orderedIDs {
		diffs[i] = loaded[id]
	}
	base, err := store.ReadFullPoint(ctx, rootID)
	if err != nil {
		return DiffSequence{}, err
	}
	return DiffSequence{Base: base, Diffs: diffs}, nil
}
