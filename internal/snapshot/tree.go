package snapshot

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
)

// TxRunner opens one serializable transaction per call and hands the caller
// a Store scoped to it, committing on a nil return and rolling back
// otherwise (spec §4.5, §4.7: "isolation is set to serializable at the start
// of the transaction"). internal/sqlstore is the production implementation;
// tests in this package use an in-memory fake.
type TxRunner interface {
	RunSerializable(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Tree is the orchestrator tying the cycle-free path builder, the snapshot
// algebra, the store capability and the heuristic chooser together into the
// two operations external callers see: RecordSnapshot and SearchSnapshot.
// It plays the role the teacher package's Tree plays over diffLayer/
// diskLayer, except it keeps no layers in memory at all — every write is
// durable immediately, and every read walks the forest fresh inside its own
// transaction (see DESIGN.md).
type Tree struct {
	kindName string
	txRunner TxRunner

	writesAsFull metrics.Counter
	writesAsDiff metrics.Counter
}

// NewTree constructs a Tree for one statistic kind's tables, reached
// through txRunner.
func NewTree(kindName string, txRunner TxRunner) *Tree {
	return &Tree{
		kindName:     kindName,
		txRunner:     txRunner,
		writesAsFull: metrics.NewRegisteredCounter("snapshot/"+kindName+"/write/full", nil),
		writesAsDiff: metrics.NewRegisteredCounter("snapshot/"+kindName+"/write/diff", nil),
	}
}

// RecordSnapshot persists S, choosing between extending an existing diff
// chain and starting a new full snapshot per the heuristic of spec §4.6.
// The whole decision runs inside one serializable transaction (spec §4.5).
//
// validateSnapshot guards the spec's "input validation" error class (§7: a
// player UUID that isn't a 36-character ASCII string) here, at the one
// entrypoint every caller of this package goes through. internal/upstream's
// JSON decoding already rejects malformed UUIDs before they reach a
// StatsSnapshot, but player.ID's zero value (an empty string) is still
// reachable by any caller that builds a PlayerStats map without going
// through player.ParseID, so RecordSnapshot checks again rather than trust
// that every future caller replicates the upstream boundary's care.
func (t *Tree) RecordSnapshot(ctx context.Context, s StatsSnapshot) error {
	if err := validateSnapshot(s); err != nil {
		return err
	}
	return t.txRunner.RunSerializable(ctx, func(ctx context.Context, store Store) error {
		fullBaseID, found, err := store.FindLatestFullBefore(ctx, s.UTCTimestamp)
		if err != nil {
			return err
		}
		if !found {
			return t.writeNewFullSnapshot(ctx, store, s)
		}

		fullBase, err := store.ReadFullPoint(ctx, fullBaseID)
		if err != nil {
			return err
		}
		allDiffs, err := store.ReadDiffPointsOverFull(ctx, fullBase.ID)
		if err != nil {
			return err
		}
		before := make(map[uint64]DiffPoint, len(allDiffs))
		for id, dp := range allDiffs {
			if dp.RecordedAt.Before(s.UTCTimestamp) {
				before[id] = dp
			}
		}

		choice, err := ChooseBaseDiffSequence(fullBase, before, s)
		if err != nil {
			return err
		}
		if !choice.Found {
			log.Info("stat history: heuristic found no appropriate diff ancestor, writing full snapshot",
				"kind", t.kindName, "ts", s.UTCTimestamp, "diffsOverBase", len(before))
			return t.writeNewFullSnapshot(ctx, store, s)
		}
		return t.extendChain(ctx, store, choice.Sequence, s)
	})
}

func (t *Tree) writeNewFullSnapshot(ctx context.Context, store Store, s StatsSnapshot) error {
	id, err := store.CreateFullSnapshotPoint(ctx, s.UTCTimestamp)
	if err != nil {
		return err
	}
	if err := store.InsertFullRows(ctx, id, s.PlayerStats); err != nil {
		return err
	}
	t.writesAsFull.Inc(1)
	log.Debug("stat history: wrote full snapshot", "kind", t.kindName, "id", id, "players", len(s.PlayerStats))
	return nil
}

func (t *Tree) extendChain(ctx context.Context, store Store, seq DiffSequence, s StatsSnapshot) error {
	var previousDiffID *uint64
	if tip, ok := seq.Tip(); ok {
		id := tip.ID
		previousDiffID = &id
	}
	diff := seq.IntoSnapshotAtTip().DiffTo(s)

	id, err := store.CreateDiffPoint(ctx, seq.Base.ID, previousDiffID, s.UTCTimestamp)
	if err != nil {
		return err
	}
	if err := store.InsertDiffRows(ctx, id, diff.PlayerStatsDiffs); err != nil {
		return err
	}
	t.writesAsDiff.Inc(1)
	log.Debug("stat history: wrote diff point", "kind", t.kindName, "id", id, "root", seq.Base.ID,
		"previous", previousDiffID, "changed", len(diff.PlayerStatsDiffs), "chainLen", seq.Len()+1)
	return nil
}

// SearchSnapshot resolves cond to the best matching point and reconstructs
// the snapshot it represents (spec §4.7). It returns (StatsSnapshot{}, false,
// nil) when no point satisfies cond — that is not an error (spec §7).
func (t *Tree) SearchSnapshot(ctx context.Context, cond SearchCondition) (StatsSnapshot, bool, error) {
	var result StatsSnapshot
	var found bool

	err := t.txRunner.RunSerializable(ctx, func(ctx context.Context, store Store) error {
		full, fullOK, err := store.FindFullPointMatching(ctx, cond)
		if err != nil {
			return err
		}
		diff, diffOK, err := store.FindDiffPointMatching(ctx, cond)
		if err != nil {
			return err
		}

		chosen, ok := pickCandidate(cond, full, fullOK, diff, diffOK)
		if !ok {
			return nil
		}

		seq, err := ConstructDiffSequenceLeadingUpTo(ctx, store, chosen)
		if err != nil {
			return err
		}
		result = seq.IntoSnapshotAtTip()
		found = true
		return nil
	})
	if err != nil {
		return StatsSnapshot{}, false, err
	}
	return result, found, nil
}

// pickCandidate implements spec §4.7 step 2. For NewestBefore it picks the
// full point only when it is strictly later than the diff point; for
// OldestAfter it picks the diff point whenever both exist, whatever their
// timestamps (see DESIGN.md "Open questions resolved").
func pickCandidate(cond SearchCondition, full PointRef, fullOK bool, diff PointRef, diffOK bool) (PointRef, bool) {
	switch {
	case !fullOK && !diffOK:
		return PointRef{}, false
	case fullOK && !diffOK:
		return full, true
	case !fullOK && diffOK:
		return diff, true
	}
	if cond.IsNewestBefore() {
		if full.Timestamp.After(diff.Timestamp) {
			return full, true
		}
		return diff, true
	}
	// OldestAfter: the diff point is picked whenever both exist.
	return diff, true
}

// validateSnapshot rejects any player key that doesn't round-trip through
// player.ParseID, catching zero-value IDs assembled outside the upstream
// fetcher's decoding path.
func validateSnapshot(s StatsSnapshot) error {
	for id := range s.PlayerStats {
		if _, err := player.ParseID(id.String()); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("player %s: %v", id.String(), err)}
		}
	}
	return nil
}
