// Package snapshot implements an incremental, time-indexed history of
// per-player integer statistics: a forest of full snapshots, each with zero
// or more chains of diff points on top, plus the heuristic that decides at
// write time whether to extend a chain or start a new full snapshot.
//
// The package is generic over the statistic kind K (see internal/statkind):
// the same algorithms back break-count, build-count, play-tick and
// vote-count history alike, the way a single diffLayer/diskLayer
// implementation in go-ethereum's core/state/snapshot backs every account
// and storage trie rather than one implementation per trie.
package snapshot
