package snapshot

// BuildCycleFreePath walks from start by repeatedly calling next, collecting
// every visited node, until next returns (zero, false) at a terminator. It
// fails with a *CycleError instead of looping forever if a node would be
// visited twice.
//
// This is the generic graph-walk primitive behind reconstruction: next is
// "the predecessor of this diff point, if any" and the terminator is the
// diff point whose predecessor is the root full snapshot (see reconstruct.go).
// It is deliberately free of any snapshot-specific type so it can be tested
// (and was ported) independently of the rest of the package, the same way
// the source system's cycle_free_path.rs has no notion of snapshots either.
func BuildCycleFreePath[N comparable](start N, next func(N) (N, bool)) ([]N, error) {
	path := []N{start}
	visited := map[N]struct{}{start: {}}

	current := start
	for {
		n, ok := next(current)
		if !ok {
			return path, nil
		}
		if _, seen := visited[n]; seen {
			return append(path, n), &CycleError{Path: toUint64Path(append(path, n))}
		}
		visited[n] = struct{}{}
		path = append(path, n)
		current = n
	}
}

// toUint64Path best-effort renders a generic path as uint64s for the error
// message. Every caller in this package walks uint64 diff-point ids, so the
// type assertion always succeeds in practice; a path of any other node type
// falls back to zeros rather than panicking on a cycle report.
func toUint64Path[N comparable](path []N) []uint64 {
	out := make([]uint64, len(path))
	for i, n := range path {
		if id, ok := any(n).(uint64); ok {
			out[i] = id
		}
	}
	return out
}
