// Package upstream supplies fresh StatsSnapshot values from the game
// server's stats API. It sits outside the core incremental snapshot store
// entirely: internal/scheduler calls Fetcher.Fetch once per tick and hands
// the result straight to a snapshot.Tree.
package upstream

import (
	"context"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// Fetcher supplies the current value of kind for every known player. It
// never retries internally — internal/scheduler wraps calls to Fetch with
// backoff, and internal/snapshot never calls it directly (§7: "the core
// itself does not retry").
type Fetcher interface {
	Fetch(ctx context.Context, kind statkind.Kind) (snapshot.StatsSnapshot, error)
}
