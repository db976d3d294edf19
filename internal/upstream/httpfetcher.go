package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/player"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// entry is one row of the JSON array the game server's stats endpoint
// returns: {"uuid": "...", "value": 123}.
type entry struct {
	UUID  string `json:"uuid"`
	Value uint64 `json:"value"`
}

// HTTPFetcher fetches a statistic kind's current values from
// <baseURL>/stats/<kind>. It is a thin client with no retry of its own
// (§10.1) — internal/scheduler is the one place retries happen.
type HTTPFetcher struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPFetcher builds a fetcher against baseURL, using client if non-nil
// or a client with a conservative default timeout otherwise.
func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream: invalid base URL %q: %w", baseURL, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{baseURL: u, client: client}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, kind statkind.Kind) (snapshot.StatsSnapshot, error) {
	requestedAt := time.Now().UTC()

	u := *f.baseURL
	u.Path = path.Join(u.Path, "stats", kind.Name())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return snapshot.StatsSnapshot{}, fmt.Errorf("upstream: build request for %s: %w", kind.Name(), err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return snapshot.StatsSnapshot{}, fmt.Errorf("upstream: fetch %s: %w", kind.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot.StatsSnapshot{}, fmt.Errorf("upstream: fetch %s: unexpected status %s", kind.Name(), resp.Status)
	}

	var entries []entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return snapshot.StatsSnapshot{}, fmt.Errorf("upstream: decode %s response: %w", kind.Name(), err)
	}

	stats := make(map[player.ID]uint64, len(entries))
	var rejected int
	for _, e := range entries {
		pid, err := player.ParseID(e.UUID)
		if err != nil {
			// One malformed row doesn't fail the whole fetch: the upstream
			// service is outside this system's control, and the rest of the
			// population is still usable.
			rejected++
			continue
		}
		stats[pid] = e.Value
	}
	if rejected > 0 {
		log.Warn("upstream: rejected malformed player rows", "kind", kind.Name(), "rejected", rejected, "accepted", len(stats))
	}

	return snapshot.StatsSnapshot{UTCTimestamp: requestedAt, PlayerStats: stats}, nil
}
