// Package scheduler drives periodic RecordSnapshot calls for each
// statistic kind, independently, with jittered ticking and backoff on
// transient upstream/DB failure. None of this lives inside internal/snapshot
// itself — the core never retries (§7); the Ticker is what retries.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/upstream"
)

// maxTickAttempts bounds how many times one tick's fetch+record pair is
// attempted (the first try plus up to maxTickAttempts-1 retries) before it
// is dropped and the ticker waits for the next interval.
const maxTickAttempts = 5

// Ticker periodically fetches and records one statistic kind's snapshot.
type Ticker struct {
	kind     statkind.Kind
	interval time.Duration
	fetcher  upstream.Fetcher
	tree     *snapshot.Tree

	ticksOK   metrics.Counter
	ticksFail metrics.Counter

	stop chan struct{}
	done chan struct{}
}

// New builds a Ticker for kind, polling every interval (plus up to 10%
// jitter, to avoid every kind's ticks landing on the same instant against a
// shared upstream and DB).
func New(kind statkind.Kind, interval time.Duration, fetcher upstream.Fetcher, tree *snapshot.Tree) *Ticker {
	return &Ticker{
		kind:      kind,
		interval:  interval,
		fetcher:   fetcher,
		tree:      tree,
		ticksOK:   metrics.NewRegisteredCounter("scheduler/"+kind.Name()+"/tick/ok", nil),
		ticksFail: metrics.NewRegisteredCounter("scheduler/"+kind.Name()+"/tick/fail", nil),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the ticking loop in its own goroutine, until Stop is called.
func (t *Ticker) Start() {
	go t.loop()
}

// Stop signals the loop to exit and blocks until it has.
func (t *Ticker) Stop() {
	close(t.stop)
	<-t.done
}

func (t *Ticker) loop() {
	defer close(t.done)

	ticker := time.NewTicker(jitter(t.interval))
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Ticker) tick() {
	ctx := context.Background()
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxTickAttempts-1)

	err := backoff.Retry(func() error {
		snap, err := t.fetcher.Fetch(ctx, t.kind)
		if err != nil {
			log.Warn("scheduler: fetch failed, retrying", "kind", t.kind.Name(), "err", err)
			return err
		}
		if err := t.tree.RecordSnapshot(ctx, snap); err != nil {
			log.Warn("scheduler: record failed, retrying", "kind", t.kind.Name(), "err", err)
			return err
		}
		return nil
	}, bo)

	if err != nil {
		t.ticksFail.Inc(1)
		log.Error("scheduler: tick abandoned after retries", "kind", t.kind.Name(), "err", err)
		return
	}
	t.ticksOK.Inc(1)
}

func jitter(interval time.Duration) time.Duration {
	tenth := int64(interval) / 10
	if tenth <= 0 {
		return interval
	}
	return interval + time.Duration(rand.Int63n(tenth))
}

// Group runs one Ticker per kind, for cmd/statshistd's convenience.
type Group struct {
	tickers []*Ticker
}

// NewGroup wraps tickers so they can be started and stopped together.
func NewGroup(tickers []*Ticker) *Group {
	return &Group{tickers: tickers}
}

// Start starts every ticker in the group.
func (g *Group) Start() {
	for _, t := range g.tickers {
		t.Start()
	}
}

// Stop stops every ticker in the group, concurrently, and waits for all of
// them to exit.
func (g *Group) Stop() {
	var wg sync.WaitGroup
	for _, t := range g.tickers {
		wg.Add(1)
		go func(t *Ticker) {
			defer wg.Done()
			t.Stop()
		}(t)
	}
	wg.Wait()
}
