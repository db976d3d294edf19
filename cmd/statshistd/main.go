// Command statshistd is the process entrypoint: it loads configuration,
// opens the database pool, wires one Tree/Store pair per statistic kind, and
// starts the schedulers and metrics server, shutting down cleanly on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/config"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/metricsexport"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/scheduler"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/sqlstore"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/upstream"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the statshistd TOML configuration file",
		Value: "statshistd.toml",
	}
	upstreamURLFlag = cli.StringFlag{
		Name:  "upstream.url",
		Usage: "override the upstream game server base URL from the config file",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "override the metrics listen address from the config file",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "statshistd"
	app.Usage = "incremental per-player statistics history daemon"
	app.Flags = []cli.Flag{configFileFlag, upstreamURLFlag, metricsAddrFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Crit("statshistd: exiting", "err", err)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}
	if v := ctx.String(upstreamURLFlag.Name); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := ctx.String(metricsAddrFlag.Name); v != "" {
		cfg.Metrics.ListenAddr = v
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	fetcher, err := upstream.NewHTTPFetcher(cfg.Upstream.BaseURL, nil)
	if err != nil {
		return err
	}

	var tickers []*scheduler.Ticker
	for _, kind := range statkind.All {
		runner := sqlstore.NewTxRunner(db, kind)
		if err := runner.EnsureSchema(context.Background()); err != nil {
			return err
		}
		tree := snapshot.NewTree(kind.Name(), runner)

		interval, ok := cfg.PollKinds[kind.Name()]
		if !ok {
			log.Warn("statshistd: no poll interval configured for kind, skipping", "kind", kind.Name())
			continue
		}
		tickers = append(tickers, scheduler.New(kind, interval, fetcher, tree))
	}

	group := scheduler.NewGroup(tickers)
	group.Start()
	defer group.Stop()

	metricsServer := startMetricsServer(cfg.Metrics.ListenAddr)
	defer metricsServer.Close()

	log.Info("statshistd: running", "kinds", len(tickers), "metrics", cfg.Metrics.ListenAddr)
	waitForShutdownSignal()
	log.Info("statshistd: shutting down")
	return nil
}

// openDatabase opens the *sql.DB pool, retrying the initial ping with
// backoff — the one place in this process backoff wraps a raw DB operation
// rather than a scheduler tick, because no transaction is open yet (§10.5).
func openDatabase(cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10)
	if err := backoff.Retry(func() error {
		return db.Ping()
	}, bo); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// startMetricsServer exposes go-ethereum's metrics.DefaultRegistry (where
// every Tree and Ticker registers its write/tick counters) through
// client_golang's promhttp, bridged by metricsexport.Collector — the two
// metrics libraries otherwise know nothing about each other (§10.4).
func startMetricsServer(addr string) *http.Server {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(metricsexport.NewCollector(metrics.DefaultRegistry, "statshistd"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("statshistd: metrics server stopped", "err", err)
		}
	}()
	return srv
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
