package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/snapshot"
	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// TxRunner implements internal/snapshot.TxRunner over a *sql.DB pool, for
// one statistic kind. Every call opens a fresh serializable transaction,
// scoped exactly to fn, and rolls it back unless fn returns nil (spec
// §4.5/§4.7, §5).
type TxRunner struct {
	db   *sql.DB
	kind statkind.Kind
}

// NewTxRunner wraps db, scoped to kind's four tables.
func NewTxRunner(db *sql.DB, kind statkind.Kind) *TxRunner {
	return &TxRunner{db: db, kind: kind}
}

func (r *TxRunner) RunSerializable(ctx context.Context, fn func(ctx context.Context, store snapshot.Store) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}

	if err := fn(ctx, New(tx, r.kind)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn("sqlstore: rollback failed after error", "kind", r.kind.Name(), "err", err, "rollbackErr", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates r.kind's four tables if they do not already exist.
// cmd/statshistd calls this once per kind at startup; nothing else in this
// package issues DDL.
func (r *TxRunner) EnsureSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(Schema(r.kind.Tables())) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: ensure schema for %s: %w", r.kind.Name(), err)
		}
	}
	return nil
}
