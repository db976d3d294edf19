package sqlstore

import (
	"fmt"
	"strings"

	"github.com/GiganticMinecraft/seichi-timed-stats-conifers/internal/statkind"
)

// Schema renders the four CREATE TABLE statements backing one statistic
// kind, named after tables. Column shapes follow the original Diesel schema
// (original_source/server/migrations): a point table carrying only
// identity/timing, and a rows table carrying one row per player per point.
func Schema(tables statkind.TableNames) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
CREATE TABLE IF NOT EXISTS %s (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  recorded_at DATETIME(6) NOT NULL,
  KEY idx_recorded_at (recorded_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS %s (
  full_snapshot_point_id BIGINT UNSIGNED NOT NULL,
  player_id CHAR(36) NOT NULL,
  value BIGINT UNSIGNED NOT NULL,
  PRIMARY KEY (full_snapshot_point_id, player_id),
  CONSTRAINT fk_%s_point FOREIGN KEY (full_snapshot_point_id)
    REFERENCES %s (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS %s (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  root_full_snapshot_point_id BIGINT UNSIGNED NOT NULL,
  previous_diff_point_id BIGINT UNSIGNED NULL,
  recorded_at DATETIME(6) NOT NULL,
  KEY idx_root (root_full_snapshot_point_id),
  KEY idx_recorded_at (recorded_at),
  CONSTRAINT fk_%s_root FOREIGN KEY (root_full_snapshot_point_id)
    REFERENCES %s (id) ON DELETE CASCADE,
  CONSTRAINT fk_%s_prev FOREIGN KEY (previous_diff_point_id)
    REFERENCES %s (id) ON DELETE SET NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS %s (
  diff_point_id BIGINT UNSIGNED NOT NULL,
  player_id CHAR(36) NOT NULL,
  value BIGINT UNSIGNED NOT NULL,
  PRIMARY KEY (diff_point_id, player_id),
  CONSTRAINT fk_%s_point FOREIGN KEY (diff_point_id)
    REFERENCES %s (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`,
		tables.FullSnapshotPoint,
		tables.FullSnapshot, tables.FullSnapshot, tables.FullSnapshotPoint,
		tables.DiffPoint,
		tables.DiffPoint, tables.FullSnapshotPoint,
		tables.DiffPoint, tables.DiffPoint,
		tables.Diff,
		tables.Diff, tables.DiffPoint,
	)
	return b.String()
}

// splitStatements breaks Schema's output into individual CREATE TABLE
// statements. go-sql-driver/mysql does not execute multiple statements per
// Exec unless the DSN opts into multiStatements, so EnsureSchema issues them
// one at a time instead of relying on that driver option.
func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
