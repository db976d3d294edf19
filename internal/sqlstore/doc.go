// Package sqlstore is the production internal/snapshot.Store implementation,
// backed by database/sql and a MySQL driver. One Store value serves one
// statistic kind's table quartet; the physical table names come from
// internal/statkind.Kind.Tables() rather than being hard-coded per kind, so
// this package is written once and parameterized at construction time.
package sqlstore
