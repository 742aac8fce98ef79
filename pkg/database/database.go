// Package database opens the SQL driver shared by the service storages and
// wraps ent's runtime query helpers.
package database

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Open opens dsn with the registered database/sql driver and binds it to
// the ent dialect used to build queries ("postgres" or "sqlite3").
func Open(dialectName, driverName, dsn string) (*entsql.Driver, error) {
	switch dialectName {
	case dialect.Postgres, dialect.SQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialectName)
	}

	drv, err := entsql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialectName == dialect.SQLite {
		// a single connection keeps in-memory databases shared and
		// serializes writers
		drv.DB().SetMaxOpenConns(1)
	}

	return entsql.OpenDB(dialectName, drv.DB()), nil
}

// Migrate runs each DDL statement in order.
func Migrate(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error {
	for _, stmt := range stmts {
		if err := conn.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("failed to run %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Query runs q and scans every row into dst, a pointer to a slice of
// structs tagged with `sql:"column"`.
func Query(ctx context.Context, conn dialect.ExecQuerier, q string, args []any, dst any) error {
	rows := &entsql.Rows{}
	if err := conn.Query(ctx, q, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	return entsql.ScanSlice(rows, dst)
}

// Exec runs q and returns the number of affected rows.
func Exec(ctx context.Context, conn dialect.ExecQuerier, q string, args []any) (int64, error) {
	var res entsql.Result
	if err := conn.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InTx runs fn inside a transaction, rolling back when fn fails.
func InTx(ctx context.Context, drv *entsql.Driver, fn func(tx dialect.Tx) error) error {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rollback failed: %v", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
