// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rstdb retrieves reset-line tables from the configuration database.
//
// Line tables are stored in the reset_lines table:
//
//	CREATE TABLE reset_lines (
//		compatible VARCHAR(64)  NOT NULL,
//		line       INT UNSIGNED NOT NULL,
//		offset     INT UNSIGNED NOT NULL,
//		bit        TINYINT UNSIGNED NOT NULL,
//		polarity   VARCHAR(16)  NOT NULL,
//		long_hold  BOOLEAN      NOT NULL DEFAULT FALSE,
//		PRIMARY KEY (compatible, line)
//	);
package rstdb // import "github.com/go-lpc/rstc/rstdb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/go-lpc/rstc/reset"
	_ "github.com/go-sql-driver/mysql"
)

const timeout = 5 * time.Second

var (
	host = envOr("RSTDB_HOST", "localhost")
	usr  = envOr("RSTDB_USER", "rstc")
	pwd  = os.Getenv("RSTDB_PASSWORD")

	drvName = "mysql"
)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// DB exposes convenience methods to retrieve reset-line tables.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("rstdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, dbname), nil
}

// New wraps an already opened connection to the database dbname.
func New(db *sql.DB, dbname string) *DB {
	return &DB{db: db, name: dbname}
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("rstdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Controllers returns the compatible strings of all the controllers
// described in the database.
func (db *DB) Controllers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var ctls []string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT DISTINCT compatible FROM reset_lines ORDER BY compatible",
	)
	if err != nil {
		return ctls, fmt.Errorf("rstdb: could not query controllers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return ctls, fmt.Errorf("rstdb: could not scan controller: %w", err)
		}
		ctls = append(ctls, name)
	}

	if err := rows.Err(); err != nil {
		return ctls, fmt.Errorf("rstdb: could not scan db for controllers: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return ctls, fmt.Errorf("rstdb: context error while retrieving controllers: %w", err)
	}

	return ctls, nil
}

// Table returns the line table of the controller compatible with compat.
func (db *DB) Table(ctx context.Context, compat string) (reset.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tbl := reset.Table{Compatible: compat}
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT line, offset, bit, polarity, long_hold FROM reset_lines
WHERE compatible=?
ORDER BY line
`,
		compat,
	)
	if err != nil {
		return tbl, fmt.Errorf("rstdb: could not run line table query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			ln  reset.Line
			id  uint32
			pol string
		)
		err = rows.Scan(&id, &ln.Offset, &ln.Bit, &pol, &ln.LongHold)
		if err != nil {
			return tbl, fmt.Errorf("rstdb: could not scan row %d for line table: %w", i, err)
		}
		i++

		ln.ID = reset.ID(id)
		ln.Polarity, err = reset.ParsePolarity(pol)
		if err != nil {
			return tbl, fmt.Errorf("rstdb: line %d: %w", id, err)
		}
		tbl.Lines = append(tbl.Lines, ln)
	}

	if err := rows.Err(); err != nil {
		return tbl, fmt.Errorf("rstdb: could not scan db for line table: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return tbl, fmt.Errorf("rstdb: context error while retrieving line table: %w", err)
	}

	if len(tbl.Lines) == 0 {
		return tbl, fmt.Errorf("rstdb: no line for controller %q", compat)
	}

	return tbl, nil
}
