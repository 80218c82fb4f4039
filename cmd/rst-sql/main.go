// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rst-sql dumps reset-line tables from the configuration database.
package main // import "github.com/go-lpc/rstc/cmd/rst-sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/rstc/rstdb"
	"gopkg.in/yaml.v3"
)

func main() {
	log.SetPrefix("rst-sql: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "rstc", "configuration database")
		compat = flag.String("compat", "", "controller to dump (default: list controllers)")
	)

	flag.Parse()

	db, err := rstdb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open db: %+v", err)
	}
	defer db.Close()

	err = doQuery(os.Stdout, db, *compat)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

type dumpLine struct {
	ID       uint32    `yaml:"id"`
	Offset   hexOffset `yaml:"offset"`
	Bit      uint8     `yaml:"bit"`
	Polarity string    `yaml:"polarity"`
	LongHold bool      `yaml:"long-hold,omitempty"`
}

// hexOffset is a register offset written as a plain hexadecimal integer.
type hexOffset uint32

func (off hexOffset) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%x", uint32(off)),
	}, nil
}

func doQuery(w io.Writer, db *rstdb.DB, compat string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if compat == "" {
		ctls, err := db.Controllers(ctx)
		if err != nil {
			return fmt.Errorf("could not list controllers: %w", err)
		}
		for _, name := range ctls {
			fmt.Fprintf(w, "%s\n", name)
		}
		return nil
	}

	tbl, err := db.Table(ctx, compat)
	if err != nil {
		return fmt.Errorf("could not get line table of %q: %w", compat, err)
	}

	// output is a valid line table for rst-srv -table.
	dump := struct {
		Compatible string     `yaml:"compatible"`
		Lines      []dumpLine `yaml:"lines"`
	}{Compatible: tbl.Compatible}
	for _, ln := range tbl.Lines {
		dump.Lines = append(dump.Lines, dumpLine{
			ID:       uint32(ln.ID),
			Offset:   hexOffset(ln.Offset),
			Bit:      ln.Bit,
			Polarity: ln.Polarity.String(),
			LongHold: ln.LongHold,
		})
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)
	return enc.Encode(dump)
}
