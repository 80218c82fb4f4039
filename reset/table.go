// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Table is a line table, as described in a YAML file:
//
//	compatible: "bst,a1000b-rstc"
//	lines:
//	  - {id: 0, offset: 0x10, bit: 0, polarity: active-low}
//	  - {id: 1, offset: 0x10, bit: 1, polarity: active-high, long-hold: true}
type Table struct {
	Compatible string // device-tree compatible string of the controller
	Lines      []Line
}

type yamlTable struct {
	Compatible string     `yaml:"compatible"`
	Lines      []yamlLine `yaml:"lines"`
}

type yamlLine struct {
	ID       uint32 `yaml:"id"`
	Offset   uint32 `yaml:"offset"`
	Bit      uint8  `yaml:"bit"`
	Polarity string `yaml:"polarity"`
	LongHold bool   `yaml:"long-hold"`
}

// LoadTable reads the YAML line table stored in fname.
func LoadTable(fname string) (Table, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Table{}, fmt.Errorf("reset: could not open line table: %w", err)
	}
	defer f.Close()

	tbl, err := ReadTable(f)
	if err != nil {
		return tbl, fmt.Errorf("reset: could not read line table %q: %w", fname, err)
	}
	return tbl, nil
}

// ReadTable decodes a YAML line table from r.
func ReadTable(r io.Reader) (Table, error) {
	var (
		raw yamlTable
		dec = yaml.NewDecoder(r)
	)
	dec.KnownFields(true)

	err := dec.Decode(&raw)
	if err != nil {
		return Table{}, fmt.Errorf("reset: could not decode line table: %w", err)
	}

	tbl := Table{
		Compatible: raw.Compatible,
		Lines:      make([]Line, len(raw.Lines)),
	}
	for i, ln := range raw.Lines {
		pol, err := ParsePolarity(ln.Polarity)
		if err != nil {
			return Table{}, fmt.Errorf("reset: line %d: %w", ln.ID, err)
		}
		tbl.Lines[i] = Line{
			ID: ID(ln.ID),
			Descriptor: Descriptor{
				Offset:   ln.Offset,
				Bit:      ln.Bit,
				Polarity: pol,
				LongHold: ln.LongHold,
			},
		}
	}
	return tbl, nil
}

// LineMap builds the line map described by the table.
func (tbl Table) LineMap() (*LineMap, error) {
	return NewLineMap(tbl.Lines)
}
