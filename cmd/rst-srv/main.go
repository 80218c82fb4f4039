// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rst-srv serves the reset lines of a controller over TCP.
//
// The register regions of the controller are read from the device tree,
// and its line table from a YAML file or from the configuration database.
package main // import "github.com/go-lpc/rstc/cmd/rst-srv"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/rstc"
	"github.com/go-lpc/rstc/ctlsrv"
	"github.com/go-lpc/rstc/devmem"
	"github.com/go-lpc/rstc/dtb"
	"github.com/go-lpc/rstc/reset"
	"github.com/go-lpc/rstc/rstdb"
)

func main() {
	var (
		addr   = flag.String("addr", ":9988", "[ip]:port to listen on")
		fmem   = flag.String("dev-mem", "/dev/mem", "physical memory device")
		fdt    = flag.String("dtb", "/sys/firmware/fdt", "flattened device tree blob")
		compat = flag.String("compat", "bst,a1000b-rstc", "compatible string of the reset controller")
		table  = flag.String("table", "", "YAML line table (default: read from -db)")
		dbname = flag.String("db", "rstc", "configuration database")
		hold   = flag.Duration("hold", reset.DefaultHoldTime, "hold time of pulsed lines")
		sim    = flag.Int("sim", 0, "simulate a register bank of that many bytes instead of mapping -dev-mem")
		vers   = flag.Bool("version", false, "print version and exit")
	)

	log.SetPrefix("rst-srv: ")
	log.SetFlags(0)

	flag.Parse()

	if *vers {
		version, sum := rstc.Version()
		fmt.Printf("rst-srv %s %s\n", version, sum)
		return
	}

	tbl, err := loadTable(*table, *dbname, *compat)
	if err != nil {
		log.Fatalf("could not load line table: %+v", err)
	}

	if tbl.Compatible != "" {
		*compat = tbl.Compatible
	}

	lmap, err := tbl.LineMap()
	if err != nil {
		log.Fatalf("could not build line map: %+v", err)
	}
	log.Printf("controller %q: %d lines", *compat, lmap.Len())

	bus, closer, err := openBus(*sim, *fmem, *fdt, *compat, lmap)
	if err != nil {
		log.Fatalf("could not open register bus: %+v", err)
	}
	defer closer.Close()

	ctl := reset.New(bus, lmap, reset.WithLogger(log.Default()), reset.WithHoldTime(*hold))

	log.Printf("serving reset lines on %q...", *addr)
	err = ctlsrv.Serve(*addr, ctl, ctlsrv.WithLogger(log.Default()))
	if err != nil {
		log.Fatalf("could not serve reset lines: %+v", err)
	}
}

func loadTable(fname, dbname, compat string) (reset.Table, error) {
	if fname != "" {
		return reset.LoadTable(fname)
	}

	db, err := rstdb.Open(dbname)
	if err != nil {
		return reset.Table{}, err
	}
	defer db.Close()

	return db.Table(context.Background(), compat)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openBus(sim int, fname, fdt, compat string, lmap *reset.LineMap) (reset.Bus, io.Closer, error) {
	if sim > 0 {
		log.Printf("simulating a %d bytes register bank", sim)
		return reset.NewMem(sim), nopCloser{}, nil
	}

	node, err := dtb.Load(fdt, compat)
	if err != nil {
		return nil, nil, fmt.Errorf("could not find %q in device tree: %w", compat, err)
	}
	for _, r := range node.Regions {
		log.Printf("node %q: region %v", node.Name, r)
	}
	err = lmap.Check(node.NumResets)
	if err != nil {
		return nil, nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	bus, err := devmem.Open(fname, node.Regions...)
	if err != nil {
		return nil, nil, err
	}
	return bus, bus, nil
}
