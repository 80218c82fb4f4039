// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devmem maps physical register regions through /dev/mem.
package devmem // import "github.com/go-lpc/rstc/devmem"

import (
	"fmt"
	"os"

	"github.com/go-lpc/rstc/internal/mmap"
	"github.com/go-lpc/rstc/reset"
	"golang.org/x/sys/unix"
)

// Region is a physical address range.
type Region struct {
	Base uint64
	Size uint64
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Base, r.Base+r.Size)
}

// Bus is a register window over one or more memory-mapped regions.
// Offsets are relative to the lowest base address of its regions.
type Bus struct {
	f    *os.File
	base uint64
	wins []window
}

type window struct {
	Region
	page uint64 // page-aligned physical address of the mapping
	mem  *mmap.Handle
}

// Open maps the provided regions of fname, usually /dev/mem.
func Open(fname string, regions ...Region) (*Bus, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("devmem: no region to map")
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: could not open %q: %w", fname, err)
	}

	bus := &Bus{
		f:    f,
		base: regions[0].Base,
		wins: make([]window, 0, len(regions)),
	}
	for _, r := range regions[1:] {
		if r.Base < bus.base {
			bus.base = r.Base
		}
	}
	defer func() {
		if err != nil {
			_ = bus.Close()
		}
	}()

	pgsz := uint64(unix.Getpagesize())
	for _, r := range regions {
		if r.Size == 0 {
			err = fmt.Errorf("devmem: empty region at 0x%x", r.Base)
			return nil, err
		}
		var (
			page = r.Base &^ (pgsz - 1)
			end  = (r.Base + r.Size + pgsz - 1) &^ (pgsz - 1)
			mem  *mmap.Handle
		)
		mem, err = mmap.Map(int(f.Fd()), int64(page), int(end-page))
		if err != nil {
			err = fmt.Errorf("devmem: could not map region %v: %w", r, err)
			return nil, err
		}
		bus.wins = append(bus.wins, window{Region: r, page: page, mem: mem})
	}

	return bus, nil
}

// Close unmaps all regions and closes the underlying file.
func (bus *Bus) Close() error {
	var errs []error
	for _, w := range bus.wins {
		errs = append(errs, w.mem.Close())
	}
	bus.wins = nil
	if bus.f != nil {
		errs = append(errs, bus.f.Close())
		bus.f = nil
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("devmem: could not close: %w", err)
		}
	}
	return nil
}

// Base returns the physical address of register offset 0.
func (bus *Bus) Base() uint64 {
	return bus.base
}

// Regions returns the mapped regions.
func (bus *Bus) Regions() []Region {
	o := make([]Region, len(bus.wins))
	for i, w := range bus.wins {
		o[i] = w.Region
	}
	return o
}

func (bus *Bus) Read32(off uint32) (uint32, error) {
	w, i, err := bus.lookup(off)
	if err != nil {
		return 0, err
	}
	v, err := w.mem.Load32(i)
	if err != nil {
		return 0, fmt.Errorf("devmem: could not read register 0x%x: %v: %w", off, err, reset.ErrFatalMapping)
	}
	return v, nil
}

func (bus *Bus) Write32(off uint32, v uint32) error {
	w, i, err := bus.lookup(off)
	if err != nil {
		return err
	}
	err = w.mem.Store32(i, v)
	if err != nil {
		return fmt.Errorf("devmem: could not write register 0x%x: %v: %w", off, err, reset.ErrFatalMapping)
	}
	return nil
}

// lookup returns the window holding the register at offset off, and the
// register offset within that window's mapping.
func (bus *Bus) lookup(off uint32) (*window, int64, error) {
	addr := bus.base + uint64(off)
	for i := range bus.wins {
		w := &bus.wins[i]
		if w.Base <= addr && addr+4 <= w.Base+w.Size {
			return w, int64(addr - w.page), nil
		}
	}
	return nil, 0, fmt.Errorf("devmem: address 0x%x (offset=0x%x) outside mapped regions: %w", addr, off, reset.ErrFatalMapping)
}

var (
	_ reset.Bus = (*Bus)(nil)
)
