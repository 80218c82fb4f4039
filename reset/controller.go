// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Controller asserts, deasserts and reports reset lines.
// A Controller is safe for concurrent use.
//
// The controller does not cache line states: every operation goes to
// the registers, which may also be modified by other agents.
type Controller struct {
	bus   Bus
	lmap  *LineMap
	locks map[uint32]*sync.Mutex // one lock per register offset

	msg   *log.Logger
	hold  time.Duration
	sleep func(time.Duration)
}

// New creates a controller driving the lines of lmap through bus.
func New(bus Bus, lmap *LineMap, opts ...Option) *Controller {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctl := &Controller{
		bus:   bus,
		lmap:  lmap,
		locks: make(map[uint32]*sync.Mutex, len(lmap.offs)),
		msg:   cfg.msg,
		hold:  cfg.hold,
		sleep: cfg.sleep,
	}
	for _, off := range lmap.offs {
		ctl.locks[off] = new(sync.Mutex)
	}
	return ctl
}

// Lines returns the line table of the controller, sorted by line ID.
func (ctl *Controller) Lines() []Line {
	return ctl.lmap.Lines()
}

// Assert holds the line id in reset.
func (ctl *Controller) Assert(id ID) error {
	return ctl.update(id, Asserted)
}

// Deassert releases the line id from reset.
func (ctl *Controller) Deassert(id ID) error {
	return ctl.update(id, Deasserted)
}

// Status reports the current state of the line id.
//
// Status does not take the register lock: a concurrent Assert or
// Deassert may or may not be visible.
func (ctl *Controller) Status(id ID) (State, error) {
	d, err := ctl.resolve(id)
	if err != nil {
		return Deasserted, err
	}

	reg, err := ctl.bus.Read32(d.Offset)
	if err != nil {
		return Deasserted, ctl.fatal("read", id, d.Offset, err)
	}
	return d.state(reg), nil
}

// Reset pulses the line id: the line is asserted, held, deasserted and
// held again. Lines flagged with LongHold are held twice as long.
func (ctl *Controller) Reset(id ID) error {
	d, err := ctl.resolve(id)
	if err != nil {
		return err
	}

	hold := ctl.hold
	if d.LongHold {
		hold *= 2
	}

	err = ctl.rmw(id, d, Asserted)
	if err != nil {
		return err
	}
	ctl.sleep(hold)

	err = ctl.rmw(id, d, Deasserted)
	if err != nil {
		return err
	}
	ctl.sleep(hold)

	return nil
}

// AssertLines holds all the provided lines in reset.
// Each register is updated once; distinct registers are updated concurrently.
func (ctl *Controller) AssertLines(ids ...ID) error {
	return ctl.updateLines(ids, Asserted)
}

// DeassertLines releases all the provided lines from reset.
// Each register is updated once; distinct registers are updated concurrently.
func (ctl *Controller) DeassertLines(ids ...ID) error {
	return ctl.updateLines(ids, Deasserted)
}

func (ctl *Controller) update(id ID, st State) error {
	d, err := ctl.resolve(id)
	if err != nil {
		return err
	}
	return ctl.rmw(id, d, st)
}

func (ctl *Controller) rmw(id ID, d Descriptor, st State) error {
	mu := ctl.locks[d.Offset]
	mu.Lock()
	defer mu.Unlock()

	reg, err := ctl.bus.Read32(d.Offset)
	if err != nil {
		return ctl.fatal("read", id, d.Offset, err)
	}

	err = ctl.bus.Write32(d.Offset, d.apply(reg, st))
	if err != nil {
		return ctl.fatal("write", id, d.Offset, err)
	}
	return nil
}

func (ctl *Controller) updateLines(ids []ID, st State) error {
	grps := make(map[uint32][]Line)
	for _, id := range ids {
		d, err := ctl.resolve(id)
		if err != nil {
			return err
		}
		grps[d.Offset] = append(grps[d.Offset], Line{ID: id, Descriptor: d})
	}

	var grp errgroup.Group
	for off, lines := range grps {
		off := off
		lines := lines
		grp.Go(func() error {
			mu := ctl.locks[off]
			mu.Lock()
			defer mu.Unlock()

			reg, err := ctl.bus.Read32(off)
			if err != nil {
				return ctl.fatal("read", lines[0].ID, off, err)
			}
			for _, ln := range lines {
				reg = ln.apply(reg, st)
			}
			err = ctl.bus.Write32(off, reg)
			if err != nil {
				return ctl.fatal("write", lines[0].ID, off, err)
			}
			return nil
		})
	}
	return grp.Wait()
}

func (ctl *Controller) resolve(id ID) (Descriptor, error) {
	d, err := ctl.lmap.Resolve(id)
	if err != nil {
		ctl.msg.Printf("invalid reset line %d", id)
		return d, err
	}
	return d, nil
}

func (ctl *Controller) fatal(op string, id ID, off uint32, err error) error {
	ctl.msg.Printf("could not %s register 0x%x (line=%d): %+v", op, off, id, err)
	return &mappingError{op: op, id: id, off: off, err: err}
}

// mappingError reports a failed register access.
// It always matches ErrFatalMapping.
type mappingError struct {
	op  string
	id  ID
	off uint32
	err error
}

func (e *mappingError) Error() string {
	return fmt.Sprintf("reset: could not %s register 0x%x (line=%d): %v", e.op, e.off, e.id, e.err)
}

func (e *mappingError) Unwrap() error { return e.err }

func (e *mappingError) Is(target error) bool {
	return target == ErrFatalMapping
}

var (
	_ error = (*mappingError)(nil)
)
