// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rst-daq starts a TDAQ node driving the reset lines of the
// front-end electronics.
//
// The node holds all the lines of its table in reset outside of runs:
//   - /config loads the line table and maps the controller registers,
//   - /init and /stop assert all lines,
//   - /start deasserts all lines,
//   - /reset pulses all lines.
//
// Usage:
//
//	$> rst-daq [tdaq-options] lines.yaml [board.dtb]
package main // import "github.com/go-lpc/rstc/cmd/rst-daq"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/rstc/devmem"
	"github.com/go-lpc/rstc/dtb"
	"github.com/go-lpc/rstc/reset"
)

func main() {
	cmd := flags.New()
	if len(cmd.Args) < 1 {
		log.Fatalf("missing line table")
	}

	dev := node{
		table:  cmd.Args[0],
		fdt:    "/sys/firmware/fdt",
		devmem: "/dev/mem",
	}
	if len(cmd.Args) > 1 {
		dev.fdt = cmd.Args[1]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type node struct {
	table  string
	fdt    string
	devmem string

	bus io.Closer
	ctl *reset.Controller
	ids []reset.ID
}

func (dev *node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	tbl, err := reset.LoadTable(dev.table)
	if err != nil {
		ctx.Msg.Errorf("could not load line table: %+v", err)
		return err
	}

	lmap, err := tbl.LineMap()
	if err != nil {
		ctx.Msg.Errorf("could not build line map: %+v", err)
		return err
	}

	ctlr, err := dtb.Load(dev.fdt, tbl.Compatible)
	if err != nil {
		ctx.Msg.Errorf("could not find controller %q: %+v", tbl.Compatible, err)
		return err
	}

	err = lmap.Check(ctlr.NumResets)
	if err != nil {
		ctx.Msg.Errorf("invalid line table for %q: %+v", ctlr.Name, err)
		return err
	}

	if dev.bus != nil {
		_ = dev.bus.Close()
		dev.bus = nil
	}
	bus, err := devmem.Open(dev.devmem, ctlr.Regions...)
	if err != nil {
		ctx.Msg.Errorf("could not map controller registers: %+v", err)
		return err
	}
	dev.bus = bus

	dev.ctl = reset.New(bus, lmap)
	dev.ids = dev.ids[:0]
	for _, ln := range lmap.Lines() {
		dev.ids = append(dev.ids, ln.ID)
	}
	ctx.Msg.Infof("controller %q: %d lines", tbl.Compatible, len(dev.ids))

	return nil
}

func (dev *node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.apply(ctx, "assert", dev.assert)
}

func (dev *node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.apply(ctx, "reset", func() error {
		for _, id := range dev.ids {
			err := dev.ctl.Reset(id)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (dev *node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return dev.apply(ctx, "deassert", func() error {
		return dev.ctl.DeassertLines(dev.ids...)
	})
}

func (dev *node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return dev.apply(ctx, "assert", dev.assert)
}

func (dev *node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.bus == nil {
		return nil
	}
	err := dev.bus.Close()
	dev.bus = nil
	dev.ctl = nil
	return err
}

func (dev *node) assert() error {
	return dev.ctl.AssertLines(dev.ids...)
}

func (dev *node) apply(ctx tdaq.Context, name string, f func() error) error {
	if dev.ctl == nil {
		return fmt.Errorf("could not %s lines: node not configured", name)
	}
	err := f()
	if err != nil {
		ctx.Msg.Errorf("could not %s lines: %+v", name, err)
		return fmt.Errorf("could not %s lines: %w", name, err)
	}
	return nil
}

func (dev *node) run(ctx tdaq.Context) error {
	<-ctx.Ctx.Done()
	return nil
}
