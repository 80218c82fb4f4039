// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rst-ctl sends reset commands to a rst-srv server.
//
// Usage:
//
//	$> rst-ctl -addr host:9988 assert 3
//	$> rst-ctl -addr host:9988
//	rst-ctl> status 3
//	line 3: asserted
//	rst-ctl> deassert 3
package main // import "github.com/go-lpc/rstc/cmd/rst-ctl"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-lpc/rstc"
	"github.com/go-lpc/rstc/ctlsrv"
	"github.com/go-lpc/rstc/reset"
	"github.com/peterh/liner"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:9988", "rst-srv [ip]:port")
		vers = flag.Bool("version", false, "print version and exit")
	)

	log.SetPrefix("rst-ctl: ")
	log.SetFlags(0)

	flag.Parse()

	if *vers {
		version, sum := rstc.Version()
		fmt.Printf("rst-ctl %s %s\n", version, sum)
		return
	}

	cli, err := ctlsrv.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to rst-srv: %+v", err)
	}
	defer cli.Close()

	if flag.NArg() > 0 {
		err = run(os.Stdout, cli, flag.Args())
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	shell(cli)
}

func shell(cli *ctlsrv.Client) {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		var o []string
		for _, name := range []string{"assert", "deassert", "status", "reset", "lines", "quit"} {
			if strings.HasPrefix(name, strings.ToLower(line)) {
				o = append(o, name)
			}
		}
		return o
	})

	for {
		line, err := term.Prompt("rst-ctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("could not read command: %+v", err)
			return
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		term.AppendHistory(line)

		switch args[0] {
		case "quit", "exit":
			return
		}

		err = run(os.Stdout, cli, args)
		if err != nil {
			log.Printf("%+v", err)
		}
	}
}

func run(w io.Writer, cli *ctlsrv.Client, args []string) error {
	name := strings.ToLower(args[0])
	if name == "lines" {
		lines, err := cli.Lines()
		if err != nil {
			return fmt.Errorf("could not retrieve lines: %w", err)
		}
		for _, ln := range lines {
			fmt.Fprintf(w, "%v\n", ln)
		}
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("missing line id for %q", name)
	}

	for _, arg := range args[1:] {
		v, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid line id %q: %w", arg, err)
		}
		id := reset.ID(v)

		switch name {
		case "assert":
			err = cli.Assert(id)
		case "deassert":
			err = cli.Deassert(id)
		case "reset":
			err = cli.Reset(id)
		case "status":
			var st reset.State
			st, err = cli.Status(id)
			if err == nil {
				fmt.Fprintf(w, "line %d: %v\n", id, st)
			}
		default:
			_, err = cli.Do(name, id)
		}
		if err != nil {
			return fmt.Errorf("could not %s line %d: %w", name, id, err)
		}
	}
	return nil
}
