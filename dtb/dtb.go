// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dtb locates reset controllers in flattened device tree blobs.
package dtb // import "github.com/go-lpc/rstc/dtb"

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-lpc/rstc/devmem"
	"github.com/platinasystems/fdt"
)

const (
	magic = 0xd00dfeed

	defaultAddrCells = 2
	defaultSizeCells = 1
)

// Node describes a reset controller node.
type Node struct {
	Name      string
	Regions   []devmem.Region // register regions, from the "reg" property
	NumResets int             // number of reset lines, 0 if unspecified
}

// Load reads the device tree blob fname and returns the first enabled
// node compatible with compat.
func Load(fname, compat string) (Node, error) {
	blob, err := os.ReadFile(fname)
	if err != nil {
		return Node{}, fmt.Errorf("dtb: could not read device tree: %w", err)
	}
	return Find(blob, compat)
}

// Find returns the first enabled node of the device tree blob that is
// compatible with compat.
func Find(blob []byte, compat string) (node Node, err error) {
	if len(blob) < 40 || binary.BigEndian.Uint32(blob) != magic {
		return node, fmt.Errorf("dtb: invalid device tree header")
	}

	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("dtb: could not parse device tree: %v", e)
		}
	}()

	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	t.Parse(blob)
	if t.RootNode == nil {
		return node, fmt.Errorf("dtb: could not parse device tree: no root node")
	}

	n, cells, ok := find(t.RootNode, cellsOf(t.RootNode, defaultAddrCells, defaultSizeCells), compat)
	if !ok {
		return node, fmt.Errorf("dtb: no node compatible with %q", compat)
	}

	node.Name = n.Name
	node.Regions, err = decodeReg(n.Properties["reg"], cells)
	if err != nil {
		return node, fmt.Errorf("dtb: node %q: %w", n.Name, err)
	}
	if v, ok := n.Properties["nr-resets"]; ok {
		if len(v) != 4 {
			return node, fmt.Errorf("dtb: node %q: invalid nr-resets property", n.Name)
		}
		node.NumResets = int(binary.BigEndian.Uint32(v))
	}

	return node, nil
}

type cells struct {
	addr int
	size int
}

// cellsOf returns the cells layout n imposes on its children.
func cellsOf(n *fdt.Node, addr, size int) cells {
	c := cells{addr: addr, size: size}
	if v, ok := n.Properties["#address-cells"]; ok && len(v) == 4 {
		c.addr = int(binary.BigEndian.Uint32(v))
	}
	if v, ok := n.Properties["#size-cells"]; ok && len(v) == 4 {
		c.size = int(binary.BigEndian.Uint32(v))
	}
	return c
}

// find walks the children of parent, in name order, looking for a node
// compatible with compat. c is the cells layout of parent's children.
func find(parent *fdt.Node, c cells, compat string) (*fdt.Node, cells, bool) {
	names := make([]string, 0, len(parent.Children))
	for name := range parent.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := parent.Children[name]
		if isCompatible(n, compat) && isEnabled(n) {
			return n, c, true
		}
		if m, mc, ok := find(n, cellsOf(n, defaultAddrCells, defaultSizeCells), compat); ok {
			return m, mc, true
		}
	}
	return nil, c, false
}

func isCompatible(n *fdt.Node, compat string) bool {
	for _, v := range strings.Split(string(n.Properties["compatible"]), "\x00") {
		if v == compat {
			return true
		}
	}
	return false
}

func isEnabled(n *fdt.Node) bool {
	v, ok := n.Properties["status"]
	if !ok {
		return true
	}
	switch strings.TrimRight(string(v), "\x00") {
	case "okay", "ok":
		return true
	}
	return false
}

func decodeReg(raw []byte, c cells) ([]devmem.Region, error) {
	if c.addr < 1 || c.addr > 2 || c.size < 0 || c.size > 2 {
		return nil, fmt.Errorf("unsupported cells layout (address=%d, size=%d)", c.addr, c.size)
	}
	n := 4 * (c.addr + c.size)
	if len(raw) == 0 || len(raw)%n != 0 {
		return nil, fmt.Errorf("invalid reg property (len=%d)", len(raw))
	}

	rs := make([]devmem.Region, 0, len(raw)/n)
	for len(raw) > 0 {
		var r devmem.Region
		r.Base, raw = readCells(raw, c.addr)
		r.Size, raw = readCells(raw, c.size)
		rs = append(rs, r)
	}
	return rs, nil
}

func readCells(raw []byte, n int) (uint64, []byte) {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(raw))
		raw = raw[4:]
	}
	return v, raw
}
