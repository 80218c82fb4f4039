// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dtb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/rstc/devmem"
)

type prop struct {
	name  string
	value []byte
}

type node struct {
	name  string
	props []prop
	kids  []node
}

func u32s(vs ...uint32) []byte {
	o := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint32(o[4*i:], v)
	}
	return o
}

func str(vs ...string) []byte {
	return []byte(strings.Join(vs, "\x00") + "\x00")
}

// encode builds a flattened device tree blob holding root.
func encode(root node) []byte {
	var (
		dt   = new(bytes.Buffer)
		strs = new(bytes.Buffer)
		offs = make(map[string]uint32)
	)
	cell := func(v uint32) { _ = binary.Write(dt, binary.BigEndian, v) }
	pad := func() {
		for dt.Len()%4 != 0 {
			dt.WriteByte(0)
		}
	}

	var walk func(n node)
	walk = func(n node) {
		cell(0x1)
		dt.WriteString(n.name)
		dt.WriteByte(0)
		pad()
		for _, p := range n.props {
			off, ok := offs[p.name]
			if !ok {
				off = uint32(strs.Len())
				offs[p.name] = off
				strs.WriteString(p.name)
				strs.WriteByte(0)
			}
			cell(0x3)
			cell(uint32(len(p.value)))
			cell(off)
			dt.Write(p.value)
			pad()
		}
		for _, kid := range n.kids {
			walk(kid)
		}
		cell(0x2)
	}
	walk(root)
	cell(0x9)

	const (
		hdrSize = 40
		rsvSize = 16
	)
	var (
		offStruct  = uint32(hdrSize + rsvSize)
		offStrings = offStruct + uint32(dt.Len())
		total      = offStrings + uint32(strs.Len())
		blob       = new(bytes.Buffer)
	)
	for _, v := range []uint32{
		magic, total, offStruct, offStrings, hdrSize,
		17, 16, 0, uint32(strs.Len()), uint32(dt.Len()),
	} {
		_ = binary.Write(blob, binary.BigEndian, v)
	}
	blob.Write(make([]byte, rsvSize))
	blob.Write(dt.Bytes())
	blob.Write(strs.Bytes())
	return blob.Bytes()
}

func testTree() node {
	return node{
		props: []prop{
			{"#address-cells", u32s(2)},
			{"#size-cells", u32s(2)},
			{"compatible", str("bst,a1000b")},
		},
		kids: []node{
			{
				name: "soc",
				props: []prop{
					{"#address-cells", u32s(1)},
					{"#size-cells", u32s(1)},
				},
				kids: []node{
					{
						name: "reset-controller@20000000",
						props: []prop{
							{"compatible", str("bst,a1000b-rstc")},
							{"status", str("disabled")},
							{"reg", u32s(0x20000000, 0x100)},
						},
					},
					{
						name: "reset-controller@33002000",
						props: []prop{
							{"compatible", str("bst,a1000b-rstc", "syscon")},
							{"reg", u32s(
								0x33002000, 0x100,
								0x3300e000, 0x10,
								0x20020000, 0x20,
							)},
							{"#reset-cells", u32s(1)},
							{"nr-resets", u32s(50)},
							{"status", str("okay")},
						},
					},
				},
			},
			{
				name: "timer@1",
				props: []prop{
					{"compatible", str("arm,armv8-timer")},
					{"reg", u32s(0x0, 0x1000, 0x0, 0x100)},
				},
			},
		},
	}
}

func TestFind(t *testing.T) {
	blob := encode(testTree())

	for _, tc := range []struct {
		compat string
		want   Node
	}{
		{
			compat: "bst,a1000b-rstc",
			want: Node{
				Name: "reset-controller@33002000",
				Regions: []devmem.Region{
					{Base: 0x33002000, Size: 0x100},
					{Base: 0x3300e000, Size: 0x10},
					{Base: 0x20020000, Size: 0x20},
				},
				NumResets: 50,
			},
		},
		{
			compat: "syscon",
			want: Node{
				Name: "reset-controller@33002000",
				Regions: []devmem.Region{
					{Base: 0x33002000, Size: 0x100},
					{Base: 0x3300e000, Size: 0x10},
					{Base: 0x20020000, Size: 0x20},
				},
				NumResets: 50,
			},
		},
		{
			compat: "arm,armv8-timer",
			want: Node{
				Name:    "timer@1",
				Regions: []devmem.Region{{Base: 0x1000, Size: 0x100}},
			},
		},
	} {
		t.Run(tc.compat, func(t *testing.T) {
			got, err := Find(blob, tc.compat)
			if err != nil {
				t.Fatalf("could not find node: %+v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid node:\ngot= %+v\nwant=%+v", got, tc.want)
			}
		})
	}
}

func TestFindFail(t *testing.T) {
	blob := encode(testTree())

	bad := encode(node{
		kids: []node{{
			name: "rstc",
			props: []prop{
				{"compatible", str("bst,a1000b-rstc")},
				{"reg", u32s(0x1, 0x2)},
			},
		}},
	})

	for _, tc := range []struct {
		name   string
		blob   []byte
		compat string
		want   string
	}{
		{
			name:   "no-match",
			blob:   blob,
			compat: "bst,a1000b-clk",
			want:   `dtb: no node compatible with "bst,a1000b-clk"`,
		},
		{
			name:   "no-header",
			blob:   []byte("not a dtb"),
			compat: "bst,a1000b-rstc",
			want:   "dtb: invalid device tree header",
		},
		{
			name:   "truncated",
			blob:   blob[:len(blob)/2],
			compat: "bst,a1000b-rstc",
			want:   "dtb: could not parse device tree",
		},
		{
			name:   "invalid-reg",
			blob:   bad,
			compat: "bst,a1000b-rstc",
			want:   `dtb: node "rstc": invalid reg property (len=8)`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Find(tc.blob, tc.compat)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := err.Error(); !strings.HasPrefix(got, tc.want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "board.dtb")
	err := os.WriteFile(fname, encode(testTree()), 0644)
	if err != nil {
		t.Fatalf("could not write dtb: %+v", err)
	}

	node, err := Load(fname, "bst,a1000b-rstc")
	if err != nil {
		t.Fatalf("could not load dtb: %+v", err)
	}
	if got, want := len(node.Regions), 3; got != want {
		t.Fatalf("invalid number of regions: got=%d, want=%d", got, want)
	}

	_, err = Load(filepath.Join(t.TempDir(), "not-there.dtb"), "bst,a1000b-rstc")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
