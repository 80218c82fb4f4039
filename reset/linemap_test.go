// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestLineMap(t *testing.T) {
	lmap, err := NewLineMap([]Line{
		{ID: 7, Descriptor: Descriptor{Offset: 0x14, Bit: 3, Polarity: ActiveHigh}},
		{ID: 1, Descriptor: Descriptor{Offset: 0x10, Bit: 1, Polarity: ActiveHigh}},
		{ID: 0, Descriptor: Descriptor{Offset: 0x10, Bit: 0, Polarity: ActiveLow}},
		{ID: 4, Descriptor: Descriptor{Offset: 0x10, Bit: 31, Polarity: ActiveLow, LongHold: true}},
	})
	if err != nil {
		t.Fatalf("could not create line map: %+v", err)
	}

	if got, want := lmap.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	d, err := lmap.Resolve(4)
	if err != nil {
		t.Fatalf("could not resolve line 4: %+v", err)
	}
	if got, want := d, (Descriptor{Offset: 0x10, Bit: 31, Polarity: ActiveLow, LongHold: true}); got != want {
		t.Fatalf("invalid descriptor: got=%#v, want=%#v", got, want)
	}

	_, err = lmap.Resolve(9999)
	if !errors.Is(err, ErrUnknownLine) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrUnknownLine)
	}

	if got, want := lmap.LinesSharing(0x10), []ID{0, 1, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid lines sharing 0x10: got=%v, want=%v", got, want)
	}
	if got, want := lmap.LinesSharing(0x14), []ID{7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid lines sharing 0x14: got=%v, want=%v", got, want)
	}
	if got := lmap.LinesSharing(0x18); len(got) != 0 {
		t.Fatalf("invalid lines sharing 0x18: got=%v", got)
	}

	if got, want := lmap.Offsets(), []uint32{0x10, 0x14}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid offsets: got=%v, want=%v", got, want)
	}

	var ids []ID
	for _, ln := range lmap.Lines() {
		ids = append(ids, ln.ID)
	}
	if got, want := ids, []ID{0, 1, 4, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid lines: got=%v, want=%v", got, want)
	}

	// returned slices are copies.
	lmap.LinesSharing(0x10)[0] = 42
	lmap.Offsets()[0] = 42
	if got, want := lmap.LinesSharing(0x10)[0], ID(0); got != want {
		t.Fatalf("line map was modified: got=%d, want=%d", got, want)
	}
}

func TestLineMapInvalid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		lines []Line
		want  string
	}{
		{
			name: "dup-id",
			lines: []Line{
				{ID: 1, Descriptor: Descriptor{Offset: 0x10, Bit: 1}},
				{ID: 1, Descriptor: Descriptor{Offset: 0x14, Bit: 1}},
			},
			want: "reset: invalid line table: duplicate line 1",
		},
		{
			name: "dup-bit",
			lines: []Line{
				{ID: 1, Descriptor: Descriptor{Offset: 0x10, Bit: 1}},
				{ID: 2, Descriptor: Descriptor{Offset: 0x10, Bit: 1, Polarity: ActiveLow}},
			},
			want: "reset: invalid line table: lines 1 and 2 share bit 1 of register 0x10",
		},
		{
			name: "invalid-bit",
			lines: []Line{
				{ID: 3, Descriptor: Descriptor{Offset: 0x10, Bit: 32}},
			},
			want: "reset: invalid line table: line 3: invalid bit 32",
		},
		{
			name: "unaligned",
			lines: []Line{
				{ID: 3, Descriptor: Descriptor{Offset: 0x11, Bit: 2}},
			},
			want: "reset: invalid line table: line 3: unaligned register offset 0x11",
		},
		{
			name: "invalid-polarity",
			lines: []Line{
				{ID: 3, Descriptor: Descriptor{Offset: 0x10, Bit: 2, Polarity: 5}},
			},
			want: "reset: invalid line table: line 3: invalid polarity Polarity(5)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLineMap(tc.lines)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("invalid error kind: %+v", err)
			}
			if got, want := err.Error(), tc.want; got != want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestLineMapCheck(t *testing.T) {
	lmap, err := NewLineMap([]Line{
		{ID: 0, Descriptor: Descriptor{Offset: 0x10, Bit: 0}},
		{ID: 49, Descriptor: Descriptor{Offset: 0x10, Bit: 1}},
		{ID: 7, Descriptor: Descriptor{Offset: 0x14, Bit: 1}},
	})
	if err != nil {
		t.Fatalf("could not create line map: %+v", err)
	}

	for _, tc := range []struct {
		n    int
		want string
	}{
		{n: 0},
		{n: -1},
		{n: 50},
		{n: 100},
		{n: 49, want: "reset: invalid line table: line 49 out of range (controller has 49 lines)"},
		{n: 8, want: "reset: invalid line table: line 49 out of range (controller has 8 lines)"},
	} {
		t.Run(fmt.Sprintf("n=%d", tc.n), func(t *testing.T) {
			err := lmap.Check(tc.n)
			switch {
			case tc.want == "":
				if err != nil {
					t.Fatalf("could not check line map: %+v", err)
				}
			default:
				if !errors.Is(err, ErrInvalidTable) {
					t.Fatalf("invalid error kind: %+v", err)
				}
				if got, want := err.Error(), tc.want; got != want {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
				}
			}
		})
	}

	empty, err := NewLineMap(nil)
	if err != nil {
		t.Fatalf("could not create empty line map: %+v", err)
	}
	if err := empty.Check(1); err != nil {
		t.Fatalf("could not check empty line map: %+v", err)
	}
}

func TestDescriptor(t *testing.T) {
	for _, tc := range []struct {
		d    Descriptor
		reg  uint32
		st   State
		want uint32
	}{
		{Descriptor{Bit: 0, Polarity: ActiveHigh}, 0x0, Asserted, 0x1},
		{Descriptor{Bit: 0, Polarity: ActiveHigh}, 0x1, Deasserted, 0x0},
		{Descriptor{Bit: 0, Polarity: ActiveLow}, 0x0, Asserted, 0x0},
		{Descriptor{Bit: 0, Polarity: ActiveLow}, 0x0, Deasserted, 0x1},
		{Descriptor{Bit: 31, Polarity: ActiveHigh}, 0x1, Asserted, 0x80000001},
		{Descriptor{Bit: 4, Polarity: ActiveLow}, 0xffffffff, Asserted, 0xffffffef},
	} {
		got := tc.d.apply(tc.reg, tc.st)
		if got != tc.want {
			t.Fatalf("%+v: apply(0x%x, %v): got=0x%x, want=0x%x", tc.d, tc.reg, tc.st, got, tc.want)
		}
		if st := tc.d.state(got); st != tc.st {
			t.Fatalf("%+v: state(0x%x): got=%v, want=%v", tc.d, got, st, tc.st)
		}
	}
}

func TestPolarity(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want Polarity
		err  bool
	}{
		{s: "active-high", want: ActiveHigh},
		{s: "Active-Low", want: ActiveLow},
		{s: " low ", want: ActiveLow},
		{s: "high", want: ActiveHigh},
		{s: "zero", err: true},
	} {
		t.Run(tc.s, func(t *testing.T) {
			got, err := ParsePolarity(tc.s)
			switch {
			case tc.err:
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			case err != nil:
				t.Fatalf("could not parse polarity: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid polarity: got=%v, want=%v", got, tc.want)
			}
			if got, want := got.String(), tc.want.String(); got != want {
				t.Fatalf("invalid string: got=%q, want=%q", got, want)
			}
		})
	}
}
