// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"fmt"
	"sort"
)

// LineMap translates line IDs into register descriptors.
// A LineMap is immutable once built.
type LineMap struct {
	lines  map[ID]Descriptor
	shared map[uint32][]ID // register offset -> lines packed into it
	ids    []ID
	offs   []uint32
}

// NewLineMap builds a line map from the provided table.
func NewLineMap(lines []Line) (*LineMap, error) {
	lmap := &LineMap{
		lines:  make(map[ID]Descriptor, len(lines)),
		shared: make(map[uint32][]ID),
	}

	type slot struct {
		off uint32
		bit uint8
	}
	owner := make(map[slot]ID, len(lines))

	for _, ln := range lines {
		if _, dup := lmap.lines[ln.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate line %d", ErrInvalidTable, ln.ID)
		}
		if ln.Bit > 31 {
			return nil, fmt.Errorf("%w: line %d: invalid bit %d", ErrInvalidTable, ln.ID, ln.Bit)
		}
		if ln.Offset%4 != 0 {
			return nil, fmt.Errorf("%w: line %d: unaligned register offset 0x%x", ErrInvalidTable, ln.ID, ln.Offset)
		}
		if ln.Polarity != ActiveHigh && ln.Polarity != ActiveLow {
			return nil, fmt.Errorf("%w: line %d: invalid polarity %v", ErrInvalidTable, ln.ID, ln.Polarity)
		}
		k := slot{ln.Offset, ln.Bit}
		if id, dup := owner[k]; dup {
			return nil, fmt.Errorf(
				"%w: lines %d and %d share bit %d of register 0x%x",
				ErrInvalidTable, id, ln.ID, ln.Bit, ln.Offset,
			)
		}
		owner[k] = ln.ID

		lmap.lines[ln.ID] = ln.Descriptor
		lmap.shared[ln.Offset] = append(lmap.shared[ln.Offset], ln.ID)
		lmap.ids = append(lmap.ids, ln.ID)
	}

	sort.Slice(lmap.ids, func(i, j int) bool { return lmap.ids[i] < lmap.ids[j] })
	for off, ids := range lmap.shared {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		lmap.offs = append(lmap.offs, off)
	}
	sort.Slice(lmap.offs, func(i, j int) bool { return lmap.offs[i] < lmap.offs[j] })

	return lmap, nil
}

// Resolve returns the descriptor of the line id.
func (lmap *LineMap) Resolve(id ID) (Descriptor, error) {
	d, ok := lmap.lines[id]
	if !ok {
		return d, fmt.Errorf("%w: line %d", ErrUnknownLine, id)
	}
	return d, nil
}

// LinesSharing returns the sorted IDs of the lines packed into the
// register at offset off.
func (lmap *LineMap) LinesSharing(off uint32) []ID {
	ids := lmap.shared[off]
	o := make([]ID, len(ids))
	copy(o, ids)
	return o
}

// Offsets returns the sorted distinct register offsets of the map.
func (lmap *LineMap) Offsets() []uint32 {
	o := make([]uint32, len(lmap.offs))
	copy(o, lmap.offs)
	return o
}

// Lines returns the table, sorted by line ID.
func (lmap *LineMap) Lines() []Line {
	o := make([]Line, len(lmap.ids))
	for i, id := range lmap.ids {
		o[i] = Line{ID: id, Descriptor: lmap.lines[id]}
	}
	return o
}

// Len returns the number of lines in the map.
func (lmap *LineMap) Len() int { return len(lmap.ids) }

// Check verifies that the IDs of all lines are below n, the number of
// lines the controller provides. A non-positive n disables the check.
func (lmap *LineMap) Check(n int) error {
	if n <= 0 || len(lmap.ids) == 0 {
		return nil
	}
	if id := lmap.ids[len(lmap.ids)-1]; uint64(id) >= uint64(n) {
		return fmt.Errorf("%w: line %d out of range (controller has %d lines)", ErrInvalidTable, id, n)
	}
	return nil
}
