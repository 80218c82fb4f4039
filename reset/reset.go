// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reset drives reset lines packed as bits into memory-mapped
// 32-bit hardware registers.
//
// A Controller resolves a line ID to its register offset, bit and
// polarity through an immutable LineMap, and updates the register with a
// read-modify-write cycle serialized per register offset. Lines living in
// different registers never contend.
package reset // import "github.com/go-lpc/rstc/reset"

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLine is returned when a line ID is not part of the line table.
	ErrUnknownLine = errors.New("reset: unknown line")

	// ErrFatalMapping is returned when a register access falls outside
	// the mapped register space.
	ErrFatalMapping = errors.New("reset: fatal register mapping")

	// ErrInvalidTable is returned when a line table violates the
	// one-descriptor-per-line or one-line-per-bit invariants.
	ErrInvalidTable = errors.New("reset: invalid line table")
)

// ID identifies a reset line within a controller.
type ID uint32

// Polarity describes which bit value holds a line in reset.
type Polarity uint8

const (
	ActiveHigh Polarity = iota // bit=1 asserts
	ActiveLow                  // bit=0 asserts
)

func (p Polarity) String() string {
	switch p {
	case ActiveHigh:
		return "active-high"
	case ActiveLow:
		return "active-low"
	default:
		return fmt.Sprintf("Polarity(%d)", uint8(p))
	}
}

// ParsePolarity parses the text form of a polarity.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active-high", "high":
		return ActiveHigh, nil
	case "active-low", "low":
		return ActiveLow, nil
	}
	return 0, fmt.Errorf("reset: invalid polarity %q", s)
}

// State is the logical state of a reset line.
type State uint8

const (
	Deasserted State = iota
	Asserted
)

func (st State) String() string {
	switch st {
	case Deasserted:
		return "deasserted"
	case Asserted:
		return "asserted"
	default:
		return fmt.Sprintf("State(%d)", uint8(st))
	}
}

// Descriptor locates a reset line in the register space.
type Descriptor struct {
	Offset   uint32   // byte offset of the register from the base address
	Bit      uint8    // bit position, in [0,31]
	Polarity Polarity // value that asserts the line
	LongHold bool     // line needs twice the hold time when pulsed
}

func (d Descriptor) mask() uint32 { return 1 << d.Bit }

// apply returns reg with the descriptor's bit driven to state st.
func (d Descriptor) apply(reg uint32, st State) uint32 {
	set := st == Asserted
	if d.Polarity == ActiveLow {
		set = !set
	}
	if set {
		return reg | d.mask()
	}
	return reg &^ d.mask()
}

// state extracts the line state from the register value reg.
func (d Descriptor) state(reg uint32) State {
	set := reg&d.mask() != 0
	if set == (d.Polarity == ActiveHigh) {
		return Asserted
	}
	return Deasserted
}

// Line is one entry of a line table.
type Line struct {
	ID ID
	Descriptor
}

func (ln Line) String() string {
	return fmt.Sprintf(
		"line=%d offset=0x%x bit=%d polarity=%v long-hold=%v",
		ln.ID, ln.Offset, ln.Bit, ln.Polarity, ln.LongHold,
	)
}
