// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"fmt"
	"sync/atomic"
)

// Bus gives ordered access to 32-bit registers at byte offsets from a
// base address.
//
// Implementations must perform each access as a single word load or
// store that is not reordered with respect to other accesses.
// Accesses outside the mapped region must fail with an error wrapping
// ErrFatalMapping.
type Bus interface {
	Read32(off uint32) (uint32, error)
	Write32(off uint32, v uint32) error
}

// Mem is an in-memory register bank.
type Mem struct {
	regs []uint32
}

// NewMem returns a zeroed register bank spanning size bytes.
func NewMem(size int) *Mem {
	return &Mem{regs: make([]uint32, size/4)}
}

func (m *Mem) Read32(off uint32) (uint32, error) {
	p, err := m.word(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

func (m *Mem) Write32(off uint32, v uint32) error {
	p, err := m.word(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, v)
	return nil
}

func (m *Mem) word(off uint32) (*uint32, error) {
	i := int(off / 4)
	if off%4 != 0 || i >= len(m.regs) {
		return nil, fmt.Errorf("reset: register 0x%x outside 0x%x bytes bank: %w",
			off, 4*len(m.regs), ErrFatalMapping,
		)
	}
	return &m.regs[i], nil
}

var (
	_ Bus = (*Mem)(nil)
)
