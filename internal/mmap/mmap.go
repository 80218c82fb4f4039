// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides ordered 32-bit access to memory-mapped registers.
package mmap // import "github.com/go-lpc/rstc/internal/mmap"

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

type Handle struct {
	data []byte
}

// Map maps n bytes of the file descriptor fd, starting at offset off,
// for shared read/write access.
func Map(fd int, off int64, n int) (*Handle, error) {
	data, err := unix.Mmap(
		fd, off, n,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map 0x%x bytes at 0x%x: %w", n, off, err)
	}
	if len(data) != n {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("mmap: invalid mmap'd data: %d", len(data))
	}
	return HandleFrom(data), nil
}

func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the length of the underlying memory-mapped file.
func (h *Handle) Len() int {
	return len(h.data)
}

// Load32 atomically loads the 32-bit word at byte offset off.
func (h *Handle) Load32(off int64) (uint32, error) {
	p, err := h.word("Load32", off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Store32 atomically stores v into the 32-bit word at byte offset off.
func (h *Handle) Store32(off int64, v uint32) error {
	p, err := h.word("Store32", off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, v)
	return nil
}

func (h *Handle) word(op string, off int64) (*uint32, error) {
	if h == nil {
		return nil, os.ErrInvalid
	}

	if h.data == nil {
		return nil, errClosed
	}
	if off < 0 || off%4 != 0 || int64(len(h.data)) < off+4 {
		return nil, fmt.Errorf("mmap: invalid %s offset %d", op, off)
	}
	return (*uint32)(unsafe.Pointer(&h.data[off])), nil
}
