// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctlsrv

import (
	"errors"
	"fmt"

	"github.com/go-lpc/rstc/reset"
)

// Request is a command sent to the server.
type Request struct {
	Name string `json:"name"` // assert, deassert, status, reset or lines
	Line uint32 `json:"line"`
}

// Reply is the server response to a Request.
type Reply struct {
	Msg   string     `json:"msg"`            // "ok" or an error message
	Kind  string     `json:"kind,omitempty"` // error kind
	State string     `json:"state,omitempty"`
	Lines []LineInfo `json:"lines,omitempty"`
}

// LineInfo describes a line of the controller's table.
type LineInfo struct {
	ID       uint32 `json:"id"`
	Offset   uint32 `json:"offset"`
	Bit      uint8  `json:"bit"`
	Polarity string `json:"polarity"`
	LongHold bool   `json:"long_hold,omitempty"`
}

const (
	kindUnknownLine  = "unknown-line"
	kindFatalMapping = "fatal-mapping"
)

func kindOf(err error) string {
	switch {
	case errors.Is(err, reset.ErrUnknownLine):
		return kindUnknownLine
	case errors.Is(err, reset.ErrFatalMapping):
		return kindFatalMapping
	}
	return ""
}

// remoteError is an error reported by the server.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }

func errorFrom(rep Reply) error {
	if rep.Msg == "ok" {
		return nil
	}
	e := &remoteError{msg: rep.Msg}
	switch rep.Kind {
	case kindUnknownLine:
		e.err = reset.ErrUnknownLine
	case kindFatalMapping:
		e.err = reset.ErrFatalMapping
	}
	return e
}

func parseState(s string) (reset.State, error) {
	switch s {
	case reset.Asserted.String():
		return reset.Asserted, nil
	case reset.Deasserted.String():
		return reset.Deasserted, nil
	}
	return 0, fmt.Errorf("ctlsrv: invalid line state %q", s)
}

func infoFrom(ln reset.Line) LineInfo {
	return LineInfo{
		ID:       uint32(ln.ID),
		Offset:   ln.Offset,
		Bit:      ln.Bit,
		Polarity: ln.Polarity.String(),
		LongHold: ln.LongHold,
	}
}

func lineFrom(info LineInfo) (reset.Line, error) {
	pol, err := reset.ParsePolarity(info.Polarity)
	if err != nil {
		return reset.Line{}, err
	}
	return reset.Line{
		ID: reset.ID(info.ID),
		Descriptor: reset.Descriptor{
			Offset:   info.Offset,
			Bit:      info.Bit,
			Polarity: pol,
			LongHold: info.LongHold,
		},
	}, nil
}
