// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctlsrv

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/go-lpc/rstc/reset"
)

// Client sends reset commands to a Server.
// A Client is safe for concurrent use; commands are sent one at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the server listening on addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ctlsrv: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Assert(id reset.ID) error {
	_, err := c.send(Request{Name: "assert", Line: uint32(id)})
	return err
}

func (c *Client) Deassert(id reset.ID) error {
	_, err := c.send(Request{Name: "deassert", Line: uint32(id)})
	return err
}

func (c *Client) Reset(id reset.ID) error {
	_, err := c.send(Request{Name: "reset", Line: uint32(id)})
	return err
}

func (c *Client) Status(id reset.ID) (reset.State, error) {
	rep, err := c.send(Request{Name: "status", Line: uint32(id)})
	if err != nil {
		return reset.Deasserted, err
	}
	return parseState(rep.State)
}

func (c *Client) Lines() ([]reset.Line, error) {
	rep, err := c.send(Request{Name: "lines"})
	if err != nil {
		return nil, err
	}
	lines := make([]reset.Line, len(rep.Lines))
	for i, info := range rep.Lines {
		lines[i], err = lineFrom(info)
		if err != nil {
			return nil, fmt.Errorf("ctlsrv: invalid line %d: %w", info.ID, err)
		}
	}
	return lines, nil
}

// Do sends the raw command name for line id.
func (c *Client) Do(name string, id reset.ID) (Reply, error) {
	return c.send(Request{Name: name, Line: uint32(id)})
}

func (c *Client) send(req Request) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rep Reply
	err := c.enc.Encode(req)
	if err != nil {
		return rep, fmt.Errorf("ctlsrv: could not send %q request: %w", req.Name, err)
	}

	err = c.dec.Decode(&rep)
	if err != nil {
		return rep, fmt.Errorf("ctlsrv: could not read %q reply: %w", req.Name, err)
	}

	return rep, errorFrom(rep)
}
