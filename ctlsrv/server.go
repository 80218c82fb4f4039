// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctlsrv exposes a reset controller over a JSON/TCP connection.
package ctlsrv // import "github.com/go-lpc/rstc/ctlsrv"

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/go-lpc/rstc/reset"
)

type controller interface {
	Assert(id reset.ID) error
	Deassert(id reset.ID) error
	Status(id reset.ID) (reset.State, error)
	Reset(id reset.ID) error
	Lines() []reset.Line
}

var _ controller = (*reset.Controller)(nil)

// Server serves reset commands to remote clients.
type Server struct {
	ctl net.Listener
	msg *log.Logger
	dev controller

	wg    sync.WaitGroup
	mu    sync.Mutex
	quit  bool
	conns map[net.Conn]struct{} // live client connections
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(msg *log.Logger) Option {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// Serve listens on addr and serves commands for dev until the listener fails.
func Serve(addr string, dev controller, opts ...Option) error {
	srv, err := New(addr, dev, opts...)
	if err != nil {
		return fmt.Errorf("could not create rst-srv server: %w", err)
	}
	return srv.Serve()
}

// New creates a server listening on addr.
func New(addr string, dev controller, opts ...Option) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create rst-srv server on %q: %w", addr, err)
	}

	srv := &Server{
		ctl:   ctl,
		msg:   log.New(os.Stdout, "rst-srv: ", 0),
		dev:   dev,
		conns: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr {
	return srv.ctl.Addr()
}

// Serve accepts connections and serves each one in its own goroutine.
// Serve returns nil once the server has been closed.
func (srv *Server) Serve() error {
	defer srv.wg.Wait()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("could not accept connection: %w", err)
		}

		if !srv.track(conn) {
			_ = conn.Close()
			continue
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			defer srv.untrack(conn)
			srv.handle(conn)
		}()
	}
}

// Close stops accepting new connections and closes all client connections.
func (srv *Server) Close() error {
	srv.mu.Lock()
	srv.quit = true
	for conn := range srv.conns {
		_ = conn.Close()
	}
	srv.mu.Unlock()

	return srv.ctl.Close()
}

func (srv *Server) track(conn net.Conn) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.quit {
		return false
	}
	srv.conns[conn] = struct{}{}
	return true
}

func (srv *Server) untrack(conn net.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.conns, conn)
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)

	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(enc, Reply{}, err)
			return
		}

		rep, err := srv.process(req)
		if err != nil {
			srv.msg.Printf("could not run %q (line=%d): %+v", req.Name, req.Line, err)
		}
		srv.reply(enc, rep, err)
	}
}

func (srv *Server) process(req Request) (Reply, error) {
	var (
		rep Reply
		err error
		id  = reset.ID(req.Line)
	)

	switch strings.ToLower(req.Name) {
	case "assert":
		err = srv.dev.Assert(id)

	case "deassert":
		err = srv.dev.Deassert(id)

	case "reset":
		err = srv.dev.Reset(id)

	case "status":
		var st reset.State
		st, err = srv.dev.Status(id)
		if err == nil {
			rep.State = st.String()
		}

	case "lines":
		lines := srv.dev.Lines()
		rep.Lines = make([]LineInfo, len(lines))
		for i, ln := range lines {
			rep.Lines[i] = infoFrom(ln)
		}

	default:
		err = fmt.Errorf("unknown command %q", req.Name)
	}

	return rep, err
}

func (srv *Server) reply(enc *json.Encoder, rep Reply, err error) {
	rep.Msg = "ok"
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
		rep.Kind = kindOf(err)
		rep.State = ""
		rep.Lines = nil
	}

	_ = enc.Encode(rep)
}
