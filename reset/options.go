// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reset

import (
	"log"
	"os"
	"time"
)

// DefaultHoldTime is the time a pulsed line is held in, and then out of, reset.
const DefaultHoldTime = 1 * time.Millisecond

type config struct {
	msg   *log.Logger
	hold  time.Duration
	sleep func(time.Duration)
}

func newConfig() config {
	return config{
		msg:   log.New(os.Stdout, "reset: ", 0),
		hold:  DefaultHoldTime,
		sleep: time.Sleep,
	}
}

// Option configures a Controller.
type Option func(*config)

// WithLogger sets the logger used to report failed operations.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithHoldTime sets the hold time used by Controller.Reset.
func WithHoldTime(d time.Duration) Option {
	return func(cfg *config) {
		cfg.hold = d
	}
}
