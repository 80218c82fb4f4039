// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rstc

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	const root = "github.com/go-lpc/rstc"
	for _, tc := range []struct {
		name string
		bi   *debug.BuildInfo
		vers string
		sum  string
	}{
		{name: "nil"},
		{
			name: "no-dep",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: "golang.org/x/sys", Version: "v0.7.0"},
			}},
		},
		{
			name: "dep",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.2.0", Sum: "h1:xyz"},
			}},
			vers: "v0.2.0",
			sum:  "h1:xyz",
		},
		{
			name: "replace-path-version",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.2.0", Replace: &debug.Module{
					Path: "example.com/rstc", Version: "v0.3.0", Sum: "h1:abc",
				}},
			}},
			vers: "example.com/rstc v0.3.0",
			sum:  "h1:abc",
		},
		{
			name: "replace-version",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.2.0", Replace: &debug.Module{
					Version: "v0.3.0", Sum: "h1:abc",
				}},
			}},
			vers: "v0.3.0",
			sum:  "h1:abc",
		},
		{
			name: "replace-path",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.2.0", Replace: &debug.Module{
					Path: "../rstc",
				}},
			}},
			vers: "../rstc",
		},
		{
			name: "replace-empty",
			bi: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.2.0", Replace: &debug.Module{}},
			}},
			vers: "v0.2.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(tc.bi)
			if vers != tc.vers {
				t.Fatalf("invalid version: got=%q, want=%q", vers, tc.vers)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
