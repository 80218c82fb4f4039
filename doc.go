// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rstc holds code to drive hardware reset-line controllers.
//
// Reset lines are mapped onto bits of memory-mapped 32-bit registers:
//   - package reset holds the line map and the controller core,
//   - package devmem gives access to the registers through /dev/mem,
//   - package dtb locates the controller registers in a device tree blob,
//   - package rstdb reads line tables from the configuration database,
//   - package ctlsrv exposes a controller over the network.
package rstc // import "github.com/go-lpc/rstc"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of rstc and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/rstc"
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
