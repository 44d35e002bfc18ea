//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// L is the harness-internal logger. Fuzzing diagnostics go through a
// Router instead.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name:   "trinity",
		Output: os.Stderr,
	})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// SetLevel sets the level of L by name. Unknown names leave the level
// unchanged.
func SetLevel(name string) {
	level := hclog.LevelFromString(name)
	if level != hclog.NoLevel {
		L.SetLevel(level)
	}
}
