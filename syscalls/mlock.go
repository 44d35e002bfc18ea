//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// Mlock describes mlock(addr, len).
var Mlock = &Descriptor{
	Name:   "mlock",
	Number: unix.SYS_MLOCK,
	Args: []ArgSpec{
		{
			Name: "addr",
			Type: ArgMmap,
		},
		{
			Name: "len",
		},
	},
	Group: GroupVM,
	Sanitise: func(regs Registers, env *Env) error {
		m, ok := env.LookupMap(regs.Arg(0))
		if ok {
			regs.SetArg(1, env.PageLength(m.Size))
		}
		return nil
	},
}
