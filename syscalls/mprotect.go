//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// Mprotect describes mprotect(start, len, prot).
var Mprotect = &Descriptor{
	Name:   "mprotect",
	Number: unix.SYS_MPROTECT,
	Args: []ArgSpec{
		{
			Name: "start",
			Type: ArgMmap,
		},
		{
			Name: "len",
		},
		{
			Name: "prot",
			Type: ArgList,
			List: []uint64{
				unix.PROT_NONE,
				unix.PROT_READ,
				unix.PROT_READ | unix.PROT_WRITE,
				unix.PROT_READ | unix.PROT_EXEC,
				unix.PROT_WRITE,
				unix.PROT_EXEC,
				unix.PROT_READ | unix.PROT_GROWSDOWN,
				unix.PROT_READ | unix.PROT_GROWSUP,
			},
		},
	},
	Group:    GroupVM,
	Sanitise: sanitiseMprotect,
	Post:     postMprotect,
}

func sanitiseMprotect(regs Registers, env *Env) error {
	m, ok := env.LookupMap(regs.Arg(0))
	if !ok {
		return nil
	}
	regs.SetArg(1, m.Size)
	regs.SetScratch(m.Ptr)
	return nil
}

func postMprotect(regs Registers, env *Env, ret int64) {
	if ret != 0 || regs.Scratch() == 0 || env.Maps == nil {
		return
	}
	env.Maps.SetProt(regs.Scratch(), int(regs.Arg(2)))
}
