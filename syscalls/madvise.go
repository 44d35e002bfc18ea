//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// Madvise describes madvise(start, len, advice).
var Madvise = &Descriptor{
	Name:   "madvise",
	Number: unix.SYS_MADVISE,
	Args: []ArgSpec{
		{
			Name: "start",
			Type: ArgMmap,
		},
		{
			Name: "len",
		},
		{
			Name: "advice",
			Type: ArgList,
			List: []uint64{
				unix.MADV_NORMAL, unix.MADV_RANDOM, unix.MADV_SEQUENTIAL,
				unix.MADV_WILLNEED, unix.MADV_DONTNEED, unix.MADV_FREE,
				unix.MADV_REMOVE, unix.MADV_DONTFORK, unix.MADV_DOFORK,
				unix.MADV_MERGEABLE, unix.MADV_UNMERGEABLE,
				unix.MADV_HUGEPAGE, unix.MADV_NOHUGEPAGE,
			},
		},
	},
	Group:    GroupVM,
	Sanitise: sanitiseMadvise,
}

func sanitiseMadvise(regs Registers, env *Env) error {
	m, ok := env.LookupMap(regs.Arg(0))
	if ok {
		regs.SetArg(1, env.PageLength(m.Size))
	}
	return nil
}
