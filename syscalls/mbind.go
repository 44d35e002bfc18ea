//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// Memory policy modes and flags from linux/mempolicy.h.
const (
	MPOL_DEFAULT    = 0
	MPOL_PREFERRED  = 1
	MPOL_BIND       = 2
	MPOL_INTERLEAVE = 3

	MPOL_F_STATIC_NODES   = 1 << 15
	MPOL_F_RELATIVE_NODES = 1 << 14
)

const (
	mbindMaxnodeAlign = 8
	mbindMaxnodeMin   = 2
	mbindMaxnodeMax   = 32
)

// Mbind describes mbind(start, len, mode, nmask, maxnode, flags).
var Mbind = &Descriptor{
	Name:   "mbind",
	Number: unix.SYS_MBIND,
	Args: []ArgSpec{
		{
			Name: "start",
			Type: ArgMmap,
		},
		{
			Name: "len",
		},
		{
			Name: "mode",
			Type: ArgList,
			List: []uint64{
				MPOL_DEFAULT, MPOL_BIND, MPOL_INTERLEAVE, MPOL_PREFERRED,
			},
		},
		{
			Name: "nmask",
			Type: ArgAddress,
		},
		{
			Name: "maxnode",
			Type: ArgRange,
			Low:  0,
			High: mbindMaxnodeMax,
		},
		{
			Name: "flags",
			Type: ArgList,
			List: []uint64{
				MPOL_F_STATIC_NODES, MPOL_F_RELATIVE_NODES,
			},
		},
	},
	Group:    GroupVM,
	Sanitise: sanitiseMbind,
}

func sanitiseMbind(regs Registers, env *Env) error {
	// Scratch keeps the synthesized address.
	regs.SetScratch(regs.Arg(0))

	m, ok := env.LookupMap(regs.Arg(0))
	if ok {
		regs.SetArg(0, m.Ptr)
		regs.SetArg(1, m.Size)
	}

	return env.Resample(regs, 4, maskMaxnode)
}

func maskMaxnode(v uint64) (uint64, bool) {
	v &^= mbindMaxnodeAlign - 1
	return v, v >= mbindMaxnodeMin && v <= mbindMaxnodeMax
}
