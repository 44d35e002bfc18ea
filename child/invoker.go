//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package child

import (
	"golang.org/x/sys/unix"

	"github.com/slox3r/trinity/syscalls"
)

// Invoker performs a synthesized system call and returns its raw
// result: the return value or a negated errno.
type Invoker interface {
	Invoke(desc *syscalls.Descriptor, args [syscalls.MaxArgs]uint64) int64
}

var (
	_ Invoker = DryRun{}
	_ Invoker = Live{}
)

// DryRun returns -ENOSYS without entering the kernel.
type DryRun struct{}

// Invoke implements Invoker.Invoke.
func (DryRun) Invoke(desc *syscalls.Descriptor,
	args [syscalls.MaxArgs]uint64) int64 {

	return -int64(unix.ENOSYS)
}

// Live invokes the real system call.
type Live struct{}

// Invoke implements Invoker.Invoke.
func (Live) Invoke(desc *syscalls.Descriptor,
	args [syscalls.MaxArgs]uint64) int64 {

	r1, _, errno := unix.Syscall6(desc.Number,
		uintptr(args[0]), uintptr(args[1]), uintptr(args[2]),
		uintptr(args[3]), uintptr(args[4]), uintptr(args[5]))
	if errno != 0 {
		return -int64(errno)
	}
	return int64(r1)
}

// NewInvoker returns Live if live is set and DryRun otherwise.
func NewInvoker(live bool) Invoker {
	if live {
		return Live{}
	}
	return DryRun{}
}
