//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxErrno is the largest errno value a raw syscall return encodes.
const MaxErrno = 4095

// Errno defines error numbers.
type Errno int32

func (err Errno) String() string {
	name := unix.ErrnoName(unix.Errno(err))
	if len(name) > 0 {
		return name + " " + err.Description()
	}
	return fmt.Sprintf("{Errno %d}", int32(err))
}

// Description returns a short description about the error code.
func (err Errno) Description() string {
	return unix.Errno(err).Error()
}

// RetErrno returns the errno encoded in the raw return value, or 0 if
// the value is not an error return.
func RetErrno(ret int64) Errno {
	if ret < 0 && ret >= -MaxErrno {
		return Errno(-ret)
	}
	return 0
}
