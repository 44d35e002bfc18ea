//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

var retErrnoTests = []struct {
	ret   int64
	errno Errno
}{
	{
		ret:   0,
		errno: 0,
	},
	{
		ret:   4096,
		errno: 0,
	},
	{
		ret:   -int64(unix.EINVAL),
		errno: Errno(unix.EINVAL),
	},
	{
		ret:   -int64(unix.ENOSYS),
		errno: Errno(unix.ENOSYS),
	},
	{
		ret:   -5000,
		errno: 0,
	},
}

func TestRetErrno(t *testing.T) {
	for i, test := range retErrnoTests {
		errno := RetErrno(test.ret)
		if errno != test.errno {
			t.Errorf("test-%v: RetErrno(%v)=%v, expected %v\n",
				i, test.ret, errno, test.errno)
		}
	}
}

func TestErrnoString(t *testing.T) {
	s := Errno(unix.EBADF).String()
	if !strings.HasPrefix(s, "EBADF ") {
		t.Errorf("EBADF=%q", s)
	}
	s = Errno(4000).String()
	if s != "{Errno 4000}" {
		t.Errorf("Errno(4000)=%q", s)
	}
}
