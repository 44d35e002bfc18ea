//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// EpollCtl describes epoll_ctl(epfd, op, fd, event).
var EpollCtl = &Descriptor{
	Name:   "epoll_ctl",
	Number: unix.SYS_EPOLL_CTL,
	Args: []ArgSpec{
		{
			Name: "epfd",
			Type: ArgFD,
		},
		{
			Name: "op",
			Type: ArgList,
			List: []uint64{
				unix.EPOLL_CTL_ADD, unix.EPOLL_CTL_MOD, unix.EPOLL_CTL_DEL,
			},
		},
		{
			Name: "fd",
			Type: ArgFD,
		},
		{
			Name: "event",
			Type: ArgAddress,
		},
	},
	Group: GroupVFS,
}
