//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fds

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func openPipes(pool *Pool, params *Params) error {
	for i := 0; i < params.Pipes; i++ {
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
			return errors.Wrap(err, "pipe2")
		}
		pool.add(NewRawFD(p[0], KindPipe))
		pool.add(NewRawFD(p[1], KindPipe))
	}
	return nil
}

func openEventFD(pool *Pool, params *Params) error {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return errors.Wrap(err, "eventfd")
	}
	pool.add(NewRawFD(fd, KindEventFD))
	return nil
}

// openEpoll creates an epoll instance watching the descriptors opened
// so far.
func openEpoll(pool *Pool, params *Params) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return errors.Wrap(err, "epoll_create1")
	}
	for _, fd := range pool.fds {
		if fd.Kind() == KindFile || fd.Kind() == KindDevNull {
			// Regular files are not pollable.
			continue
		}
		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd.Fd()),
		}
		unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd.Fd(), &event)
	}
	pool.add(NewRawFD(epfd, KindEpoll))
	return nil
}
