//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fds

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type socketTriplet struct {
	domain int
	typ    int
	proto  int
}

var socketTriplets = []socketTriplet{
	{unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP},
	{unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP},
	{unix.AF_INET6, unix.SOCK_STREAM, unix.IPPROTO_TCP},
	{unix.AF_INET6, unix.SOCK_DGRAM, unix.IPPROTO_UDP},
	{unix.AF_UNIX, unix.SOCK_STREAM, 0},
	{unix.AF_UNIX, unix.SOCK_DGRAM, 0},
	{unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE},
}

const sockFlags = unix.SOCK_NONBLOCK | unix.SOCK_CLOEXEC

// openSockets opens params.Sockets sockets of each triplet. Families
// the kernel refuses are skipped.
func openSockets(pool *Pool, params *Params) error {
	var result *multierror.Error
	for _, t := range socketTriplets {
		for i := 0; i < params.Sockets; i++ {
			fd, err := unix.Socket(t.domain, t.typ|sockFlags, t.proto)
			if err != nil {
				result = multierror.Append(result,
					errors.Wrapf(err, "socket(%d, %d, %d)",
						t.domain, t.typ, t.proto))
				break
			}
			pool.add(NewRawFD(fd, KindSocket))
		}
	}
	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|sockFlags, 0)
	if err != nil {
		result = multierror.Append(result, errors.Wrap(err, "socketpair"))
	} else {
		pool.add(NewRawFD(pair[0], KindSocket))
		pool.add(NewRawFD(pair[1], KindSocket))
	}
	return result.ErrorOrNil()
}
