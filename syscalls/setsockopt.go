//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"golang.org/x/sys/unix"
)

// Socket levels missing from x/sys/unix.
const (
	SOL_UDPLITE = 136
	SOL_DCCP    = 269
	SOL_RXRPC   = 272
	SOL_ALG     = 279
)

const (
	udpCork          = 1
	udpEncap         = 100
	udpliteSendCscov = 10
	udpliteRecvCscov = 11
)

const setsockoptMaxOptlen = 256

type sockoptLevel struct {
	level uint64
	opts  []uint64
}

var sockoptLevels = []sockoptLevel{
	{
		level: unix.SOL_SOCKET,
		opts: []uint64{
			unix.SO_DEBUG, unix.SO_REUSEADDR, unix.SO_DONTROUTE,
			unix.SO_BROADCAST, unix.SO_SNDBUF, unix.SO_RCVBUF,
			unix.SO_KEEPALIVE, unix.SO_OOBINLINE, unix.SO_LINGER,
			unix.SO_RCVLOWAT, unix.SO_SNDLOWAT, unix.SO_RCVTIMEO,
			unix.SO_SNDTIMEO, unix.SO_REUSEPORT, unix.SO_PASSCRED,
			unix.SO_MARK, unix.SO_BINDTODEVICE,
		},
	},
	{
		level: unix.IPPROTO_IP,
		opts: []uint64{
			unix.IP_TOS, unix.IP_TTL, unix.IP_HDRINCL, unix.IP_OPTIONS,
			unix.IP_RECVERR, unix.IP_MTU_DISCOVER, unix.IP_MULTICAST_TTL,
		},
	},
	{
		level: unix.IPPROTO_TCP,
		opts: []uint64{
			unix.TCP_NODELAY, unix.TCP_MAXSEG, unix.TCP_CORK,
			unix.TCP_KEEPIDLE, unix.TCP_KEEPINTVL, unix.TCP_KEEPCNT,
			unix.TCP_SYNCNT, unix.TCP_LINGER2, unix.TCP_DEFER_ACCEPT,
			unix.TCP_WINDOW_CLAMP, unix.TCP_QUICKACK, unix.TCP_CONGESTION,
		},
	},
	{
		level: SOL_UDPLITE,
		opts: []uint64{
			udpCork, udpEncap, udpliteSendCscov, udpliteRecvCscov,
		},
	},
	{
		level: unix.SOL_PACKET,
		opts: []uint64{
			unix.PACKET_ADD_MEMBERSHIP, unix.PACKET_DROP_MEMBERSHIP,
			unix.PACKET_RX_RING, unix.PACKET_STATISTICS,
			unix.PACKET_VERSION, unix.PACKET_TX_RING, unix.PACKET_FANOUT,
		},
	},
	{
		level: unix.SOL_NETLINK,
		opts: []uint64{
			unix.NETLINK_ADD_MEMBERSHIP, unix.NETLINK_DROP_MEMBERSHIP,
			unix.NETLINK_PKTINFO, unix.NETLINK_BROADCAST_ERROR,
			unix.NETLINK_NO_ENOBUFS,
		},
	},
}

// Setsockopt describes setsockopt(fd, level, optname, optval, optlen).
var Setsockopt = &Descriptor{
	Name:   "setsockopt",
	Number: unix.SYS_SETSOCKOPT,
	Args: []ArgSpec{
		{
			Name: "fd",
			Type: ArgFD,
		},
		{
			Name: "level",
		},
		{
			Name: "optname",
		},
		{
			Name: "optval",
			Type: ArgAddress,
			Size: setsockoptMaxOptlen,
		},
		{
			Name: "optlen",
			Type: ArgRange,
			Low:  0,
			High: setsockoptMaxOptlen,
		},
	},
	Group:    GroupNet,
	Sanitise: sanitiseSetsockopt,
}

func sanitiseSetsockopt(regs Registers, env *Env) error {
	r := env.Rand

	// Once in a while keep the random level and option.
	if r.OneOf(100) {
		return nil
	}
	lvl := sockoptLevels[r.Intn(len(sockoptLevels))]
	regs.SetArg(1, lvl.level)
	regs.SetArg(2, lvl.opts[r.Intn(len(lvl.opts))])

	// Most options take an int.
	if r.Bool() {
		regs.SetArg(4, 4)
	}
	return nil
}
