//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fds

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/random"
)

// Kind defines the descriptor kinds of the pool.
type Kind int

// Descriptor kinds.
const (
	KindDevNull Kind = iota
	KindFile
	KindPipe
	KindSocket
	KindEventFD
	KindEpoll
)

var kindNames = map[Kind]string{
	KindDevNull: "devnull",
	KindFile:    "file",
	KindPipe:    "pipe",
	KindSocket:  "socket",
	KindEventFD: "eventfd",
	KindEpoll:   "epoll",
}

func (kind Kind) String() string {
	name, ok := kindNames[kind]
	if ok {
		return name
	}
	return fmt.Sprintf("{Kind %d}", kind)
}

// FD implements a pooled file descriptor.
type FD interface {
	Fd() int
	Kind() Kind
	Close() error
}

var (
	_ FD = &FDRaw{}
	_ FD = &FDFile{}
)

// FDRaw implements descriptors opened with raw system calls.
type FDRaw struct {
	fd   int
	kind Kind
}

// NewRawFD wraps the descriptor fd.
func NewRawFD(fd int, kind Kind) *FDRaw {
	return &FDRaw{
		fd:   fd,
		kind: kind,
	}
}

// Fd implements FD.Fd.
func (fd *FDRaw) Fd() int {
	return fd.fd
}

// Kind implements FD.Kind.
func (fd *FDRaw) Kind() Kind {
	return fd.kind
}

// Close implements FD.Close.
func (fd *FDRaw) Close() error {
	return unix.Close(fd.fd)
}

// Params define the pool contents.
type Params struct {
	// Dir is the directory for the file descriptors.
	Dir string
	// Files is the number of temporary files.
	Files int
	// Pipes is the number of pipes. Both ends are pooled.
	Pipes int
	// Sockets is the number of sockets per opened family.
	Sockets int
}

// DefaultParams returns the default pool parameters.
func DefaultParams() *Params {
	return &Params{
		Files:   4,
		Pipes:   2,
		Sockets: 2,
	}
}

type opener func(pool *Pool, params *Params) error

var openers = []struct {
	kind Kind
	open opener
}{
	{KindDevNull, openDevNull},
	{KindFile, openFiles},
	{KindPipe, openPipes},
	{KindSocket, openSockets},
	{KindEventFD, openEventFD},
	{KindEpoll, openEpoll},
}

// Pool holds the descriptors a worker passes to its syscalls.
type Pool struct {
	fds []FD
}

// Open opens a descriptor pool. Kinds that fail to open are logged
// and skipped; Open fails only if nothing could be opened.
func Open(params *Params) (*Pool, error) {
	if params == nil {
		params = DefaultParams()
	}
	pool := new(Pool)
	for _, o := range openers {
		if err := o.open(pool, params); err != nil {
			log.L.Warn("couldn't open descriptors", "kind", o.kind,
				"error", err)
		}
	}
	if len(pool.fds) == 0 {
		return nil, errors.New("no descriptors could be opened")
	}
	log.L.Debug("descriptor pool", "fds", len(pool.fds))
	return pool, nil
}

func (pool *Pool) add(fd FD) {
	pool.fds = append(pool.fds, fd)
}

// Len returns the number of pooled descriptors.
func (pool *Pool) Len() int {
	return len(pool.fds)
}

// FDs returns the pooled descriptors.
func (pool *Pool) FDs() []FD {
	return append([]FD(nil), pool.fds...)
}

// RandomFD returns a random pooled descriptor number.
func (pool *Pool) RandomFD(r *random.Rand) int {
	if len(pool.fds) == 0 {
		return -1
	}
	return pool.fds[r.Intn(len(pool.fds))].Fd()
}

// Close closes all pooled descriptors.
func (pool *Pool) Close() error {
	var result *multierror.Error
	for _, fd := range pool.fds {
		if err := fd.Close(); err != nil {
			result = multierror.Append(result,
				errors.Wrapf(err, "close %s fd %d", fd.Kind(), fd.Fd()))
		}
	}
	pool.fds = nil
	return result.ErrorOrNil()
}
