//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package maps

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/random"
	"github.com/slox3r/trinity/syscalls"
)

var _ syscalls.MapProvider = &Pool{}

// Pages lists the default mapping sizes in pages.
var Pages = []int{1, 4, 16, 512}

type mapping struct {
	data []byte
	m    syscalls.Map
}

// Pool holds the anonymous mappings a worker passes to its syscalls.
type Pool struct {
	m        sync.Mutex
	pageSize int
	maps     []*mapping
	byPtr    map[uint64]*mapping
}

// Open maps a private and a shared anonymous mapping of each size in
// pages.
func Open(pages []int) (*Pool, error) {
	if len(pages) == 0 {
		pages = Pages
	}
	pool := &Pool{
		pageSize: os.Getpagesize(),
		byPtr:    make(map[uint64]*mapping),
	}
	for _, n := range pages {
		for _, flags := range []int{unix.MAP_PRIVATE, unix.MAP_SHARED} {
			if err := pool.add(n*pool.pageSize, flags); err != nil {
				pool.Close()
				return nil, err
			}
		}
	}
	log.L.Debug("mapping pool", "maps", len(pool.maps))
	return pool, nil
}

func (pool *Pool) add(size, flags int) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	data, err := unix.Mmap(-1, 0, size, prot, flags|unix.MAP_ANONYMOUS)
	if err != nil {
		return errors.Wrapf(err, "mmap %d bytes", size)
	}
	kind := "private"
	if flags&unix.MAP_SHARED != 0 {
		kind = "shared"
	}
	m := &mapping{
		data: data,
		m: syscalls.Map{
			Ptr:  uint64(uintptr(unsafe.Pointer(&data[0]))),
			Size: uint64(size),
			Prot: prot,
			Name: fmt.Sprintf("anon %s %d", kind, size),
		},
	}
	pool.maps = append(pool.maps, m)
	pool.byPtr[m.m.Ptr] = m
	return nil
}

// PageSize returns the system page size.
func (pool *Pool) PageSize() int {
	return pool.pageSize
}

// Len returns the number of mappings.
func (pool *Pool) Len() int {
	pool.m.Lock()
	defer pool.m.Unlock()
	return len(pool.maps)
}

// Maps returns the mapping descriptions.
func (pool *Pool) Maps() []syscalls.Map {
	pool.m.Lock()
	defer pool.m.Unlock()

	var result []syscalls.Map
	for _, m := range pool.maps {
		result = append(result, m.m)
	}
	return result
}

// Get implements syscalls.MapProvider.Get.
func (pool *Pool) Get(r *random.Rand, size uint64) (syscalls.Map, bool) {
	pool.m.Lock()
	defer pool.m.Unlock()

	var candidates []*mapping
	for _, m := range pool.maps {
		if m.m.Size >= size {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return syscalls.Map{}, false
	}
	return candidates[r.Intn(len(candidates))].m, true
}

// Lookup implements syscalls.MapProvider.Lookup.
func (pool *Pool) Lookup(ptr uint64) (syscalls.Map, bool) {
	pool.m.Lock()
	defer pool.m.Unlock()

	m, ok := pool.byPtr[ptr]
	if !ok {
		return syscalls.Map{}, false
	}
	return m.m, true
}

// SetProt implements syscalls.MapProvider.SetProt.
func (pool *Pool) SetProt(ptr uint64, prot int) {
	pool.m.Lock()
	defer pool.m.Unlock()

	m, ok := pool.byPtr[ptr]
	if ok {
		m.m.Prot = prot
	}
}

// Close unmaps all mappings.
func (pool *Pool) Close() error {
	pool.m.Lock()
	defer pool.m.Unlock()

	var result *multierror.Error
	for _, m := range pool.maps {
		if err := unix.Munmap(m.data); err != nil {
			result = multierror.Append(result,
				errors.Wrapf(err, "munmap %s", m.m.Name))
		}
	}
	pool.maps = nil
	pool.byPtr = make(map[uint64]*mapping)
	return result.ErrorOrNil()
}
