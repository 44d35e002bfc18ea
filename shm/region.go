//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package shm implements the coordination region shared by the
// coordinator, the watchdog, and the worker processes.
//
// The region holds one slot per worker. A slot is written only by the
// worker that owns it, except for allocation and release which the
// coordinator performs while no worker owns the slot. There is no
// locking; every word is accessed atomically so readers never observe
// torn values.
package shm

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxWorkers bounds the number of slots in a region.
const MaxWorkers = 1024

// NoFD marks an unset log channel handle.
const NoFD = -1

const (
	regionMagic uint64 = 0x74726e7479736d31

	wordSize   = 8
	headerSize = 64
	slotSize   = 128
)

// Header words.
const (
	hdrMagic = iota
	hdrMaxWorkers
	hdrCoordinator
	hdrWatchdog
	hdrInit
	hdrFlags
)

const flagDegraded uint64 = 1 << 0

// Slot words.
const (
	slotPID = iota
	slotLogFD
	slotSyscall
	slotOps
	slotArgs
	slotScratch = slotArgs + 6
	slotRet     = slotScratch + 1
)

var (
	// ErrSlotRange is returned for slot indices outside the region.
	ErrSlotRange = errors.New("slot index out of range")

	// ErrSlotBusy is returned when a slot is owned by another process.
	ErrSlotBusy = errors.New("slot is owned by another process")
)

// Region is the shared coordination region.
type Region struct {
	mem  []byte
	file *os.File
	max  int
}

// Size returns the region size in bytes for maxWorkers slots.
func Size(maxWorkers int) int {
	size := headerSize + maxWorkers*slotSize
	page := os.Getpagesize()
	return (size + page - 1) / page * page
}

// Create creates a new region with maxWorkers slots. The region is
// backed by a memfd so it can be passed to worker processes.
func Create(maxWorkers int) (*Region, error) {
	if maxWorkers <= 0 || maxWorkers > MaxWorkers {
		return nil, errors.Errorf("invalid worker count %d", maxWorkers)
	}
	fd, err := unix.MemfdCreate("trinity-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "memfd_create")
	}
	file := os.NewFile(uintptr(fd), "trinity-shm")

	size := Size(maxWorkers)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "ftruncate")
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "mmap")
	}
	region := &Region{
		mem:  mem,
		file: file,
		max:  maxWorkers,
	}
	atomic.StoreUint64(region.hdr(hdrMaxWorkers), uint64(maxWorkers))
	noFD := int64(NoFD)
	for i := 0; i < maxWorkers; i++ {
		region.reset(i)
		atomic.StoreUint64(region.word(i, slotLogFD), uint64(noFD))
	}
	atomic.StoreUint64(region.hdr(hdrMagic), regionMagic)

	return region, nil
}

// Attach maps the region from the file created by Create.
func Attach(file *os.File) (*Region, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &st); err != nil {
		return nil, errors.Wrap(err, "fstat")
	}
	if st.Size < headerSize {
		return nil, errors.Errorf("region too small: %d bytes", st.Size)
	}
	mem, err := unix.Mmap(int(file.Fd()), 0, int(st.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap")
	}
	region := &Region{
		mem:  mem,
		file: file,
	}
	if atomic.LoadUint64(region.hdr(hdrMagic)) != regionMagic {
		unix.Munmap(mem)
		return nil, errors.New("invalid region magic")
	}
	max := int(atomic.LoadUint64(region.hdr(hdrMaxWorkers)))
	if max <= 0 || max > MaxWorkers || Size(max) > len(mem) {
		unix.Munmap(mem)
		return nil, errors.Errorf("invalid region size %d for %d workers",
			len(mem), max)
	}
	region.max = max

	return region, nil
}

// Close unmaps the region and closes its file.
func (region *Region) Close() error {
	var err error
	if region.mem != nil {
		err = unix.Munmap(region.mem)
		region.mem = nil
	}
	if region.file != nil {
		if cerr := region.file.Close(); err == nil {
			err = cerr
		}
		region.file = nil
	}
	return err
}

// File returns the file backing the region.
func (region *Region) File() *os.File {
	return region.file
}

// MaxWorkers returns the number of slots in the region.
func (region *Region) MaxWorkers() int {
	return region.max
}

func (region *Region) hdr(idx int) *uint64 {
	return (*uint64)(unsafe.Pointer(&region.mem[idx*wordSize]))
}

func (region *Region) word(slot, idx int) *uint64 {
	off := headerSize + slot*slotSize + idx*wordSize
	return (*uint64)(unsafe.Pointer(&region.mem[off]))
}

func (region *Region) check(slot int) error {
	if slot < 0 || slot >= region.max {
		return errors.Wrapf(ErrSlotRange, "slot %d", slot)
	}
	return nil
}

func (region *Region) reset(slot int) {
	atomic.StoreUint64(region.word(slot, slotSyscall), ^uint64(0))
	atomic.StoreUint64(region.word(slot, slotOps), 0)
	for i := 0; i < 6; i++ {
		atomic.StoreUint64(region.word(slot, slotArgs+i), 0)
	}
	atomic.StoreUint64(region.word(slot, slotScratch), 0)
	atomic.StoreUint64(region.word(slot, slotRet), 0)
}

// SetPID records the process ID of a well-known role. The kind must be
// RoleCoordinator, RoleWatchdog, or RoleInit.
func (region *Region) SetPID(kind RoleKind, pid int) {
	idx, ok := wellKnown[kind]
	if !ok {
		panic(fmt.Sprintf("SetPID: %v is not a well-known role", kind))
	}
	atomic.StoreUint64(region.hdr(idx), uint64(pid))
}

// PID returns the process ID of a well-known role, or 0 if unset.
func (region *Region) PID(kind RoleKind) int {
	idx, ok := wellKnown[kind]
	if !ok {
		return 0
	}
	return int(atomic.LoadUint64(region.hdr(idx)))
}

var wellKnown = map[RoleKind]int{
	RoleCoordinator: hdrCoordinator,
	RoleWatchdog:    hdrWatchdog,
	RoleInit:        hdrInit,
}

// SetDegraded marks every slot channel as an alias of the global
// channel.
func (region *Region) SetDegraded() {
	for {
		old := atomic.LoadUint64(region.hdr(hdrFlags))
		if atomic.CompareAndSwapUint64(region.hdr(hdrFlags), old,
			old|flagDegraded) {
			return
		}
	}
}

// Degraded tests if the region is in degraded logging mode.
func (region *Region) Degraded() bool {
	return atomic.LoadUint64(region.hdr(hdrFlags))&flagDegraded != 0
}

// Allocate prepares the slot for a new worker: the slot's registers
// are cleared and its log channel handle set to logFD. The slot must
// not be owned.
func (region *Region) Allocate(slot, logFD int) error {
	if err := region.check(slot); err != nil {
		return err
	}
	if owner := region.Owner(slot); owner != 0 {
		return errors.Wrapf(ErrSlotBusy, "slot %d owned by %d", slot, owner)
	}
	region.reset(slot)
	atomic.StoreUint64(region.word(slot, slotLogFD), uint64(int64(logFD)))
	return nil
}

// Claim records pid as the owner of the slot.
func (region *Region) Claim(slot, pid int) error {
	if err := region.check(slot); err != nil {
		return err
	}
	if pid <= 0 {
		return errors.Errorf("invalid pid %d", pid)
	}
	p := region.word(slot, slotPID)
	if !atomic.CompareAndSwapUint64(p, 0, uint64(pid)) {
		owner := int(atomic.LoadUint64(p))
		if owner != pid {
			return errors.Wrapf(ErrSlotBusy, "slot %d owned by %d",
				slot, owner)
		}
	}
	return nil
}

// Release clears the owner and the op counter of the slot.
func (region *Region) Release(slot int) error {
	if err := region.check(slot); err != nil {
		return err
	}
	atomic.StoreUint64(region.word(slot, slotOps), 0)
	atomic.StoreUint64(region.word(slot, slotPID), 0)
	return nil
}

// Owner returns the process ID owning the slot, or 0 if the slot is
// free.
func (region *Region) Owner(slot int) int {
	if region.check(slot) != nil {
		return 0
	}
	return int(atomic.LoadUint64(region.word(slot, slotPID)))
}

// FindPID finds the slot owned by pid.
func (region *Region) FindPID(pid int) (int, bool) {
	if pid <= 0 {
		return -1, false
	}
	for i := 0; i < region.max; i++ {
		if int(atomic.LoadUint64(region.word(i, slotPID))) == pid {
			return i, true
		}
	}
	return -1, false
}

// LogFD returns the log channel handle of the slot.
func (region *Region) LogFD(slot int) int {
	if region.check(slot) != nil {
		return NoFD
	}
	return int(int64(atomic.LoadUint64(region.word(slot, slotLogFD))))
}

// Bind returns the mutable handle of the slot for the worker process
// pid. The slot must be claimed for pid.
func (region *Region) Bind(slot, pid int) (*Slot, error) {
	if err := region.check(slot); err != nil {
		return nil, err
	}
	if pid <= 0 {
		return nil, errors.Errorf("invalid pid %d", pid)
	}
	owner := region.Owner(slot)
	if owner != pid {
		return nil, errors.Wrapf(ErrSlotBusy, "slot %d owned by %d",
			slot, owner)
	}
	return &Slot{
		region: region,
		index:  slot,
		pid:    pid,
	}, nil
}

// Snapshot returns a copy of the slot's current state.
func (region *Region) Snapshot(slot int) (SlotSnapshot, error) {
	if err := region.check(slot); err != nil {
		return SlotSnapshot{}, err
	}
	snap := SlotSnapshot{
		Slot:    slot,
		PID:     int(atomic.LoadUint64(region.word(slot, slotPID))),
		LogFD:   int(int64(atomic.LoadUint64(region.word(slot, slotLogFD)))),
		Syscall: int(int64(atomic.LoadUint64(region.word(slot, slotSyscall)))),
		Ops:     atomic.LoadUint64(region.word(slot, slotOps)),
		Scratch: atomic.LoadUint64(region.word(slot, slotScratch)),
		Ret:     int64(atomic.LoadUint64(region.word(slot, slotRet))),
	}
	for i := range snap.Args {
		snap.Args[i] = atomic.LoadUint64(region.word(slot, slotArgs+i))
	}
	return snap, nil
}

// TotalOps returns the sum of the op counters of all slots.
func (region *Region) TotalOps() uint64 {
	var total uint64
	for i := 0; i < region.max; i++ {
		total += atomic.LoadUint64(region.word(i, slotOps))
	}
	return total
}

// DumpSlots prints the slot owners and channel handles.
func (region *Region) DumpSlots(w io.Writer) {
	fmt.Fprintf(w, "## slots (degraded=%v):\n", region.Degraded())
	for i := 0; i < region.max; i++ {
		fmt.Fprintf(w, "## slot%d: pid=%d fd=%d\n", i, region.Owner(i),
			region.LogFD(i))
	}
}

// SlotSnapshot is a point-in-time copy of a slot.
type SlotSnapshot struct {
	Slot    int
	PID     int
	LogFD   int
	Syscall int
	Ops     uint64
	Args    [6]uint64
	Scratch uint64
	Ret     int64
}

// Slot is the owning worker's mutable view of its slot. It implements
// syscalls.Registers on the shared memory. The setters do nothing once
// the slot is no longer owned by the bound pid.
type Slot struct {
	region *Region
	index  int
	pid    int
}

// Index returns the slot index.
func (slot *Slot) Index() int {
	return slot.index
}

// PID returns the pid the slot was bound for.
func (slot *Slot) PID() int {
	return slot.pid
}

// Owned tests if the slot is still owned by the bound pid.
func (slot *Slot) Owned() bool {
	return slot.region.Owner(slot.index) == slot.pid
}

func (slot *Slot) word(idx int) *uint64 {
	return slot.region.word(slot.index, idx)
}

// Arg returns argument register n.
func (slot *Slot) Arg(n int) uint64 {
	return atomic.LoadUint64(slot.word(slotArgs + n))
}

// SetArg sets argument register n.
func (slot *Slot) SetArg(n int, v uint64) {
	if n < 0 || n >= 6 {
		panic(fmt.Sprintf("invalid argument register %d", n))
	}
	if !slot.Owned() {
		return
	}
	atomic.StoreUint64(slot.word(slotArgs+n), v)
}

// Args returns a copy of the argument registers.
func (slot *Slot) Args() [6]uint64 {
	var result [6]uint64
	for i := range result {
		result[i] = slot.Arg(i)
	}
	return result
}

// Scratch returns the scratch register.
func (slot *Slot) Scratch() uint64 {
	return atomic.LoadUint64(slot.word(slotScratch))
}

// SetScratch sets the scratch register.
func (slot *Slot) SetScratch(v uint64) {
	if !slot.Owned() {
		return
	}
	atomic.StoreUint64(slot.word(slotScratch), v)
}

// SetSyscall records the registry index of the syscall in flight.
func (slot *Slot) SetSyscall(idx int) {
	if !slot.Owned() {
		return
	}
	atomic.StoreUint64(slot.word(slotSyscall), uint64(int64(idx)))
}

// SetRet records the return value of the last call.
func (slot *Slot) SetRet(ret int64) {
	if !slot.Owned() {
		return
	}
	atomic.StoreUint64(slot.word(slotRet), uint64(ret))
}

// IncOps increments the slot's op counter and returns the new count.
// A stale handle returns the current count unchanged.
func (slot *Slot) IncOps() uint64 {
	if !slot.Owned() {
		return atomic.LoadUint64(slot.word(slotOps))
	}
	return atomic.AddUint64(slot.word(slotOps), 1)
}

// LogFD returns the slot's log channel handle.
func (slot *Slot) LogFD() int {
	return slot.region.LogFD(slot.index)
}
