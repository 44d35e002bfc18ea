//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shm

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newRegion(t *testing.T, n int) *Region {
	region, err := Create(n)
	require.NoError(t, err)
	t.Cleanup(func() {
		region.Close()
	})
	return region
}

func TestCreateInvalid(t *testing.T) {
	_, err := Create(0)
	require.Error(t, err)
	_, err = Create(MaxWorkers + 1)
	require.Error(t, err)
}

func TestCreateDefaults(t *testing.T) {
	region := newRegion(t, 4)
	require.Equal(t, 4, region.MaxWorkers())
	require.False(t, region.Degraded())
	for i := 0; i < 4; i++ {
		require.Zero(t, region.Owner(i))
		require.Equal(t, NoFD, region.LogFD(i))
		snap, err := region.Snapshot(i)
		require.NoError(t, err)
		require.Equal(t, -1, snap.Syscall)
	}
}

func TestAttach(t *testing.T) {
	region := newRegion(t, 3)

	fd, err := unix.Dup(int(region.File().Fd()))
	require.NoError(t, err)
	attached, err := Attach(os.NewFile(uintptr(fd), "dup"))
	require.NoError(t, err)
	defer attached.Close()

	require.Equal(t, 3, attached.MaxWorkers())

	require.NoError(t, region.Allocate(2, 7))
	require.NoError(t, region.Claim(2, 4242))

	slot, err := attached.Bind(2, 4242)
	require.NoError(t, err)
	slot.SetArg(5, 0xdeadbeef)
	slot.SetScratch(99)

	snap, err := region.Snapshot(2)
	require.NoError(t, err)
	require.Equal(t, 4242, snap.PID)
	require.Equal(t, 7, snap.LogFD)
	require.Equal(t, uint64(0xdeadbeef), snap.Args[5])
	require.Equal(t, uint64(99), snap.Scratch)

	attached.SetDegraded()
	require.True(t, region.Degraded())
}

func TestAttachInvalid(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "region")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(os.Getpagesize())))
	defer f.Close()

	_, err = Attach(f)
	require.Error(t, err)
}

func TestSlotLifecycle(t *testing.T) {
	region := newRegion(t, 2)

	require.NoError(t, region.Allocate(0, 10))
	require.NoError(t, region.Claim(0, 100))
	require.NoError(t, region.Claim(0, 100))
	require.True(t, errors.Is(region.Claim(0, 101), ErrSlotBusy))
	require.True(t, errors.Is(region.Allocate(0, 11), ErrSlotBusy))

	slot, ok := region.FindPID(100)
	require.True(t, ok)
	require.Equal(t, 0, slot)

	_, err := region.Bind(0, 101)
	require.True(t, errors.Is(err, ErrSlotBusy))

	require.NoError(t, region.Release(0))
	_, ok = region.FindPID(100)
	require.False(t, ok)

	require.NoError(t, region.Allocate(0, 12))
	require.Equal(t, 12, region.LogFD(0))

	require.True(t, errors.Is(region.Allocate(2, 1), ErrSlotRange))
	require.True(t, errors.Is(region.Claim(-1, 1), ErrSlotRange))
	_, err = region.Snapshot(5)
	require.True(t, errors.Is(err, ErrSlotRange))
}

func TestAllocateClearsRegisters(t *testing.T) {
	region := newRegion(t, 1)

	require.NoError(t, region.Allocate(0, 3))
	require.NoError(t, region.Claim(0, 55))
	slot, err := region.Bind(0, 55)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		slot.SetArg(i, uint64(i+1))
	}
	slot.SetScratch(8)
	slot.SetSyscall(2)
	slot.SetRet(-22)
	require.Equal(t, uint64(1), slot.IncOps())

	snap, err := region.Snapshot(0)
	require.NoError(t, err)
	require.Equal(t, [6]uint64{1, 2, 3, 4, 5, 6}, snap.Args)
	require.Equal(t, 2, snap.Syscall)
	require.Equal(t, int64(-22), snap.Ret)
	require.Equal(t, uint64(1), region.TotalOps())

	require.NoError(t, region.Release(0))
	require.NoError(t, region.Allocate(0, 4))
	snap, err = region.Snapshot(0)
	require.NoError(t, err)
	require.Equal(t, [6]uint64{}, snap.Args)
	require.Zero(t, snap.Scratch)
	require.Zero(t, snap.Ops)
	require.Equal(t, -1, snap.Syscall)
}

func TestSlotSetArgRange(t *testing.T) {
	region := newRegion(t, 1)
	require.NoError(t, region.Allocate(0, 3))
	require.NoError(t, region.Claim(0, 1))
	slot, err := region.Bind(0, 1)
	require.NoError(t, err)
	require.Panics(t, func() {
		slot.SetArg(6, 1)
	})
}

func TestBindRequiresOwner(t *testing.T) {
	region := newRegion(t, 2)
	require.NoError(t, region.Allocate(0, 3))
	require.NoError(t, region.Claim(0, 500))

	// Free slot.
	slot, err := region.Bind(1, 10)
	require.True(t, errors.Is(err, ErrSlotBusy))
	require.Nil(t, slot)

	require.NoError(t, region.Allocate(1, 4))
	_, err = region.Bind(1, 10)
	require.True(t, errors.Is(err, ErrSlotBusy))

	_, err = region.Bind(0, 10)
	require.True(t, errors.Is(err, ErrSlotBusy))
	_, err = region.Bind(0, 0)
	require.Error(t, err)

	slot, err = region.Bind(0, 500)
	require.NoError(t, err)
	require.Equal(t, 500, slot.PID())
	require.True(t, slot.Owned())
}

func TestStaleSlotHandle(t *testing.T) {
	region := newRegion(t, 1)
	require.NoError(t, region.Allocate(0, 3))
	require.NoError(t, region.Claim(0, 500))
	stale, err := region.Bind(0, 500)
	require.NoError(t, err)
	stale.SetArg(0, 1)
	require.Equal(t, uint64(1), stale.IncOps())

	require.NoError(t, region.Release(0))
	require.False(t, stale.Owned())
	require.NoError(t, region.Allocate(0, 4))
	require.NoError(t, region.Claim(0, 501))

	before, err := region.Snapshot(0)
	require.NoError(t, err)

	stale.SetArg(0, 0xdead)
	stale.SetScratch(0xbeef)
	stale.SetSyscall(7)
	stale.SetRet(-1)
	require.Zero(t, stale.IncOps())

	after, err := region.Snapshot(0)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 501, after.PID)

	current, err := region.Bind(0, 501)
	require.NoError(t, err)
	current.SetArg(0, 0xcafe)
	require.Equal(t, uint64(0xcafe), current.Arg(0))
}

func TestWellKnownPIDs(t *testing.T) {
	region := newRegion(t, 1)
	region.SetPID(RoleCoordinator, 10)
	region.SetPID(RoleWatchdog, 11)
	region.SetPID(RoleInit, 12)

	require.Equal(t, 10, region.PID(RoleCoordinator))
	require.Equal(t, 11, region.PID(RoleWatchdog))
	require.Equal(t, 12, region.PID(RoleInit))
	require.Zero(t, region.PID(RoleWorker))

	require.Panics(t, func() {
		region.SetPID(RoleWorker, 1)
	})
}

func TestDisjointWriters(t *testing.T) {
	const n = 8
	region := newRegion(t, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		require.NoError(t, region.Allocate(i, 100+i))
		require.NoError(t, region.Claim(i, 1000+i))
		slot, err := region.Bind(i, 1000+i)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 1000; round++ {
				for a := 0; a < 6; a++ {
					slot.SetArg(a, uint64(slot.Index()))
				}
				slot.IncOps()
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		snap, err := region.Snapshot(i)
		require.NoError(t, err)
		for _, a := range snap.Args {
			require.Equal(t, uint64(i), a)
		}
		require.Equal(t, uint64(1000), snap.Ops)
	}
	require.Equal(t, uint64(n*1000), region.TotalOps())
}

func TestDumpSlots(t *testing.T) {
	region := newRegion(t, 2)
	require.NoError(t, region.Allocate(1, 9))
	require.NoError(t, region.Claim(1, 77))

	var buf bytes.Buffer
	region.DumpSlots(&buf)
	require.True(t, strings.Contains(buf.String(), "slot1: pid=77 fd=9"),
		buf.String())
}
