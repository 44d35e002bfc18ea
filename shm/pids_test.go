//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shm

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// countingTimer fires immediately and records the requested delays.
type countingTimer struct {
	m      sync.Mutex
	delays []time.Duration
}

func (t *countingTimer) After(d time.Duration) <-chan time.Time {
	t.m.Lock()
	t.delays = append(t.delays, d)
	t.m.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (t *countingTimer) Delays() []time.Duration {
	t.m.Lock()
	defer t.m.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func TestRoleOfWellKnown(t *testing.T) {
	region := newRegion(t, 2)
	region.SetPID(RoleCoordinator, 10)
	region.SetPID(RoleWatchdog, 11)
	region.SetPID(RoleInit, 12)

	timer := new(countingTimer)
	dir := NewDirectory(region, &DirectoryParams{
		Timer: timer,
	})

	for pid, kind := range map[int]RoleKind{
		10: RoleCoordinator,
		11: RoleWatchdog,
		12: RoleInit,
	} {
		role, err := dir.RoleOf(pid)
		require.NoError(t, err)
		require.Equal(t, kind, role.Kind)
		require.Equal(t, pid, role.PID)
		require.False(t, role.IsWorker())
	}
	require.Empty(t, timer.Delays())
}

func TestRoleOfWorkerIdempotent(t *testing.T) {
	region := newRegion(t, 4)
	require.NoError(t, region.Allocate(3, 5))
	require.NoError(t, region.Claim(3, 300))

	dir := NewDirectory(region, &DirectoryParams{
		Timer: new(countingTimer),
	})
	for i := 0; i < 10; i++ {
		role, err := dir.RoleOf(300)
		require.NoError(t, err)
		require.Equal(t, Role{Kind: RoleWorker, Slot: 3, PID: 300}, role)
		require.Equal(t, "[worker:3:300]", role.Prefix())
	}
}

func TestRoleOfSlotReuse(t *testing.T) {
	region := newRegion(t, 2)
	dir := NewDirectory(region, &DirectoryParams{
		Timer: new(countingTimer),
	})

	require.NoError(t, region.Allocate(1, 5))
	require.NoError(t, region.Claim(1, 500))
	role, err := dir.RoleOf(500)
	require.NoError(t, err)
	require.Equal(t, 1, role.Slot)

	require.NoError(t, region.Release(1))
	require.NoError(t, region.Allocate(1, 5))
	require.NoError(t, region.Claim(1, 501))

	role, err = dir.RoleOf(501)
	require.NoError(t, err)
	require.Equal(t, Role{Kind: RoleWorker, Slot: 1, PID: 501}, role)

	_, err = dir.RoleOf(500)
	require.True(t, errors.Is(err, ErrUnknownProcess))
}

func TestRoleOfUnknownRetriesOnce(t *testing.T) {
	region := newRegion(t, 2)
	timer := new(countingTimer)
	dir := NewDirectory(region, &DirectoryParams{
		Delay: 250 * time.Millisecond,
		Timer: timer,
	})

	_, err := dir.RoleOf(4711)
	require.True(t, errors.Is(err, ErrUnknownProcess))
	require.Equal(t, []time.Duration{250 * time.Millisecond}, timer.Delays())
}

func TestRoleOfUnknownWaits(t *testing.T) {
	region := newRegion(t, 1)
	const delay = 50 * time.Millisecond
	dir := NewDirectory(region, &DirectoryParams{
		Delay: delay,
	})

	start := time.Now()
	_, err := dir.RoleOf(4711)
	elapsed := time.Since(start)

	require.True(t, errors.Is(err, ErrUnknownProcess))
	require.GreaterOrEqual(t, elapsed, delay)
	require.Less(t, elapsed, 20*delay)
}

// lateTimer registers the worker while the directory waits.
type lateTimer struct {
	region *Region
	slot   int
	pid    int
}

func (t *lateTimer) After(d time.Duration) <-chan time.Time {
	t.region.Claim(t.slot, t.pid)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestRoleOfLateRegistration(t *testing.T) {
	region := newRegion(t, 2)
	require.NoError(t, region.Allocate(0, 5))

	dir := NewDirectory(region, &DirectoryParams{
		Timer: &lateTimer{
			region: region,
			slot:   0,
			pid:    600,
		},
	})
	role, err := dir.RoleOf(600)
	require.NoError(t, err)
	require.Equal(t, 0, role.Slot)
}

func TestRoleOfNoRetry(t *testing.T) {
	region := newRegion(t, 1)
	timer := new(countingTimer)
	dir := NewDirectory(region, &DirectoryParams{
		Retries: -1,
		Timer:   timer,
	})
	_, err := dir.RoleOf(4711)
	require.True(t, errors.Is(err, ErrUnknownProcess))
	require.Empty(t, timer.Delays())

	_, err = dir.RoleOf(0)
	require.True(t, errors.Is(err, ErrUnknownProcess))
}

func TestRolePrefix(t *testing.T) {
	require.Equal(t, "[main]", Role{Kind: RoleCoordinator}.Prefix())
	require.Equal(t, "[watchdog]", Role{Kind: RoleWatchdog}.Prefix())
	require.Equal(t, "[init]", Role{Kind: RoleInit}.Prefix())
	require.Equal(t, "worker:2:9", Role{Kind: RoleWorker, Slot: 2, PID: 9}.String())
}
