//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shm

import (
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// DefaultLookupDelay is the default wait before re-scanning the slots
// for an unregistered pid.
const DefaultLookupDelay = time.Second

// ErrUnknownProcess is returned when a pid maps to no role.
var ErrUnknownProcess = errors.New("unknown process")

var errNoSlot = errors.New("no slot")

// Timer provides the retry delays.
type Timer interface {
	After(d time.Duration) <-chan time.Time
}

// DirectoryParams configure the identity directory.
type DirectoryParams struct {
	// Delay is the wait between lookup attempts.
	Delay time.Duration

	// Retries is the number of re-scans after the first miss. Zero
	// selects one re-scan; a negative value disables re-scanning.
	Retries int

	// Timer provides the delays. The wall clock is used if nil.
	Timer Timer
}

// Directory resolves process IDs to roles.
type Directory struct {
	region  *Region
	delay   time.Duration
	retries int
	timer   Timer
}

// NewDirectory creates an identity directory over the region. A nil
// params selects one retry after DefaultLookupDelay.
func NewDirectory(region *Region, params *DirectoryParams) *Directory {
	dir := &Directory{
		region:  region,
		delay:   DefaultLookupDelay,
		retries: 1,
		timer:   clock.New(),
	}
	if params != nil {
		if params.Delay > 0 {
			dir.delay = params.Delay
		}
		if params.Retries > 0 {
			dir.retries = params.Retries
		} else if params.Retries < 0 {
			dir.retries = 0
		}
		if params.Timer != nil {
			dir.timer = params.Timer
		}
	}
	return dir
}

// Region returns the directory's region.
func (dir *Directory) Region() *Region {
	return dir.region
}

// RoleOf resolves the role of pid. The well-known roles are checked
// first, then the worker slots. If no slot is found, the lookup is
// retried after the configured delay before failing with
// ErrUnknownProcess.
func (dir *Directory) RoleOf(pid int) (Role, error) {
	if pid <= 0 {
		return Role{}, errors.Wrapf(ErrUnknownProcess, "pid %d", pid)
	}
	role, err := retry.DoWithData(
		func() (Role, error) {
			return dir.lookup(pid)
		},
		retry.Attempts(uint(dir.retries+1)),
		retry.Delay(dir.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.WithTimer(dir.timer))
	if err != nil {
		return Role{}, errors.Wrapf(ErrUnknownProcess, "pid %d", pid)
	}
	return role, nil
}

func (dir *Directory) lookup(pid int) (Role, error) {
	for _, kind := range []RoleKind{RoleCoordinator, RoleWatchdog, RoleInit} {
		if dir.region.PID(kind) == pid {
			return Role{
				Kind: kind,
				Slot: -1,
				PID:  pid,
			}, nil
		}
	}
	slot, ok := dir.region.FindPID(pid)
	if !ok {
		return Role{}, errNoSlot
	}
	return Role{
		Kind: RoleWorker,
		Slot: slot,
		PID:  pid,
	}, nil
}
