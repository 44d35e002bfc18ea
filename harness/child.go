//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package harness

import (
	"context"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/slox3r/trinity/child"
	"github.com/slox3r/trinity/config"
	"github.com/slox3r/trinity/fds"
	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/maps"
	"github.com/slox3r/trinity/random"
	"github.com/slox3r/trinity/shm"
	"github.com/slox3r/trinity/syscalls"
)

// ChildCommand is the name of the worker subcommand.
const ChildCommand = "child"

// ChildArgs define the worker command line.
type ChildArgs struct {
	Slot   int
	Seed   int64
	Params *config.Params
}

// Args returns the worker command line arguments.
func (ca *ChildArgs) Args() ([]string, error) {
	data, err := ca.Params.Marshal()
	if err != nil {
		return nil, err
	}
	return []string{
		ChildCommand,
		"--slot", strconv.Itoa(ca.Slot),
		"--seed", strconv.FormatInt(ca.Seed, 10),
		"--params", string(data),
	}, nil
}

// RunChild runs a worker process. The region, the global channel and
// the worker's channel are inherited from the coordinator.
func RunChild(ctx context.Context, ca *ChildArgs) error {
	params := ca.Params
	if params.Monochrome {
		color.NoColor = true
	}
	log.SetLevel(params.LogLevel)

	region, err := shm.Attach(os.NewFile(regionFD, "trinity-shm"))
	if err != nil {
		return err
	}
	defer region.Close()

	if ca.Slot < 0 || ca.Slot >= region.MaxWorkers() {
		return errors.Wrapf(shm.ErrSlotRange, "slot %d", ca.Slot)
	}
	pid := os.Getpid()
	dir := shm.NewDirectory(region, params.Directory())

	var global log.Channel
	slots := make([]log.Channel, region.MaxWorkers())
	if params.Logging {
		global = os.NewFile(globalFD, log.GlobalChannelName)
		if fd := region.LogFD(ca.Slot); fd != shm.NoFD {
			slots[ca.Slot] = os.NewFile(uintptr(fd), log.ChannelName(ca.Slot))
		}
	}
	router := log.NewRouter(params.Router(), dir, global, slots)
	defer router.Close()
	defer router.FlushAll()

	// The coordinator claims the slot after the worker has started.
	role, err := dir.RoleOf(pid)
	if err != nil {
		router.Emit(log.LevelSummary, pid, "no slot for worker")
		return err
	}
	if role.Slot != ca.Slot {
		return errors.Errorf("pid %d resolved to slot %d, expected %d",
			pid, role.Slot, ca.Slot)
	}

	fdPool, err := fds.Open(nil)
	if err != nil {
		return err
	}
	defer fdPool.Close()

	mapPool, err := maps.Open(nil)
	if err != nil {
		return err
	}
	defer mapPool.Close()

	reg := syscalls.Default()
	descs, err := params.Descriptors(reg)
	if err != nil {
		return err
	}

	worker, err := child.New(&child.Params{
		Region:   region,
		Slot:     ca.Slot,
		PID:      pid,
		Router:   router,
		Registry: reg,
		Syscalls: descs,
		Env: &syscalls.Env{
			Rand:     random.New(ca.Seed),
			PageSize: uint64(mapPool.PageSize()),
			FDs:      fdPool,
			Maps:     mapPool,
		},
		Invoker: child.NewInvoker(params.Live),
		Ktrace:  params.Ktrace,
		Ops:     params.ChildOps,
	})
	if err != nil {
		return err
	}
	return worker.Run(ctx)
}
