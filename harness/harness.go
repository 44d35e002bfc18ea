//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/slox3r/trinity/config"
	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/random"
	"github.com/slox3r/trinity/shm"
	"github.com/slox3r/trinity/syscalls"
)

// Descriptors inherited by the workers.
const (
	regionFD  = 3
	globalFD  = 4
	channelFD = 5
)

// StatusInterval is the interval of the status lines.
const StatusInterval = time.Second

// MaxFailures is the number of consecutive failed exits of a slot's
// workers after which the run is stopped.
const MaxFailures = 3

// Params define harness parameters.
type Params struct {
	Config *config.Params

	// Command creates the worker command for the arguments. The
	// running executable is used if nil.
	Command func(args []string) (*exec.Cmd, error)

	// Clock drives the status ticker. The wall clock is used if nil.
	Clock clock.Clock

	// Console receives the echoed diagnostics. Standard output is
	// used if nil.
	Console io.Writer
}

// Harness implements the coordinator. It owns the shared region and
// the diagnostic channels, and spawns and reaps the workers.
type Harness struct {
	params   *config.Params
	command  func(args []string) (*exec.Cmd, error)
	clock    clock.Clock
	pid      int
	seed     int64
	region   *shm.Region
	dir      *shm.Directory
	router   *log.Router
	global   *os.File
	channels []*os.File
	reg      *syscalls.Registry
	descs    []*syscalls.Descriptor
	reaped   chan *Process
	failures []int
	wg       sync.WaitGroup

	m       sync.Mutex
	procs   []*Process
	live    int
	spawned int
	retired uint64
}

// New creates a new harness.
func New(params *Params) (*Harness, error) {
	cfg := params.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := syscalls.Default()
	descs, err := cfg.Descriptors(reg)
	if err != nil {
		return nil, err
	}
	if cfg.Monochrome {
		color.NoColor = true
	}
	log.SetLevel(cfg.LogLevel)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	h := &Harness{
		params:  cfg,
		command: params.Command,
		clock:   params.Clock,
		pid:     os.Getpid(),
		seed:    seed,
		reg:     reg,
		descs:   descs,
		reaped:   make(chan *Process, cfg.Children),
		failures: make([]int, cfg.Children),
		procs:    make([]*Process, cfg.Children),
	}
	if h.command == nil {
		h.command = selfCommand
	}
	if h.clock == nil {
		h.clock = clock.New()
	}

	h.region, err = shm.Create(cfg.Children)
	if err != nil {
		return nil, err
	}
	h.region.SetPID(shm.RoleCoordinator, h.pid)
	h.dir = shm.NewDirectory(h.region, cfg.Directory())

	var slots []log.Channel
	var global log.Channel
	if cfg.Logging {
		h.global, h.channels, err = log.OpenChannels(cfg.LogDir, cfg.Children)
		if err != nil {
			h.region.Close()
			return nil, err
		}
		global = h.global
		slots = log.Channels(h.channels)
	}
	h.router = log.NewRouter(cfg.Router(), h.dir, global, slots)
	if params.Console != nil {
		h.router.SetConsole(params.Console)
	}
	return h, nil
}

func selfCommand(args []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.Command(exe, args...), nil
}

// Seed returns the master seed.
func (h *Harness) Seed() int64 {
	return h.seed
}

// Region returns the shared region.
func (h *Harness) Region() *shm.Region {
	return h.region
}

// Router returns the diagnostic router.
func (h *Harness) Router() *log.Router {
	return h.router
}

// TotalOps returns the number of operations of the current and the
// reaped workers.
func (h *Harness) TotalOps() uint64 {
	h.m.Lock()
	defer h.m.Unlock()
	return h.retired + h.region.TotalOps()
}

// Processes returns the current worker processes by slot.
func (h *Harness) Processes() []*Process {
	h.m.Lock()
	defer h.m.Unlock()
	return append([]*Process(nil), h.procs...)
}

func (h *Harness) emit(level log.Level, format string, a ...interface{}) {
	h.router.Emit(level, h.pid, fmt.Sprintf(format, a...))
}

// Spawn starts a worker for the slot. The worker's channel handle is
// stored in the slot before the worker starts, and the slot is claimed
// for the worker's pid after it has started.
func (h *Harness) Spawn(slot int) (*Process, error) {
	h.m.Lock()
	seed := random.SlotSeed(h.seed, h.spawned)
	h.spawned++
	h.m.Unlock()

	logFD := shm.NoFD
	files := []*os.File{h.region.File()}
	if h.params.Logging {
		logFD = channelFD
		files = append(files, h.global, h.channels[slot])
	}
	if err := h.region.Allocate(slot, logFD); err != nil {
		return nil, err
	}

	args, err := (&ChildArgs{
		Slot:   slot,
		Seed:   seed,
		Params: h.params,
	}).Args()
	if err != nil {
		h.region.Release(slot)
		return nil, err
	}
	cmd, err := h.command(args)
	if err != nil {
		h.region.Release(slot)
		return nil, err
	}
	cmd.ExtraFiles = files
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	proc := newProcess(slot, seed, cmd)
	if err := proc.start(); err != nil {
		h.region.Release(slot)
		return nil, errors.Wrapf(err, "spawn slot %d", slot)
	}
	if err := h.region.Claim(slot, proc.PID()); err != nil {
		go proc.wait()
		proc.kill()
		proc.WaitState(SZOMB)
		h.region.Release(slot)
		return nil, err
	}
	log.L.Debug("spawned", "slot", slot, "pid", proc.PID(), "seed", seed)

	h.m.Lock()
	h.procs[slot] = proc
	h.live++
	h.m.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		proc.wait()
		h.reaped <- proc
	}()
	return proc, nil
}

func (h *Harness) reap(proc *Process) {
	snap, err := h.region.Snapshot(proc.slot)
	if err != nil {
		log.L.Error("snapshot failed", "slot", proc.slot, "error", err)
	}

	// The op counter moves from the slot to retired atomically with
	// respect to TotalOps.
	h.m.Lock()
	if err := h.region.Release(proc.slot); err != nil {
		log.L.Error("release failed", "slot", proc.slot, "error", err)
	}
	h.retired += snap.Ops
	h.live--
	if h.procs[proc.slot] == proc {
		h.procs[proc.slot] = nil
	}
	h.m.Unlock()

	proc.SetState(SDEAD)

	uptime := proc.Uptime().Round(time.Millisecond)
	if err := proc.Err(); err != nil {
		h.emit(log.LevelSummary,
			"worker %d pid %d exited after %d ops in %s: %v",
			proc.slot, proc.PID(), snap.Ops, uptime, err)
	} else {
		h.emit(log.LevelStatus, "worker %d pid %d exited after %d ops in %s",
			proc.slot, proc.PID(), snap.Ops, uptime)
	}
}

// failed records the exit of proc and returns an error if the slot's
// workers have failed MaxFailures times in a row.
func (h *Harness) failed(proc *Process) error {
	err := proc.Err()
	if err == nil {
		h.failures[proc.slot] = 0
		return nil
	}
	h.failures[proc.slot]++
	if h.failures[proc.slot] < MaxFailures {
		return nil
	}
	return errors.Wrapf(err, "worker %d failed %d times in a row",
		proc.slot, h.failures[proc.slot])
}

func (h *Harness) running() int {
	h.m.Lock()
	defer h.m.Unlock()
	return h.live
}

func (h *Harness) limit() bool {
	return h.params.Ops > 0 && h.TotalOps() >= h.params.Ops
}

func (h *Harness) stop() {
	for _, proc := range h.Processes() {
		if proc != nil {
			proc.kill()
		}
	}
}

// Run spawns a worker for every slot and respawns the workers as they
// exit until the operation limit is reached or ctx is done. A slot
// whose workers fail MaxFailures times in a row stops the run with the
// last exit error. All channels are flushed before Run returns.
func (h *Harness) Run(ctx context.Context) error {
	h.emit(log.LevelSummary, "seed %d, %d children, %d syscalls",
		h.seed, h.params.Children, len(h.descs))

	var spawnErr, runErr error
	for slot := 0; slot < h.params.Children; slot++ {
		if _, err := h.Spawn(slot); err != nil {
			spawnErr = err
			break
		}
	}

	ticker := h.clock.Ticker(StatusInterval)
	defer ticker.Stop()

	done := ctx.Done()
	stopping := spawnErr != nil
	if stopping {
		h.stop()
	}
	for h.running() > 0 {
		select {
		case <-done:
			done = nil
			if !stopping {
				stopping = true
				h.stop()
			}

		case <-ticker.C:
			h.emit(log.LevelStatus, "%d ops", h.TotalOps())
			if !stopping && h.limit() {
				stopping = true
				h.stop()
			}

		case proc := <-h.reaped:
			h.reap(proc)
			if stopping {
				continue
			}
			if err := h.failed(proc); err != nil {
				log.L.Error("stopping", "error", err)
				h.emit(log.LevelSummary, "stopping: %v", err)
				runErr = err
				stopping = true
				h.stop()
				continue
			}
			if h.limit() {
				stopping = true
				h.stop()
				continue
			}
			if _, err := h.Spawn(proc.slot); err != nil {
				log.L.Error("respawn failed", "slot", proc.slot, "error", err)
				h.emit(log.LevelSummary, "respawn of worker %d failed: %v",
					proc.slot, err)
			}
		}
	}
	h.wg.Wait()

	h.emit(log.LevelSummary, "done, %d ops", h.TotalOps())

	result := spawnErr
	if result == nil {
		result = runErr
	}
	if err := h.router.FlushAll(); err != nil {
		log.L.Warn("flush failed", "error", err)
		if result == nil {
			return err
		}
	}
	return result
}

// Close releases the region and the channels.
func (h *Harness) Close() error {
	err := h.router.Close()
	if cerr := h.region.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
