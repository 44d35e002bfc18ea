//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package harness

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Process defines a worker process.
type Process struct {
	m       sync.Mutex
	c       *sync.Cond
	slot    int
	seed    int64
	cmd     *exec.Cmd
	state   ProcState
	started time.Time
	exitErr error
}

// ProcState defines process states.
type ProcState int

// Process states.
const (
	SIDL ProcState = iota
	SRUN
	SZOMB
	SDEAD
)

var stateNames = map[ProcState]string{
	SIDL:  "idl",
	SRUN:  "run",
	SZOMB: "zomb",
	SDEAD: "dead",
}

func (st ProcState) String() string {
	name, ok := stateNames[st]
	if ok {
		return name
	}
	return fmt.Sprintf("{ProcState %d}", st)
}

func newProcess(slot int, seed int64, cmd *exec.Cmd) *Process {
	proc := &Process{
		slot: slot,
		seed: seed,
		cmd:  cmd,
	}
	proc.c = sync.NewCond(&proc.m)
	return proc
}

// Slot returns the process slot.
func (proc *Process) Slot() int {
	return proc.slot
}

// Seed returns the process random seed.
func (proc *Process) Seed() int64 {
	return proc.seed
}

// PID returns the process ID or 0 if the process is not started.
func (proc *Process) PID() int {
	if proc.cmd.Process == nil {
		return 0
	}
	return proc.cmd.Process.Pid
}

// State returns the process state.
func (proc *Process) State() ProcState {
	proc.m.Lock()
	defer proc.m.Unlock()
	return proc.state
}

// SetState sets the process state.
func (proc *Process) SetState(st ProcState) {
	proc.m.Lock()
	proc.state = st
	proc.m.Unlock()
	proc.c.Broadcast()
}

// WaitState waits until the process reaches the specified state.
func (proc *Process) WaitState(st ProcState) {
	proc.m.Lock()
	for proc.state < st {
		proc.c.Wait()
	}
	proc.m.Unlock()
}

// Err returns the exit error of a reaped process.
func (proc *Process) Err() error {
	proc.m.Lock()
	defer proc.m.Unlock()
	return proc.exitErr
}

// Uptime returns the time since the process was started.
func (proc *Process) Uptime() time.Duration {
	return time.Since(proc.started)
}

func (proc *Process) start() error {
	if err := proc.cmd.Start(); err != nil {
		return err
	}
	proc.started = time.Now()
	proc.SetState(SRUN)
	return nil
}

// wait waits for the process to exit.
func (proc *Process) wait() {
	err := proc.cmd.Wait()
	proc.m.Lock()
	proc.exitErr = err
	proc.m.Unlock()
	proc.SetState(SZOMB)
}

// kill kills a running process.
func (proc *Process) kill() {
	if proc.State() != SRUN {
		return
	}
	proc.cmd.Process.Kill()
}
