//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package child

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/shm"
	"github.com/slox3r/trinity/syscalls"
)

// Params define worker parameters.
type Params struct {
	Region   *shm.Region
	Slot     int
	PID      int
	Router   *log.Router
	Registry *syscalls.Registry
	Syscalls []*syscalls.Descriptor
	Env      *syscalls.Env
	Invoker  Invoker
	Ktrace   bool
	// Ops is the number of rounds to run. Zero runs until the context
	// is done.
	Ops uint64
}

// Worker runs fuzzing rounds on one slot.
type Worker struct {
	region  *shm.Region
	slot    *shm.Slot
	role    shm.Role
	router  *log.Router
	reg     *syscalls.Registry
	descs   []*syscalls.Descriptor
	env     *syscalls.Env
	invoker Invoker
	ktrace  bool
	ops     uint64
}

// New binds a worker to its slot.
func New(params *Params) (*Worker, error) {
	if len(params.Syscalls) == 0 {
		return nil, errors.New("no syscalls")
	}
	if params.Env == nil || params.Env.Rand == nil {
		return nil, errors.New("no random source")
	}
	slot, err := params.Region.Bind(params.Slot, params.PID)
	if err != nil {
		return nil, err
	}
	invoker := params.Invoker
	if invoker == nil {
		invoker = DryRun{}
	}
	return &Worker{
		region: params.Region,
		slot:   slot,
		role: shm.Role{
			Kind: shm.RoleWorker,
			Slot: params.Slot,
			PID:  params.PID,
		},
		router:  params.Router,
		reg:     params.Registry,
		descs:   params.Syscalls,
		env:     params.Env,
		invoker: invoker,
		ktrace:  params.Ktrace,
		ops:     params.Ops,
	}, nil
}

// Role returns the worker's role.
func (w *Worker) Role() shm.Role {
	return w.role
}

func (w *Worker) output(level log.Level, msg string) {
	if w.router != nil {
		w.router.Output(w.role, level, "%s", msg)
	}
}

// Round runs one synthesize, sanitise, invoke, post round. It panics
// with a *syscalls.CorruptError if the selected descriptor is
// malformed.
func (w *Worker) Round() error {
	desc := w.descs[w.env.Rand.Intn(len(w.descs))]

	idx := -1
	if w.reg != nil {
		if i, err := w.reg.Index(desc.Name); err == nil {
			idx = i
		}
	}
	w.slot.SetSyscall(idx)
	w.env.Fill(desc, w.slot)

	if desc.Sanitise != nil {
		if err := desc.Sanitise(w.slot, w.env); err != nil {
			return errors.Wrapf(err, "%s: sanitise", desc.Name)
		}
	}
	w.ktraceCall(desc)

	ret := w.invoker.Invoke(desc, w.slot.Args())
	w.slot.SetRet(ret)

	if desc.Post != nil {
		desc.Post(w.slot, w.env, ret)
	}
	w.ktraceRet(desc, ret)
	w.slot.IncOps()

	return nil
}

// Run runs rounds until the op count is reached or ctx is done.
// Descriptor corruption ends the run with an error.
func (w *Worker) Run(ctx context.Context) (err error) {
	w.output(log.LevelStatus, fmt.Sprintf("started, seed %d, %d syscalls",
		w.env.Rand.Seed(), len(w.descs)))

	defer func() {
		if r := recover(); r != nil {
			cerr, ok := r.(*syscalls.CorruptError)
			if !ok {
				panic(r)
			}
			err = cerr
		}
		w.ktraceExit(err)
		if err != nil {
			w.output(log.LevelSummary, fmt.Sprintf("fatal: %v", err))
		}
	}()

	for n := uint64(0); w.ops == 0 || n < w.ops; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.Round(); err != nil {
			return err
		}
	}
	return nil
}
