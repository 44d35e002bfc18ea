//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"github.com/pkg/errors"

	"github.com/slox3r/trinity/random"
)

// MaxResample bounds the re-sampling loops of sanitise hooks.
const MaxResample = 1024

// DefaultPageSize is used when Env.PageSize is unset.
const DefaultPageSize = 4096

const kernelBase = 0xffffffff81000000

// Map describes a memory mapping available to syscall arguments.
type Map struct {
	Ptr  uint64
	Size uint64
	Prot int
	Name string
}

// FDProvider supplies file descriptors for ArgFD arguments.
type FDProvider interface {
	RandomFD(r *random.Rand) int
}

// MapProvider supplies memory mappings for ArgMmap and mapping-backed
// ArgAddress arguments.
type MapProvider interface {
	// Get returns a random mapping of at least size bytes.
	Get(r *random.Rand, size uint64) (Map, bool)

	// Lookup finds the mapping starting at ptr.
	Lookup(ptr uint64) (Map, bool)

	// SetProt records new protection flags for the mapping at ptr.
	SetProt(ptr uint64, prot int)
}

// Env holds the per-worker state the synthesizer and the hooks draw
// from. An Env is owned by one worker.
type Env struct {
	Rand     *random.Rand
	PageSize uint64
	FDs      FDProvider
	Maps     MapProvider

	desc *Descriptor
}

// Descriptor returns the descriptor of the current round.
func (env *Env) Descriptor() *Descriptor {
	return env.desc
}

func (env *Env) pageSize() uint64 {
	if env.PageSize == 0 {
		return DefaultPageSize
	}
	return env.PageSize
}

// Fill synthesizes all arguments of the descriptor into the registers,
// clears the unused registers and the scratch register, and makes desc
// the current descriptor of the environment.
func (env *Env) Fill(desc *Descriptor, regs Registers) {
	env.desc = desc
	for i := 0; i < MaxArgs; i++ {
		if i < len(desc.Args) {
			regs.SetArg(i, env.Generate(desc.Name, i, desc.Args[i]))
		} else {
			regs.SetArg(i, 0)
		}
	}
	regs.SetScratch(0)
}

// Generate synthesizes a raw value for the argument spec. It panics
// with a *CorruptError if the spec is malformed.
func (env *Env) Generate(name string, arg int, spec ArgSpec) uint64 {
	r := env.Rand

	switch spec.Type {
	case ArgUndefined:
		return r.Rand64()

	case ArgFD:
		if env.FDs == nil {
			return uint64(r.Intn(1024))
		}
		return uint64(env.FDs.RandomFD(r))

	case ArgList:
		if len(spec.List) == 0 {
			panic(corrupt(name, arg, "empty value list"))
		}
		return spec.List[r.Intn(len(spec.List))]

	case ArgRange:
		if spec.Low > spec.High {
			panic(corrupt(name, arg, "invalid range [%d, %d]",
				spec.Low, spec.High))
		}
		return r.Range(spec.Low, spec.High)

	case ArgAddress:
		if spec.Size > 0 && env.Maps != nil {
			m, ok := env.Maps.Get(r, spec.Size)
			if ok {
				return m.Ptr
			}
		}
		return env.address()

	case ArgMmap:
		if env.Maps != nil {
			m, ok := env.Maps.Get(r, 0)
			if ok {
				return m.Ptr
			}
		}
		return env.address()

	default:
		panic(corrupt(name, arg, "unknown argument type %v", spec.Type))
	}
}

func (env *Env) address() uint64 {
	r := env.Rand
	page := env.pageSize()

	switch r.Intn(6) {
	case 0:
		return 0
	case 1:
		return kernelBase + r.Uint64n(1<<24)
	case 2:
		return r.Rand64() &^ (page - 1)
	case 3:
		if env.Maps != nil {
			m, ok := env.Maps.Get(r, 0)
			if ok {
				return m.Ptr + r.Uint64n(m.Size)
			}
		}
		return page
	case 4:
		return r.Interesting()
	default:
		return r.Rand64()
	}
}

// Resample applies fix to argument n until fix accepts the value,
// drawing a fresh value from the argument's spec after each rejection.
// The loop is bounded by MaxResample; exhausting it returns an error
// wrapping ErrUnsatisfiable.
func (env *Env) Resample(regs Registers, n int,
	fix func(v uint64) (uint64, bool)) error {

	desc := env.desc
	if desc == nil || n < 0 || n >= len(desc.Args) {
		return errors.Errorf("resample: no argument %d", n+1)
	}
	for i := 0; i < MaxResample; i++ {
		v, ok := fix(regs.Arg(n))
		if ok {
			regs.SetArg(n, v)
			return nil
		}
		regs.SetArg(n, env.Generate(desc.Name, n, desc.Args[n]))
	}
	return errors.Wrapf(ErrUnsatisfiable, "%s: argument %d", desc.Name, n+1)
}

// LookupMap finds the mapping starting at ptr.
func (env *Env) LookupMap(ptr uint64) (Map, bool) {
	if env.Maps == nil {
		return Map{}, false
	}
	return env.Maps.Lookup(ptr)
}

// PageLength returns a random page multiple no larger than size, or
// one page if size is smaller than a page.
func (env *Env) PageLength(size uint64) uint64 {
	page := env.pageSize()
	pages := size / page
	if pages == 0 {
		return page
	}
	return (1 + env.Rand.Uint64n(pages)) * page
}
