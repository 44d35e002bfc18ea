//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package syscalls defines the syscall descriptor model, the descriptor
// registry, and the argument synthesizer driven by the descriptors.
package syscalls

import (
	"fmt"
)

// MaxArgs defines the maximum number of syscall arguments.
const MaxArgs = 6

// ArgType defines the argument constraint kinds.
type ArgType int

// Argument constraint kinds.
const (
	ArgUndefined ArgType = iota
	ArgFD
	ArgList
	ArgRange
	ArgAddress
	ArgMmap
)

var argTypeNames = map[ArgType]string{
	ArgUndefined: "undefined",
	ArgFD:        "fd",
	ArgList:      "list",
	ArgRange:     "range",
	ArgAddress:   "address",
	ArgMmap:      "mmap",
}

func (t ArgType) String() string {
	name, ok := argTypeNames[t]
	if ok {
		return name
	}
	return fmt.Sprintf("{ArgType %d}", t)
}

// ArgSpec defines the constraints of one syscall argument.
type ArgSpec struct {
	Name string
	Type ArgType

	// List holds the legal values of an ArgList argument.
	List []uint64

	// Low and High bound an ArgRange argument, inclusive.
	Low  uint64
	High uint64

	// Size requests a mapping-backed ArgAddress of at least Size
	// bytes. Zero means any pointer-sized value.
	Size uint64
}

func (spec ArgSpec) String() string {
	switch spec.Type {
	case ArgList:
		return fmt.Sprintf("%s:list[%d]", spec.Name, len(spec.List))
	case ArgRange:
		return fmt.Sprintf("%s:range[%d,%d]", spec.Name, spec.Low, spec.High)
	default:
		return fmt.Sprintf("%s:%s", spec.Name, spec.Type)
	}
}

// Group classifies syscalls by subsystem.
type Group int

// Syscall groups.
const (
	GroupNone Group = iota
	GroupVM
	GroupNet
	GroupVFS
)

var groupNames = map[Group]string{
	GroupNone: "none",
	GroupVM:   "vm",
	GroupNet:  "net",
	GroupVFS:  "vfs",
}

func (g Group) String() string {
	name, ok := groupNames[g]
	if ok {
		return name
	}
	return fmt.Sprintf("{Group %d}", g)
}

// ParseGroup parses the group name.
func ParseGroup(name string) (Group, error) {
	if len(name) == 0 {
		return GroupNone, nil
	}
	for g, n := range groupNames {
		if n == name {
			return g, nil
		}
	}
	return GroupNone, fmt.Errorf("unknown syscall group '%s'", name)
}

// SanitiseFunc fixes the synthesized arguments in place before
// invocation. It may store a value in the scratch register for the
// matching PostFunc.
type SanitiseFunc func(regs Registers, env *Env) error

// PostFunc runs after invocation with the call's return value.
type PostFunc func(regs Registers, env *Env, ret int64)

// Descriptor describes one syscall. Descriptors are immutable after
// registration.
type Descriptor struct {
	Name     string
	Number   uintptr
	Args     []ArgSpec
	Group    Group
	Sanitise SanitiseFunc
	Post     PostFunc
}

// NumArgs returns the number of arguments the syscall takes.
func (desc *Descriptor) NumArgs() int {
	return len(desc.Args)
}

func (desc *Descriptor) String() string {
	return desc.Name
}

// Registers provide access to one worker's argument registers and
// scratch register.
type Registers interface {
	Arg(n int) uint64
	SetArg(n int, v uint64)
	Scratch() uint64
	SetScratch(v uint64)
}

// LocalRegisters implement Registers in process-local memory.
type LocalRegisters struct {
	A [MaxArgs]uint64
	S uint64
}

// Arg implements Registers.Arg.
func (r *LocalRegisters) Arg(n int) uint64 {
	return r.A[n]
}

// SetArg implements Registers.SetArg.
func (r *LocalRegisters) SetArg(n int, v uint64) {
	r.A[n] = v
}

// Scratch implements Registers.Scratch.
func (r *LocalRegisters) Scratch() uint64 {
	return r.S
}

// SetScratch implements Registers.SetScratch.
func (r *LocalRegisters) SetScratch(v uint64) {
	r.S = v
}
