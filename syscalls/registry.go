//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a syscall is not in the registry.
	ErrNotFound = errors.New("syscall not found")

	// ErrUnsatisfiable is returned when a sanitise hook cannot draw a
	// value satisfying its constraint within MaxResample attempts.
	ErrUnsatisfiable = errors.New("constraint unsatisfiable")
)

// CorruptError describes a malformed descriptor.
type CorruptError struct {
	Syscall string
	Arg     int
	Reason  string
}

func (err *CorruptError) Error() string {
	if err.Arg < 0 {
		return fmt.Sprintf("corrupt descriptor %s: %s", err.Syscall, err.Reason)
	}
	return fmt.Sprintf("corrupt descriptor %s: argument %d: %s",
		err.Syscall, err.Arg+1, err.Reason)
}

func corrupt(name string, arg int, format string, a ...interface{}) error {
	return &CorruptError{
		Syscall: name,
		Arg:     arg,
		Reason:  fmt.Sprintf(format, a...),
	}
}

// Validate checks the descriptor's argument constraints.
func (desc *Descriptor) Validate() error {
	if len(desc.Name) == 0 {
		return corrupt("<unnamed>", -1, "empty name")
	}
	if len(desc.Args) == 0 || len(desc.Args) > MaxArgs {
		return corrupt(desc.Name, -1, "invalid argument count %d",
			len(desc.Args))
	}
	for i, spec := range desc.Args {
		if err := spec.validate(desc.Name, i); err != nil {
			return err
		}
	}
	return nil
}

func (spec ArgSpec) validate(name string, arg int) error {
	switch spec.Type {
	case ArgUndefined, ArgFD, ArgAddress, ArgMmap:
	case ArgList:
		if len(spec.List) == 0 {
			return corrupt(name, arg, "empty value list")
		}
	case ArgRange:
		if spec.Low > spec.High {
			return corrupt(name, arg, "invalid range [%d, %d]",
				spec.Low, spec.High)
		}
	default:
		return corrupt(name, arg, "unknown argument type %v", spec.Type)
	}
	return nil
}

// Registry holds the syscall descriptors. A registry is read-only
// after construction and safe for concurrent readers.
type Registry struct {
	list   []*Descriptor
	byName map[string]int
}

// NewRegistry creates a registry from the descriptors. The descriptor
// order is preserved.
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	reg := &Registry{
		byName: make(map[string]int),
	}
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if _, ok := reg.byName[desc.Name]; ok {
			return nil, corrupt(desc.Name, -1, "duplicate descriptor")
		}
		reg.byName[desc.Name] = len(reg.list)
		reg.list = append(reg.list, desc)
	}
	return reg, nil
}

// MustRegistry is like NewRegistry but panics if any of the
// descriptors is corrupt.
func MustRegistry(descs ...*Descriptor) *Registry {
	reg, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Len returns the number of descriptors.
func (reg *Registry) Len() int {
	return len(reg.list)
}

// At returns the descriptor at the index.
func (reg *Registry) At(idx int) (*Descriptor, bool) {
	if idx < 0 || idx >= len(reg.list) {
		return nil, false
	}
	return reg.list[idx], true
}

// Index returns the registry index of the named syscall.
func (reg *Registry) Index(name string) (int, error) {
	idx, ok := reg.byName[name]
	if !ok {
		return -1, errors.Wrapf(ErrNotFound, "%s", name)
	}
	return idx, nil
}

// Lookup finds the named syscall.
func (reg *Registry) Lookup(name string) (*Descriptor, error) {
	idx, err := reg.Index(name)
	if err != nil {
		return nil, err
	}
	return reg.list[idx], nil
}

// All returns all descriptors in registration order.
func (reg *Registry) All() []*Descriptor {
	result := make([]*Descriptor, len(reg.list))
	copy(result, reg.list)
	return result
}

// Group returns the descriptors of the group in registration order.
func (reg *Registry) Group(g Group) []*Descriptor {
	var result []*Descriptor
	for _, desc := range reg.list {
		if desc.Group == g {
			result = append(result, desc)
		}
	}
	return result
}

// Filter selects the named syscalls, or all syscalls of the group if
// names is empty. GroupNone with no names selects everything.
func (reg *Registry) Filter(names []string, g Group) ([]*Descriptor, error) {
	if len(names) > 0 {
		var result []*Descriptor
		for _, name := range names {
			desc, err := reg.Lookup(name)
			if err != nil {
				return nil, err
			}
			result = append(result, desc)
		}
		return result, nil
	}
	if g == GroupNone {
		return reg.All(), nil
	}
	result := reg.Group(g)
	if len(result) == 0 {
		return nil, errors.Errorf("no syscalls in group %v", g)
	}
	return result, nil
}
