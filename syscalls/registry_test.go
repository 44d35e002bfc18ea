//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var validateTests = []struct {
	desc  *Descriptor
	valid bool
}{
	{
		desc:  EpollCtl,
		valid: true,
	},
	{
		desc: &Descriptor{
			Name: "noargs",
		},
	},
	{
		desc: &Descriptor{
			Name: "sevenargs",
			Args: make([]ArgSpec, 7),
		},
	},
	{
		desc: &Descriptor{
			Args: make([]ArgSpec, 1),
		},
	},
	{
		desc: &Descriptor{
			Name: "emptylist",
			Args: []ArgSpec{
				{
					Name: "a",
					Type: ArgList,
				},
			},
		},
	},
	{
		desc: &Descriptor{
			Name: "badrange",
			Args: []ArgSpec{
				{
					Name: "a",
					Type: ArgRange,
					Low:  10,
					High: 9,
				},
			},
		},
	},
	{
		desc: &Descriptor{
			Name: "pointrange",
			Args: []ArgSpec{
				{
					Name: "a",
					Type: ArgRange,
					Low:  9,
					High: 9,
				},
			},
		},
		valid: true,
	},
}

func TestValidate(t *testing.T) {
	for i, test := range validateTests {
		err := test.desc.Validate()
		if test.valid {
			require.NoError(t, err, "test-%d", i)
			continue
		}
		var cerr *CorruptError
		require.True(t, errors.As(err, &cerr), "test-%d: %v", i, err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	require.Equal(t, len(Table), reg.Len())

	for _, desc := range Table {
		found, err := reg.Lookup(desc.Name)
		require.NoError(t, err)
		require.Same(t, desc, found)
	}

	_, err := reg.Lookup("no_such_syscall")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistryOrder(t *testing.T) {
	reg := Default()
	a := reg.All()
	b := reg.All()
	require.Equal(t, a, b)
	for i, desc := range a {
		require.Same(t, Table[i], desc)
		idx, err := reg.Index(desc.Name)
		require.NoError(t, err)
		require.Equal(t, i, idx)
		at, ok := reg.At(i)
		require.True(t, ok)
		require.Same(t, desc, at)
	}
	_, ok := reg.At(len(a))
	require.False(t, ok)

	// Mutating the returned slice must not affect the registry.
	a[0] = nil
	require.NotNil(t, reg.All()[0])
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(Mbind, Mbind)
	require.Error(t, err)

	require.Panics(t, func() {
		MustRegistry(&Descriptor{Name: "broken"})
	})
}

func TestRegistryGroups(t *testing.T) {
	reg := Default()
	vm := reg.Group(GroupVM)
	require.NotEmpty(t, vm)
	for _, desc := range vm {
		require.Equal(t, GroupVM, desc.Group)
	}

	descs, err := reg.Filter(nil, GroupVM)
	require.NoError(t, err)
	require.Equal(t, vm, descs)

	descs, err = reg.Filter(nil, GroupNone)
	require.NoError(t, err)
	require.Len(t, descs, reg.Len())

	descs, err = reg.Filter([]string{"mbind", "setsockopt"}, GroupVM)
	require.NoError(t, err)
	require.Equal(t, []*Descriptor{Mbind, Setsockopt}, descs)

	_, err = reg.Filter([]string{"nope"}, GroupNone)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestParseGroup(t *testing.T) {
	g, err := ParseGroup("vm")
	require.NoError(t, err)
	require.Equal(t, GroupVM, g)

	g, err = ParseGroup("")
	require.NoError(t, err)
	require.Equal(t, GroupNone, g)

	_, err = ParseGroup("bogus")
	require.Error(t, err)
}
