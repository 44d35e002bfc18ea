//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package maps

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/slox3r/trinity/random"
)

func TestOpen(t *testing.T) {
	pool, err := Open(nil)
	require.NoError(t, err)
	defer pool.Close()

	require.Equal(t, 2*len(Pages), pool.Len())
	page := uint64(pool.PageSize())
	for _, m := range pool.Maps() {
		require.Zero(t, m.Ptr%page, m.Name)
		require.Zero(t, m.Size%page, m.Name)
		require.Equal(t, unix.PROT_READ|unix.PROT_WRITE, m.Prot)

		found, ok := pool.Lookup(m.Ptr)
		require.True(t, ok)
		require.Equal(t, m, found)
	}
	_, ok := pool.Lookup(1)
	require.False(t, ok)
}

func TestGet(t *testing.T) {
	pool, err := Open([]int{1, 8})
	require.NoError(t, err)
	defer pool.Close()

	page := uint64(pool.PageSize())
	r := random.New(7)
	for i := 0; i < 100; i++ {
		m, ok := pool.Get(r, 2*page)
		require.True(t, ok)
		require.Equal(t, 8*page, m.Size)

		m, ok = pool.Get(r, 0)
		require.True(t, ok)
		require.NotZero(t, m.Ptr)
	}
	_, ok := pool.Get(r, 16*page)
	require.False(t, ok)
}

func TestSetProt(t *testing.T) {
	pool, err := Open([]int{1})
	require.NoError(t, err)
	defer pool.Close()

	m := pool.Maps()[0]
	pool.SetProt(m.Ptr, unix.PROT_READ)
	found, ok := pool.Lookup(m.Ptr)
	require.True(t, ok)
	require.Equal(t, unix.PROT_READ, found.Prot)

	pool.SetProt(m.Ptr+1, unix.PROT_NONE)
	require.NoError(t, pool.Close())
	require.Zero(t, pool.Len())
}
