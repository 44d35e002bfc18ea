//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fds

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/slox3r/trinity/random"
)

func TestOpen(t *testing.T) {
	params := DefaultParams()
	params.Dir = t.TempDir()

	pool, err := Open(params)
	require.NoError(t, err)
	defer pool.Close()

	kinds := make(map[Kind]int)
	for _, fd := range pool.FDs() {
		kinds[fd.Kind()]++
		_, err := unix.FcntlInt(uintptr(fd.Fd()), unix.F_GETFD, 0)
		require.NoError(t, err, "%s fd %d", fd.Kind(), fd.Fd())
	}
	require.Equal(t, 1, kinds[KindDevNull])
	require.Equal(t, params.Files, kinds[KindFile])
	require.Equal(t, 2*params.Pipes, kinds[KindPipe])
	require.Equal(t, 1, kinds[KindEpoll])
}

func TestRandomFD(t *testing.T) {
	params := DefaultParams()
	params.Dir = t.TempDir()

	pool, err := Open(params)
	require.NoError(t, err)
	defer pool.Close()

	members := make(map[int]bool)
	for _, fd := range pool.FDs() {
		members[fd.Fd()] = true
	}
	r := random.New(1)
	for i := 0; i < 1000; i++ {
		require.True(t, members[pool.RandomFD(r)])
	}
}

func TestClose(t *testing.T) {
	pool, err := Open(&Params{
		Dir:   t.TempDir(),
		Files: 1,
	})
	require.NoError(t, err)
	require.NotZero(t, pool.Len())
	require.NoError(t, pool.Close())
	require.Zero(t, pool.Len())
	require.Equal(t, -1, pool.RandomFD(random.New(1)))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "eventfd", KindEventFD.String())
	require.Equal(t, "{Kind 42}", Kind(42).String())
}
