//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	var buf bytes.Buffer

	cmd, _ := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"list", "-g", "vm"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	require.Contains(t, out, "mbind")
	require.Contains(t, out, "mprotect")
	require.NotContains(t, out, "setsockopt")
}

func TestListUnknown(t *testing.T) {
	cmd, _ := newRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"list", "fork"})
	require.Error(t, cmd.Execute())
}

func TestFlagsOverride(t *testing.T) {
	cmd, f := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"-C", "3", "--no-log", "-c", "mbind,mlock", "--log-dir", t.TempDir(),
	}))

	params, err := f.params(cmd)
	require.NoError(t, err)
	require.Equal(t, 3, params.Children)
	require.False(t, params.Logging)
	require.Equal(t, []string{"mbind", "mlock"}, params.Syscalls)
	require.False(t, params.Monochrome)
}

func TestFlagsInvalid(t *testing.T) {
	cmd, f := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-C", "0"}))
	_, err := f.params(cmd)
	require.Error(t, err)
}
