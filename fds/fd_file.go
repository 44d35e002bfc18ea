//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fds

import (
	"fmt"
	"os"
)

// FDFile implements file FDs.
type FDFile struct {
	f    *os.File
	kind Kind
}

// NewFileFD creates a new file FD.
func NewFileFD(f *os.File, kind Kind) *FDFile {
	return &FDFile{
		f:    f,
		kind: kind,
	}
}

// Fd implements FD.Fd.
func (fd *FDFile) Fd() int {
	return int(fd.f.Fd())
}

// Kind implements FD.Kind.
func (fd *FDFile) Kind() Kind {
	return fd.kind
}

// Close implements FD.Close.
func (fd *FDFile) Close() error {
	return fd.f.Close()
}

func openDevNull(pool *Pool, params *Params) error {
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	pool.add(NewFileFD(f, KindDevNull))
	return nil
}

func openFiles(pool *Pool, params *Params) error {
	for i := 0; i < params.Files; i++ {
		f, err := os.CreateTemp(params.Dir, fmt.Sprintf("trinity-fd%d-", i))
		if err != nil {
			return err
		}
		// The descriptor keeps the file alive.
		os.Remove(f.Name())
		if _, err := f.WriteString("trinity\n"); err != nil {
			f.Close()
			return err
		}
		pool.add(NewFileFD(f, KindFile))
	}
	return nil
}
