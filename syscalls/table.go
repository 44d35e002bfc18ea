//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package syscalls

// Table lists the built-in syscall descriptors.
var Table = []*Descriptor{
	EpollCtl,
	Madvise,
	Mbind,
	Mlock,
	Mprotect,
	Setsockopt,
}

// Default creates a registry of the built-in descriptors.
func Default() *Registry {
	return MustRegistry(Table...)
}
