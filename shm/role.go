//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package shm

import (
	"fmt"
)

// RoleKind defines the process role kinds.
type RoleKind int

// Process role kinds.
const (
	RoleUnknown RoleKind = iota
	RoleCoordinator
	RoleWatchdog
	RoleInit
	RoleWorker
)

var roleNames = map[RoleKind]string{
	RoleUnknown:     "unknown",
	RoleCoordinator: "main",
	RoleWatchdog:    "watchdog",
	RoleInit:        "init",
	RoleWorker:      "worker",
}

func (kind RoleKind) String() string {
	name, ok := roleNames[kind]
	if ok {
		return name
	}
	return fmt.Sprintf("{RoleKind %d}", kind)
}

// Role is the resolved role of a process. Slot is valid for
// RoleWorker only.
type Role struct {
	Kind RoleKind
	Slot int
	PID  int
}

// IsWorker tests if the role is a worker role.
func (role Role) IsWorker() bool {
	return role.Kind == RoleWorker
}

// Prefix returns the diagnostic prefix of the role.
func (role Role) Prefix() string {
	switch role.Kind {
	case RoleWorker:
		return fmt.Sprintf("[worker:%d:%d]", role.Slot, role.PID)
	case RoleUnknown:
		return fmt.Sprintf("[unknown:%d]", role.PID)
	default:
		return "[" + role.Kind.String() + "]"
	}
}

func (role Role) String() string {
	if role.Kind == RoleWorker {
		return fmt.Sprintf("worker:%d:%d", role.Slot, role.PID)
	}
	return role.Kind.String()
}
