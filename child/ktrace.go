//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package child

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/syscalls"
)

var (
	callColor  = color.New(color.FgCyan).SprintFunc()
	errnoColor = color.New(color.FgRed).SprintFunc()
	retColor   = color.New(color.FgGreen).SprintFunc()
)

func (w *Worker) ktraceCall(desc *syscalls.Descriptor) {
	if !w.ktrace {
		return
	}
	var sb strings.Builder
	sb.WriteString("CALL ")
	sb.WriteString(callColor(desc.Name))
	sb.WriteRune('(')
	for i := 0; i < desc.NumArgs(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		v := w.slot.Arg(i)
		if desc.Args[i].Type == syscalls.ArgFD {
			fmt.Fprintf(&sb, "%d", int32(v))
		} else {
			fmt.Fprintf(&sb, "0x%x", v)
		}
	}
	sb.WriteRune(')')
	w.output(log.LevelAll, sb.String())
}

func (w *Worker) ktraceRet(desc *syscalls.Descriptor, ret int64) {
	if !w.ktrace {
		return
	}
	errno := syscalls.RetErrno(ret)
	if errno != 0 {
		w.output(log.LevelAll, fmt.Sprintf("RET  %s %d %s",
			desc.Name, ret, errnoColor(errno)))
	} else {
		w.output(log.LevelAll, fmt.Sprintf("RET  %s %s",
			desc.Name, retColor(fmt.Sprintf("0x%x", ret))))
	}
}

func (w *Worker) ktraceExit(err error) {
	if !w.ktrace {
		return
	}
	snap, serr := w.region.Snapshot(w.slot.Index())
	if serr != nil {
		return
	}
	w.output(log.LevelAll, fmt.Sprintf("EXIT ops=%d err=%v", snap.Ops, err))
}
