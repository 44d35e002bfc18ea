//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/slox3r/trinity/shm"
)

// Level defines the verbosity of a diagnostic message. Messages with
// a level below the quiet level are echoed to the console.
type Level uint8

// Message levels.
const (
	// LevelAll covers everything, including register dumps.
	LevelAll Level = iota
	// LevelStatus covers periodic status such as operation counts.
	LevelStatus
	// LevelSummary covers seeds and run summaries.
	LevelSummary
)

// DefaultQuietLevel echoes every message.
const DefaultQuietLevel = LevelSummary + 1

// NoChannel is returned by HighestFD when logging is disabled.
const NoChannel = -1

// BufferSize is the maximum length of a rendered message.
const BufferSize = 1024

// GlobalChannelName is the file name of the global channel.
const GlobalChannelName = "trinity.log"

// ChannelName returns the file name of the slot's channel.
func ChannelName(slot int) string {
	return fmt.Sprintf("trinity-child%d.log", slot)
}

// Channel is a diagnostic output destination.
type Channel interface {
	io.Writer
	Sync() error
	Fd() uintptr
}

// Params define the router's output policy.
type Params struct {
	// Logging enables persisting messages to channels.
	Logging bool
	// QuietLevel is the echo threshold. Messages with a lower level
	// are printed to the console.
	QuietLevel Level
	// Monochrome persists messages without stripping colour escapes.
	Monochrome bool
}

// ChannelError reports a failed channel operation. Slot is -1 for
// the global channel.
type ChannelError struct {
	Slot int
	Err  error
}

func (e *ChannelError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("global channel: %v", e.Err)
	}
	return fmt.Sprintf("channel %d: %v", e.Slot, e.Err)
}

// Cause returns the underlying error.
func (e *ChannelError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

var reANSI = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Strip removes colour escape sequences from s.
func Strip(s string) string {
	if strings.IndexByte(s, 0x1b) < 0 {
		return s
	}
	return reANSI.ReplaceAllString(s, "")
}

// Router routes diagnostic messages to the global channel or the
// caller's slot channel.
type Router struct {
	params  Params
	dir     *shm.Directory
	region  *shm.Region
	console io.Writer
	stderr  io.Writer
	exit    func(code int)

	m      sync.Mutex
	global Channel
	slots  []Channel
}

// NewRouter creates a router. The slots are indexed by slot number
// and may be shorter than the region or contain nil entries; messages
// of workers without a channel go to the global channel.
func NewRouter(params Params, dir *shm.Directory, global Channel,
	slots []Channel) *Router {

	r := &Router{
		params:  params,
		dir:     dir,
		region:  dir.Region(),
		console: os.Stdout,
		stderr:  os.Stderr,
		exit:    os.Exit,
		global:  global,
		slots:   make([]Channel, dir.Region().MaxWorkers()),
	}
	copy(r.slots, slots)
	return r
}

// SetConsole sets the console writer for echoed messages.
func (r *Router) SetConsole(w io.Writer) {
	r.m.Lock()
	r.console = w
	r.m.Unlock()
}

// Emit routes the message of the process pid.
func (r *Router) Emit(level Level, pid int, msg string) {
	if !r.params.Logging && level >= r.params.QuietLevel {
		return
	}
	role, err := r.dir.RoleOf(pid)
	if err != nil {
		r.unresolved(pid, err)
		role = shm.Role{
			Kind: shm.RoleUnknown,
			Slot: -1,
			PID:  pid,
		}
	}
	r.emit(role, level, msg)
}

// Output formats and routes a message of an already resolved role.
func (r *Router) Output(role shm.Role, level Level, format string,
	a ...interface{}) {

	if !r.params.Logging && level >= r.params.QuietLevel {
		return
	}
	r.emit(role, level, fmt.Sprintf(format, a...))
}

// Errorf prints a message to standard error regardless of the
// thresholds.
func (r *Router) Errorf(format string, a ...interface{}) {
	r.m.Lock()
	fmt.Fprintf(r.stderr, format, a...)
	r.m.Unlock()
}

// Printf prints a message to the console regardless of the
// thresholds.
func (r *Router) Printf(format string, a ...interface{}) {
	r.m.Lock()
	fmt.Fprintf(r.console, format, a...)
	r.m.Unlock()
}

func (r *Router) emit(role shm.Role, level Level, msg string) {
	line := role.Prefix() + " " + msg
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if len(line) > BufferSize {
		L.Error("diagnostic overflow", "role", role, "length", len(line))
		r.Errorf("## output overflow in %s: %d bytes\n", role, len(line))
		r.exit(1)
		return
	}

	r.m.Lock()
	defer r.m.Unlock()

	if level < r.params.QuietLevel {
		io.WriteString(r.console, line)
	}
	if !r.params.Logging {
		return
	}
	if !r.params.Monochrome {
		line = Strip(line)
	}
	slot, ch := r.channel(role)
	if ch == nil {
		return
	}
	// Each message is a single write.
	if _, err := io.WriteString(ch, line); err != nil {
		L.Warn("channel write failed", "slot", slot, "error", err)
	}
}

// channel returns the channel of role. The caller must hold r.m.
func (r *Router) channel(role shm.Role) (int, Channel) {
	if !role.IsWorker() || role.Slot < 0 || role.Slot >= len(r.slots) {
		return -1, r.global
	}
	if r.region.Degraded() {
		return -1, r.global
	}
	ch := r.slots[role.Slot]
	if ch == nil {
		return -1, r.global
	}
	return role.Slot, ch
}

func (r *Router) unresolved(pid int, err error) {
	L.Warn("couldn't find channel for pid", "pid", pid, "error", err)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "## couldn't find channel for pid %d\n", pid)
	r.region.DumpSlots(&buf)
	r.Printf("%s", buf.String())

	if !r.region.Degraded() {
		L.Warn("degraded: routing all workers to the global channel")
	}
	r.region.SetDegraded()
}

// HighestFD returns the descriptor of the highest-indexed worker
// channel or NoChannel if logging is disabled or the channel is not
// open in this process.
func (r *Router) HighestFD() int {
	if !r.params.Logging {
		return NoChannel
	}
	r.m.Lock()
	defer r.m.Unlock()

	ch := r.slots[len(r.slots)-1]
	if ch == nil {
		return NoChannel
	}
	return int(ch.Fd())
}

// FlushAll syncs every worker channel and the global channel. Failing
// channels are reported and skipped; the returned error lists all of
// them.
func (r *Router) FlushAll() error {
	if !r.params.Logging {
		return nil
	}
	r.m.Lock()
	defer r.m.Unlock()

	var result *multierror.Error
	for slot, ch := range r.slots {
		if ch == nil {
			continue
		}
		if err := ch.Sync(); err != nil {
			L.Warn("fsyncing channel failed", "slot", slot, "error", err)
			result = multierror.Append(result, &ChannelError{
				Slot: slot,
				Err:  err,
			})
		}
	}
	if r.global != nil {
		if err := r.global.Sync(); err != nil {
			L.Warn("fsyncing global channel failed", "error", err)
			result = multierror.Append(result, &ChannelError{
				Slot: -1,
				Err:  err,
			})
		}
	}
	return result.ErrorOrNil()
}

// Close closes all channels that implement io.Closer.
func (r *Router) Close() error {
	r.m.Lock()
	defer r.m.Unlock()

	var result *multierror.Error
	for slot, ch := range r.slots {
		if c, ok := ch.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, &ChannelError{
					Slot: slot,
					Err:  err,
				})
			}
		}
		r.slots[slot] = nil
	}
	if c, ok := r.global.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, &ChannelError{
				Slot: -1,
				Err:  err,
			})
		}
	}
	r.global = nil
	return result.ErrorOrNil()
}

// OpenChannels creates the global channel and n slot channels in dir,
// truncating existing files.
func OpenChannels(dir string, n int) (*os.File, []*os.File, error) {
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name),
			os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0644)
	}
	global, err := open(GlobalChannelName)
	if err != nil {
		return nil, nil, errors.Wrap(err, "couldn't open global channel")
	}
	var slots []*os.File
	for i := 0; i < n; i++ {
		f, err := open(ChannelName(i))
		if err != nil {
			global.Close()
			for _, s := range slots {
				s.Close()
			}
			return nil, nil, errors.Wrapf(err, "couldn't open channel %d", i)
		}
		slots = append(slots, f)
	}
	return global, slots, nil
}

// Channels converts files into channels.
func Channels(files []*os.File) []Channel {
	result := make([]Channel, len(files))
	for idx, f := range files {
		if f != nil {
			result[idx] = f
		}
	}
	return result
}
