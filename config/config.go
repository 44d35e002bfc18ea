//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package config

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/shm"
	"github.com/slox3r/trinity/syscalls"
)

// DefaultChildOps is the default number of operations a worker runs
// before it exits and its slot is respawned.
const DefaultChildOps = 100000

// Params define the harness parameters.
type Params struct {
	// Children is the number of worker processes.
	Children int `yaml:"children"`
	// Seed is the master seed. Zero selects a random seed.
	Seed int64 `yaml:"seed"`
	// Logging enables the diagnostic channel files.
	Logging bool `yaml:"logging"`
	// QuietLevel is the console echo threshold.
	QuietLevel int `yaml:"quiet_level"`
	// Monochrome disables colour escapes.
	Monochrome bool `yaml:"monochrome"`
	// LogDir is the directory of the channel files.
	LogDir string `yaml:"log_dir"`
	// Syscalls limits fuzzing to the named syscalls.
	Syscalls []string `yaml:"syscalls"`
	// Group limits fuzzing to a syscall group.
	Group string `yaml:"group"`
	// Ops stops the run after this many operations in total. Zero runs
	// until interrupted.
	Ops uint64 `yaml:"ops"`
	// ChildOps is the number of operations per worker lifetime.
	ChildOps uint64 `yaml:"child_ops"`
	// Live invokes the real system calls instead of a dry run.
	Live bool `yaml:"live"`
	// Ktrace enables per-call trace lines.
	Ktrace bool `yaml:"ktrace"`
	// LookupDelay is the identity directory retry delay.
	LookupDelay time.Duration `yaml:"lookup_delay"`
	// LogLevel is the internal logger level.
	LogLevel string `yaml:"log_level"`
}

// Default returns the default parameters.
func Default() *Params {
	children := runtime.NumCPU()
	if children > shm.MaxWorkers {
		children = shm.MaxWorkers
	}
	return &Params{
		Children:    children,
		Logging:     true,
		QuietLevel:  int(log.DefaultQuietLevel),
		LogDir:      ".",
		ChildOps:    DefaultChildOps,
		LookupDelay: shm.DefaultLookupDelay,
		LogLevel:    "info",
	}
}

// Load reads parameters from the YAML file path on top of the
// defaults.
func Load(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return params, nil
}

// Parse reads parameters from YAML on top of the defaults. Unknown
// keys are errors.
func Parse(in io.Reader) (*Params, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	params := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return params, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(params); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return params, nil
}

// Validate checks the parameters.
func (p *Params) Validate() error {
	if p.Children < 1 || p.Children > shm.MaxWorkers {
		return errors.Errorf("children %d out of range [1, %d]",
			p.Children, shm.MaxWorkers)
	}
	if p.QuietLevel < 0 || p.QuietLevel > int(log.DefaultQuietLevel) {
		return errors.Errorf("quiet level %d out of range [0, %d]",
			p.QuietLevel, log.DefaultQuietLevel)
	}
	if p.LookupDelay < 0 {
		return errors.Errorf("negative lookup delay %v", p.LookupDelay)
	}
	if p.ChildOps == 0 {
		return errors.New("child ops must be positive")
	}
	if _, err := syscalls.ParseGroup(p.Group); err != nil {
		return err
	}
	if len(p.LogDir) == 0 {
		p.LogDir = "."
	}
	return nil
}

// Descriptors returns the registry descriptors selected by the
// parameters.
func (p *Params) Descriptors(reg *syscalls.Registry) (
	[]*syscalls.Descriptor, error) {

	g, err := syscalls.ParseGroup(p.Group)
	if err != nil {
		return nil, err
	}
	descs, err := reg.Filter(p.Syscalls, g)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, errors.New("no syscalls selected")
	}
	return descs, nil
}

// Router returns the diagnostic router parameters.
func (p *Params) Router() log.Params {
	return log.Params{
		Logging:    p.Logging,
		QuietLevel: log.Level(p.QuietLevel),
		Monochrome: p.Monochrome,
	}
}

// Directory returns the identity directory parameters.
func (p *Params) Directory() *shm.DirectoryParams {
	return &shm.DirectoryParams{
		Delay: p.LookupDelay,
	}
}

// Marshal encodes the parameters as YAML.
func (p *Params) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
