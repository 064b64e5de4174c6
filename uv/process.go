// File: uv/process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Child processes. The child is reaped by a dedicated goroutine which posts
// the exit status back to the loop.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/reactor"
	"go.uber.org/zap"
)

// Process flags.
const (
	ProcessSetUID uint = 1 << iota
	ProcessSetGID
	ProcessWindowsVerbatimArguments
	ProcessDetached
	ProcessWindowsHide
)

// StdioFlags selects how one child descriptor is provided.
type StdioFlags uint

const (
	StdioIgnore        StdioFlags = 0x00
	StdioCreatePipe    StdioFlags = 0x01
	StdioInheritFD     StdioFlags = 0x02
	StdioInheritStream StdioFlags = 0x04
	StdioReadablePipe  StdioFlags = 0x10
	StdioWritablePipe  StdioFlags = 0x20
)

// StdioContainer describes child descriptor i. FD is used with
// StdioInheritFD, Stream with StdioInheritStream and StdioCreatePipe; for
// the latter Stream must be an initialized *Pipe without a descriptor.
type StdioContainer struct {
	Flags  StdioFlags
	FD     int
	Stream Stream
}

// ExitCallback reports how the child terminated: exitStatus for a normal
// exit, termSignal when a signal killed it.
type ExitCallback func(p *Process, exitStatus int64, termSignal int)

// ProcessOptions configures Spawn. Args includes the program name as
// Args[0]; nil Env inherits the parent environment.
type ProcessOptions struct {
	Exit  ExitCallback
	File  string
	Args  []string
	Env   []string
	Cwd   string
	Flags uint
	Stdio []StdioContainer
	UID   uint32
	GID   uint32
}

// Process is a spawned child.
type Process struct {
	handle
	pcb  *reactor.ProcessCB
	exit ExitCallback
	gen  uint64
}

// Spawn initializes p on l and starts the child described by opts. When
// the child cannot be started the error is returned and p stays
// initialized; it must still be closed.
func Spawn(l *Loop, p *Process, opts *ProcessOptions) error {
	if p == nil || opts == nil || opts.File == "" {
		return api.EINVAL
	}
	if err := p.init(l, api.KindProcess, p, p.stop); err != nil {
		return err
	}
	p.pcb = reactor.View[reactor.ProcessCB](p.block)
	p.exit = opts.Exit
	p.gen++
	p.pcb.Flags = uint32(opts.Flags)
	p.pcb.StdioCount = int32(len(opts.Stdio))

	attr := &sysfd.SpawnAttr{
		File:   opts.File,
		Args:   opts.Args,
		Env:    opts.Env,
		Dir:    opts.Cwd,
		Setsid: opts.Flags&ProcessDetached != 0,
	}
	if opts.Flags&ProcessSetUID != 0 {
		uid := opts.UID
		attr.UID = &uid
	}
	if opts.Flags&ProcessSetGID != 0 {
		gid := opts.GID
		attr.GID = &gid
	}

	var (
		childEnds  []int
		parentEnds = map[int]*Pipe{}
	)
	release := func(parents bool) {
		for _, fd := range childEnds {
			_ = sysfd.Close(fd)
		}
		if parents {
			for fd := range parentEnds {
				_ = sysfd.Close(fd)
			}
		}
	}
	attr.Files = make([]int, len(opts.Stdio))
	for i, c := range opts.Stdio {
		switch {
		case c.Flags&StdioCreatePipe != 0:
			pipe, ok := c.Stream.(*Pipe)
			if !ok || pipe.alive() != nil || pipe.scb.FD >= 0 {
				release(true)
				return api.EINVAL
			}
			parent, child, err := sysfd.Socketpair()
			if err != nil {
				release(true)
				return err
			}
			childEnds = append(childEnds, child)
			parentEnds[parent] = pipe
			attr.Files[i] = child
		case c.Flags&StdioInheritFD != 0:
			attr.Files[i] = c.FD
		case c.Flags&StdioInheritStream != 0:
			if c.Stream == nil {
				release(true)
				return api.EINVAL
			}
			fd, err := c.Stream.streamBase().Fileno()
			if err != nil {
				release(true)
				return err
			}
			attr.Files[i] = fd
		default:
			attr.Files[i] = -1
		}
	}

	pid, err := sysfd.Spawn(attr)
	if err != nil {
		release(true)
		l.log.Debug("spawn failed", zap.String("file", opts.File), zap.Error(err))
		return err
	}
	release(false)
	for fd, pipe := range parentEnds {
		if err := pipe.Open(fd); err != nil {
			_ = sysfd.Close(fd)
		}
	}
	p.pcb.PID = int32(pid)
	p.markStarted()
	l.log.Debug("process spawned", zap.String("file", opts.File), zap.Int("pid", pid))

	gen := p.gen
	go func() {
		status, sig, err := sysfd.Wait(pid)
		l.post(func() { p.onExit(gen, status, sig, err) })
	}()
	return nil
}

// PID returns the child process id, 0 before a successful spawn.
func (p *Process) PID() int {
	if p.pcb == nil {
		return 0
	}
	return int(p.pcb.PID)
}

// Kill sends signum to the child. ESRCH once the child has been reaped.
func (p *Process) Kill(signum int) error {
	if err := p.alive(); err != nil {
		return err
	}
	if p.pcb.PID == 0 || !p.active {
		return api.ESRCH
	}
	return sysfd.Kill(int(p.pcb.PID), signum)
}

// Kill sends signum to an arbitrary process.
func Kill(pid, signum int) error {
	return sysfd.Kill(pid, signum)
}

func (p *Process) stop() {
	p.markStopped()
}

func (p *Process) onExit(gen uint64, status int64, sig int, err error) {
	if gen != p.gen || p.IsClosing() {
		return
	}
	if err != nil {
		p.loop.log.Warn("wait failed", zap.Int32("pid", p.pcb.PID), zap.Error(err))
	}
	p.pcb.ExitStatus = status
	p.pcb.TermSignal = int32(sig)
	p.markStopped()
	if p.exit != nil {
		p.exit(p, status, sig)
	}
}
