// File: uv/pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
)

// Pipe is a unix-domain stream socket, named or anonymous.
type Pipe struct {
	stream
	name  string
	owned bool // the socket file was created by Bind and is removed on close
}

// Init attaches the pipe to l. ipc marks pipes used to pass handles between
// processes.
func (p *Pipe) Init(l *Loop, ipc bool) error {
	if err := p.initStream(l, api.KindPipe, p); err != nil {
		return err
	}
	if ipc {
		p.scb.IPC = 1
	}
	p.name, p.owned = "", false
	p.onClosing = p.unlink
	return nil
}

// IPC reports whether the pipe was initialized for handle passing.
func (p *Pipe) IPC() bool { return p.scb.IPC != 0 }

// Open adopts an existing descriptor, such as one end of a socketpair.
func (p *Pipe) Open(fd int) error {
	if err := p.alive(); err != nil {
		return err
	}
	if p.scb.FD >= 0 {
		return api.EBUSY
	}
	if err := sysfd.SetNonblock(fd); err != nil {
		return err
	}
	p.scb.FD = int32(fd)
	p.scb.Flags |= flagConnected
	return nil
}

// Bind creates a socket bound to the filesystem path name.
func (p *Pipe) Bind(name string) error {
	if name == "" {
		return api.EINVAL
	}
	if err := p.alive(); err != nil {
		return err
	}
	if p.scb.FD >= 0 {
		return api.EINVAL
	}
	fd, err := sysfd.Socket(sysfd.AFUnix, sysfd.SockStream)
	if err != nil {
		return err
	}
	if err := sysfd.BindUnix(fd, name); err != nil {
		_ = sysfd.Close(fd)
		return err
	}
	p.scb.FD = int32(fd)
	p.name, p.owned = name, true
	return nil
}

// Connect starts connecting to the pipe bound at name.
func (p *Pipe) Connect(req *ConnectReq, name string, cb ConnectCallback) error {
	if req == nil || name == "" {
		return api.EINVAL
	}
	if err := p.alive(); err != nil {
		return err
	}
	if p.scb.FD >= 0 {
		return api.EINVAL
	}
	fd, err := sysfd.Socket(sysfd.AFUnix, sysfd.SockStream)
	if err != nil {
		return err
	}
	p.scb.FD = int32(fd)
	// Every failure to reach the peer, a missing socket file included, is
	// reported through cb.
	if err := p.connect(req, cb, func(fd int) (bool, error) {
		return sysfd.ConnectUnix(fd, name)
	}, func(error) bool { return true }); err != nil {
		_ = sysfd.Close(fd)
		p.scb.FD = -1
		return err
	}
	p.name = name
	return nil
}

// Getsockname returns the path the pipe is bound or connected to.
func (p *Pipe) Getsockname() (string, error) {
	if err := p.alive(); err != nil {
		return "", err
	}
	if p.scb.FD < 0 {
		return "", api.EBADF
	}
	return p.name, nil
}

func (p *Pipe) unlink() {
	if p.owned {
		_ = sysfd.Unlink(p.name)
		p.owned = false
	}
}
