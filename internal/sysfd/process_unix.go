//go:build unix

// File: internal/sysfd/process_unix.go
// Author: momentics <momentics@gmail.com>
//
// Process creation and reaping.

package sysfd

import (
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// SpawnAttr describes one child process.
type SpawnAttr struct {
	File   string
	Args   []string
	Env    []string
	Dir    string
	Files  []int // child fd i is Files[i]; -1 maps to /dev/null
	Setsid bool
	UID    *uint32
	GID    *uint32
}

// Spawn starts the child and returns its pid.
func Spawn(attr *SpawnAttr) (int, error) {
	path := attr.File
	if !strings.Contains(path, "/") {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return 0, errno(unix.ENOENT)
		}
		path = resolved
	}
	files := make([]uintptr, len(attr.Files))
	var devnull int = -1
	for i, fd := range attr.Files {
		if fd < 0 {
			if devnull < 0 {
				var err error
				devnull, err = unix.Open("/dev/null", unix.O_RDWR|unix.O_CLOEXEC, 0)
				if err != nil {
					return 0, errno(err)
				}
			}
			fd = devnull
		}
		files[i] = uintptr(fd)
	}
	if devnull >= 0 {
		defer unix.Close(devnull)
	}
	sys := &syscall.SysProcAttr{Setsid: attr.Setsid}
	if attr.UID != nil || attr.GID != nil {
		cred := &syscall.Credential{Uid: uint32(unix.Getuid()), Gid: uint32(unix.Getgid()), NoSetGroups: true}
		if attr.UID != nil {
			cred.Uid = *attr.UID
		}
		if attr.GID != nil {
			cred.Gid = *attr.GID
		}
		sys.Credential = cred
	}
	args := attr.Args
	if len(args) == 0 {
		args = []string{attr.File}
	}
	env := attr.Env
	if env == nil {
		env = syscall.Environ()
	}
	pid, err := syscall.ForkExec(path, args, &syscall.ProcAttr{
		Dir:   attr.Dir,
		Env:   env,
		Files: files,
		Sys:   sys,
	})
	if err != nil {
		return 0, errno(err)
	}
	return pid, nil
}

// Wait blocks until pid exits and reports (exit status, terminating signal).
func Wait(pid int) (int64, int, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, 0, errno(err)
		}
		break
	}
	switch {
	case ws.Exited():
		return int64(ws.ExitStatus()), 0, nil
	case ws.Signaled():
		return 0, int(ws.Signal()), nil
	}
	return 0, 0, nil
}

// Kill delivers signum to pid.
func Kill(pid, signum int) error {
	return errno(unix.Kill(pid, unix.Signal(signum)))
}
