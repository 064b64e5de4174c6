// File: uv/fs.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// File-system requests. Each operation runs the blocking call on its own
// goroutine and posts the outcome to the loop, where the callback fires.
// Operations submitted together may complete in any order.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/reactor"
)

// FsType identifies the operation of an FsReq.
type FsType uint32

const (
	FsOpUnknown FsType = iota
	FsOpOpen
	FsOpClose
	FsOpRead
	FsOpWrite
	FsOpUnlink
	FsOpStat
	FsOpFstat
	FsOpMkdir
	FsOpRmdir
	FsOpReaddir
)

func (t FsType) String() string {
	switch t {
	case FsOpOpen:
		return "open"
	case FsOpClose:
		return "close"
	case FsOpRead:
		return "read"
	case FsOpWrite:
		return "write"
	case FsOpUnlink:
		return "unlink"
	case FsOpStat:
		return "stat"
	case FsOpFstat:
		return "fstat"
	case FsOpMkdir:
		return "mkdir"
	case FsOpRmdir:
		return "rmdir"
	case FsOpReaddir:
		return "readdir"
	}
	return "unknown"
}

// Open flags accepted by FsOpen.
const (
	ORdonly = sysfd.O_RDONLY
	OWronly = sysfd.O_WRONLY
	ORdwr   = sysfd.O_RDWR
	OCreat  = sysfd.O_CREAT
	OTrunc  = sysfd.O_TRUNC
	OAppend = sysfd.O_APPEND
	OExcl   = sysfd.O_EXCL
)

// FsCallback runs once when the operation finished.
type FsCallback func(req *FsReq)

// FsReq is a file-system request. Results stay readable until the request
// is reused or Cleanup is called.
type FsReq struct {
	request
	fcb     *reactor.FsCB
	cb      FsCallback
	path    string
	bufs    [][]byte
	err     error
	stat    api.Stat
	hasStat bool
	dirents []string
	hasDirs bool
}

type fsResult struct {
	n     int64
	stat  *api.Stat
	names []string
	err   error
}

// Type returns the operation of the last submission.
func (r *FsReq) Type() FsType {
	if r.fcb == nil {
		return FsOpUnknown
	}
	return FsType(r.fcb.Op)
}

// Result returns the operation result: the descriptor for open, the byte
// count for read and write, the entry count for readdir, 0 otherwise. On
// failure it is the negative status code.
func (r *FsReq) Result() int64 {
	if r.fcb == nil {
		return 0
	}
	return r.fcb.Result
}

// Err returns the failure of the operation, nil on success.
func (r *FsReq) Err() error { return r.err }

// Path returns the path argument of the last submission.
func (r *FsReq) Path() string { return r.path }

// StatBuf returns the stat payload of a successful stat or fstat.
func (r *FsReq) StatBuf() (api.Stat, bool) { return r.stat, r.hasStat }

// Dirents returns the sorted entry names of a successful readdir.
func (r *FsReq) Dirents() ([]string, bool) { return r.dirents, r.hasDirs }

// Cleanup drops the results and buffers held by the request.
func (r *FsReq) Cleanup() {
	r.path = ""
	r.bufs = nil
	r.err = nil
	r.stat, r.hasStat = api.Stat{}, false
	r.dirents, r.hasDirs = nil, false
}

func (r *FsReq) start(l *Loop, op FsType, cb FsCallback, prepare func(c *reactor.FsCB), work func() fsResult) error {
	if err := checkLoop(l); err != nil {
		return err
	}
	if r == nil || cb == nil {
		return api.EINVAL
	}
	r.submit(l, api.KindFs)
	r.Cleanup()
	r.fcb = reactor.View[reactor.FsCB](r.block)
	r.fcb.Op = uint32(op)
	r.fcb.FD = -1
	r.fcb.Offset = -1
	r.cb = cb
	if prepare != nil {
		prepare(r.fcb)
	}
	go func() {
		res := work()
		l.post(func() { r.complete(res) })
	}()
	return nil
}

func (r *FsReq) complete(res fsResult) {
	r.finish()
	if res.err != nil {
		r.err = res.err
		r.fcb.Result = int64(api.FromSys(res.err))
	} else {
		r.fcb.Result = res.n
		if res.stat != nil {
			r.stat, r.hasStat = *res.stat, true
		}
		if res.names != nil {
			r.dirents, r.hasDirs = res.names, true
		}
	}
	r.cb(r)
}

// FsOpen opens path; the descriptor is the request result.
func FsOpen(l *Loop, req *FsReq, path string, flags int, mode uint32, cb FsCallback) error {
	if req == nil || path == "" {
		return api.EINVAL
	}
	if err := req.start(l, FsOpOpen, cb, func(c *reactor.FsCB) {
		c.Flags = int32(flags)
		c.Mode = mode
	}, func() fsResult {
		fd, err := sysfd.Open(path, flags, mode)
		return fsResult{n: int64(fd), err: err}
	}); err != nil {
		return err
	}
	req.path = path
	return nil
}

// FsClose closes fd.
func FsClose(l *Loop, req *FsReq, fd int, cb FsCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if fd < 0 {
		return api.EBADF
	}
	return req.start(l, FsOpClose, cb, func(c *reactor.FsCB) { c.FD = int32(fd) }, func() fsResult {
		return fsResult{err: sysfd.Close(fd)}
	})
}

// FsRead reads into bufs from offset, or from the current file position
// when offset is negative. The result is the number of bytes read, 0 at end
// of file.
func FsRead(l *Loop, req *FsReq, fd int, bufs []api.Buf, offset int64, cb FsCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if fd < 0 {
		return api.EBADF
	}
	views := api.Bufs(bufs)
	if err := req.start(l, FsOpRead, cb, func(c *reactor.FsCB) {
		c.FD = int32(fd)
		c.Offset = offset
	}, func() fsResult {
		return transfer(views, offset, func(p []byte, off int64) (int, error) {
			return sysfd.Pread(fd, p, off)
		})
	}); err != nil {
		return err
	}
	req.bufs = views
	return nil
}

// FsWrite writes bufs at offset, or at the current file position when
// offset is negative.
func FsWrite(l *Loop, req *FsReq, fd int, bufs []api.Buf, offset int64, cb FsCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if fd < 0 {
		return api.EBADF
	}
	views := api.Bufs(bufs)
	if err := req.start(l, FsOpWrite, cb, func(c *reactor.FsCB) {
		c.FD = int32(fd)
		c.Offset = offset
	}, func() fsResult {
		return transfer(views, offset, func(p []byte, off int64) (int, error) {
			return sysfd.Pwrite(fd, p, off)
		})
	}); err != nil {
		return err
	}
	req.bufs = views
	return nil
}

// transfer runs op over bufs in order, stopping at the first short transfer.
// Bytes moved before an error are reported instead of the error.
func transfer(bufs [][]byte, offset int64, op func(p []byte, off int64) (int, error)) fsResult {
	var total int64
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := op(b, offset)
		if n > 0 {
			total += int64(n)
			if offset >= 0 {
				offset += int64(n)
			}
		}
		if err != nil {
			if total > 0 {
				return fsResult{n: total}
			}
			return fsResult{err: err}
		}
		if n < len(b) {
			break
		}
	}
	return fsResult{n: total}
}

// FsUnlink removes the file at path.
func FsUnlink(l *Loop, req *FsReq, path string, cb FsCallback) error {
	return pathOp(l, req, FsOpUnlink, path, cb, func() fsResult {
		return fsResult{err: sysfd.Unlink(path)}
	})
}

// FsStat stats path.
func FsStat(l *Loop, req *FsReq, path string, cb FsCallback) error {
	return pathOp(l, req, FsOpStat, path, cb, func() fsResult {
		st, err := sysfd.Stat(path)
		if err != nil {
			return fsResult{err: err}
		}
		return fsResult{stat: &st}
	})
}

// FsFstat stats an open descriptor.
func FsFstat(l *Loop, req *FsReq, fd int, cb FsCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if fd < 0 {
		return api.EBADF
	}
	return req.start(l, FsOpFstat, cb, func(c *reactor.FsCB) { c.FD = int32(fd) }, func() fsResult {
		st, err := sysfd.Fstat(fd)
		if err != nil {
			return fsResult{err: err}
		}
		return fsResult{stat: &st}
	})
}

// FsMkdir creates the directory path.
func FsMkdir(l *Loop, req *FsReq, path string, mode uint32, cb FsCallback) error {
	return pathOp(l, req, FsOpMkdir, path, cb, func() fsResult {
		return fsResult{err: sysfd.Mkdir(path, mode)}
	})
}

// FsRmdir removes the empty directory path.
func FsRmdir(l *Loop, req *FsReq, path string, cb FsCallback) error {
	return pathOp(l, req, FsOpRmdir, path, cb, func() fsResult {
		return fsResult{err: sysfd.Rmdir(path)}
	})
}

// FsReaddir lists the entries of path in name order, excluding "." and "..".
func FsReaddir(l *Loop, req *FsReq, path string, cb FsCallback) error {
	return pathOp(l, req, FsOpReaddir, path, cb, func() fsResult {
		names, err := sysfd.Readdir(path)
		if err != nil {
			return fsResult{err: err}
		}
		if names == nil {
			names = []string{}
		}
		return fsResult{n: int64(len(names)), names: names}
	})
}

func pathOp(l *Loop, req *FsReq, op FsType, path string, cb FsCallback, work func() fsResult) error {
	if req == nil || path == "" {
		return api.EINVAL
	}
	if err := req.start(l, op, cb, nil, work); err != nil {
		return err
	}
	req.path = path
	return nil
}
