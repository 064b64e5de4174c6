// File: uv/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection-oriented stream machinery shared by TCP and pipe handles:
// readiness registration, reads, ordered write queue, listen/accept and
// non-blocking connect.

package uv

import (
	"errors"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/reactor"
	"go.uber.org/zap"
)

// AllocCallback supplies the buffer for the next read. suggested is a size
// hint. Returning an empty buffer makes the read fail with ENOBUFS.
type AllocCallback func(h Handle, suggested int) api.Buf

// ReadCallback receives nread bytes in buf. A non-nil err is api.EOF at the
// end of the stream or another api.Errno; reading stops after EOF. buf is
// only valid for the duration of the call.
type ReadCallback func(s Stream, nread int, buf api.Buf, err error)

// ConnectionCallback signals that server has a connection ready for Accept.
type ConnectionCallback func(server Stream, err error)

// ConnectCallback reports the outcome of a connect request.
type ConnectCallback func(req *ConnectReq, err error)

// WriteCallback reports the outcome of a write request.
type WriteCallback func(req *WriteReq, err error)

// Stream is implemented by TCP and Pipe.
type Stream interface {
	Handle
	ReadStart(alloc AllocCallback, cb ReadCallback) error
	ReadStop() error
	Write(req *WriteReq, bufs []api.Buf, cb WriteCallback) error
	Listen(backlog int, cb ConnectionCallback) error
	Accept(client Stream) error
	IsReadable() bool
	IsWritable() bool
	WriteQueueSize() uint64

	streamBase() *stream
}

// ConnectReq is a pending connect.
type ConnectReq struct {
	request
	rcb    *reactor.ReqCB
	handle Stream
	cb     ConnectCallback
}

// Handle returns the stream the request was submitted on.
func (r *ConnectReq) Handle() Stream { return r.handle }

// WriteReq is a pending write.
type WriteReq struct {
	request
	rcb    *reactor.ReqCB
	handle Stream
	cb     WriteCallback
	bufs   [][]byte // unwritten remainder
}

// Handle returns the stream the request was submitted on.
func (r *WriteReq) Handle() Stream { return r.handle }

// Written returns how many bytes of the request reached the kernel.
func (r *WriteReq) Written() uint64 {
	if r.rcb == nil {
		return 0
	}
	return r.rcb.Written
}

const (
	flagReading uint32 = 1 << iota
	flagListening
	flagConnecting
	flagConnected
	flagReadEOF
	flagAcceptPaused
)

// acceptBackoff is how long a listener stops polling after a failed accept.
// Errors such as EMFILE persist while the socket stays readable.
const acceptBackoff = 100 * time.Millisecond

// maxReadsPerEvent bounds reads per readiness event so one busy stream
// cannot starve the rest of the iteration.
const maxReadsPerEvent = 32

type stream struct {
	handle
	scb       *reactor.StreamCB
	token     uintptr
	alloc     AllocCallback
	readCb    ReadCallback
	connCb    ConnectionCallback
	connReq   *ConnectReq
	connErr   error // connect failure detected synchronously, reported async
	writes    []*WriteReq
	onClosing func() // kind-specific teardown after the descriptor is closed
}

func (s *stream) streamBase() *stream { return s }

func (s *stream) initStream(l *Loop, kind api.Kind, self Stream) error {
	if err := s.init(l, kind, self, s.closeStream); err != nil {
		return err
	}
	s.scb = reactor.View[reactor.StreamCB](s.block)
	s.scb.FD = -1
	s.scb.AcceptedFD = -1
	s.token = 0
	s.alloc, s.readCb, s.connCb = nil, nil, nil
	s.connReq, s.connErr = nil, nil
	s.writes = nil
	return nil
}

func (s *stream) fd() int { return int(s.scb.FD) }

// Fileno returns the underlying descriptor, EBADF when there is none yet.
func (s *stream) Fileno() (int, error) {
	if s.scb == nil || s.scb.FD < 0 {
		return -1, api.EBADF
	}
	return s.fd(), nil
}

// IsReadable reports whether the stream can still deliver data.
func (s *stream) IsReadable() bool {
	return s.scb != nil && s.scb.FD >= 0 && s.scb.Flags&flagReadEOF == 0 && s.scb.Flags&flagListening == 0
}

// IsWritable reports whether writes may be queued.
func (s *stream) IsWritable() bool {
	return s.scb != nil && s.scb.FD >= 0 && s.scb.Flags&flagListening == 0
}

// WriteQueueSize returns the bytes queued but not yet written.
func (s *stream) WriteQueueSize() uint64 {
	if s.scb == nil {
		return 0
	}
	return s.scb.QueuedBytes
}

func (s *stream) has(f uint32) bool { return s.scb.Flags&f != 0 }

// interest derives the readiness set the stream currently needs.
func (s *stream) interest() api.IOEvents {
	var ev api.IOEvents
	switch {
	case s.has(flagConnecting):
		ev |= api.EventWrite
	case s.has(flagListening):
		if s.scb.AcceptedFD < 0 && !s.has(flagAcceptPaused) {
			ev |= api.EventRead
		}
	default:
		if s.has(flagReading) {
			ev |= api.EventRead
		}
		if len(s.writes) > 0 {
			ev |= api.EventWrite
		}
	}
	return ev
}

func (s *stream) updateInterest() {
	if s.scb.FD < 0 {
		return
	}
	l := s.loop
	want := s.interest()
	var err error
	switch {
	case want == 0 && s.token != 0:
		err = l.poller.Remove(s.fd())
		l.removeWatcher(s.token)
		s.token = 0
	case want != 0 && s.token == 0:
		s.token = l.addWatcher(s)
		err = l.poller.Add(s.fd(), want, s.token)
	case want != 0 && api.IOEvents(s.scb.Interest) != want:
		err = l.poller.Modify(s.fd(), want, s.token)
	}
	if err != nil {
		l.log.Warn("poll registration failed",
			zap.Stringer("kind", s.kind), zap.Int("fd", s.fd()), zap.Error(err))
	}
	s.scb.Interest = uint32(want)
}

func (s *stream) refreshActive() {
	if s.has(flagReading) || s.has(flagListening) {
		s.markStarted()
	} else {
		s.markStopped()
	}
}

// ReadStart begins delivering data to cb. A nil alloc uses the loop's
// pooled read buffers.
func (s *stream) ReadStart(alloc AllocCallback, cb ReadCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := s.alive(); err != nil {
		return err
	}
	if s.scb.FD < 0 || s.has(flagListening) {
		return api.ENOTCONN
	}
	if s.has(flagReading) {
		return api.EALREADY
	}
	s.alloc = alloc
	s.readCb = cb
	s.scb.Flags |= flagReading
	s.scb.Flags &^= flagReadEOF
	s.updateInterest()
	s.refreshActive()
	return nil
}

// ReadStop stops reading. It is a no-op on a stream that is not reading.
func (s *stream) ReadStop() error {
	if err := s.alive(); err != nil {
		return err
	}
	s.stopReading()
	return nil
}

func (s *stream) stopReading() {
	if !s.has(flagReading) {
		return
	}
	s.scb.Flags &^= flagReading
	s.updateInterest()
	s.refreshActive()
}

func (s *stream) onIO(ev api.IOEvents) {
	switch {
	case s.has(flagConnecting):
		s.finishConnect()
	case s.has(flagListening):
		s.acceptReady()
	default:
		if s.has(flagReading) && ev&(api.EventRead|api.EventError|api.EventHangup) != 0 {
			s.readReady()
		}
		if s.IsClosing() {
			return
		}
		if len(s.writes) > 0 && ev&(api.EventWrite|api.EventError|api.EventHangup) != 0 {
			s.flushWrites()
		}
	}
}

func (s *stream) readReady() {
	l := s.loop
	for i := 0; i < maxReadsPerEvent && s.has(flagReading) && !s.IsClosing(); i++ {
		var (
			buf    api.Buf
			pooled []byte
		)
		if s.alloc != nil {
			buf = s.alloc(s.self, l.bufs.Size())
		} else {
			pooled = l.bufs.GetBuffer()
			buf = api.BufFrom(pooled)
		}
		if buf.Len() == 0 {
			s.readCb(s.self.(Stream), 0, buf, api.ENOBUFS)
			return
		}
		n, err := sysfd.Read(s.fd(), buf.Bytes())
		if errors.Is(err, api.EAGAIN) {
			if pooled != nil {
				l.bufs.PutBuffer(pooled)
			} else {
				// Hand the caller's buffer back.
				s.readCb(s.self.(Stream), 0, buf, nil)
			}
			return
		}
		if err != nil {
			if errors.Is(err, api.EOF) {
				s.scb.Flags |= flagReadEOF
				s.stopReading()
			}
			s.readCb(s.self.(Stream), 0, buf, err)
			if pooled != nil {
				l.bufs.PutBuffer(pooled)
			}
			return
		}
		s.scb.ReadCount += uint64(n)
		s.readCb(s.self.(Stream), n, buf, nil)
		if pooled != nil {
			l.bufs.PutBuffer(pooled)
		}
		if n < buf.Len() {
			return
		}
	}
}

// Write queues bufs after any earlier writes on the stream. The callback
// fires once the data reached the kernel, or with an error. bufs must stay
// valid until then.
func (s *stream) Write(req *WriteReq, bufs []api.Buf, cb WriteCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if err := s.alive(); err != nil {
		return err
	}
	if s.scb.FD < 0 {
		return api.EBADF
	}
	if s.has(flagListening) {
		return api.ENOTCONN
	}
	l := s.loop
	req.submit(l, api.KindWrite)
	req.rcb = reactor.View[reactor.ReqCB](req.block)
	req.handle = s.self.(Stream)
	req.cb = cb
	req.bufs = nonEmpty(api.Bufs(bufs))
	total := uint64(api.TotalLen(bufs))
	req.rcb.Total = total
	s.scb.QueuedBytes += total
	s.writes = append(s.writes, req)
	if len(s.writes) == 1 && !s.has(flagConnecting) {
		s.flushWrites()
	}
	s.updateInterest()
	return nil
}

func nonEmpty(bufs [][]byte) [][]byte {
	out := bufs[:0]
	for _, b := range bufs {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func (s *stream) flushWrites() {
	for len(s.writes) > 0 {
		w := s.writes[0]
		var err error
		if len(w.bufs) > 0 {
			var n int
			n, err = sysfd.Writev(s.fd(), w.bufs)
			w.bufs = advance(w.bufs, n)
			w.rcb.Written += uint64(n)
			s.scb.QueuedBytes -= uint64(n)
			if errors.Is(err, api.EAGAIN) {
				break
			}
		}
		if err == nil && len(w.bufs) > 0 {
			break
		}
		s.writes[0] = nil
		s.writes = s.writes[1:]
		s.completeWrite(w, err)
	}
	if len(s.writes) == 0 {
		s.writes = nil
	}
	s.updateInterest()
}

func (s *stream) completeWrite(w *WriteReq, err error) {
	if err != nil {
		// Bytes that will never be written leave the queue too.
		s.scb.QueuedBytes -= w.rcb.Total - w.rcb.Written
		w.rcb.Status = int32(api.FromSys(err))
	} else {
		s.scb.WriteCount++
	}
	w.bufs = nil
	s.loop.deliver(&s.handle, &w.request, func() {
		if w.cb != nil {
			w.cb(w, err)
		}
	})
}

// advance drops n written bytes from the front of bufs.
func advance(bufs [][]byte, n int) [][]byte {
	for n > 0 && len(bufs) > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			return bufs
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}
	return bufs
}

// Listen starts accepting connections; cb runs once per connection ready
// for Accept.
func (s *stream) Listen(backlog int, cb ConnectionCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := s.alive(); err != nil {
		return err
	}
	if s.scb.FD < 0 {
		return api.EINVAL
	}
	if s.has(flagReading) || s.has(flagConnected) {
		return api.EINVAL
	}
	if err := sysfd.Listen(s.fd(), backlog); err != nil {
		return err
	}
	s.scb.Backlog = int32(backlog)
	s.connCb = cb
	s.scb.Flags |= flagListening
	s.updateInterest()
	s.refreshActive()
	return nil
}

func (s *stream) acceptReady() {
	for s.has(flagListening) && !s.IsClosing() && s.scb.AcceptedFD < 0 {
		fd, err := sysfd.Accept(s.fd())
		if errors.Is(err, api.EAGAIN) {
			return
		}
		if err != nil {
			s.pauseAccept(err)
			s.connCb(s.self.(Stream), err)
			return
		}
		s.scb.AcceptedFD = int32(fd)
		s.connCb(s.self.(Stream), nil)
	}
	if !s.IsClosing() {
		s.updateInterest()
	}
}

// pauseAccept drops read interest until the loop retries the listener, so a
// persistent accept error is reported once per backoff period.
func (s *stream) pauseAccept(err error) {
	if s.has(flagAcceptPaused) {
		return
	}
	s.scb.Flags |= flagAcceptPaused
	s.updateInterest()
	s.loop.pauseListener(s, acceptBackoff)
	s.loop.log.Warn("accept failed, backing off",
		zap.Stringer("kind", s.kind), zap.Duration("retry", acceptBackoff), zap.Error(err))
}

func (s *stream) resumeAccept() {
	if !s.has(flagAcceptPaused) || s.IsClosing() {
		return
	}
	s.scb.Flags &^= flagAcceptPaused
	s.updateInterest()
}

// Accept hands the connection announced by the connection callback to
// client, an initialized stream of the same kind without a descriptor.
// It fails with EAGAIN when no connection is waiting.
func (s *stream) Accept(client Stream) error {
	if err := s.alive(); err != nil {
		return err
	}
	if s.scb.AcceptedFD < 0 {
		return api.EAGAIN
	}
	if client == nil {
		return api.EINVAL
	}
	c := client.streamBase()
	if err := c.alive(); err != nil {
		return err
	}
	if c.kind != s.kind {
		return api.EINVAL
	}
	if c.scb.FD >= 0 {
		return api.EBUSY
	}
	c.scb.FD = s.scb.AcceptedFD
	c.scb.Flags |= flagConnected
	s.scb.AcceptedFD = -1
	s.updateInterest()
	return nil
}

// connect starts a connect on the stream's descriptor using dial. Dial
// errors accepted by deferred are reported through the callback instead of
// being returned.
func (s *stream) connect(req *ConnectReq, cb ConnectCallback, dial func(fd int) (bool, error), deferred func(error) bool) error {
	if s.has(flagConnecting) {
		return api.EALREADY
	}
	if s.has(flagConnected) || s.has(flagListening) {
		return api.EINVAL
	}
	inProgress, err := dial(s.fd())
	if err != nil && !deferred(err) {
		return err
	}
	l := s.loop
	req.submit(l, api.KindConnect)
	req.rcb = reactor.View[reactor.ReqCB](req.block)
	req.handle = s.self.(Stream)
	req.cb = cb
	s.connReq = req
	if inProgress {
		s.scb.Flags |= flagConnecting
		s.updateInterest()
		return nil
	}
	// Completed or refused synchronously; report on the next iteration.
	s.connErr = err
	s.completeConnect()
	return nil
}

func (s *stream) finishConnect() {
	err := sysfd.SocketError(s.fd())
	if errors.Is(err, api.EAGAIN) || errors.Is(err, api.EALREADY) {
		return
	}
	s.scb.Flags &^= flagConnecting
	s.connErr = err
	s.completeConnect()
	s.updateInterest()
}

func (s *stream) completeConnect() {
	req, err := s.connReq, s.connErr
	s.connReq, s.connErr = nil, nil
	if err == nil {
		s.scb.Flags |= flagConnected
	} else {
		req.rcb.Status = int32(api.FromSys(err))
	}
	s.loop.deliver(&s.handle, &req.request, func() {
		if req.cb != nil {
			req.cb(req, err)
		}
	})
	if err == nil && len(s.writes) > 0 {
		s.flushWrites()
	}
}

// closeStream tears down registration and descriptors. Writes still queued
// and a connect in progress complete with ECANCELED before the close callback.
func (s *stream) closeStream() {
	l := s.loop
	if s.token != 0 {
		_ = l.poller.Remove(s.fd())
		l.removeWatcher(s.token)
		s.token = 0
	}
	if req := s.connReq; req != nil {
		s.connReq = nil
		s.cancel(&req.request, func(err error) {
			if req.cb != nil {
				req.cb(req, err)
			}
		})
	}
	for _, w := range s.writes {
		w.bufs = nil
		s.cancel(&w.request, func(err error) {
			if w.cb != nil {
				w.cb(w, err)
			}
		})
	}
	s.writes = nil
	if s.scb.AcceptedFD >= 0 {
		_ = sysfd.Close(int(s.scb.AcceptedFD))
		s.scb.AcceptedFD = -1
	}
	if s.scb.FD >= 0 {
		_ = sysfd.Close(s.fd())
		s.scb.FD = -1
	}
	s.scb.Flags = 0
	s.scb.QueuedBytes = 0
	s.scb.Interest = 0
	if s.onClosing != nil {
		s.onClosing()
	}
}
