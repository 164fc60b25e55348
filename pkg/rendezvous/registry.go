// Package rendezvous implements the path-keyed matching of one sender to N
// receivers: the registry of in-flight pipes, the transition rules that
// admit or reject each arriving participant, and the progress messages a
// sender sees while waiting for its party to assemble. It hands off to
// package transfer the moment a pipe's quorum is complete.
package rendezvous

import (
	"fmt"
	"sync"

	"github.com/pipetunnel/pipetunnel/pkg/participant"
	"github.com/pipetunnel/pipetunnel/pkg/transfer"
)

// Registry tracks every path that has a sender and/or some receivers
// waiting for the rest of their party, plus the set of paths currently
// mid-transfer. A single mutex guards both maps: pipes are small, and every
// operation on them is in-memory bookkeeping with no I/O, so there is
// nothing to gain from finer-grained locking and a lot of subtlety to lose.
type Registry struct {
	mu          sync.Mutex
	pipes       map[string]*pipe
	established map[string]bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		pipes:       make(map[string]*pipe),
		established: make(map[string]bool),
	}
}

// IsEstablished reports whether path is currently mid-transfer.
func (r *Registry) IsEstablished(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.established[path]
}

// ClearEstablished marks path as no longer mid-transfer. The caller must
// call this exactly once, after transfer.Run for that path has returned.
func (r *Registry) ClearEstablished(path string) {
	r.mu.Lock()
	delete(r.established, path)
	r.mu.Unlock()
}

// RegisterSender admits a sender arriving on path asking for n receivers.
// reserved must be computed by the caller (the path layer owns the set of
// reserved paths, not this package).
//
// On success it returns a channel of SenderEvent: zero or more progress
// lines followed by exactly one event carrying a non-nil Transfer. The
// caller must keep reading until it sees that event, then run the transfer
// itself — RegisterSender never performs any response I/O directly.
func (r *Registry) RegisterSender(path string, n int, reserved bool, handle *participant.Handle) (<-chan SenderEvent, error) {
	if reserved {
		return nil, errReservedPath(path)
	}
	if n <= 0 {
		return nil, errBadCount(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.established[path] {
		return nil, errSenderAlreadyEstablished(path)
	}

	p := r.pipes[path]

	if p == nil {
		rs := &registeredSender{handle: handle, progress: make(chan SenderEvent, n+4)}
		handle.Watch(func() { r.removeSender(path, handle) })
		r.pipes[path] = &pipe{expected: n, sender: rs}
		rs.progress <- SenderEvent{Line: fmt.Sprintf("[INFO] Waiting for %d receiver(s)...\n", n)}
		return rs.progress, nil
	}

	if p.sender != nil {
		return nil, errDuplicateSender(path)
	}
	if p.expected != n {
		return nil, errCountMismatch(p.expected, n)
	}

	rs := &registeredSender{handle: handle, progress: make(chan SenderEvent, n+4)}
	handle.Watch(func() { r.removeSender(path, handle) })
	p.sender = rs

	rs.progress <- SenderEvent{Line: fmt.Sprintf("[INFO] Waiting for %d receiver(s)...\n", n)}
	rs.progress <- SenderEvent{Line: fmt.Sprintf("[INFO] %d receiver(s) has/have been connected.\n", len(p.receivers))}

	if len(p.receivers) == n {
		tr := r.establish(path, p)
		rs.progress <- SenderEvent{Line: "Start sending!\n", Transfer: tr}
	}

	return rs.progress, nil
}

// RegisterReceiver admits a receiver arriving on path, the caller's Nth of
// n expected receivers on that path. reserved, like in RegisterSender, is
// computed by the path layer.
//
// On success it returns a channel that will receive exactly one
// ReceiverEvent once quorum completes. A receiver never sees any progress
// line; it either stops waiting when its own request context ends (the
// client disconnects) or is handed a Done channel when the transfer is
// ready to stream to it.
func (r *Registry) RegisterReceiver(path string, n int, reserved bool, handle *participant.Handle) (<-chan ReceiverEvent, error) {
	if reserved {
		return nil, errReservedPath(path)
	}
	if n <= 0 {
		return nil, errBadCount(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.established[path] {
		return nil, errReceiverAlreadyEstablished(path)
	}

	p := r.pipes[path]

	rr := &registeredReceiver{handle: handle, events: make(chan ReceiverEvent, 1)}

	if p == nil {
		handle.Watch(func() { r.removeReceiver(path, handle) })
		r.pipes[path] = &pipe{expected: n, receivers: []*registeredReceiver{rr}}
		return rr.events, nil
	}

	if p.expected != n {
		return nil, errCountMismatch(p.expected, n)
	}
	if len(p.receivers) >= n {
		return nil, errReceiversFull()
	}

	handle.Watch(func() { r.removeReceiver(path, handle) })
	p.receivers = append(p.receivers, rr)

	if p.sender != nil {
		p.sender.progress <- SenderEvent{Line: "[INFO] A receiver was connected.\n"}
	}

	if p.sender != nil && len(p.receivers) == n {
		tr := r.establish(path, p)
		line := fmt.Sprintf("[INFO] Start sending with %d receiver(s)!\n", len(p.receivers))
		p.sender.progress <- SenderEvent{Line: line, Transfer: tr}
	}

	return rr.events, nil
}

// establish finalizes a pipe whose quorum just completed. It must be
// called with r.mu held. It revokes every participant's close-watcher (the
// transfer engine, not the watcher, is now responsible for detecting
// disconnects), hands each receiver its Done channel, removes the pipe
// from the waiting set, and marks the path established. The caller is
// responsible for choosing the wording of the sender's final progress line,
// which depends on whether the sender's own arrival completed quorum.
func (r *Registry) establish(path string, p *pipe) *transfer.Transfer {
	p.sender.handle.Revoke()

	receiverHandles := make([]*participant.Handle, len(p.receivers))
	for i, rr := range p.receivers {
		rr.handle.Revoke()
		receiverHandles[i] = rr.handle
	}

	job := &transfer.Job{Path: path, Sender: p.sender.handle, Receivers: receiverHandles}
	tr, done := transfer.Prepare(job)

	for i, rr := range p.receivers {
		rr.events <- ReceiverEvent{Done: done[i]}
	}

	delete(r.pipes, path)
	r.established[path] = true

	return tr
}

// removeSender detaches a sender that disconnected before quorum. If the
// pipe is left with nothing waiting on it, it is dropped entirely.
func (r *Registry) removeSender(path string, handle *participant.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pipes[path]
	if p == nil || p.sender == nil || p.sender.handle != handle {
		return
	}
	p.sender = nil
	if len(p.receivers) == 0 {
		delete(r.pipes, path)
	}
}

// removeReceiver detaches a receiver that disconnected before quorum. If
// the pipe is left with nothing waiting on it, it is dropped entirely.
func (r *Registry) removeReceiver(path string, handle *participant.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pipes[path]
	if p == nil {
		return
	}
	for i, rr := range p.receivers {
		if rr.handle == handle {
			p.receivers = append(p.receivers[:i], p.receivers[i+1:]...)
			break
		}
	}
	if p.sender == nil && len(p.receivers) == 0 {
		delete(r.pipes, path)
	}
}
