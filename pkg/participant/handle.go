// Package participant wraps a single HTTP request/response pair as it
// passes through the rendezvous engine, giving it a revocable close-watcher
// so that a participant waiting for quorum can deregister itself cleanly if
// its connection disappears first.
package participant

import (
	"net/http"
	"sync"
)

// Role identifies which side of a rendezvous a participant plays.
type Role int

const (
	// Sender is the participant supplying the byte stream.
	Sender Role = iota
	// Receiver is a participant consuming the byte stream.
	Receiver
)

// Handle is a participant's request/response pair together with the
// bookkeeping needed to watch for, and optionally ignore, an early
// disconnect.
//
// A close-watcher is a single-shot flag checked inside the watcher goroutine
// and toggled under the registry's lock before establishment; it is never a
// raw pointer back into the registry, so a Handle has no knowledge of which
// path or pipe it belongs to.
type Handle struct {
	// Role is the participant's role. It does not change after creation.
	Role Role
	// mu guards revoked.
	mu sync.Mutex
	// revoked is set once the watcher should be treated as cancelled.
	revoked bool

	request  *http.Request
	response http.ResponseWriter
}

// New wraps the given request/response pair as a participant handle with
// the given role.
func New(role Role, w http.ResponseWriter, r *http.Request) *Handle {
	return &Handle{
		Role:     role,
		request:  r,
		response: w,
	}
}

// Request returns the participant's underlying HTTP request.
func (h *Handle) Request() *http.Request {
	return h.request
}

// ResponseWriter returns the participant's underlying HTTP response writer.
func (h *Handle) ResponseWriter() http.ResponseWriter {
	return h.response
}

// Flush flushes any buffered response bytes to the client immediately, if
// the underlying response writer supports it.
func (h *Handle) Flush() {
	if f, ok := h.response.(http.Flusher); ok {
		f.Flush()
	}
}

// Watch spawns a goroutine that waits for the participant's underlying
// connection to disappear (request cancellation, due to either a client
// disconnect or the server closing the connection). If that happens before
// Revoke is called, onClose is invoked exactly once. Watch must be called at
// most once per handle.
func (h *Handle) Watch(onClose func()) {
	done := h.request.Context().Done()
	go func() {
		<-done
		h.mu.Lock()
		fire := !h.revoked
		h.mu.Unlock()
		if fire {
			onClose()
		}
	}()
}

// Revoke disarms the handle's watcher. It is idempotent: calling it more
// than once, or calling it when Watch was never invoked, is harmless. Once
// revoked, a subsequent connection loss is the transfer engine's problem to
// detect, not the watcher's.
func (h *Handle) Revoke() {
	h.mu.Lock()
	h.revoked = true
	h.mu.Unlock()
}
