// Package transfer implements the rendezvous engine's fan-out stage: once a
// path has a sender and its full complement of receivers, it streams the
// sender's body to every receiver with independent backpressure and tears
// everything down correctly no matter which side disconnects first.
package transfer

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pipetunnel/pipetunnel/pkg/logging"
	"github.com/pipetunnel/pipetunnel/pkg/participant"
)

// chunkSize is the size of the buffer used to read from the source. It is
// reused across reads; each distributed chunk is copied out of it since
// sinks read it asynchronously.
const chunkSize = 32 * 1024

// sinkBufferSize is the number of pending chunks a single slow receiver may
// accumulate before the source is paused. A small buffer is intentional:
// the point of per-receiver buffering is to let fast receivers keep moving
// while a slow one lags, not to absorb large amounts of skew.
const sinkBufferSize = 4

// errAllReceiversClosed is a sentinel used internally to distinguish "every
// receiver detached" from a genuine source read error.
var errAllReceiversClosed = errors.New("all receivers closed halfway")

// Source is the byte stream the engine reads from, along with whatever
// framing metadata is known about it. Both ContentLength and ContentType may
// be left unset (ContentLength negative, ContentType empty) when the source
// doesn't declare them, per the distilled spec's rule that unknown metadata
// is simply omitted rather than guessed.
type Source struct {
	Body          io.Reader
	ContentLength int64
	ContentType   string
}

// sink is one receiver's slot in the fan-out: a bounded queue of chunks fed
// by the engine's read loop and drained by its own goroutine into the
// receiver's response.
type sink struct {
	handle *participant.Handle
	ch     chan []byte
	// closed is closed exactly once when this sink detaches, so that a
	// distribution attempt blocked on a full ch can abandon it instead of
	// stalling the whole fan-out.
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSink(h *participant.Handle) *sink {
	return &sink{
		handle: h,
		ch:     make(chan []byte, sinkBufferSize),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *sink) detach() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Transfer is a prepared, not-yet-running fan-out for a single established
// Job. Preparing and running are split so that the rendezvous layer can hand
// each receiver a completion signal (Done) before the sender's goroutine
// starts driving any I/O.
type Transfer struct {
	id    string
	job   *Job
	sinks []*sink
}

// Prepare builds the per-receiver bookkeeping for a job without performing
// any I/O. It returns the Transfer along with one completion channel per
// receiver, in the same order as job.Receivers; a receiver's handler
// goroutine should block on its channel and return once it closes.
func Prepare(job *Job) (*Transfer, []<-chan struct{}) {
	sinks := make([]*sink, len(job.Receivers))
	done := make([]<-chan struct{}, len(job.Receivers))
	for i, h := range job.Receivers {
		s := newSink(h)
		sinks[i] = s
		done[i] = s.done
	}

	// The ID exists only to correlate a single transfer's log lines; if
	// randomness is unavailable for some reason, logging without one is
	// better than failing the transfer over it.
	var id string
	if generated, err := uuid.NewRandom(); err == nil {
		id = generated.String()
	}

	return &Transfer{id: id, job: job, sinks: sinks}, done
}

// Run performs the transfer: it writes response headers to every receiver,
// fans the source out to them with backpressure, and writes exactly one
// terminal line to the sender. It must be called by the sender's own
// goroutine, since it owns the only read of source.Body. Run blocks until
// the transfer is complete; every receiver's Done channel (from Prepare) is
// closed by the time it returns.
func Run(t *Transfer, source Source, log *logging.Logger) {
	log.Printf("[%s] transfer established on %s with %d receiver(s)", t.id, t.job.Path, len(t.sinks))

	writeReceiverHeaders(t.sinks, source)

	var group errgroup.Group
	var closedCount int32
	total := int32(len(t.sinks))

	onDetach := func() int32 { return atomic.AddInt32(&closedCount, 1) }

	for _, s := range t.sinks {
		s := s
		group.Go(func() error {
			drain(s, onDetach)
			return nil
		})
	}

	buf := make([]byte, chunkSize)
	var readErr error
	var transferred int64
readLoop:
	for {
		n, err := source.Body.Read(buf)
		if n > 0 {
			transferred += int64(n)
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			distribute(t.sinks, chunk)
			if atomic.LoadInt32(&closedCount) == total {
				readErr = errAllReceiversClosed
				break readLoop
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break readLoop
		}
	}

	finish(t, readErr, transferred, &group, log)
}

// writeReceiverHeaders sends status and framing headers to every receiver
// and flushes them, before any body byte is written, as required by the
// distilled spec.
func writeReceiverHeaders(sinks []*sink, source Source) {
	for _, s := range sinks {
		w := s.handle.ResponseWriter()
		headers := w.Header()
		if source.ContentType != "" {
			headers.Set("Content-Type", source.ContentType)
		}
		if source.ContentLength >= 0 {
			headers.Set("Content-Length", strconv.FormatInt(source.ContentLength, 10))
		}
		w.WriteHeader(http.StatusOK)
		s.handle.Flush()
	}
}

// distribute copies chunk to every still-live sink, blocking only on the
// sinks that are behind; a sink that detaches while waiting is skipped
// rather than stalling its siblings.
func distribute(sinks []*sink, chunk []byte) {
	var group errgroup.Group
	for _, s := range sinks {
		s := s
		group.Go(func() error {
			select {
			case s.ch <- chunk:
			case <-s.closed:
			}
			return nil
		})
	}
	group.Wait()
}

// drain is a single sink's goroutine: it writes chunks to the receiver's
// response as they arrive and detaches on the first write error or on the
// receiver's own disconnection.
func drain(s *sink, onDetach func() int32) {
	defer close(s.done)

	ctx := s.handle.Request().Context()
	w := s.handle.ResponseWriter()
	for {
		select {
		case chunk, ok := <-s.ch:
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				s.detach()
				onDetach()
				return
			}
			s.handle.Flush()
		case <-ctx.Done():
			s.detach()
			onDetach()
			return
		}
	}
}

// destroyConnection forcibly terminates a participant's underlying
// connection, bypassing the normal graceful response completion. It is used
// for teardown paths where a clean response close isn't appropriate.
func destroyConnection(h *participant.Handle) {
	if hj, ok := h.ResponseWriter().(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	}
}

// finish writes the sender's terminal line and tears down any receivers
// that haven't already detached on their own, based on how the read loop
// ended.
func finish(t *Transfer, readErr error, transferred int64, group *errgroup.Group, log *logging.Logger) {
	senderWriter := t.job.Sender.ResponseWriter()

	switch readErr {
	case nil:
		for _, s := range t.sinks {
			close(s.ch)
		}
		group.Wait()
		fmt.Fprint(senderWriter, "[INFO] Sending Successful!\n")
		t.job.Sender.Flush()
		log.Printf("[%s] transfer on %s finished successfully, %s transferred", t.id, t.job.Path, humanize.Bytes(uint64(transferred)))
	case errAllReceiversClosed:
		for _, s := range t.sinks {
			close(s.ch)
		}
		group.Wait()
		fmt.Fprint(senderWriter, "[INFO] All receiver(s) was/were closed halfway.\n")
		t.job.Sender.Flush()
		destroyConnection(t.job.Sender)
		log.Printf("[%s] transfer on %s aborted: all receivers closed", t.id, t.job.Path)
	default:
		for _, s := range t.sinks {
			destroyConnection(s.handle)
			close(s.ch)
		}
		group.Wait()
		fmt.Fprint(senderWriter, "[ERROR] Sending Failed.\n")
		t.job.Sender.Flush()
		log.Warn(errors.Wrap(readErr, "["+t.id+"] transfer source read failed on "+t.job.Path))
	}
}
