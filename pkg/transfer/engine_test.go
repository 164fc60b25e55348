package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pipetunnel/pipetunnel/pkg/logging"
	"github.com/pipetunnel/pipetunnel/pkg/participant"
)

func newParticipant(role participant.Role) (*participant.Handle, *httptest.ResponseRecorder) {
	method := "GET"
	if role == participant.Sender {
		method = "POST"
	}
	req := httptest.NewRequest(method, "/x", nil)
	w := httptest.NewRecorder()
	return participant.New(role, w, req), w
}

// newCancelableParticipant is like newParticipant but returns a cancel
// function tied to the request's context, so a test can simulate the
// participant's connection disappearing mid-transfer.
func newCancelableParticipant(role participant.Role) (*participant.Handle, *httptest.ResponseRecorder, context.CancelFunc) {
	method := "GET"
	if role == participant.Sender {
		method = "POST"
	}
	req := httptest.NewRequest(method, "/x", nil)
	ctx, cancel := context.WithCancel(req.Context())
	w := httptest.NewRecorder()
	return participant.New(role, w, req.WithContext(ctx)), w, cancel
}

// TestRunDeliversBytesToAllReceivers checks the byte-fidelity law: every
// receiver's response body equals the source's bytes.
func TestRunDeliversBytesToAllReceivers(t *testing.T) {
	sender, senderRec := newParticipant(participant.Sender)

	const receiverCount = 3
	receivers := make([]*participant.Handle, receiverCount)
	recorders := make([]*httptest.ResponseRecorder, receiverCount)
	for i := range receivers {
		receivers[i], recorders[i] = newParticipant(participant.Receiver)
	}

	job := &Job{Path: "/x", Sender: sender, Receivers: receivers}
	tr, done := Prepare(job)

	doneWaiters := make(chan struct{})
	go func() {
		for _, d := range done {
			<-d
		}
		close(doneWaiters)
	}()

	payload := []byte("hello, world")
	source := Source{Body: bytes.NewReader(payload), ContentLength: int64(len(payload)), ContentType: "text/plain"}
	Run(tr, source, logging.RootLogger)

	select {
	case <-doneWaiters:
	case <-time.After(time.Second):
		t.Fatal("receivers never saw completion")
	}

	for i, rec := range recorders {
		if rec.Body.String() != string(payload) {
			t.Fatalf("receiver %d got %q, want %q", i, rec.Body.String(), payload)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("receiver %d got status %d, want 200", i, rec.Code)
		}
	}

	if senderRec.Body.String() != "[INFO] Sending Successful!\n" {
		t.Fatalf("unexpected sender terminal line: %q", senderRec.Body.String())
	}
}

// TestRunSourceErrorFailsTransfer checks that a source read error produces
// the fixed failure line to the sender.
func TestRunSourceErrorFailsTransfer(t *testing.T) {
	sender, senderRec := newParticipant(participant.Sender)
	receiver, _ := newParticipant(participant.Receiver)

	job := &Job{Path: "/x", Sender: sender, Receivers: []*participant.Handle{receiver}}
	tr, done := Prepare(job)

	go func() { <-done[0] }()

	source := Source{Body: failingReader{errors.New("boom")}, ContentLength: -1}
	Run(tr, source, logging.RootLogger)

	if senderRec.Body.String() != "[ERROR] Sending Failed.\n" {
		t.Fatalf("unexpected sender terminal line: %q", senderRec.Body.String())
	}
}

// TestRunAllReceiversClosedHalfwayAbortsSender exercises S6: the lone
// receiver drops mid-transfer, so the sender sees the fixed "all closed
// halfway" line instead of the success line. The sender's recorder cannot
// be hijacked, so the destruction of its connection is not observed here.
func TestRunAllReceiversClosedHalfwayAbortsSender(t *testing.T) {
	sender, senderRec := newParticipant(participant.Sender)
	receiver, _, cancelReceiver := newCancelableParticipant(participant.Receiver)

	job := &Job{Path: "/z", Sender: sender, Receivers: []*participant.Handle{receiver}}
	tr, done := Prepare(job)

	source := Source{Body: &halfwayReader{done: done[0], cancel: cancelReceiver}, ContentLength: -1}
	Run(tr, source, logging.RootLogger)

	want := "[INFO] All receiver(s) was/were closed halfway.\n"
	if senderRec.Body.String() != want {
		t.Fatalf("unexpected sender terminal line: got %q, want %q", senderRec.Body.String(), want)
	}
}

// halfwayReader hands out one chunk, then triggers the receiver's
// disconnection and waits for the engine to notice before handing out a
// second chunk — deterministically landing the read loop's "all receivers
// closed" check right after that second chunk is distributed.
type halfwayReader struct {
	calls  int
	done   <-chan struct{}
	cancel context.CancelFunc
}

func (r *halfwayReader) Read(buf []byte) (int, error) {
	r.calls++
	if r.calls == 1 {
		return copy(buf, []byte("first chunk")), nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
	return copy(buf, []byte("second chunk")), nil
}

type failingReader struct {
	err error
}

func (f failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

var _ io.Reader = failingReader{}
