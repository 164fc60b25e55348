package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/pipetunnel/pipetunnel/pkg/logging"
	"github.com/pipetunnel/pipetunnel/pkg/pages"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	pageService, err := pages.New()
	if err != nil {
		t.Fatal("unable to build page service:", err)
	}
	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	svc := NewService(pageService, logging.RootLogger.Sublogger("test"))
	svc.Register(router)

	return httptest.NewServer(router)
}

// TestReceiverFirstEndToEnd exercises the S1 scenario over real HTTP
// connections: a receiver opens first, then a sender posts a body, and
// the receiver observes exactly that body.
func TestReceiverFirstEndToEnd(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	type result struct {
		body string
		err  error
		code int
	}
	receiverDone := make(chan result, 1)
	go func() {
		resp, err := http.Get(server.URL + "/foo")
		if err != nil {
			receiverDone <- result{err: err}
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		receiverDone <- result{body: string(data), err: err, code: resp.StatusCode}
	}()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Post(server.URL+"/foo", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatal("unexpected error posting sender body:", err)
	}
	defer resp.Body.Close()
	senderBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal("unexpected error reading sender response:", err)
	}
	want := "[INFO] Waiting for 1 receiver(s)...\n[INFO] 1 receiver(s) has/have been connected.\nStart sending!\n[INFO] Sending Successful!\n"
	if string(senderBody) != want {
		t.Fatalf("unexpected sender response: got %q, want %q", senderBody, want)
	}

	select {
	case r := <-receiverDone:
		if r.err != nil {
			t.Fatal("unexpected error on receiver:", r.err)
		}
		if r.code != http.StatusOK {
			t.Fatalf("unexpected receiver status: %d", r.code)
		}
		if r.body != "hello" {
			t.Fatalf("unexpected receiver body: %q", r.body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never completed")
	}
}

// TestReceiverDropsMidTransferEndToEnd exercises S6 over real HTTP: the
// lone receiver on a path closes its connection partway through a
// transfer, and the sender's response terminates with the fixed "closed
// halfway" line instead of the success line.
func TestReceiverDropsMidTransferEndToEnd(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	receiverCtx, cancelReceiver := context.WithCancel(context.Background())
	receiverGotFirstByte := make(chan struct{})
	go func() {
		req, err := http.NewRequestWithContext(receiverCtx, http.MethodGet, server.URL+"/z", nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		buf := make([]byte, 1)
		if _, err := resp.Body.Read(buf); err == nil {
			close(receiverGotFirstByte)
		}
		io.Copy(io.Discard, resp.Body)
	}()

	pr, pw := io.Pipe()
	senderDone := make(chan string, 1)
	go func() {
		resp, err := http.Post(server.URL+"/z", "text/plain", pr)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		senderDone <- string(body)
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := pw.Write([]byte("first chunk")); err != nil {
		t.Fatal("unexpected error writing first chunk:", err)
	}

	select {
	case <-receiverGotFirstByte:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never saw the first chunk")
	}

	cancelReceiver()
	time.Sleep(50 * time.Millisecond)

	pw.Write([]byte("second chunk"))
	pw.Close()

	select {
	case body := <-senderDone:
		want := "[INFO] Waiting for 1 receiver(s)...\n[INFO] 1 receiver(s) has/have been connected.\nStart sending!\n[INFO] All receiver(s) was/were closed halfway.\n"
		if body != want {
			t.Fatalf("unexpected sender response: got %q, want %q", body, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sender never completed")
	}
}

// TestReservedPathRejectsSender exercises S5 over real HTTP.
func TestReservedPathRejectsSender(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Post(server.URL+"/version", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	want := "[ERROR] Cannot send to a reserved path '/version'. (e.g. '/mypath123')\n"
	if string(body) != want {
		t.Fatalf("unexpected body: got %q, want %q", body, want)
	}
}

// TestUnsupportedMethod checks that a method outside GET/POST/PUT gets the
// fixed unsupported-method response.
func TestUnsupportedMethod(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/foo", nil)
	if err != nil {
		t.Fatal("unexpected error building request:", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	want := "Error: Unsupported method: DELETE\n"
	if string(body) != want {
		t.Fatalf("unexpected body: got %q, want %q", body, want)
	}
}

// TestVersionPage checks the reserved /version collaborator is reachable.
func TestVersionPage(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/version")
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
} 
