// Package relay wires the rendezvous registry, the transfer engine, and the
// multipart adapter into HTTP handlers, and registers them with a router.
// It is the component the distilled spec calls the request router: it
// canonicalises paths, classifies requests by method, and translates
// rendezvous outcomes into HTTP responses.
package relay

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/pipetunnel/pipetunnel/pkg/api"
	"github.com/pipetunnel/pipetunnel/pkg/logging"
	"github.com/pipetunnel/pipetunnel/pkg/multipart"
	"github.com/pipetunnel/pipetunnel/pkg/pages"
	"github.com/pipetunnel/pipetunnel/pkg/participant"
	"github.com/pipetunnel/pipetunnel/pkg/rendezvous"
	"github.com/pipetunnel/pipetunnel/pkg/transfer"
)

// Service is the rendezvous relay's HTTP surface.
type Service struct {
	registry *rendezvous.Registry
	pages    *pages.Service
	log      *logging.Logger
}

// NewService creates a relay service backed by a fresh, empty registry.
func NewService(p *pages.Service, log *logging.Logger) *Service {
	return &Service{
		registry: rendezvous.New(),
		pages:    p,
		log:      log,
	}
}

// Register registers the relay's routes with router. GET, POST, and PUT
// are each mounted as a catch-all across the entire path space, since
// rendezvous paths are arbitrary and unbounded; any other method falls
// through to the router's NotFound handler, which Register repoints at
// the unsupported-method response required by the distilled spec. This
// holds only when the router's HandleMethodNotAllowed is false, which
// Register does not set itself: with it true, such methods get the
// router's 405 response instead.
func (s *Service) Register(router *httprouter.Router) {
	router.GET("/*path", s.handleGet)
	router.POST("/*path", s.handleSender)
	router.PUT("/*path", s.handleSender)
	router.NotFound = http.HandlerFunc(handleUnsupportedMethod)
}

func handleUnsupportedMethod(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Error: Unsupported method: %s\n", r.Method)
}

// handleGet dispatches a GET request either to a static page collaborator,
// if the canonical path is reserved, or to receiver registration.
func (s *Service) handleGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p := api.CanonicalPath(ps.ByName("path"))

	switch p {
	case "/":
		s.pages.Index(w, r)
		return
	case "/version":
		s.pages.Version(w, r)
		return
	case "/help":
		s.pages.Help(w, r)
		return
	}

	s.handleReceiver(w, r, p)
}

// handleSender registers a POST or PUT request as a rendezvous sender.
func (s *Service) handleSender(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p := api.CanonicalPath(ps.ByName("path"))
	n := api.ReceiverCount(r.URL.Query())
	reserved := api.IsReserved(p)

	handle := participant.New(participant.Sender, w, r)

	events, err := s.registry.RegisterSender(p, n, reserved, handle)
	if err != nil {
		writeRendezvousError(w, err)
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Line != "" {
				fmt.Fprint(w, ev.Line)
				handle.Flush()
			}
			if ev.Transfer != nil {
				source := senderSource(r)
				transfer.Run(ev.Transfer, source, s.log)
				s.registry.ClearEstablished(p)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleReceiver registers a GET request as a rendezvous receiver.
func (s *Service) handleReceiver(w http.ResponseWriter, r *http.Request, p string) {
	n := api.ReceiverCount(r.URL.Query())
	reserved := api.IsReserved(p)

	handle := participant.New(participant.Receiver, w, r)

	events, err := s.registry.RegisterReceiver(p, n, reserved, handle)
	if err != nil {
		writeRendezvousError(w, err)
		return
	}

	select {
	case ev := <-events:
		<-ev.Done
	case <-r.Context().Done():
	}
}

// senderSource determines the transfer engine's source stream from a
// sender's request: the raw body, or, if the sender declared a
// multipart/form-data upload, the first part of that upload.
func senderSource(r *http.Request) transfer.Source {
	contentType := r.Header.Get("Content-Type")

	if multipart.IsMultipartFormData(contentType) {
		header, body, err := multipart.FirstPart(r.Body, contentType)
		if err != nil {
			return transfer.Source{Body: errorReader{err}, ContentLength: -1}
		}
		length := int64(-1)
		if declared, ok := multipart.DeclaredLength(header); ok {
			length = declared
		}
		return transfer.Source{
			Body:          body,
			ContentLength: length,
			ContentType:   header.Get("Content-Type"),
		}
	}

	return transfer.Source{
		Body:          r.Body,
		ContentLength: r.ContentLength,
		ContentType:   contentType,
	}
}

// errorReader is a source whose every read fails with a fixed error, used
// to carry a multipart parsing failure into the transfer engine's ordinary
// source-error teardown path rather than inventing a second one.
type errorReader struct {
	err error
}

func (e errorReader) Read([]byte) (int, error) {
	return 0, e.err
}

func writeRendezvousError(w http.ResponseWriter, err error) {
	if rerr, ok := err.(*rendezvous.Error); ok {
		w.WriteHeader(rerr.Status)
		fmt.Fprint(w, rerr.Body)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintln(w, err.Error())
}
