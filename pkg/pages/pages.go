// Package pages serves the three static collaborators that live at
// reserved rendezvous paths: a landing page, a plain-text version string,
// and a usage page whose examples are anchored to the server's own
// externally visible base URL.
package pages

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/pipetunnel/pipetunnel/pkg/build"
)

const landingMarkdown = `# pipetunnel

Stream bytes from one sender to one or more receivers over plain HTTP.
Nothing is stored; nothing survives the connection that carries it.

## Sending

    curl -T myfile https://example.com/mypath123

## Receiving

    curl https://example.com/mypath123

## Multiple receivers

Add ` + "`?n=<N>`" + ` to both the sender's and every receiver's URL to wait
for ` + "`N`" + ` receivers before the transfer starts. The default is 1.

See ` + "`/help`" + ` for more.
`

// Service serves the landing, version, and help pages.
type Service struct {
	landing []byte
}

// New renders the landing page once at startup; it never changes at
// runtime, so there's no reason to re-render it on every request.
func New() (*Service, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(landingMarkdown), &buf); err != nil {
		return nil, fmt.Errorf("unable to render landing page: %w", err)
	}
	return &Service{landing: buf.Bytes()}, nil
}

// Index serves the rendered landing page.
func (s *Service) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.landing)
}

// Version serves the running version followed by a newline.
func (s *Service) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, build.Version)
}

// Help serves a plain-text usage page whose examples are built from the
// request's own externally visible base URL, so copy-pasted commands work
// whether the server sits behind a proxy or not.
func (s *Service) Help(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, helpTemplate, base, base, base)
}

const helpTemplate = `pipetunnel: stream bytes from one sender to one or more receivers.

Send:
  curl -T <file> %s/mypath123

Receive:
  curl %s/mypath123

Wait for N receivers before starting (default 1):
  curl -T <file> "%s/mypath123?n=2"
`

// baseURL derives the scheme and host a client outside any reverse proxy
// would use to reach this server, consulting X-Forwarded-Proto the way a
// proxied deployment requires.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); strings.Contains(proto, "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
