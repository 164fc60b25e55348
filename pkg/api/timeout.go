package api

import (
	"time"
)

const (
	// ReadHeaderTimeout bounds how long a client may take to send request
	// headers. Unlike the teacher daemon's API, a rendezvous connection's
	// body is allowed to stay open indefinitely (a sender waits for
	// receivers, a receiver waits for a sender), so there is no equivalent
	// whole-request ReadTimeout here.
	ReadHeaderTimeout = 5 * time.Second
	// IdleTimeout is the connection timeout for idle connections, i.e. ones
	// between requests rather than mid-rendezvous.
	IdleTimeout = 2 * time.Minute
)
