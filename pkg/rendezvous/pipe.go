package rendezvous

import (
	"github.com/pipetunnel/pipetunnel/pkg/participant"
	"github.com/pipetunnel/pipetunnel/pkg/transfer"
)

// SenderEvent is one unit of progress delivered to a registered sender.
// Line, if non-empty, should be written to the sender's response and
// flushed. Transfer, if non-nil, means quorum is now complete: the caller
// should write Line (if set) first, then run the transfer itself, and stop
// reading further events — no more will arrive.
type SenderEvent struct {
	Line     string
	Transfer *transfer.Transfer
}

// ReceiverEvent is delivered to a registered receiver exactly once: when
// quorum completes and the transfer is ready to stream to it. Done is the
// same channel transfer.Prepare produced for this receiver; the caller
// should block on it and return once it closes.
type ReceiverEvent struct {
	Done <-chan struct{}
}

// pipe is the in-memory state of a single unestablished path: a sender
// and/or some number of receivers, all still waiting for the rest of their
// party to arrive.
type pipe struct {
	expected  int
	sender    *registeredSender
	receivers []*registeredReceiver
}

// registeredSender is the sender side of a pipe awaiting quorum. progress
// is buffered generously enough that the registry never blocks while
// holding its lock to enqueue an event.
type registeredSender struct {
	handle   *participant.Handle
	progress chan SenderEvent
}

// registeredReceiver is one receiver side of a pipe awaiting quorum.
// events is buffered to exactly 1: a receiver gets exactly one event in its
// lifetime, the one that announces establishment.
type registeredReceiver struct {
	handle *participant.Handle
	events chan ReceiverEvent
}
