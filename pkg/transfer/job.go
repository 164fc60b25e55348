package transfer

import "github.com/pipetunnel/pipetunnel/pkg/participant"

// Job is a captured, established rendezvous ready to transfer: exactly one
// sender and the full complement of receivers it was waiting for. Once
// built, a Job is single-shot — there is no retry or replay at this layer.
type Job struct {
	// Path is the rendezvous path the job is running on, used only for
	// logging (never echoed back to any participant).
	Path string
	// Sender is the participant supplying the byte stream.
	Sender *participant.Handle
	// Receivers is the full set of participants consuming the byte stream.
	Receivers []*participant.Handle
}
