package rendezvous

import "fmt"

// Error is a rendezvous-time rejection: a fixed HTTP status and an exact
// client-visible body. Which prefix a message uses ("[ERROR] " versus
// "Error: ") is part of the wire contract, not a stylistic choice, and must
// never be normalized away.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return e.Body
}

func errReservedPath(path string) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("[ERROR] Cannot send to a reserved path '%s'. (e.g. '/mypath123')\n", path),
	}
}

func errBadCount(n int) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("[ERROR] n should > 0, but n = %d.\n", n),
	}
}

func errSenderAlreadyEstablished(path string) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("[ERROR] Connection on '%s' has been established already.\n", path),
	}
}

func errReceiverAlreadyEstablished(path string) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("Error: Connection on '%s' has been established already.\n", path),
	}
}

func errCountMismatch(expected, got int) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("Error: The number of receivers should be %d but %d.\n", expected, got),
	}
}

func errDuplicateSender(path string) error {
	return &Error{
		Status: 400,
		Body:   fmt.Sprintf("[ERROR] Another sender has been registered on '%s'.\n", path),
	}
}

func errReceiversFull() error {
	return &Error{
		Status: 400,
		Body:   "Error: The number of receivers has reached limits.\n",
	}
}
