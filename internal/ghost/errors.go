package ghost

import "errors"

var (
	ErrRequestIDNotFound  = errors.New("ghost: request id not found")
	ErrRequestTimeout     = errors.New("ghost: request timed out")
	ErrChannelClosed      = errors.New("ghost: channel closed")
	ErrNotARequest        = errors.New("ghost: message is not a request")
	ErrDuplicateRequestID = errors.New("ghost: duplicate in-flight request id")
)

// WorkWasDone reports whether a process call consumed a queued message or
// advanced a pending operation.
type WorkWasDone = bool

// Ack is the response/payload type for protocols that carry no data back.
type Ack struct{}

func fault(msg string) {
	panic("ghost: " + msg)
}
