package ghost

type frameKind uint8

const (
	frameEvent frameKind = iota
	frameRequest
	frameResponse
)

// frame is what actually crosses a channel. Requests and events carry
// payload; responses carry resp/err for the request they answer.
type frame[Payload, Resp any] struct {
	kind    frameKind
	id      RequestID
	payload Payload
	resp    Resp
	err     error
}

type fifo[T any] struct {
	items []T
}

func (q *fifo[T]) push(v T) {
	q.items = append(q.items, v)
}

// popAll hands back everything queued so far. Frames pushed while the caller
// iterates land in a fresh slice and wait for the next pass.
func (q *fifo[T]) popAll() []T {
	out := q.items
	q.items = nil
	return out
}

func (q *fifo[T]) len() int {
	return len(q.items)
}

// link is the state shared by the two endpoints of one channel.
type link struct {
	closed bool
}
