package ghost

import (
	"fmt"
	"sort"
	"time"
)

// Callback receives the terminal outcome of one Request: the response or the
// responder's error, ErrRequestTimeout, or ErrChannelClosed.
type Callback[Resp any] func(resp Resp, err error)

type pendingRequest[Resp any] struct {
	callback Callback[Resp]
	seq      uint64
	deadline time.Time
}

// tracker is the pending-request table of one Endpoint. Every entry leaves it
// exactly once: resolved, failed, or timed out.
type tracker[Resp any] struct {
	prefix string
	items  map[RequestID]pendingRequest[Resp]
	seq    uint64
}

func newTracker[Resp any](prefix string) *tracker[Resp] {
	return &tracker[Resp]{
		prefix: prefix,
		items:  make(map[RequestID]pendingRequest[Resp]),
	}
}

func (t *tracker[Resp]) register(cb Callback[Resp], timeout time.Duration, now time.Time) (RequestID, error) {
	id := NewRequestID(t.prefix)
	if _, exists := t.items[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateRequestID, id)
	}
	t.seq++
	item := pendingRequest[Resp]{callback: cb, seq: t.seq}
	if timeout > 0 {
		item.deadline = now.Add(timeout)
	}
	t.items[id] = item
	return id, nil
}

func (t *tracker[Resp]) resolve(id RequestID, resp Resp, err error) error {
	item, ok := t.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestIDNotFound, id)
	}
	delete(t.items, id)
	if item.callback != nil {
		item.callback(resp, err)
	}
	return nil
}

// expire fails every request whose deadline passed, oldest deadline first
// and issue order among equal deadlines.
func (t *tracker[Resp]) expire(now time.Time) int {
	expired := make([]RequestID, 0)
	for id, item := range t.items {
		if !item.deadline.IsZero() && !now.Before(item.deadline) {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		a, b := t.items[expired[i]], t.items[expired[j]]
		if a.deadline.Equal(b.deadline) {
			return a.seq < b.seq
		}
		return a.deadline.Before(b.deadline)
	})
	var zero Resp
	for _, id := range expired {
		_ = t.resolve(id, zero, fmt.Errorf("%w: %s", ErrRequestTimeout, id))
	}
	return len(expired)
}

// failAll fails every pending request in issue order.
func (t *tracker[Resp]) failAll(err error) int {
	ids := make([]RequestID, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.items[ids[i]].seq < t.items[ids[j]].seq
	})
	var zero Resp
	for _, id := range ids {
		_ = t.resolve(id, zero, err)
	}
	return len(ids)
}

func (t *tracker[Resp]) len() int {
	return len(t.items)
}

func (t *tracker[Resp]) has(id RequestID) bool {
	_, ok := t.items[id]
	return ok
}
