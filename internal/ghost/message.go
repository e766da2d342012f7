package ghost

// Message is a single-consumption envelope delivered by Endpoint.Process.
// A message with a RequestID is a Request and must be answered exactly once
// with Respond; a message without one is an Event.
type Message[Req, Resp any] struct {
	id        RequestID
	payload   Req
	taken     bool
	responded bool
	reply     func(Resp, error) error
}

func newEvent[Req, Resp any](payload Req) *Message[Req, Resp] {
	return &Message[Req, Resp]{payload: payload}
}

func newRequest[Req, Resp any](id RequestID, payload Req, reply func(Resp, error) error) *Message[Req, Resp] {
	return &Message[Req, Resp]{id: id, payload: payload, reply: reply}
}

// Take extracts the payload. A second call is a logic fault.
func (m *Message[Req, Resp]) Take() Req {
	if m.taken {
		fault("message payload already taken (request_id=" + string(m.id) + ")")
	}
	m.taken = true
	payload := m.payload
	var zero Req
	m.payload = zero
	return payload
}

func (m *Message[Req, Resp]) Taken() bool {
	return m.taken
}

func (m *Message[Req, Resp]) RequestID() (RequestID, bool) {
	return m.id, m.id != ""
}

func (m *Message[Req, Resp]) IsRequest() bool {
	return m.id != ""
}

// Respond sends the terminal outcome for a Request back over the channel it
// arrived on. Responding twice is a logic fault.
func (m *Message[Req, Resp]) Respond(resp Resp, err error) error {
	if !m.IsRequest() {
		return ErrNotARequest
	}
	if m.responded {
		fault("request already responded (request_id=" + string(m.id) + ")")
	}
	m.responded = true
	return m.reply(resp, err)
}

func (m *Message[Req, Resp]) Responded() bool {
	return m.responded
}
