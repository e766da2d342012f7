package transport

import "github.com/danmuck/ghostnet/internal/ghost"

// RequestToChild is sent by the owner of a transport Actor.
type RequestToChild interface {
	isRequestToChild()
}

type BindRequest struct {
	URI string
}

type ConnectRequest struct {
	URI string
}

type SendRequest struct {
	URI     string
	Payload []byte
}

func (BindRequest) isRequestToChild()    {}
func (ConnectRequest) isRequestToChild() {}
func (SendRequest) isRequestToChild()    {}

// RequestToChildResponse answers a RequestToChild of the matching kind.
type RequestToChildResponse interface {
	isRequestToChildResponse()
}

type BindResponse struct {
	BoundURI string
}

type ConnectResponse struct {
	ConnectionID string
	URI          string
}

type SendResponse struct {
	URI string
}

func (BindResponse) isRequestToChildResponse()    {}
func (ConnectResponse) isRequestToChildResponse() {}
func (SendResponse) isRequestToChildResponse()    {}

// Events travel upward as one-way messages.
type (
	RequestToParent         = Event
	RequestToParentResponse = ghost.Ack
)

// ParentEndpoint is the owner's side of the channel to a transport Actor.
type ParentEndpoint = ghost.Endpoint[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse]
