// Package transport defines the Transport collaborator consumed by gateways,
// the ghost protocol spoken between a gateway and its transport child, and an
// in-memory implementation for tests and single-process networks.
package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNotBound         = errors.New("transport: not bound")
	ErrUnknownURI       = errors.New("transport: unknown uri")
	ErrConnectionClosed = errors.New("transport: connection closed")
	ErrAddressInUse     = errors.New("transport: address in use")
	ErrClosed           = errors.New("transport: closed")
	ErrUnknownCommand   = errors.New("transport: unknown command")
)

// Command is posted to a Transport and applied on its next Process.
type Command interface {
	isCommand()
}

type Bind struct {
	URI string
}

type Connect struct {
	URI       string
	RequestID string
}

type SendMessage struct {
	RequestID string
	Address   string
	Payload   []byte
}

func (Bind) isCommand()        {}
func (Connect) isCommand()     {}
func (SendMessage) isCommand() {}

// Event is reported by Transport.Process.
type Event interface {
	isEvent()
}

// ErrorOccurred reports a failed command. RequestID is empty for failures
// not tied to a request.
type ErrorOccurred struct {
	RequestID string
	URI       string
	Err       error
}

// ConnectResult reports an outgoing connection. RequestID is empty when the
// connection was opened implicitly by a send.
type ConnectResult struct {
	RequestID    string
	ConnectionID string
	URI          string
}

type IncomingConnectionEstablished struct {
	ConnectionID string
	URI          string
}

type ReceivedData struct {
	ConnectionID string
	URI          string
	Payload      []byte
}

type ConnectionClosed struct {
	ConnectionID string
	URI          string
}

func (ErrorOccurred) isEvent()                 {}
func (ConnectResult) isEvent()                 {}
func (IncomingConnectionEstablished) isEvent() {}
func (ReceivedData) isEvent()                  {}
func (ConnectionClosed) isEvent()              {}

func (e ErrorOccurred) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("transport error uri=%s: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("transport error request=%s uri=%s: %v", e.RequestID, e.URI, e.Err)
}

func (e ErrorOccurred) Unwrap() error {
	return e.Err
}

// Transport moves opaque payloads between URIs. Command failures surface as
// ErrorOccurred events from the Process call that applied the command.
type Transport interface {
	Post(cmd Command) error
	Process() (bool, []Event, error)
	ConnectionList() ([]string, error)
	// Bind listens on uri and returns the bound URI.
	Bind(uri string) (string, error)
	Connect(uri, requestID string) error
	Send(requestID, uri string, payload []byte) error
	Close() error
}
