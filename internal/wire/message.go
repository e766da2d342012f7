package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/ghostnet/internal/wire/tlv"
)

var (
	ErrInvalidMessage = errors.New("wire: invalid message")
	ErrBadSignature   = errors.New("wire: bad signature")
	ErrUnknownKind    = errors.New("wire: unknown message kind")
)

// Kind is carried in the frame header.
type Kind uint32

const (
	KindGossip Kind = 1
	KindDirect Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindGossip:
		return "gossip"
	case KindDirect:
		return "direct"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

const (
	fieldSpace uint16 = 1
	fieldNode  uint16 = 2
	fieldFrom  uint16 = 3
	fieldTo    uint16 = 4
	fieldBody  uint16 = 5
)

// Message is the node-to-node unit carried in transport payloads.
type Message struct {
	Kind  Kind
	ID    uint64
	Space string
	// Node is the sending node's address and the identity the frame is
	// signed with.
	Node string
	From string
	To   string
	Body []byte
}

func (m Message) Validate() error {
	if m.Kind != KindGossip && m.Kind != KindDirect {
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint32(m.Kind))
	}
	if strings.TrimSpace(m.Space) == "" {
		return fmt.Errorf("%w: missing space", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Node) == "" {
		return fmt.Errorf("%w: missing node", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("%w: missing from", ErrInvalidMessage)
	}
	if m.Kind == KindDirect && strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: direct message missing to", ErrInvalidMessage)
	}
	return nil
}

// Signer produces the frame signature for a payload.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
}

// Verifier checks a payload signature against a node address.
type Verifier interface {
	Verify(node string, payload, sig []byte) error
}

func (m Message) payload() []byte {
	fields := []tlv.Field{
		tlv.String(fieldSpace, m.Space),
		tlv.String(fieldNode, m.Node),
		tlv.String(fieldFrom, m.From),
	}
	if m.To != "" {
		fields = append(fields, tlv.String(fieldTo, m.To))
	}
	fields = append(fields, tlv.Bytes(fieldBody, m.Body))
	return tlv.EncodeFields(fields)
}

// Seal signs and frames m.
func Seal(m Message, signer Signer) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	payload := m.payload()
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: sign: %w", err)
	}
	return Marshal(Frame{
		Header:  Header{Kind: m.Kind, MessageID: m.ID},
		Auth:    sig,
		Payload: payload,
	}, DefaultLimits())
}

// Open decodes a frame and verifies its signature against the sending node.
func Open(raw []byte, verifier Verifier) (Message, error) {
	f, err := Unmarshal(raw, DefaultLimits())
	if err != nil {
		return Message{}, err
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	m := Message{Kind: f.Header.Kind, ID: f.Header.MessageID}
	if m.Space, err = tlv.StringField(fields, fieldSpace); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Node, err = tlv.StringField(fields, fieldNode); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.From, err = tlv.StringField(fields, fieldFrom); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.To, err = tlv.OptionalString(fields, fieldTo); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Body, err = tlv.BytesField(fields, fieldBody); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	if err := verifier.Verify(m.Node, f.Payload, f.Auth); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return m, nil
}
