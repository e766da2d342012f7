package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	Magic   uint32 = 0x47484E31 // "GHN1"
	Version uint16 = 1

	// HeaderLen covers magic, version, auth length, kind, message id and
	// payload length, in that order, big endian.
	HeaderLen = 24
)

var (
	ErrShortFrame      = errors.New("wire: frame shorter than header")
	ErrBadMagic        = errors.New("wire: bad magic")
	ErrBadVersion      = errors.New("wire: unsupported version")
	ErrMissingAuth     = errors.New("wire: frame carries no signature")
	ErrAuthTooLarge    = errors.New("wire: auth too large")
	ErrPayloadTooLarge = errors.New("wire: payload too large")
	ErrLengthMismatch  = errors.New("wire: frame length does not match header")
)

// Header is what a frame carries besides its signature and payload.
type Header struct {
	Kind      Kind
	MessageID uint64
}

// Frame is one node-to-node transport payload. Every frame is signed: Auth
// holds the sender's signature over Payload.
type Frame struct {
	Header  Header
	Auth    []byte
	Payload []byte
}

// Limits constrains frame sizes on both encode and decode.
type Limits struct {
	MaxAuthBytes    int
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:    1024,
		MaxPayloadBytes: 4 * 1024 * 1024,
	}
}

func (l Limits) check(authLen, payloadLen int) error {
	if authLen == 0 {
		return ErrMissingAuth
	}
	if authLen > l.MaxAuthBytes || authLen > 0xFFFF {
		return fmt.Errorf("%w: %d", ErrAuthTooLarge, authLen)
	}
	if payloadLen > l.MaxPayloadBytes || uint64(payloadLen) > 0xFFFFFFFF {
		return fmt.Errorf("%w: %d", ErrPayloadTooLarge, payloadLen)
	}
	return nil
}

// Marshal encodes f as header, signature, payload.
func Marshal(f Frame, limits Limits) ([]byte, error) {
	if err := limits.check(len(f.Auth), len(f.Payload)); err != nil {
		return nil, err
	}
	out := make([]byte, HeaderLen, HeaderLen+len(f.Auth)+len(f.Payload))
	binary.BigEndian.PutUint32(out[0:4], Magic)
	binary.BigEndian.PutUint16(out[4:6], Version)
	binary.BigEndian.PutUint16(out[6:8], uint16(len(f.Auth)))
	binary.BigEndian.PutUint32(out[8:12], uint32(f.Header.Kind))
	binary.BigEndian.PutUint64(out[12:20], f.Header.MessageID)
	binary.BigEndian.PutUint32(out[20:24], uint32(len(f.Payload)))
	out = append(out, f.Auth...)
	return append(out, f.Payload...), nil
}

// Unmarshal decodes exactly one frame. Lengths are checked against limits
// before anything is copied.
func Unmarshal(raw []byte, limits Limits) (Frame, error) {
	if len(raw) < HeaderLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}
	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != Magic {
		return Frame{}, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
	if v := binary.BigEndian.Uint16(raw[4:6]); v != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	authLen := int(binary.BigEndian.Uint16(raw[6:8]))
	payloadLen := int(binary.BigEndian.Uint32(raw[20:24]))
	if err := limits.check(authLen, payloadLen); err != nil {
		return Frame{}, err
	}
	if want := HeaderLen + authLen + payloadLen; len(raw) != want {
		return Frame{}, fmt.Errorf("%w: have %d want %d", ErrLengthMismatch, len(raw), want)
	}

	body := raw[HeaderLen:]
	return Frame{
		Header: Header{
			Kind:      Kind(binary.BigEndian.Uint32(raw[8:12])),
			MessageID: binary.BigEndian.Uint64(raw[12:20]),
		},
		Auth:    append([]byte(nil), body[:authLen]...),
		Payload: append([]byte(nil), body[authLen:]...),
	}, nil
}
