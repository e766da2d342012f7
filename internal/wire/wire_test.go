package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/ghostnet/internal/wire/tlv"
)

// hashSigner signs with sha256(node|payload) so tests need no keys.
type hashSigner struct {
	node string
}

func (s hashSigner) Sign(payload []byte) ([]byte, error) {
	sum := sha256.Sum256(append([]byte(s.node), payload...))
	return sum[:], nil
}

func (s hashSigner) Verify(node string, payload, sig []byte) error {
	sum := sha256.Sum256(append([]byte(node), payload...))
	if !bytes.Equal(sum[:], sig) {
		return errors.New("mismatch")
	}
	return nil
}

func TestMarshalUnmarshalFrame(t *testing.T) {
	payload := tlv.EncodeFields([]tlv.Field{tlv.String(1, "space-1")})
	in := Frame{
		Header:  Header{Kind: KindGossip, MessageID: 42},
		Auth:    []byte("auth"),
		Payload: payload,
	}
	raw, err := Marshal(in, DefaultLimits())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(raw) != HeaderLen+len("auth")+len(payload) {
		t.Fatalf("unexpected frame size: %d", len(raw))
	}
	out, err := Unmarshal(raw, DefaultLimits())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Header != in.Header || string(out.Auth) != "auth" || !bytes.Equal(out.Payload, payload) {
		t.Fatalf("frame mismatch: %+v", out)
	}
}

func TestUnmarshalShortFrame(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}, DefaultLimits()); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestUnmarshalRejectsForeignMagicAndVersion(t *testing.T) {
	raw, err := Marshal(Frame{Header: Header{Kind: KindGossip}, Auth: []byte("a")}, DefaultLimits())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	foreign := append([]byte(nil), raw...)
	binary.BigEndian.PutUint32(foreign[0:4], 0xEDCE1001)
	if _, err := Unmarshal(foreign, DefaultLimits()); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	future := append([]byte(nil), raw...)
	binary.BigEndian.PutUint16(future[4:6], Version+1)
	if _, err := Unmarshal(future, DefaultLimits()); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestFramesMustBeSigned(t *testing.T) {
	if _, err := Marshal(Frame{Header: Header{Kind: KindGossip}}, DefaultLimits()); !errors.Is(err, ErrMissingAuth) {
		t.Fatalf("expected ErrMissingAuth on marshal, got %v", err)
	}
	raw, err := Marshal(Frame{Header: Header{Kind: KindGossip}, Auth: []byte("a")}, DefaultLimits())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	binary.BigEndian.PutUint16(raw[6:8], 0)
	if _, err := Unmarshal(raw, DefaultLimits()); !errors.Is(err, ErrMissingAuth) {
		t.Fatalf("expected ErrMissingAuth on unmarshal, got %v", err)
	}
}

func TestUnmarshalLengthChecks(t *testing.T) {
	raw, err := Marshal(Frame{Header: Header{Kind: KindGossip}, Auth: []byte("a"), Payload: []byte("p")}, DefaultLimits())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Unmarshal(append(raw, 0xFF), DefaultLimits()); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch on trailing bytes, got %v", err)
	}
	if _, err := Unmarshal(raw[:len(raw)-1], DefaultLimits()); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch on truncation, got %v", err)
	}
	tight := Limits{MaxAuthBytes: 1, MaxPayloadBytes: 0}
	if _, err := Unmarshal(raw, tight); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestSealOpenDirectMessage(t *testing.T) {
	signer := hashSigner{node: "HnAlpha"}
	in := Message{
		Kind:  KindDirect,
		ID:    7,
		Space: "space-1",
		Node:  "HnAlpha",
		From:  "agent-a",
		To:    "agent-b",
		Body:  []byte("hello"),
	}
	raw, err := Seal(in, signer)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(raw, signer)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if out.Kind != KindDirect || out.ID != 7 || out.Space != "space-1" || out.To != "agent-b" || string(out.Body) != "hello" {
		t.Fatalf("unexpected message: %+v", out)
	}
}

func TestOpenRejectsForgedNode(t *testing.T) {
	raw, err := Seal(Message{Kind: KindGossip, Space: "s", Node: "HnAlpha", From: "HnAlpha"}, hashSigner{node: "HnMallory"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(raw, hashSigner{}); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestSealValidates(t *testing.T) {
	if _, err := Seal(Message{Kind: KindDirect, Space: "s", Node: "n", From: "f"}, hashSigner{}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if _, err := Seal(Message{Kind: 9, Space: "s", Node: "n", From: "f"}, hashSigner{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
