package dht

import (
	"fmt"

	"github.com/danmuck/ghostnet/internal/wire/tlv"
)

// Bundle is the decoded form of a gossip payload.
type Bundle struct {
	Peers   []PeerData
	Entries []EntryData
}

const (
	fieldPeer  uint16 = 1
	fieldEntry uint16 = 2

	fieldPeerAddress   uint16 = 1
	fieldPeerURI       uint16 = 2
	fieldPeerTimestamp uint16 = 3

	fieldEntryAddress uint16 = 1
	fieldEntryAspect  uint16 = 2

	fieldAspectAddress  uint16 = 1
	fieldAspectTypeHint uint16 = 2
	fieldAspectContent  uint16 = 3
	fieldAspectPublish  uint16 = 4
)

func EncodeBundle(b Bundle) []byte {
	fields := make([]tlv.Field, 0, len(b.Peers)+len(b.Entries))
	for _, p := range b.Peers {
		fields = append(fields, tlv.Nested(fieldPeer, []tlv.Field{
			tlv.String(fieldPeerAddress, p.Address),
			tlv.String(fieldPeerURI, p.URI),
			tlv.U64(fieldPeerTimestamp, p.Timestamp),
		}))
	}
	for _, e := range b.Entries {
		entry := []tlv.Field{tlv.String(fieldEntryAddress, e.Address)}
		for _, a := range e.Aspects {
			entry = append(entry, tlv.Nested(fieldEntryAspect, []tlv.Field{
				tlv.String(fieldAspectAddress, a.Address),
				tlv.String(fieldAspectTypeHint, a.TypeHint),
				tlv.Bytes(fieldAspectContent, a.Content),
				tlv.U64(fieldAspectPublish, a.PublishTS),
			}))
		}
		fields = append(fields, tlv.Nested(fieldEntry, entry))
	}
	return tlv.EncodeFields(fields)
}

func DecodeBundle(raw []byte) (Bundle, error) {
	fields, err := tlv.DecodeFields(raw)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	out := Bundle{Peers: make([]PeerData, 0), Entries: make([]EntryData, 0)}
	for _, f := range fields {
		switch f.ID {
		case fieldPeer:
			p, err := decodePeer(f)
			if err != nil {
				return Bundle{}, err
			}
			out.Peers = append(out.Peers, p)
		case fieldEntry:
			e, err := decodeEntry(f)
			if err != nil {
				return Bundle{}, err
			}
			out.Entries = append(out.Entries, e)
		default:
			return Bundle{}, fmt.Errorf("%w: unknown field %d", ErrMalformedBundle, f.ID)
		}
	}
	return out, nil
}

func decodePeer(f tlv.Field) (PeerData, error) {
	fields, err := f.Fields()
	if err != nil {
		return PeerData{}, fmt.Errorf("%w: peer: %v", ErrMalformedBundle, err)
	}
	var p PeerData
	if p.Address, err = tlv.StringField(fields, fieldPeerAddress); err != nil {
		return PeerData{}, fmt.Errorf("%w: peer address: %v", ErrMalformedBundle, err)
	}
	if p.URI, err = tlv.StringField(fields, fieldPeerURI); err != nil {
		return PeerData{}, fmt.Errorf("%w: peer uri: %v", ErrMalformedBundle, err)
	}
	if p.Timestamp, err = tlv.U64Field(fields, fieldPeerTimestamp); err != nil {
		return PeerData{}, fmt.Errorf("%w: peer timestamp: %v", ErrMalformedBundle, err)
	}
	return p, nil
}

func decodeEntry(f tlv.Field) (EntryData, error) {
	fields, err := f.Fields()
	if err != nil {
		return EntryData{}, fmt.Errorf("%w: entry: %v", ErrMalformedBundle, err)
	}
	var e EntryData
	if e.Address, err = tlv.StringField(fields, fieldEntryAddress); err != nil {
		return EntryData{}, fmt.Errorf("%w: entry address: %v", ErrMalformedBundle, err)
	}
	e.Aspects = make([]EntryAspect, 0)
	for _, af := range tlv.All(fields, fieldEntryAspect) {
		afields, err := af.Fields()
		if err != nil {
			return EntryData{}, fmt.Errorf("%w: aspect: %v", ErrMalformedBundle, err)
		}
		var a EntryAspect
		if a.Address, err = tlv.StringField(afields, fieldAspectAddress); err != nil {
			return EntryData{}, fmt.Errorf("%w: aspect address: %v", ErrMalformedBundle, err)
		}
		if a.TypeHint, err = tlv.OptionalString(afields, fieldAspectTypeHint); err != nil {
			return EntryData{}, fmt.Errorf("%w: aspect type hint: %v", ErrMalformedBundle, err)
		}
		if a.Content, err = tlv.BytesField(afields, fieldAspectContent); err != nil {
			return EntryData{}, fmt.Errorf("%w: aspect content: %v", ErrMalformedBundle, err)
		}
		if a.PublishTS, err = tlv.U64Field(afields, fieldAspectPublish); err != nil {
			return EntryData{}, fmt.Errorf("%w: aspect publish: %v", ErrMalformedBundle, err)
		}
		e.Aspects = append(e.Aspects, a)
	}
	return e, nil
}
