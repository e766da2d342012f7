package crypto

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	NodeAddressPrefix    = "Hn"
	ContentAddressPrefix = "Hc"
)

// AddressFromPublicKey derives a node address from a signing public key.
func AddressFromPublicKey(pub []byte) string {
	return NodeAddressPrefix + base58.Encode(pub)
}

// PublicKeyFromAddress reverses AddressFromPublicKey.
func PublicKeyFromAddress(addr string) ([]byte, error) {
	if !strings.HasPrefix(addr, NodeAddressPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, addr)
	}
	pub, err := base58.Decode(strings.TrimPrefix(addr, NodeAddressPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(pub) != publicKeyBytes {
		return nil, fmt.Errorf("%w: key length %d", ErrBadAddress, len(pub))
	}
	return pub, nil
}

// HashAddress is the content address of data.
func HashAddress(data []byte) string {
	sum := blake2b.Sum256(data)
	return ContentAddressPrefix + base58.Encode(sum[:])
}

// Identity is a node signing keypair held in protected buffers.
type Identity struct {
	sys     System
	public  []byte
	secret  Buffer
	address string
}

// NewIdentity derives a keypair from seed, or generates one when seed is
// empty.
func NewIdentity(sys System, seed []byte) (*Identity, error) {
	pub, err := sys.BufferNew(sys.SignPublicKeyBytes())
	if err != nil {
		return nil, err
	}
	sec, err := sys.BufferNew(sys.SignSecretKeyBytes())
	if err != nil {
		return nil, err
	}
	if len(seed) == 0 {
		err = sys.SignKeypair(pub, sec)
	} else {
		var seedBuf Buffer
		seedBuf, err = BufferFrom(sys, seed)
		if err != nil {
			return nil, err
		}
		err = sys.SignSeedKeypair(seedBuf, pub, sec)
	}
	if err != nil {
		return nil, err
	}
	pubBytes, err := Bytes(pub)
	if err != nil {
		return nil, err
	}
	return &Identity{
		sys:     sys,
		public:  pubBytes,
		secret:  sec,
		address: AddressFromPublicKey(pubBytes),
	}, nil
}

func (id *Identity) Address() string {
	return id.address
}

func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.public))
	copy(out, id.public)
	return out
}

func (id *Identity) Sign(payload []byte) ([]byte, error) {
	msg, err := BufferFrom(id.sys, payload)
	if err != nil {
		return nil, err
	}
	sig, err := id.sys.BufferNew(id.sys.SignatureBytes())
	if err != nil {
		return nil, err
	}
	if err := id.sys.Sign(sig, msg, id.secret); err != nil {
		return nil, err
	}
	return Bytes(sig)
}

// Verify checks sig over payload against the key encoded in node.
func (id *Identity) Verify(node string, payload, sig []byte) error {
	return VerifyAddress(id.sys, node, payload, sig)
}

// VerifyAddress checks sig over payload against the key encoded in node.
func VerifyAddress(sys System, node string, payload, sig []byte) error {
	pub, err := PublicKeyFromAddress(node)
	if err != nil {
		return err
	}
	if len(sig) != sys.SignatureBytes() {
		return fmt.Errorf("%w: signature length %d", ErrVerifyFailed, len(sig))
	}
	pubBuf, err := BufferFrom(sys, pub)
	if err != nil {
		return err
	}
	msgBuf, err := BufferFrom(sys, payload)
	if err != nil {
		return err
	}
	sigBuf, err := BufferFrom(sys, sig)
	if err != nil {
		return err
	}
	ok, err := sys.Verify(sigBuf, msgBuf, pubBuf)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerifyFailed
	}
	return nil
}
