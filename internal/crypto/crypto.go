// Package crypto is the CryptoSystem capability: protected buffers, random
// bytes and ed25519 signatures. A System is created once at process start
// with Init and passed to whatever needs it.
package crypto

import (
	"errors"
	"fmt"
)

var (
	ErrBufferSize   = errors.New("crypto: buffer size mismatch")
	ErrRandomSource = errors.New("crypto: random source unavailable")
	ErrVerifyFailed = errors.New("crypto: signature verification failed")
	ErrBadAddress   = errors.New("crypto: malformed node address")
)

// Protection is the access mode of a Buffer.
type Protection int

const (
	NoAccess Protection = iota
	ReadOnly
	ReadWrite
)

func (p Protection) String() string {
	switch p {
	case NoAccess:
		return "no_access"
	case ReadOnly:
		return "read_only"
	case ReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("protection(%d)", int(p))
	}
}

// Buffer is secret-holding memory that is only reachable inside a scoped
// Read or Write call. Opening a buffer that is already open is a logic
// fault.
type Buffer interface {
	Len() int
	Protection() Protection
	Read(fn func([]byte) error) error
	Write(fn func([]byte) error) error
}

// System is the cryptographic capability consumed by the engine.
type System interface {
	BufferNew(size int) (Buffer, error)
	RandomBytes(buf Buffer) error

	SignSeedBytes() int
	SignPublicKeyBytes() int
	SignSecretKeyBytes() int
	SignatureBytes() int

	SignSeedKeypair(seed, publicKey, secretKey Buffer) error
	SignKeypair(publicKey, secretKey Buffer) error
	Sign(signature, message, secretKey Buffer) error
	Verify(signature, message, publicKey Buffer) (bool, error)
}

type memBuffer struct {
	data []byte
	prot Protection
}

func newMemBuffer(size int) *memBuffer {
	return &memBuffer{data: make([]byte, size), prot: NoAccess}
}

func (b *memBuffer) Len() int {
	return len(b.data)
}

func (b *memBuffer) Protection() Protection {
	return b.prot
}

func (b *memBuffer) open(mode Protection, fn func([]byte) error) error {
	if b.prot != NoAccess {
		panic(fmt.Sprintf("crypto: buffer opened %s while %s", mode, b.prot))
	}
	b.prot = mode
	defer func() {
		b.prot = NoAccess
	}()
	return fn(b.data)
}

func (b *memBuffer) Read(fn func([]byte) error) error {
	return b.open(ReadOnly, fn)
}

func (b *memBuffer) Write(fn func([]byte) error) error {
	return b.open(ReadWrite, fn)
}

// BufferFrom allocates a buffer of len(data) and copies data into it.
func BufferFrom(sys System, data []byte) (Buffer, error) {
	buf, err := sys.BufferNew(len(data))
	if err != nil {
		return nil, err
	}
	err = buf.Write(func(b []byte) error {
		copy(b, data)
		return nil
	})
	return buf, err
}

// Bytes copies a buffer's contents out.
func Bytes(buf Buffer) ([]byte, error) {
	out := make([]byte, buf.Len())
	err := buf.Read(func(b []byte) error {
		copy(out, b)
		return nil
	})
	return out, err
}

func checkLen(name string, buf Buffer, want int) error {
	if buf.Len() != want {
		return fmt.Errorf("%w: %s got %d want %d", ErrBufferSize, name, buf.Len(), want)
	}
	return nil
}
