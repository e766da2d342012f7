package crypto

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/sign"
)

const (
	seedBytes      = 32
	publicKeyBytes = 32
	secretKeyBytes = 64
	signatureBytes = sign.Overhead
)

// NaclSystem implements System with nacl/sign (ed25519).
type NaclSystem struct {
	random io.Reader
}

var _ System = (*NaclSystem)(nil)

// Init checks the random source and returns the process-wide System.
func Init() (*NaclSystem, error) {
	return InitWithRandom(rand.Reader)
}

// InitWithRandom is Init with an explicit random source.
func InitWithRandom(random io.Reader) (*NaclSystem, error) {
	var first [1]byte
	if _, err := io.ReadFull(random, first[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return &NaclSystem{random: random}, nil
}

func (s *NaclSystem) BufferNew(size int) (Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrBufferSize, size)
	}
	return newMemBuffer(size), nil
}

func (s *NaclSystem) RandomBytes(buf Buffer) error {
	return buf.Write(func(b []byte) error {
		if _, err := io.ReadFull(s.random, b); err != nil {
			return fmt.Errorf("%w: %v", ErrRandomSource, err)
		}
		return nil
	})
}

func (s *NaclSystem) SignSeedBytes() int      { return seedBytes }
func (s *NaclSystem) SignPublicKeyBytes() int { return publicKeyBytes }
func (s *NaclSystem) SignSecretKeyBytes() int { return secretKeyBytes }
func (s *NaclSystem) SignatureBytes() int     { return signatureBytes }

func (s *NaclSystem) SignSeedKeypair(seed, publicKey, secretKey Buffer) error {
	if err := checkLen("seed", seed, seedBytes); err != nil {
		return err
	}
	return seed.Read(func(sd []byte) error {
		return s.keypairFrom(bytes.NewReader(sd), publicKey, secretKey)
	})
}

func (s *NaclSystem) SignKeypair(publicKey, secretKey Buffer) error {
	return s.keypairFrom(s.random, publicKey, secretKey)
}

func (s *NaclSystem) keypairFrom(r io.Reader, publicKey, secretKey Buffer) error {
	if err := checkLen("public key", publicKey, publicKeyBytes); err != nil {
		return err
	}
	if err := checkLen("secret key", secretKey, secretKeyBytes); err != nil {
		return err
	}
	pub, sec, err := sign.GenerateKey(r)
	if err != nil {
		return fmt.Errorf("crypto: generate keypair: %w", err)
	}
	if err := publicKey.Write(func(b []byte) error {
		copy(b, pub[:])
		return nil
	}); err != nil {
		return err
	}
	return secretKey.Write(func(b []byte) error {
		copy(b, sec[:])
		return nil
	})
}

func (s *NaclSystem) Sign(signature, message, secretKey Buffer) error {
	if err := checkLen("signature", signature, signatureBytes); err != nil {
		return err
	}
	if err := checkLen("secret key", secretKey, secretKeyBytes); err != nil {
		return err
	}
	return secretKey.Read(func(sk []byte) error {
		var key [secretKeyBytes]byte
		copy(key[:], sk)
		return message.Read(func(msg []byte) error {
			signed := sign.Sign(nil, msg, &key)
			return signature.Write(func(out []byte) error {
				copy(out, signed[:signatureBytes])
				return nil
			})
		})
	})
}

func (s *NaclSystem) Verify(signature, message, publicKey Buffer) (bool, error) {
	if err := checkLen("signature", signature, signatureBytes); err != nil {
		return false, err
	}
	if err := checkLen("public key", publicKey, publicKeyBytes); err != nil {
		return false, err
	}
	ok := false
	err := publicKey.Read(func(pk []byte) error {
		var key [publicKeyBytes]byte
		copy(key[:], pk)
		return signature.Read(func(sig []byte) error {
			return message.Read(func(msg []byte) error {
				signed := make([]byte, 0, len(sig)+len(msg))
				signed = append(signed, sig...)
				signed = append(signed, msg...)
				_, ok = sign.Open(nil, signed, &key)
				return nil
			})
		})
	})
	return ok, err
}
