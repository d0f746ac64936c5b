package signing

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/swarmnet/arbiter/util"
)

var (
	ErrSigningFailed    = errors.New("couldn't sign")
	ErrSignatureInvalid = errors.New("signature is invalid")
	ErrInvalidPubkeyLen = errors.New("pubkey has invalid length")
)

// Signed represents a signed T data.
// It provides a read-only access to it.
type Signed[T any] interface {
	// Data retrieves the underlying data.
	// The received data is READ ONLY.
	Data() *T
	PubKey() []byte
	Signature() []byte
}

// signedData is a holder of data T which is
// guaranteed to be signed. It implements Signed[T] interface.
type signedData[T any] struct {
	data      T
	pubkey    []byte
	signature []byte
}

func (d *signedData[T]) Data() *T {
	return &d.data
}

func (d *signedData[T]) PubKey() []byte {
	return d.pubkey
}

func (d *signedData[T]) Signature() []byte {
	return d.signature
}

type notHashed struct{}

func (notHashed) HashFunc() crypto.Hash { return crypto.Hash(0) }

// Sign signs the canonical encoding of data with the given signer.
func Sign[T any](data T, signer crypto.Signer, pubkey []byte) (Signed[T], error) {
	encoded, err := util.Encode(&data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data (%w)", err)
	}
	signature, err := signer.Sign(nil, encoded, notHashed{})
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	return &signedData[T]{
		data:      data,
		pubkey:    pubkey,
		signature: signature,
	}, nil
}

// New constructs Signed[T] from a received T, verifying the signature
// over its canonical encoding.
func New[T any](data T, signature, pubkey []byte) (Signed[T], error) {
	// Serialize it for signature verification
	encoded, err := util.Encode(&data)
	if err != nil {
		return nil, err
	}
	if l := len(pubkey); l != ed25519.PublicKeySize {
		return nil, ErrInvalidPubkeyLen
	}
	if !ed25519.Verify(pubkey, encoded, signature) {
		return nil, ErrSignatureInvalid
	}

	return &signedData[T]{
		data:      data,
		pubkey:    pubkey,
		signature: signature,
	}, nil
}
