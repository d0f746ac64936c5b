package signing_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmnet/arbiter/signing"
)

type Foo struct {
	S string
	N uint64
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	data := Foo{S: "sign me", N: 7}
	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	// Sign
	signed, err := signing.Sign(data, privKey, pubKey)
	require.NoError(err)
	require.EqualValues(data, *signed.Data())

	// Create Signed from a signed data
	signed2, err := signing.New(*signed.Data(), signed.Signature(), signed.PubKey())
	require.NoError(err)
	require.EqualValues(signed2.Data(), signed.Data())
}

func TestInvalidSignature(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	data := Foo{S: "sign me"}

	pubKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	_, err = signing.New(data, []byte{}, pubKey)
	require.ErrorIs(err, signing.ErrSignatureInvalid)

	_, err = signing.New(data, []byte{}, []byte{0x01})
	require.ErrorIs(err, signing.ErrInvalidPubkeyLen)
}

func TestTamperedData(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	pubKey, privKey, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	signed, err := signing.Sign(Foo{S: "original"}, privKey, pubKey)
	require.NoError(err)

	_, err = signing.New(Foo{S: "tampered"}, signed.Signature(), signed.PubKey())
	require.ErrorIs(err, signing.ErrSignatureInvalid)
}
