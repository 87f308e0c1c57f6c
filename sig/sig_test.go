package sig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEd25519SignVerify(t *testing.T) {
	kp, err := GenerateKeypair(Ed25519, nil)
	require.NoError(t, err)

	msg := []byte("hello biscuit")
	signature, err := kp.Private().Sign(nil, msg)
	require.NoError(t, err)

	require.NoError(t, kp.Public().Verify(msg, signature))
	require.Error(t, kp.Public().Verify([]byte("tampered"), signature))
}

func TestP256SignVerify(t *testing.T) {
	kp, err := GenerateKeypair(Secp256r1, nil)
	require.NoError(t, err)

	msg := []byte("hello biscuit")
	signature, err := kp.Private().Sign(nil, msg)
	require.NoError(t, err)

	require.NoError(t, kp.Public().Verify(msg, signature))
	require.Error(t, kp.Public().Verify([]byte("tampered"), signature))
}

func TestP256PublicKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair(Secp256r1, nil)
	require.NoError(t, err)

	raw := kp.Public().Bytes()
	require.Len(t, raw, p256PublicKeySize)

	pub, err := ParsePublicKey(Secp256r1, raw)
	require.NoError(t, err)
	require.True(t, pub.Equal(kp.Public()))
}

func TestEd25519PEMRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair(Ed25519, nil)
	require.NoError(t, err)

	privPEM, err := ExportPrivatePEM(kp)
	require.NoError(t, err)
	pubPEM, err := ExportPublicPEM(kp.Public())
	require.NoError(t, err)

	gotKp, err := ParsePrivatePEM(Ed25519, privPEM)
	require.NoError(t, err)
	require.True(t, gotKp.Public().Equal(kp.Public()))

	gotPub, err := ParsePublicPEM(pubPEM)
	require.NoError(t, err)
	require.True(t, gotPub.Equal(kp.Public()))
}

func TestMismatchedAlgorithmRejected(t *testing.T) {
	kp, err := GenerateKeypair(Ed25519, nil)
	require.NoError(t, err)

	der, err := MarshalPKCS8(kp)
	require.NoError(t, err)

	_, err = ParsePrivateKey(Secp256r1, der)
	require.Error(t, err)
}

func TestDeterministicSeed(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	kp1, err := GenerateKeypair(Ed25519, seed)
	require.NoError(t, err)
	kp2, err := GenerateKeypair(Ed25519, seed)
	require.NoError(t, err)

	require.True(t, kp1.Public().Equal(kp2.Public()))
}
