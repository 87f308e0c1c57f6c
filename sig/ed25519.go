package sig

import (
	"crypto/ed25519"
	"io"
)

type ed25519Keypair struct {
	priv ed25519.PrivateKey
}

func generateEd25519(seed []byte) (Keypair, error) {
	if len(seed) == 0 {
		_, priv, err := ed25519.GenerateKey(randReader(nil))
		if err != nil {
			return nil, err
		}
		return &ed25519Keypair{priv: priv}, nil
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeySize
	}
	return &ed25519Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (k *ed25519Keypair) Algorithm() Algorithm { return Ed25519 }
func (k *ed25519Keypair) Public() PublicKey {
	return ed25519PublicKey(k.priv.Public().(ed25519.PublicKey))
}
func (k *ed25519Keypair) Private() PrivateKey { return ed25519PrivateKey{priv: k.priv} }

type ed25519PrivateKey struct {
	priv ed25519.PrivateKey
}

func (k ed25519PrivateKey) Algorithm() Algorithm { return Ed25519 }
func (k ed25519PrivateKey) Public() PublicKey {
	return ed25519PublicKey(k.priv.Public().(ed25519.PublicKey))
}
func (k ed25519PrivateKey) Sign(rng io.Reader, message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

type ed25519PublicKey ed25519.PublicKey

func (k ed25519PublicKey) Algorithm() Algorithm { return Ed25519 }
func (k ed25519PublicKey) Bytes() []byte        { return append([]byte{}, k...) }
func (k ed25519PublicKey) Verify(message, signature []byte) error {
	if len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignatureSize
	}
	if !ed25519.Verify(ed25519.PublicKey(k), message, signature) {
		return ErrSignatureVerification
	}
	return nil
}
func (k ed25519PublicKey) Equal(o PublicKey) bool {
	c, ok := o.(ed25519PublicKey)
	if !ok {
		return false
	}
	return ed25519.PublicKey(k).Equal(ed25519.PublicKey(c))
}
