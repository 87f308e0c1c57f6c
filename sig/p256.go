package sig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"io"
)

// p256PublicKeySize is the length of a SEC1-compressed P-256 point
// (1 tag byte + 32-byte X coordinate).
const p256PublicKeySize = 33

type p256Keypair struct {
	priv *ecdsa.PrivateKey
}

func generateP256(seed []byte) (Keypair, error) {
	if len(seed) == 0 {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), randReader(nil))
		if err != nil {
			return nil, err
		}
		return &p256Keypair{priv: priv}, nil
	}
	// Deterministic generation from a 32-byte seed, matching the
	// scalar-reduction approach ecdsa.GenerateKey uses internally:
	// derive a private scalar from the seed via the curve's bit
	// size and reject/re-derive is not needed for P-256 since any
	// 32-byte value in range is accepted by the stdlib's randomPoint
	// path when used as the entropy source.
	if len(seed) != 32 {
		return nil, ErrInvalidKeySize
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), newSeedReader(seed))
	if err != nil {
		return nil, err
	}
	return &p256Keypair{priv: priv}, nil
}

func (k *p256Keypair) Algorithm() Algorithm { return Secp256r1 }
func (k *p256Keypair) Public() PublicKey    { return &p256PublicKey{pub: &k.priv.PublicKey} }
func (k *p256Keypair) Private() PrivateKey  { return p256PrivateKey{priv: k.priv} }

type p256PrivateKey struct {
	priv *ecdsa.PrivateKey
}

func (k p256PrivateKey) Algorithm() Algorithm { return Secp256r1 }
func (k p256PrivateKey) Public() PublicKey    { return &p256PublicKey{pub: &k.priv.PublicKey} }
func (k p256PrivateKey) Sign(rng io.Reader, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	return ecdsa.SignASN1(randReader(rng), k.priv, hash[:])
}

type p256PublicKey struct {
	pub *ecdsa.PublicKey
}

func (k *p256PublicKey) Algorithm() Algorithm { return Secp256r1 }

func (k *p256PublicKey) Bytes() []byte {
	return elliptic.MarshalCompressed(k.pub.Curve, k.pub.X, k.pub.Y)
}

func (k *p256PublicKey) Verify(message, signature []byte) error {
	hash := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(k.pub, hash[:], signature) {
		return ErrSignatureVerification
	}
	return nil
}

func (k *p256PublicKey) Equal(o PublicKey) bool {
	c, ok := o.(*p256PublicKey)
	if !ok {
		return false
	}
	return k.pub.Equal(c.pub)
}

func parseP256Public(raw []byte) (PublicKey, error) {
	if len(raw) == p256PublicKeySize {
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, ErrInvalidFormat
		}
		return &p256PublicKey{pub: &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}}, nil
	}

	key, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, ErrInvalidFormat
	}
	return &p256PublicKey{pub: pub}, nil
}

// seedReader replays a fixed seed as an io.Reader so ecdsa.GenerateKey
// can be driven deterministically from a caller-supplied seed, the
// same contract Ed25519 keys get from ed25519.NewKeyFromSeed.
type seedReader struct {
	seed []byte
}

func newSeedReader(seed []byte) *seedReader {
	return &seedReader{seed: seed}
}

func (r *seedReader) Read(p []byte) (int, error) {
	n := copy(p, r.seed)
	// Extend deterministically if more entropy is requested than the
	// seed provides, by re-hashing: still fully determined by seed.
	for n < len(p) {
		h := sha256.Sum256(r.seed)
		r.seed = h[:]
		c := copy(p[n:], r.seed)
		n += c
	}
	return n, nil
}
