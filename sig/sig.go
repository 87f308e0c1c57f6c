// Package sig provides a uniform signing interface over the two
// signature schemes a biscuit block may be signed with: Ed25519 and
// ECDSA over NIST P-256. It wraps crypto/ed25519 and crypto/ecdsa the
// same way cookbook/signedbiscuit/signature.go wraps ECDSA, but
// exposes one Keypair/PublicKey/PrivateKey surface for both.
package sig

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

// Algorithm tags which signature scheme a key belongs to. The tag is
// carried on the wire (§6 "algo_tag") so a verifier can reject a key
// of the wrong kind before attempting to parse it.
type Algorithm uint32

const (
	Ed25519 Algorithm = iota
	Secp256r1
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "Ed25519"
	case Secp256r1:
		return "Secp256r1"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint32(a))
	}
}

var (
	// ErrInvalidFormat is returned when a key's algorithm tag does
	// not match the key material it is paired with.
	ErrInvalidFormat = errors.New("sig: invalid key format")
	// ErrInvalidKeySize is returned when raw key bytes don't match
	// the expected length for their algorithm.
	ErrInvalidKeySize = errors.New("sig: invalid key size")
	// ErrInvalidSignatureSize is returned when a signature's byte
	// length can't belong to its claimed algorithm.
	ErrInvalidSignatureSize = errors.New("sig: invalid signature size")
	// ErrUnsupportedAlgorithm is returned for an Algorithm value this
	// package does not implement.
	ErrUnsupportedAlgorithm = errors.New("sig: unsupported algorithm")
	// ErrSignatureVerification is returned when Verify rejects a
	// signature.
	ErrSignatureVerification = errors.New("sig: signature verification failed")
)

// PublicKey is a verification key tagged with its Algorithm.
type PublicKey interface {
	Algorithm() Algorithm
	Bytes() []byte
	Verify(message, signature []byte) error
	Equal(PublicKey) bool
}

// PrivateKey is a signing key tagged with its Algorithm.
type PrivateKey interface {
	Algorithm() Algorithm
	Public() PublicKey
	Sign(rng io.Reader, message []byte) ([]byte, error)
}

// Keypair bundles a private key with its Algorithm, generated either
// from a caller-supplied seed or, if empty, a platform RNG — per §5,
// "the caller owns buffer lifetime."
type Keypair interface {
	Algorithm() Algorithm
	Public() PublicKey
	Private() PrivateKey
}

// GenerateKeypair creates a new keypair for algo. If seed is nil or
// empty, the platform RNG (crypto/rand) is used.
func GenerateKeypair(algo Algorithm, seed []byte) (Keypair, error) {
	switch algo {
	case Ed25519:
		return generateEd25519(seed)
	case Secp256r1:
		return generateP256(seed)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// ParsePrivateKey reconstructs a Keypair from a PKCS8-encoded private
// key and its declared Algorithm, verifying the algorithm tag matches
// the decoded key type.
func ParsePrivateKey(algo Algorithm, der []byte) (Keypair, error) {
	switch algo {
	case Ed25519:
		if len(der) == ed25519.SeedSize {
			priv := ed25519.NewKeyFromSeed(der)
			return &ed25519Keypair{priv: priv}, nil
		}
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("sig: parse ed25519 pkcs8: %w", err)
		}
		priv, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrInvalidFormat
		}
		return &ed25519Keypair{priv: priv}, nil
	case Secp256r1:
		if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
			priv, ok := key.(*ecdsa.PrivateKey)
			if !ok || priv.Curve != elliptic.P256() {
				return nil, ErrInvalidFormat
			}
			return &p256Keypair{priv: priv}, nil
		}
		key, err := x509.ParseECPrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("sig: parse p256 ec private key: %w", err)
		}
		if key.Curve != elliptic.P256() {
			return nil, ErrInvalidFormat
		}
		return &p256Keypair{priv: key}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// ParsePublicKey reconstructs a PublicKey from its raw (Ed25519) or
// SEC1-compressed/PKIX (Secp256r1) encoding.
func ParsePublicKey(algo Algorithm, raw []byte) (PublicKey, error) {
	switch algo {
	case Ed25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, ErrInvalidKeySize
		}
		return ed25519PublicKey(append([]byte{}, raw...)), nil
	case Secp256r1:
		pub, err := parseP256Public(raw)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// MarshalPKCS8 encodes a private key to PKCS#8 DER, the format
// exported/imported by PEM.
func MarshalPKCS8(k Keypair) ([]byte, error) {
	switch kp := k.(type) {
	case *ed25519Keypair:
		return x509.MarshalPKCS8PrivateKey(kp.priv)
	case *p256Keypair:
		return x509.MarshalPKCS8PrivateKey(kp.priv)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// MarshalSPKI encodes a public key to SPKI DER.
func MarshalSPKI(pub PublicKey) ([]byte, error) {
	switch p := pub.(type) {
	case ed25519PublicKey:
		return x509.MarshalPKIXPublicKey(ed25519.PublicKey(p))
	case *p256PublicKey:
		return x509.MarshalPKIXPublicKey(p.pub)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// PEM block types used by ExportPrivatePEM / ExportPublicPEM.
const (
	pemPrivateKeyType = "PRIVATE KEY"
	pemPublicKeyType  = "PUBLIC KEY"
)

// ExportPrivatePEM serializes a keypair's private key as a PKCS#8 PEM
// block.
func ExportPrivatePEM(k Keypair) ([]byte, error) {
	der, err := MarshalPKCS8(k)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: der}), nil
}

// ExportPublicPEM serializes a public key as an SPKI PEM block.
func ExportPublicPEM(pub PublicKey) ([]byte, error) {
	der, err := MarshalSPKI(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKeyType, Bytes: der}), nil
}

// ParsePrivatePEM decodes a PKCS#8 PEM block produced by
// ExportPrivatePEM back into a Keypair of the given Algorithm.
func ParsePrivatePEM(algo Algorithm, data []byte) (Keypair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("sig: no PEM block found")
	}
	return ParsePrivateKey(algo, block.Bytes)
}

// ParsePublicPEM decodes an SPKI PEM block back into a PublicKey.
func ParsePublicPEM(data []byte) (PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("sig: no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sig: parse spki: %w", err)
	}
	switch pub := key.(type) {
	case ed25519.PublicKey:
		return ed25519PublicKey(pub), nil
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return nil, ErrInvalidFormat
		}
		return &p256PublicKey{pub: pub}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func randReader(rng io.Reader) io.Reader {
	if rng == nil {
		return rand.Reader
	}
	return rng
}
