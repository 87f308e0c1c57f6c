package biscuit

import (
	"encoding/binary"
	"io"

	"github.com/dalek-auth/biscuit/v2/sig"
)

// The chain binds each block to the next by signing, alongside the
// block's own bytes, the public half of the key that must sign the
// block that follows. Rebuilding this file's payload is the only way
// a verifier can check a chain link, so its byte layout is fixed:
// encode(block) ∥ algo_tag(next_pk) ∥ encode(next_pk), with algo_tag a
// 4-byte little-endian integer (§6 "Signature payload"). A
// third-party block additionally binds the position it was attached
// at by appending algo_tag(prev_pk) ∥ encode(prev_pk), where prev_pk
// is the key that signed the block itself.

func algoTagBytes(algo sig.Algorithm) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(algo))
	return b
}

func chainPayload(blockBytes []byte, nextKey sig.PublicKey) []byte {
	buf := make([]byte, 0, len(blockBytes)+4+len(nextKey.Bytes()))
	buf = append(buf, blockBytes...)
	buf = append(buf, algoTagBytes(nextKey.Algorithm())...)
	buf = append(buf, nextKey.Bytes()...)
	return buf
}

func thirdPartyChainPayload(blockBytes []byte, nextKey, prevKey sig.PublicKey) []byte {
	buf := chainPayload(blockBytes, nextKey)
	buf = append(buf, algoTagBytes(prevKey.Algorithm())...)
	buf = append(buf, prevKey.Bytes()...)
	return buf
}

func signChainLink(rng io.Reader, signer sig.Keypair, blockBytes []byte, nextKey sig.PublicKey) ([]byte, error) {
	return signer.Private().Sign(rng, chainPayload(blockBytes, nextKey))
}

func signThirdPartyChainLink(rng io.Reader, extKey sig.Keypair, blockBytes []byte, nextKey, prevKey sig.PublicKey) ([]byte, error) {
	return extKey.Private().Sign(rng, thirdPartyChainPayload(blockBytes, nextKey, prevKey))
}

func verifyChainLink(pk sig.PublicKey, blockBytes []byte, nextKey sig.PublicKey, signature []byte) error {
	return pk.Verify(chainPayload(blockBytes, nextKey), signature)
}

func verifyThirdPartyChainLink(pk sig.PublicKey, blockBytes []byte, nextKey, prevKey sig.PublicKey, signature []byte) error {
	return pk.Verify(thirdPartyChainPayload(blockBytes, nextKey, prevKey), signature)
}

// signSeal produces the seal signature over the last chain link's
// signature bytes, using the keypair whose public half was committed
// as that link's next key (§4.C4 "Seal").
func signSeal(rng io.Reader, lastSecret sig.Keypair, lastSignature []byte) ([]byte, error) {
	return lastSecret.Private().Sign(rng, lastSignature)
}

func verifySeal(pk sig.PublicKey, lastSignature, sealSignature []byte) error {
	return pk.Verify(lastSignature, sealSignature)
}

// marshalSecret serializes a keypair's private half for the proof's
// next_secret field, using PKCS#8 DER so both Ed25519 and Secp256r1
// keys round-trip through the same encoder (sig.ParsePrivateKey mirrors
// this on decode).
func marshalSecret(kp sig.Keypair) ([]byte, error) {
	return sig.MarshalPKCS8(kp)
}

func unmarshalSecret(algo sig.Algorithm, der []byte) (sig.Keypair, error) {
	return sig.ParsePrivateKey(algo, der)
}
