package biscuit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dalek-auth/biscuit/v2/sig"
)

// TestParseRoundTrip covers §8's "Serialization round-trip" property:
// parsing a freshly-serialized token against its own root key succeeds
// and yields back an equivalent, re-serializable token.
func TestParseRoundTrip(t *testing.T) {
	root := mustRootKeypair(t)
	builder := NewBiscuitBuilder()
	require.NoError(t, builder.AddFact(Fact{Predicate: Predicate{
		Name: "right", IDs: []Term{String("file1"), String("read")},
	}}))
	token, err := builder.Build(root)
	require.NoError(t, err)

	data, err := token.Serialize()
	require.NoError(t, err)

	parsed, err := Parse(data, root.Public())
	require.NoError(t, err)

	reserialized, err := parsed.Serialize()
	require.NoError(t, err)
	require.Equal(t, data, reserialized)
}

// TestParseRejectsWrongRootKey covers §4.C4 "Verify": a token must be
// anchored to the specific root key that signed its authority block.
func TestParseRejectsWrongRootKey(t *testing.T) {
	root := mustRootKeypair(t)
	other := mustRootKeypair(t)

	token, err := NewBiscuitBuilder().Build(root)
	require.NoError(t, err)
	data, err := token.Serialize()
	require.NoError(t, err)

	_, err = Parse(data, other.Public())
	require.ErrorIs(t, err, ErrFormatSignatureInvalidSignature)
}

// TestParseRejectsBitFlip covers §8's "Signature soundness" property:
// any single-bit mutation in the serialized form is rejected.
func TestParseRejectsBitFlip(t *testing.T) {
	root := mustRootKeypair(t)
	builder := NewBiscuitBuilder()
	require.NoError(t, builder.AddFact(Fact{Predicate: Predicate{
		Name: "right", IDs: []Term{String("file1"), String("read")},
	}}))
	token, err := builder.Build(root)
	require.NoError(t, err)
	data, err := token.Serialize()
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)/2] ^= 0x01

	_, err = Parse(flipped, root.Public())
	require.Error(t, err)
}

// TestParseSealedToken covers verification of a sealed token's proof.
func TestParseSealedToken(t *testing.T) {
	root := mustRootKeypair(t)
	token, err := NewBiscuitBuilder().Build(root)
	require.NoError(t, err)

	sealed, err := token.Seal()
	require.NoError(t, err)
	data, err := sealed.Serialize()
	require.NoError(t, err)

	parsed, err := Parse(data, root.Public())
	require.NoError(t, err)
	require.True(t, parsed.Sealed())

	_, err = parsed.Append(parsed.CreateBlock().Build())
	require.ErrorIs(t, err, ErrAppendOnSealed)
}

// TestParseMultiBlockChain covers verifying a chain with several
// appended blocks, including a P-256 next-key mixed into an
// otherwise-Ed25519 chain (§4.C1 "uniform capability set").
func TestParseMultiBlockChain(t *testing.T) {
	root := mustRootKeypair(t)
	token, err := NewBiscuitBuilder().Build(root, WithNextKeyAlgorithm(sig.Secp256r1))
	require.NoError(t, err)

	block1 := token.CreateBlock().Build()
	next, err := token.Append(block1)
	require.NoError(t, err)

	block2 := next.CreateBlock().Build()
	final, err := next.Append(block2)
	require.NoError(t, err)

	data, err := final.Serialize()
	require.NoError(t, err)

	parsed, err := Parse(data, root.Public())
	require.NoError(t, err)
	require.Equal(t, 2, parsed.BlockCount())
}

// TestParseWithRootKeys covers resolving a root key by id (§6
// "root_key_id").
func TestParseWithRootKeys(t *testing.T) {
	root := mustRootKeypair(t)
	rootKeyID := uint32(7)
	token, err := NewBiscuitBuilder().Build(root, WithRootKeyID(rootKeyID))
	require.NoError(t, err)
	data, err := token.Serialize()
	require.NoError(t, err)

	seen := false
	parsed, err := ParseWithRootKeys(data, func(id *uint32) (sig.PublicKey, error) {
		seen = id != nil && *id == rootKeyID
		return root.Public(), nil
	})
	require.NoError(t, err)
	require.NotNil(t, parsed)
	require.True(t, seen)
}
