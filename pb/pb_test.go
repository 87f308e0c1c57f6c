package pb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTermRoundTrip(t *testing.T) {
	sym := uint64(42)
	str := "file1"
	i := int64(-7)
	boolean := true

	terms := []*Term{
		{Symbol: &sym},
		{Str: &str},
		{Integer: &i},
		{Bool: &boolean},
		{Bytes: []byte{0x01, 0x02}},
		{Null: true},
		{Set: []*Term{{Integer: &i}, {Str: &str}}},
		{Array: []*Term{{Str: &str}, {Integer: &i}}},
		{Map: []*MapEntry{{Key: MapKey{IsString: true, Str: "k"}, Value: &Term{Integer: &i}}}},
	}

	for _, term := range terms {
		encoded := EncodeTerm(term)
		decoded, err := DecodeTerm(encoded)
		require.NoError(t, err)
		require.Equal(t, term, decoded)
	}
}

func TestSetEncodingIsSortedAndDeterministic(t *testing.T) {
	a := int64(1)
	b := int64(2)
	c := int64(3)

	set1 := &Term{Set: []*Term{{Integer: &c}, {Integer: &a}, {Integer: &b}}}
	set2 := &Term{Set: []*Term{{Integer: &a}, {Integer: &b}, {Integer: &c}}}

	require.Equal(t, EncodeTerm(set1), EncodeTerm(set2))
}

func TestBlockRoundTrip(t *testing.T) {
	sym := uint64(1024)
	block := &Block{
		Symbols: []string{"file1", "read"},
		Context: "test",
		Version: 5,
		Facts: []*Fact{
			{Predicate: &Predicate{Name: 5, Terms: []*Term{{Symbol: &sym}}}},
		},
		Rules: []*Rule{
			{
				Head: &Predicate{Name: 6, Terms: []*Term{{Symbol: &sym}}},
				Body: []*Predicate{{Name: 5, Terms: []*Term{{Symbol: &sym}}}},
				Scope: &Scope{Explicit: true, Blocks: []uint32{0}},
			},
		},
		Checks: []*Check{
			{Kind: CheckKindOne, Queries: []*Rule{{Head: &Predicate{Name: 1}, Body: []*Predicate{{Name: 2}}}}},
		},
		PublicKeys: []*PublicKey{{Algorithm: AlgorithmEd25519, Key: []byte{0x01, 0x02, 0x03}}},
	}

	encoded := EncodeBlock(block)
	decoded, err := DecodeBlock(encoded)
	require.NoError(t, err)
	require.Equal(t, block, decoded)
}

func TestTokenRoundTrip(t *testing.T) {
	token := &Token{
		Authority: &SignedBlock{
			Block:     []byte("authority-bytes"),
			NextKey:   &PublicKey{Algorithm: AlgorithmEd25519, Key: make([]byte, 32)},
			Signature: make([]byte, 64),
		},
		Blocks: []*SignedBlock{
			{
				Block:     []byte("block-1-bytes"),
				NextKey:   &PublicKey{Algorithm: AlgorithmEd25519, Key: make([]byte, 32)},
				Signature: make([]byte, 64),
			},
		},
		Proof: &Proof{NextSecret: make([]byte, 32)},
	}

	encoded := EncodeToken(token)
	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, token, decoded)
}

func TestSealedTokenProofRoundTrip(t *testing.T) {
	token := &Token{
		Authority: &SignedBlock{
			Block:     []byte("authority-bytes"),
			NextKey:   &PublicKey{Algorithm: AlgorithmEd25519, Key: make([]byte, 32)},
			Signature: make([]byte, 64),
		},
		Proof: &Proof{FinalSignature: make([]byte, 64)},
	}

	encoded := EncodeToken(token)
	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	require.Equal(t, token.Proof.FinalSignature, decoded.Proof.FinalSignature)
	require.Empty(t, decoded.Proof.NextSecret)
}
