// Package experiments holds narrative, end-to-end scenarios that don't
// belong to any one package's unit tests: a walk through a full
// issue/attenuate/authorize flow, documented inline the way a cookbook
// entry would be.
package experiments

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	biscuit "github.com/dalek-auth/biscuit/v2"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// The server knows the client's public key and wants it to prove, out
// of band, that it holds the matching private key — without handing
// out a bearer token the client could replay on its own. It does this
// by putting a challenge inside the token itself as a "should_sign"
// fact, guarded by a check that only holds once a "valid_signature"
// fact for that challenge has been added.
//
// Flow:
//   - server mints a token with should_sign/data facts and a check
//     requiring a matching valid_signature fact
//   - server hands the token to the client
//   - client queries the token for what it's being asked to sign,
//     signs token_hash||challenge with its private key, and appends a
//     block carrying the signature
//   - a verifier (not necessarily the original server) checks the
//     signature against the data covered by GetBlockID/SHA256Sum and,
//     if valid, adds the valid_signature fact before authorizing
func TestProofOfPossession(t *testing.T) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	token, rootPub := issueChallenge(t, pubKey)
	token = clientSign(t, rootPub, pubKey, privKey, token)
	verifyPossession(t, rootPub, pubKey, token)
}

var signContext = []byte("biscuit-pop-v0")

func issueChallenge(t *testing.T, pubKey ed25519.PublicKey) (*biscuit.Biscuit, sig.PublicKey) {
	rootKey, err := sig.GenerateKeypair(sig.Ed25519, nil)
	require.NoError(t, err)

	challenge := make([]byte, 16)
	_, err = rand.Read(challenge)
	require.NoError(t, err)

	builder := biscuit.NewBiscuitBuilder()
	require.NoError(t, builder.AddFact(biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "should_sign",
		IDs:  []biscuit.Term{biscuit.Integer(0), biscuit.Bytes(pubKey)},
	}}))
	require.NoError(t, builder.AddFact(biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "data",
		IDs:  []biscuit.Term{biscuit.Integer(0), biscuit.Bytes(append(append([]byte{}, signContext...), challenge...))},
	}}))
	require.NoError(t, builder.AddCheck(biscuit.Check{
		Kind: biscuit.CheckKindOne,
		Queries: []biscuit.Rule{{
			Head: biscuit.Predicate{Name: "query"},
			Body: []biscuit.Predicate{
				{Name: "should_sign", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("pk")}},
				{Name: "valid_signature", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("pk")}},
			},
		}},
	}))

	b, err := builder.Build(rootKey)
	require.NoError(t, err)

	t.Logf("issued token:\n%s", b.String())
	return b, rootKey.Public()
}

func clientSign(t *testing.T, rootPub sig.PublicKey, pubKey ed25519.PublicKey, privKey ed25519.PrivateKey, token *biscuit.Biscuit) *biscuit.Biscuit {
	serialized, err := token.Serialize()
	require.NoError(t, err)

	parsed, err := biscuit.Parse(serialized, rootPub)
	require.NoError(t, err)

	authorizer, err := biscuit.NewAuthorizer(parsed)
	require.NoError(t, err)

	toSign, err := authorizer.Query(biscuit.Rule{
		Head: biscuit.Predicate{Name: "to_sign", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("data")}},
		Body: []biscuit.Predicate{
			{Name: "should_sign", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Bytes(pubKey)}},
			{Name: "data", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("data")}},
		},
	})
	require.NoError(t, err)
	require.Len(t, toSign, 1)

	dataID, ok := toSign[0].IDs[0].(biscuit.Integer)
	require.True(t, ok)
	data, ok := toSign[0].IDs[1].(biscuit.Bytes)
	require.True(t, ok)
	require.True(t, bytes.HasPrefix(data, signContext))

	tokenHash, err := parsed.SHA256Sum(parsed.BlockCount())
	require.NoError(t, err)

	signed := ed25519.Sign(privKey, append(append([]byte{}, data...), tokenHash...))

	blockBuilder := parsed.CreateBlock()
	require.NoError(t, blockBuilder.AddFact(biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "signature",
		IDs:  []biscuit.Term{dataID, biscuit.Bytes(pubKey), biscuit.Bytes(signed)},
	}}))

	next, err := parsed.Append(blockBuilder.Build())
	require.NoError(t, err)

	t.Logf("client-signed token:\n%s", next.String())
	return next
}

func verifyPossession(t *testing.T, rootPub sig.PublicKey, pubKey ed25519.PublicKey, token *biscuit.Biscuit) {
	serialized, err := token.Serialize()
	require.NoError(t, err)

	parsed, err := biscuit.Parse(serialized, rootPub)
	require.NoError(t, err)

	authorizer, err := biscuit.NewAuthorizer(parsed)
	require.NoError(t, err)

	// the signature fact lives in block 1, which the authorizer's
	// default scope (authority plus authorizer) does not see.
	toValidate, err := authorizer.Query(biscuit.Rule{
		Head: biscuit.Predicate{Name: "to_validate", IDs: []biscuit.Term{
			biscuit.Variable("id"), biscuit.Variable("pk"), biscuit.Variable("data"), biscuit.Variable("sig"),
		}},
		Body: []biscuit.Predicate{
			{Name: "should_sign", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("pk")}},
			{Name: "data", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("data")}},
			{Name: "signature", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("pk"), biscuit.Variable("sig")}},
		},
		Scope: biscuit.Scope{Explicit: true, Blocks: []uint32{0, 1}},
	})
	require.NoError(t, err)
	require.Len(t, toValidate, 1)

	data, ok := toValidate[0].IDs[2].(biscuit.Bytes)
	require.True(t, ok)
	signature, ok := toValidate[0].IDs[3].(biscuit.Bytes)
	require.True(t, ok)

	signatureFact := biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "signature",
		IDs:  []biscuit.Term{toValidate[0].IDs[0], toValidate[0].IDs[1], biscuit.Bytes(signature)},
	}}
	blockID, err := parsed.GetBlockID(signatureFact)
	require.NoError(t, err)

	// the signature covers all blocks up to, but not including, the
	// one it's carried in.
	signedHash, err := parsed.SHA256Sum(blockID - 1)
	require.NoError(t, err)

	require.True(t, ed25519.Verify(pubKey, append(append([]byte{}, data...), signedHash...), signature))

	require.NoError(t, authorizer.AddFact(biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "valid_signature",
		IDs:  []biscuit.Term{toValidate[0].IDs[0], toValidate[0].IDs[1]},
	}}))
	require.NoError(t, authorizer.AddPolicy(biscuit.Policy{
		Kind: biscuit.PolicyKindAllow,
		Queries: []biscuit.Rule{{
			Head: biscuit.Predicate{Name: "query"},
			Body: []biscuit.Predicate{{Name: "valid_signature", IDs: []biscuit.Term{biscuit.Variable("id"), biscuit.Variable("pk")}}},
		}},
	}))

	require.NoError(t, authorizer.Authorize())
	t.Logf("final world:\n%s", authorizer.PrintWorld())
}
