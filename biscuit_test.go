package biscuit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dalek-auth/biscuit/v2/sig"
)

func mustRootKeypair(t *testing.T) sig.Keypair {
	t.Helper()
	kp, err := sig.GenerateKeypair(sig.Ed25519, nil)
	require.NoError(t, err)
	return kp
}

// TestAllowAll mirrors §8's "Allow-all" scenario: an authority block
// with no checks and a bare `allow if true` policy.
func TestAllowAll(t *testing.T) {
	root := mustRootKeypair(t)

	builder := NewBiscuitBuilder()
	token, err := builder.Build(root)
	require.NoError(t, err)

	data, err := token.Serialize()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	parsed, err := Parse(data, root.Public())
	require.NoError(t, err)

	authorizer, err := NewAuthorizer(parsed)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind: PolicyKindAllow,
		Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{},
		}},
	}))

	require.NoError(t, authorizer.Authorize())
	require.Equal(t, StateDecided, authorizer.State())
}

// TestRightAttenuation mirrors §8's "Right attenuation" scenario: an
// authority granting a right, a policy that only allows reading a
// resource the authorizer names, and an appended block narrowing the
// permitted operation to "read".
func TestRightAttenuation(t *testing.T) {
	root := mustRootKeypair(t)

	builder := NewBiscuitBuilder()
	require.NoError(t, builder.AddFact(Fact{Predicate: Predicate{
		Name: "right",
		IDs:  []Term{String("file1"), String("read")},
	}}))

	token, err := builder.Build(root)
	require.NoError(t, err)

	block := token.CreateBlock()
	require.NoError(t, block.AddCheck(Check{
		Kind: CheckKindOne,
		Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{
				{Name: "operation", IDs: []Term{String("read")}},
			},
		}},
	}))
	attenuated, err := token.Append(block.Build())
	require.NoError(t, err)

	allowPolicy := Policy{
		Kind: PolicyKindAllow,
		Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{
				{Name: "right", IDs: []Term{Variable("f"), Variable("op")}},
				{Name: "operation", IDs: []Term{Variable("op")}},
				{Name: "resource", IDs: []Term{Variable("f")}},
			},
		}},
	}

	// Matching operation: Allow.
	authOK, err := NewAuthorizer(attenuated)
	require.NoError(t, err)
	require.NoError(t, authOK.AddFact(Fact{Predicate: Predicate{Name: "operation", IDs: []Term{String("read")}}}))
	require.NoError(t, authOK.AddFact(Fact{Predicate: Predicate{Name: "resource", IDs: []Term{String("file1")}}}))
	require.NoError(t, authOK.AddPolicy(allowPolicy))
	require.NoError(t, authOK.Authorize())

	// Mismatched operation: the appended block's check fails first.
	authDenied, err := NewAuthorizer(attenuated)
	require.NoError(t, err)
	require.NoError(t, authDenied.AddFact(Fact{Predicate: Predicate{Name: "operation", IDs: []Term{String("write")}}}))
	require.NoError(t, authDenied.AddFact(Fact{Predicate: Predicate{Name: "resource", IDs: []Term{String("file1")}}}))
	require.NoError(t, authDenied.AddPolicy(allowPolicy))

	err = authDenied.Authorize()
	require.Error(t, err)
	var unauthorized *UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	require.Len(t, unauthorized.Checks, 1)
	require.Equal(t, 1, unauthorized.Checks[0].BlockID)
}

// TestSealedRejection mirrors §8's "Sealed rejection" scenario.
func TestSealedRejection(t *testing.T) {
	root := mustRootKeypair(t)
	builder := NewBiscuitBuilder()
	token, err := builder.Build(root)
	require.NoError(t, err)

	sealed, err := token.Seal()
	require.NoError(t, err)
	require.True(t, sealed.Sealed())

	block := sealed.CreateBlock().Build()
	_, err = sealed.Append(block)
	require.ErrorIs(t, err, ErrAppendOnSealed)
}

// TestThirdPartyTrust mirrors §8's "Third-party trust" scenario: a
// rule scoped to `trusting <external key>` only fires for facts from a
// block signed by that key.
func TestThirdPartyTrust(t *testing.T) {
	root := mustRootKeypair(t)
	external, err := sig.GenerateKeypair(sig.Ed25519, nil)
	require.NoError(t, err)

	builder := NewBiscuitBuilder()
	token, err := builder.Build(root)
	require.NoError(t, err)

	block := token.CreateBlock()
	require.NoError(t, block.AddFact(Fact{Predicate: Predicate{Name: "owner", IDs: []Term{String("alice")}}}))
	thirdParty, err := token.AppendThirdParty(block.Build(), external)
	require.NoError(t, err)

	extKeyID := thirdParty.publicKeys.Insert(packPublicKey(external.Public()))

	rule := Rule{
		Head: Predicate{Name: "admin", IDs: []Term{Variable("u")}},
		Body: []Predicate{
			{Name: "owner", IDs: []Term{Variable("u")}},
		},
		Scope: TrustingPublicKeys(extKeyID),
	}

	authorizer, err := NewAuthorizer(thirdParty)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddPolicy(Policy{Kind: PolicyKindAllow, Queries: []Rule{rule}}))
	require.NoError(t, authorizer.Authorize())

	results, err := authorizer.Query(rule)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, String("alice"), results[0].Predicate.IDs[0])
}

// TestAppendOrderAndIndexValidation covers §3's invariant that an
// appended block must carry the next sequential block index.
func TestAppendOrderAndIndexValidation(t *testing.T) {
	root := mustRootKeypair(t)
	token, err := NewBiscuitBuilder().Build(root)
	require.NoError(t, err)

	badBlock := token.CreateBlock().Build()
	// Force a mismatched index by skipping ahead.
	badBlock2 := token.CreateBlock().Build()
	badBlock2.index = 2

	_, err = token.Append(badBlock2)
	require.ErrorIs(t, err, ErrInvalidBlockIndex)

	_, err = token.Append(badBlock)
	require.NoError(t, err)
}
