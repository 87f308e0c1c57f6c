package biscuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dalek-auth/biscuit/v2/sig"
)

func simpleToken(t *testing.T) *Biscuit {
	t.Helper()
	root, err := sig.GenerateKeypair(sig.Ed25519, nil)
	require.NoError(t, err)
	token, err := NewBiscuitBuilder().Build(root)
	require.NoError(t, err)
	return token
}

// TestNoMatchingPolicy covers §4.C8: when every check passes but no
// policy matches, Authorize reports ErrLogicNoMatchingPolicy.
func TestNoMatchingPolicy(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind: PolicyKindAllow,
		Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{{Name: "nonexistent", IDs: []Term{String("x")}}},
		}},
	}))

	err = authorizer.Authorize()
	require.ErrorIs(t, err, ErrLogicNoMatchingPolicy)
}

// TestDenyPolicy covers the Deny policy kind: a matching deny policy
// yields UnauthorizedError even though no check failed.
func TestDenyPolicy(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind:    PolicyKindDeny,
		Queries: []Rule{{Head: Predicate{Name: "query"}, Body: []Predicate{}}},
	}))

	err = authorizer.Authorize()
	var unauthorized *UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

// TestTooManyFacts covers §8's "Fact overflow" scenario: a rule that
// keeps deriving new facts hits max_facts before reaching a fixed
// point.
func TestTooManyFacts(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token, WithMaxFacts(10), WithMaxDuration(time.Hour))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, authorizer.AddFact(Fact{Predicate: Predicate{
			Name: "seed", IDs: []Term{Integer(i)},
		}}))
	}
	require.NoError(t, authorizer.AddRule(Rule{
		Head: Predicate{Name: "derived", IDs: []Term{Variable("x"), Variable("y")}},
		Body: []Predicate{
			{Name: "seed", IDs: []Term{Variable("x")}},
			{Name: "seed", IDs: []Term{Variable("y")}},
		},
	}))
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind:    PolicyKindAllow,
		Queries: []Rule{{Head: Predicate{Name: "query"}, Body: []Predicate{}}},
	}))

	err = authorizer.Authorize()
	require.ErrorIs(t, err, ErrTooManyFacts)
}

// TestTimeout covers §8's "Timeout" scenario with a deliberately tiny
// deadline.
func TestTimeout(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token, WithMaxDuration(time.Nanosecond), WithMaxFacts(1_000_000), WithMaxIterations(1_000_000))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, authorizer.AddFact(Fact{Predicate: Predicate{
			Name: "a", IDs: []Term{Integer(i)},
		}}))
		require.NoError(t, authorizer.AddFact(Fact{Predicate: Predicate{
			Name: "b", IDs: []Term{Integer(i), Integer(i + 1)},
		}}))
	}
	require.NoError(t, authorizer.AddRule(Rule{
		Head: Predicate{Name: "a", IDs: []Term{Variable("x")}},
		Body: []Predicate{
			{Name: "a", IDs: []Term{Variable("y")}},
			{Name: "b", IDs: []Term{Variable("x"), Variable("y")}},
		},
	}))
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind:    PolicyKindAllow,
		Queries: []Rule{{Head: Predicate{Name: "query"}, Body: []Predicate{}}},
	}))

	err = authorizer.Authorize()
	require.ErrorIs(t, err, ErrTimeout)
}

// TestCancelHandle covers the cooperative-cancellation contract of §5.
func TestCancelHandle(t *testing.T) {
	token := simpleToken(t)
	cancel := NewCancelHandle()
	cancel.Cancel()
	require.True(t, cancel.Cancelled())

	authorizer, err := NewAuthorizer(token, WithCancel(cancel))
	require.NoError(t, err)
	err = authorizer.Authorize()
	require.ErrorIs(t, err, ErrTimeout)
}

// TestAuthorizerRejectsMutationAfterEvaluate covers §4.C8's state
// machine: once evaluation has happened, further AddFact/AddRule/
// AddCheck/AddPolicy calls are rejected.
func TestAuthorizerRejectsMutationAfterEvaluate(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind:    PolicyKindAllow,
		Queries: []Rule{{Head: Predicate{Name: "query"}, Body: []Predicate{}}},
	}))
	require.NoError(t, authorizer.Authorize())

	err = authorizer.AddFact(Fact{Predicate: Predicate{Name: "late"}})
	require.ErrorIs(t, err, ErrLogicAuthorizerNotEmpty)
}

// TestPolicyBundleRoundTrip covers the supplemented
// LoadPolicies/SerializePolicies feature (§9 "Supplemented Features").
func TestPolicyBundleRoundTrip(t *testing.T) {
	token := simpleToken(t)

	source, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, source.AddFact(Fact{Predicate: Predicate{
		Name: "role", IDs: []Term{String("alice"), String("admin")},
	}}))
	require.NoError(t, source.AddPolicy(Policy{
		Kind: PolicyKindAllow,
		Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{{Name: "role", IDs: []Term{Variable("u"), String("admin")}}},
		}},
	}))

	bundle, err := source.SerializePolicies()
	require.NoError(t, err)
	require.NotEmpty(t, bundle)

	target, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, target.LoadPolicies(bundle))
	require.NoError(t, target.Authorize())
}

// TestQueryAfterAuthorize covers the supplemented Query introspection
// helper.
func TestQueryAfterAuthorize(t *testing.T) {
	token := simpleToken(t)
	authorizer, err := NewAuthorizer(token)
	require.NoError(t, err)
	require.NoError(t, authorizer.AddFact(Fact{Predicate: Predicate{
		Name: "seen", IDs: []Term{String("alice")},
	}}))
	require.NoError(t, authorizer.AddPolicy(Policy{
		Kind:    PolicyKindAllow,
		Queries: []Rule{{Head: Predicate{Name: "query"}, Body: []Predicate{}}},
	}))
	require.NoError(t, authorizer.Authorize())

	results, err := authorizer.Query(Rule{
		Head: Predicate{Name: "seen", IDs: []Term{Variable("who")}},
		Body: []Predicate{{Name: "seen", IDs: []Term{Variable("who")}}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestAuthorizerStateString(t *testing.T) {
	require.Equal(t, "fresh", StateFresh.String())
	require.Equal(t, "loaded", StateLoaded.String())
	require.Equal(t, "evaluated", StateEvaluated.String())
	require.Equal(t, "decided", StateDecided.String())
	require.Equal(t, "unknown", AuthorizerState(99).String())
}

func TestNewAuthorizerRejectsNilToken(t *testing.T) {
	_, err := NewAuthorizer(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
