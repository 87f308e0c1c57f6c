package biscuit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dalek-auth/biscuit/v2/datalog"
)

// TestBuilderRejectsDuplicateFact covers the builder-level half of
// FactSet's dedup contract: adding the same fact twice to the same
// block is rejected rather than silently merged.
func TestBuilderRejectsDuplicateFact(t *testing.T) {
	builder := NewBiscuitBuilder()
	fact := Fact{Predicate: Predicate{Name: "right", IDs: []Term{String("file1"), String("read")}}}
	require.NoError(t, builder.AddFact(fact))
	require.ErrorIs(t, builder.AddFact(fact), ErrDuplicateFact)
}

// TestBuilderRejectsUnboundHeadVariable covers §3's invariant that
// variables appearing in a rule head must appear in its body.
func TestBuilderRejectsUnboundHeadVariable(t *testing.T) {
	builder := NewBiscuitBuilder()
	err := builder.AddRule(Rule{
		Head: Predicate{Name: "derived", IDs: []Term{Variable("x")}},
		Body: []Predicate{{Name: "seed", IDs: []Term{Variable("y")}}},
	})
	var invalid datalog.InvalidRuleError
	require.ErrorAs(t, err, &invalid)
}

// TestBlockBuilderContinuesSymbolInterning covers §4.C3: a non-
// authority block's symbol table continues interning from the token's
// running table rather than restarting from the reserved range.
func TestBlockBuilderContinuesSymbolInterning(t *testing.T) {
	root := mustRootKeypair(t)
	builder := NewBiscuitBuilder()
	require.NoError(t, builder.AddFact(Fact{Predicate: Predicate{Name: "alpha"}}))
	token, err := builder.Build(root)
	require.NoError(t, err)

	block := token.CreateBlock()
	require.NoError(t, block.AddFact(Fact{Predicate: Predicate{Name: "beta"}}))
	built := block.Build()

	attenuated, err := token.Append(built)
	require.NoError(t, err)
	require.Equal(t, 1, attenuated.BlockCount())
	require.Equal(t, "beta", attenuated.symbols.Str(datalog.Symbol(datalog.FirstUserSymbol+1)))
}

// TestBuilderSetContext covers the optional per-block context string
// (§3 "Block").
func TestBuilderSetContext(t *testing.T) {
	root := mustRootKeypair(t)
	builder := NewBiscuitBuilder()
	builder.SetContext("test-context")
	token, err := builder.Build(root)
	require.NoError(t, err)
	require.Contains(t, token.String(), "test-context")
}
