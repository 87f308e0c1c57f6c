package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	biscuit "github.com/dalek-auth/biscuit/v2"
)

func TestParseFact(t *testing.T) {
	f, err := ParseFact(`right("file1", #read)`)
	require.NoError(t, err)
	require.Equal(t, biscuit.Fact{Predicate: biscuit.Predicate{
		Name: "right",
		IDs:  []biscuit.Term{biscuit.String("file1"), biscuit.Symbol("read")},
	}}, f)
}

func TestParseFactRejectsVariable(t *testing.T) {
	_, err := ParseFact(`right($0, #read)`)
	require.ErrorIs(t, err, ErrVariableInFact)
}

func TestParseFactSet(t *testing.T) {
	f, err := ParseFact(`roles([#admin, #owner])`)
	require.NoError(t, err)
	require.Len(t, f.Predicate.IDs, 1)
	set, ok := f.Predicate.IDs[0].(biscuit.Set)
	require.True(t, ok)
	require.Equal(t, biscuit.Set{biscuit.Symbol("admin"), biscuit.Symbol("owner")}, set)
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule(`can_read($resource) <- resource($resource), right($resource, #read)`)
	require.NoError(t, err)
	require.Equal(t, "can_read", r.Head.Name)
	require.Len(t, r.Body, 2)
	require.Empty(t, r.Expressions)
}

func TestParseRuleWithExpression(t *testing.T) {
	r, err := ParseRule(`valid($t) <- time($t), $t < 1893456000`)
	require.NoError(t, err)
	require.Equal(t, "valid", r.Head.Name)
	require.Len(t, r.Body, 1)
	require.Len(t, r.Expressions, 1)
}

func TestParseRuleTrustingAuthority(t *testing.T) {
	r, err := ParseRule(`derived($x) <- fact($x) trusting authority`)
	require.NoError(t, err)
	require.True(t, r.Scope.Explicit)
	require.Equal(t, []uint32{0}, r.Scope.Blocks)
}

func TestParseCheckIf(t *testing.T) {
	c, err := ParseCheck(`check if resource("file1")`)
	require.NoError(t, err)
	require.Equal(t, biscuit.CheckKindOne, c.Kind)
	require.Len(t, c.Queries, 1)
	require.Len(t, c.Queries[0].Body, 1)
}

func TestParseCheckAllWithOr(t *testing.T) {
	c, err := ParseCheck(`check all fact1($x) or fact2($x)`)
	require.NoError(t, err)
	require.Equal(t, biscuit.CheckKindAll, c.Kind)
	require.Len(t, c.Queries, 2)
}

func TestParsePolicyAllow(t *testing.T) {
	p, err := ParsePolicy(`allow if right($resource, #read)`)
	require.NoError(t, err)
	require.Equal(t, biscuit.PolicyKindAllow, p.Kind)
	require.Len(t, p.Queries, 1)
}

func TestParsePolicyDeny(t *testing.T) {
	p, err := ParsePolicy(`deny if true`)
	require.NoError(t, err)
	require.Equal(t, biscuit.PolicyKindDeny, p.Kind)
}

func TestParseExpressionOperators(t *testing.T) {
	r, err := ParseRule(`ok() <- count($n), $n + 1 > 2 && !$n.contains($n)`)
	require.NoError(t, err)
	require.Len(t, r.Expressions, 1)
}

func TestParseExpressionMethodChain(t *testing.T) {
	r, err := ParseRule(`ok() <- names($n), $n.starts_with("adm")`)
	require.NoError(t, err)
	require.Len(t, r.Expressions, 1)
}

func TestParseBlockSource(t *testing.T) {
	facts, rules, checks, err := ParseBlockSource(`
		right("file1", #read);
		right("file2", #write);
		can_read($r) <- right($r, #read);
		check if resource($r), right($r, #read);
	`)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Len(t, rules, 1)
	require.Len(t, checks, 1)
}

func TestParseBlockSourceRejectsPolicy(t *testing.T) {
	_, _, _, err := ParseBlockSource(`allow if true;`)
	require.Error(t, err)
}

func TestParseAuthorizerSource(t *testing.T) {
	facts, rules, checks, policies, err := ParseAuthorizerSource(`
		resource("file1");
		operation(#read);
		check if resource($r), right($r, #read);
		allow if true;
	`)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Empty(t, rules)
	require.Len(t, checks, 1)
	require.Len(t, policies, 1)
}

func TestPrintFactRoundTrip(t *testing.T) {
	f, err := ParseFact(`right("file1", #read)`)
	require.NoError(t, err)
	printed := PrintFact(f)
	reparsed, err := ParseFact(printed)
	require.NoError(t, err)
	require.Equal(t, f, reparsed)
}

func TestPrintRuleRoundTrip(t *testing.T) {
	r, err := ParseRule(`can_read($r) <- right($r, #read) trusting authority`)
	require.NoError(t, err)
	printed := PrintRule(r)
	reparsed, err := ParseRule(printed)
	require.NoError(t, err)
	require.Equal(t, r, reparsed)
}

func TestPrintCheckRoundTrip(t *testing.T) {
	c, err := ParseCheck(`check if right($r, #read), $r != "secret"`)
	require.NoError(t, err)
	printed := PrintCheck(c)
	reparsed, err := ParseCheck(printed)
	require.NoError(t, err)
	require.Equal(t, c, reparsed)
}

func TestPrintPolicyRoundTrip(t *testing.T) {
	p, err := ParsePolicy(`deny if blocked($r)`)
	require.NoError(t, err)
	printed := PrintPolicy(p)
	reparsed, err := ParsePolicy(printed)
	require.NoError(t, err)
	require.Equal(t, p, reparsed)
}
