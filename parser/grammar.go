// Package parser reads and writes the Datalog surface syntax facts,
// rules, checks and policies are authored in (§4.C9): predicates
// applied to symbols/variables/literals, rule bodies joined with
// "<-", boolean guard expressions with the usual arithmetic and
// comparison operators plus the string/set method calls the
// evaluator understands, and check/policy blocks built from one or
// more "or"-joined queries.
package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	ErrVariableInFact    = errors.New("parser: a fact cannot contain a variable")
	ErrUnsupportedMethod = errors.New("parser: unsupported method call")
	ErrUnsupportedTerm   = errors.New("parser: unsupported term")
)

// biscuitLexer tokenizes the surface syntax. Rules are tried in
// order, so BoolTok must precede Ident (both would otherwise match
// "true"/"false") and the longer Punct alternatives must precede
// their prefixes ("<-" before "<", "<=" before "<", and so on).
var biscuitLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Hex", Pattern: `hex:[0-9a-fA-F]+`},
	{Name: "Symbol", Pattern: `#[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Variable", Pattern: `\$[a-zA-Z0-9_]+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "BoolTok", Pattern: `true|false`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `<-|<=|>=|==|!=|&&|\|\||\.|,|;|\(|\)|\[|\]|!|<|>|\+|-|\*|/`},
})

var parserOptions = []participle.Option{
	participle.Lexer(biscuitLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
}

// Bool captures the BoolTok token ("true" or "false") as a Go bool.
type Bool bool

func (b *Bool) Capture(values []string) error {
	v, err := strconv.ParseBool(values[0])
	if err != nil {
		return err
	}
	*b = Bool(v)
	return nil
}

// Symbol captures a "#name" token with its sigil stripped.
type Symbol string

func (s *Symbol) Capture(values []string) error {
	*s = Symbol(strings.TrimPrefix(values[0], "#"))
	return nil
}

// Variable captures a "$name" token with its sigil stripped.
type Variable string

func (v *Variable) Capture(values []string) error {
	*v = Variable(strings.TrimPrefix(values[0], "$"))
	return nil
}

// HexBytes captures a "hex:..." token, decodable with Decode.
type HexBytes string

func (h *HexBytes) Capture(values []string) error {
	*h = HexBytes(strings.TrimPrefix(values[0], "hex:"))
	return nil
}

// Term is one literal, symbol or variable, or a nested Array.
type Term struct {
	Null     bool      `  @"null"`
	Bool     *Bool     `| @BoolTok`
	Symbol   *Symbol   `| @Symbol`
	Variable *Variable `| @Variable`
	Bytes    *HexBytes `| @Hex`
	String   *string   `| @String`
	Integer  *int64    `| @Int`
	Array    []*Term   `| "[" (@@ ("," @@)*)? "]"`
}

// Predicate is a name applied to an ordered list of Terms.
type Predicate struct {
	Name string  `@Ident`
	IDs  []*Term `"(" (@@ ("," @@)*)? ")"`
}

// Scope is a rule/check/policy's trailing "trusting ..." clause.
// Only "trusting authority" is supported from text; richer scopes
// (previous, explicit public keys) are built through the Go API,
// since resolving a key reference to a PublicKeyTable index needs
// interning context a free-standing parser does not have.
type Scope struct {
	Authority bool `"trusting" @"authority"`
}

// Expr is the lowest-precedence production: a chain of "||".
type Expr struct {
	Left *AndExpr   `@@`
	Ops  []*OrTerm  `@@*`
}

type OrTerm struct {
	Op    string   `@"||"`
	Right *AndExpr `@@`
}

// AndExpr is a chain of "&&".
type AndExpr struct {
	Left *CompExpr `@@`
	Ops  []*AndTerm `@@*`
}

type AndTerm struct {
	Op    string    `@"&&"`
	Right *CompExpr `@@`
}

// CompExpr is a single, non-chaining comparison.
type CompExpr struct {
	Left *AddExpr  `@@`
	Op   *CompTerm `@@?`
}

type CompTerm struct {
	Op    string   `@("<="|">="|"=="|"!="|"<"|">")`
	Right *AddExpr `@@`
}

// AddExpr is a chain of "+"/"-".
type AddExpr struct {
	Left *MulExpr  `@@`
	Ops  []*AddTerm `@@*`
}

type AddTerm struct {
	Op    string   `@("+"|"-")`
	Right *MulExpr `@@`
}

// MulExpr is a chain of "*"/"/".
type MulExpr struct {
	Left *UnaryExpr `@@`
	Ops  []*MulTerm `@@*`
}

type MulTerm struct {
	Op    string     `@("*"|"/")`
	Right *UnaryExpr `@@`
}

// UnaryExpr is an optional boolean negation applied to a postfix
// expression.
type UnaryExpr struct {
	Negate bool         `@"!"?`
	Value  *PostfixExpr `@@`
}

// PostfixExpr is a primary expression followed by zero or more
// ".method(...)" calls (contains, starts_with, ends_with, matches,
// intersection, union, set_subset, length).
type PostfixExpr struct {
	Primary *Primary      `@@`
	Calls   []*MethodCall `("." @@)*`
}

type MethodCall struct {
	Name string `@Ident "("`
	Arg  *Expr  `@@? ")"`
}

// Primary is a parenthesized expression or a leaf term.
type Primary struct {
	Paren *Expr `  "(" @@ ")"`
	Term  *Term `| @@`
}

// RuleSyntax is a head predicate, a "<-"-joined body of predicates
// and guard expressions, and an optional trust scope.
type RuleSyntax struct {
	Head  *Predicate      `@@ "<-"`
	Body  []*BodyElement  `@@ ("," @@)*`
	Scope *Scope          `@@?`
}

// BodyElement is one rule-body item: a predicate pattern or a guard
// expression. Predicates are tried first since every predicate starts
// with an Ident immediately followed by "(", a shape no Primary
// production in Expr produces.
type BodyElement struct {
	Predicate *Predicate `  @@`
	Expr      *Expr      `| @@`
}

// QuerySyntax is one "or"-disjunct of a check or policy: a
// comma-joined list of body elements plus an optional scope.
type QuerySyntax struct {
	Elements []*BodyElement `@@ ("," @@)*`
	Scope    *Scope         `@@?`
}

// CheckSyntax is "check if"/"check all" followed by one or more
// "or"-joined queries. "if" maps to CheckKindOne (at least one query
// must hold); "all" is this module's extension requiring all of them,
// grounded in datalog.Check's CheckKindAll.
type CheckSyntax struct {
	Kind    string         `"check" @("if"|"all")`
	Queries []*QuerySyntax `@@ ("or" @@)*`
}

// PolicySyntax is "allow if"/"deny if" followed by one or more
// "or"-joined queries.
type PolicySyntax struct {
	Kind    string         `@("allow"|"deny") "if"`
	Queries []*QuerySyntax `@@ ("or" @@)*`
}
