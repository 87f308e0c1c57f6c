package biscuit

import (
	"fmt"
	"time"

	"github.com/dalek-auth/biscuit/v2/datalog"
)

// Term is the builder-facing counterpart to datalog.Term: callers
// write Symbol/Variable/String/... literals by value and the builder
// interns symbols into a block's SymbolTable as it converts them,
// exactly the way the teacher's types.go did for the smaller Symbol/
// Variable/Integer/String/Date/Bytes/Set set — extended here with
// Bool/Null/Array/Map per §3.
type Term interface {
	convert(symbols *datalog.SymbolTable) datalog.Term
	String() string
}

// Symbol is an interned name, written on the wire as a Symbol term.
type Symbol string

func (s Symbol) convert(symbols *datalog.SymbolTable) datalog.Term {
	return symbols.Insert(string(s))
}
func (s Symbol) String() string { return fmt.Sprintf("#%s", string(s)) }

// Variable names a rule/check placeholder, legal only in non-ground
// positions.
type Variable string

func (v Variable) convert(symbols *datalog.SymbolTable) datalog.Term {
	return datalog.Variable(symbols.Insert(string(v)))
}
func (v Variable) String() string { return fmt.Sprintf("$%s", string(v)) }

type Integer int64

func (i Integer) convert(*datalog.SymbolTable) datalog.Term { return datalog.Integer(i) }
func (i Integer) String() string                            { return fmt.Sprintf("%d", int64(i)) }

type String string

func (s String) convert(*datalog.SymbolTable) datalog.Term { return datalog.String(s) }
func (s String) String() string                            { return fmt.Sprintf("%q", string(s)) }

type Date time.Time

func (d Date) convert(*datalog.SymbolTable) datalog.Term {
	return datalog.Date(time.Time(d).Unix())
}
func (d Date) String() string { return time.Time(d).Format(time.RFC3339) }

type Bytes []byte

func (b Bytes) convert(*datalog.SymbolTable) datalog.Term { return datalog.Bytes(b) }
func (b Bytes) String() string                             { return datalog.Bytes(b).String() }

type Bool bool

func (b Bool) convert(*datalog.SymbolTable) datalog.Term { return datalog.Bool(b) }
func (b Bool) String() string                             { return fmt.Sprintf("%t", bool(b)) }

type Null struct{}

func (Null) convert(*datalog.SymbolTable) datalog.Term { return datalog.Null{} }
func (Null) String() string                             { return "null" }

// Set is a duplicate-free, non-nesting, variable-free collection.
type Set []Term

func (s Set) convert(symbols *datalog.SymbolTable) datalog.Term {
	out := make(datalog.Set, len(s))
	for i, t := range s {
		out[i] = t.convert(symbols)
	}
	return out
}
func (s Set) String() string { return datalogPrintCollection(s) }

// Array is an ordered, possibly-nested sequence of terms.
type Array []Term

func (a Array) convert(symbols *datalog.SymbolTable) datalog.Term {
	out := make(datalog.Array, len(a))
	for i, t := range a {
		out[i] = t.convert(symbols)
	}
	return out
}
func (a Array) String() string { return datalogPrintCollection(a) }

func datalogPrintCollection(terms []Term) string {
	out := "["
	for i, t := range terms {
		if i > 0 {
			out += ", "
		}
		out += t.String()
	}
	return out + "]"
}

// MapKey is either an Integer or a String.
type MapKey struct {
	intKey   Integer
	strKey   String
	isString bool
}

func IntMapKey(i Integer) MapKey { return MapKey{intKey: i} }
func StrMapKey(s String) MapKey  { return MapKey{strKey: s, isString: true} }

// Map is keyed by integer or string per §3.
type Map map[MapKey]Term

func (m Map) convert(symbols *datalog.SymbolTable) datalog.Term {
	out := make(datalog.Map, len(m))
	for k, v := range m {
		var dk datalog.MapKey
		if k.isString {
			dk = datalog.StrMapKey(datalog.String(k.strKey))
		} else {
			dk = datalog.IntMapKey(datalog.Integer(k.intKey))
		}
		out[dk] = v.convert(symbols)
	}
	return out
}
func (m Map) String() string { return fmt.Sprintf("%v", map[string]string{}) }

// Predicate is a symbol name applied to an ordered sequence of Terms.
type Predicate struct {
	Name string
	IDs  []Term
}

func (p Predicate) convert(symbols *datalog.SymbolTable) datalog.Predicate {
	terms := make([]datalog.Term, len(p.IDs))
	for i, t := range p.IDs {
		terms[i] = t.convert(symbols)
	}
	return datalog.Predicate{
		Name:  symbols.Insert(p.Name),
		Terms: terms,
	}
}

func (p Predicate) String() string {
	out := p.Name + "("
	for i, t := range p.IDs {
		if i > 0 {
			out += ", "
		}
		out += t.String()
	}
	return out + ")"
}

// Fact is a ground Predicate.
type Fact struct {
	Predicate
}

func (f Fact) convert(symbols *datalog.SymbolTable, blockID uint32) datalog.Fact {
	return datalog.Fact{
		Predicate: f.Predicate.convert(symbols),
		Origin:    datalog.NewOrigin(blockID),
	}
}

// Scope mirrors datalog.Scope at the builder level: a rule's
// "trusting ..." clause. An empty Scope is implicit and resolves to
// {authority, self, authorizer} at evaluation time (§4.C7).
type Scope struct {
	Explicit   bool
	Blocks     []uint32
	PublicKeys []uint32
}

// TrustingAuthority returns an explicit scope trusting only the
// authority block.
func TrustingAuthority() Scope { return Scope{Explicit: true, Blocks: []uint32{0}} }

// TrustingPublicKeys returns an explicit scope trusting the given
// public-key-table indices, e.g. for third-party block rules.
func TrustingPublicKeys(ids ...uint32) Scope {
	return Scope{Explicit: true, PublicKeys: ids}
}

func (s Scope) convert() datalog.Scope {
	return datalog.Scope{Explicit: s.Explicit, Blocks: s.Blocks, PublicKeys: s.PublicKeys}
}

// Rule is a head predicate, a non-empty body, optional expression
// guards, and a scope annotation.
type Rule struct {
	Head        Predicate
	Body        []Predicate
	Expressions []Expression
	Scope       Scope
}

func (r Rule) convert(symbols *datalog.SymbolTable) (datalog.Rule, error) {
	body := make([]datalog.Predicate, len(r.Body))
	for i, p := range r.Body {
		body[i] = p.convert(symbols)
	}
	exprs := make([]datalog.Expression, len(r.Expressions))
	for i, e := range r.Expressions {
		exprs[i] = e.convert(symbols)
	}
	dlRule := datalog.Rule{
		Head:        r.Head.convert(symbols),
		Body:        body,
		Expressions: exprs,
		Scope:       r.Scope.convert(),
	}
	if err := dlRule.Validate(); err != nil {
		return datalog.Rule{}, err
	}
	return dlRule, nil
}

// CheckKind tags whether a Check needs one or all queries satisfied.
type CheckKind = datalog.CheckKind

const (
	CheckKindOne = datalog.CheckKindOne
	CheckKindAll = datalog.CheckKindAll
)

// Check is a tagged set of rule-shaped queries (§3).
type Check struct {
	Kind    CheckKind
	Queries []Rule
}

func (c Check) convert(symbols *datalog.SymbolTable) (datalog.Check, error) {
	queries := make([]datalog.Rule, len(c.Queries))
	for i, q := range c.Queries {
		dq, err := q.convert(symbols)
		if err != nil {
			return datalog.Check{}, err
		}
		queries[i] = dq
	}
	return datalog.Check{Kind: c.Kind, Queries: queries}, nil
}

// PolicyKind tags whether a Policy allows or denies on match.
type PolicyKind = datalog.PolicyKind

const (
	PolicyKindAllow = datalog.PolicyKindAllow
	PolicyKindDeny  = datalog.PolicyKindDeny
)

// Policy is a tagged set of queries; the first matching Policy among
// an authorizer's list decides the outcome (§3).
type Policy struct {
	Kind    PolicyKind
	Queries []Rule
}

func (p Policy) convert(symbols *datalog.SymbolTable) (datalog.Policy, error) {
	queries := make([]datalog.Rule, len(p.Queries))
	for i, q := range p.Queries {
		dq, err := q.convert(symbols)
		if err != nil {
			return datalog.Policy{}, err
		}
		queries[i] = dq
	}
	return datalog.Policy{Kind: p.Kind, Queries: queries}, nil
}
