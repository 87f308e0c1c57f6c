package datalog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TermType tags the concrete representation behind a Term.
type TermType byte

const (
	TermTypeSymbol TermType = iota
	TermTypeVariable
	TermTypeInteger
	TermTypeString
	TermTypeDate
	TermTypeBytes
	TermTypeBool
	TermTypeSet
	TermTypeNull
	TermTypeArray
	TermTypeMap
)

// Term is the tagged sum type every fact, predicate argument and
// expression operand is built from. Only ground terms (no Variable)
// may appear in a Fact; Sets may not nest and may not contain a
// Variable.
type Term interface {
	Type() TermType
	Equal(Term) bool
	String() string
}

// Symbol is an interned string, looked up through a SymbolTable.
type Symbol uint64

func (Symbol) Type() TermType      { return TermTypeSymbol }
func (s Symbol) Equal(t Term) bool { c, ok := t.(Symbol); return ok && s == c }
func (s Symbol) String() string    { return fmt.Sprintf("#%d", uint64(s)) }

// Variable is a placeholder, legal only in non-ground positions
// (predicate patterns, rule heads).
type Variable uint32

func (Variable) Type() TermType      { return TermTypeVariable }
func (v Variable) Equal(t Term) bool { c, ok := t.(Variable); return ok && v == c }
func (v Variable) String() string    { return fmt.Sprintf("$%d", uint32(v)) }

// Integer is a signed 64-bit literal.
type Integer int64

func (Integer) Type() TermType      { return TermTypeInteger }
func (i Integer) Equal(t Term) bool { c, ok := t.(Integer); return ok && i == c }
func (i Integer) String() string    { return fmt.Sprintf("%d", int64(i)) }

// String is a UTF-8 literal. Unlike Symbol, it is not interned.
type String string

func (String) Type() TermType      { return TermTypeString }
func (s String) Equal(t Term) bool { c, ok := t.(String); return ok && s == c }
func (s String) String() string    { return fmt.Sprintf("%q", string(s)) }

// Date is seconds since the Unix epoch.
type Date uint64

func (Date) Type() TermType      { return TermTypeDate }
func (d Date) Equal(t Term) bool { c, ok := t.(Date); return ok && d == c }
func (d Date) String() string    { return time.Unix(int64(d), 0).UTC().Format(time.RFC3339) }

// Bytes is an opaque byte string.
type Bytes []byte

func (Bytes) Type() TermType      { return TermTypeBytes }
func (b Bytes) Equal(t Term) bool { c, ok := t.(Bytes); return ok && bytes.Equal(b, c) }
func (b Bytes) String() string    { return fmt.Sprintf("hex:%s", hex.EncodeToString(b)) }

// Bool is a boolean literal.
type Bool bool

func (Bool) Type() TermType      { return TermTypeBool }
func (b Bool) Equal(t Term) bool { c, ok := t.(Bool); return ok && b == c }
func (b Bool) String() string    { return fmt.Sprintf("%t", bool(b)) }

// Null is the absence of a value, distinct from every other term.
type Null struct{}

func (Null) Type() TermType   { return TermTypeNull }
func (Null) Equal(t Term) bool {
	_, ok := t.(Null)
	return ok
}
func (Null) String() string { return "null" }

// Set is an unordered, duplicate-free collection of ground terms. A
// Set may not contain a Variable or another Set.
type Set []Term

func (Set) Type() TermType { return TermTypeSet }
func (s Set) Equal(t Term) bool {
	c, ok := t.(Set)
	if !ok || len(c) != len(s) {
		return false
	}
	for _, e1 := range s {
		found := false
		for _, e2 := range c {
			if e1.Equal(e2) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
func (s Set) String() string {
	elts := make([]string, 0, len(s))
	for _, e := range s {
		elts = append(elts, e.String())
	}
	sort.Strings(elts)
	return fmt.Sprintf("[%s]", strings.Join(elts, ", "))
}

// Array is an ordered, possibly-nested sequence of ground terms.
type Array []Term

func (Array) Type() TermType { return TermTypeArray }
func (a Array) Equal(t Term) bool {
	c, ok := t.(Array)
	if !ok || len(c) != len(a) {
		return false
	}
	for i, e := range a {
		if !e.Equal(c[i]) {
			return false
		}
	}
	return true
}
func (a Array) String() string {
	elts := make([]string, len(a))
	for i, e := range a {
		elts[i] = e.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(elts, ", "))
}

// MapKey is either an Integer or a String, the only two term kinds
// the spec allows as map keys.
type MapKey struct {
	IntKey    Integer
	StrKey    String
	IsStrKey  bool
}

func IntMapKey(i Integer) MapKey { return MapKey{IntKey: i} }
func StrMapKey(s String) MapKey  { return MapKey{StrKey: s, IsStrKey: true} }

func (k MapKey) String() string {
	if k.IsStrKey {
		return k.StrKey.String()
	}
	return k.IntKey.String()
}

func (k MapKey) less(o MapKey) bool {
	if k.IsStrKey != o.IsStrKey {
		return !k.IsStrKey
	}
	if k.IsStrKey {
		return k.StrKey < o.StrKey
	}
	return k.IntKey < o.IntKey
}

// Map is keyed by integer or string, per the spec's map term.
type Map map[MapKey]Term

func (Map) Type() TermType { return TermTypeMap }
func (m Map) Equal(t Term) bool {
	c, ok := t.(Map)
	if !ok || len(c) != len(m) {
		return false
	}
	for k, v := range m {
		cv, ok := c[k]
		if !ok || !v.Equal(cv) {
			return false
		}
	}
	return true
}
func (m Map) String() string {
	keys := make([]MapKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, m[k]))
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}
