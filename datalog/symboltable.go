package datalog

import "fmt"

// ReservedSymbolRange is the size of the fixed dictionary occupying
// symbol ids 0..1023. User-defined symbols are interned starting at
// FirstUserSymbol.
const (
	ReservedSymbolRange = 1024
	FirstUserSymbol     = 1024
)

// reservedSymbols is the fixed dictionary embedded at ids 0..1023.
// Only the first len(reservedSymbols) ids name anything; the rest of
// the reserved range is held open for interoperability with other
// implementations' dictionaries and never assigned by Insert.
var reservedSymbols = []string{
	"authority",
	"ambient",
	"resource",
	"operation",
	"right",
	"current_time",
	"revocation_id",
	"read",
	"write",
	"unbound",
	"true",
	"false",
	"allow",
	"deny",
}

// SymbolTable is an append-only, ordered list of interned strings.
// Ids 0..1023 are the reserved dictionary; Insert always assigns new
// strings an id >= 1024, per the spec's invariant.
type SymbolTable []string

// NewSymbolTable returns a table pre-seeded with the reserved
// dictionary, padded up to FirstUserSymbol.
func NewSymbolTable() *SymbolTable {
	t := make(SymbolTable, FirstUserSymbol)
	copy(t, reservedSymbols)
	return &t
}

func (t *SymbolTable) Insert(s string) Symbol {
	for i, v := range *t {
		if v == s {
			return Symbol(i)
		}
	}
	*t = append(*t, s)
	return Symbol(len(*t) - 1)
}

func (t *SymbolTable) Sym(s string) Term {
	for i, v := range *t {
		if v == s && v != "" {
			return Symbol(i)
		}
	}
	return nil
}

func (t *SymbolTable) Str(sym Symbol) string {
	if int(sym) > len(*t)-1 || int(sym) < 0 {
		return fmt.Sprintf("<invalid symbol %d>", sym)
	}
	return (*t)[int(sym)]
}

func (t *SymbolTable) Clone() *SymbolTable {
	newTable := make(SymbolTable, len(*t))
	copy(newTable, *t)
	return &newTable
}

func (t *SymbolTable) Len() int { return len(*t) }

// IsDisjoint reports whether none of other's strings already appear
// among the receiver's user-defined symbols (ids >= FirstUserSymbol),
// the condition an appended block's symbol table must meet. other is
// a block's own table, holding only the symbols that block added, so
// every one of its entries is compared.
func (t *SymbolTable) IsDisjoint(other *SymbolTable) bool {
	m := make(map[string]struct{}, len(*t))
	for i, s := range *t {
		if i < FirstUserSymbol {
			continue
		}
		m[s] = struct{}{}
	}
	for _, s := range *other {
		if _, ok := m[s]; ok {
			return false
		}
	}
	return true
}

// Extend inserts every symbol of other, a block's own table of the
// symbols it added, into the receiver.
func (t *SymbolTable) Extend(other *SymbolTable) {
	for _, s := range *other {
		t.Insert(s)
	}
}

// SplitOff returns a newly allocated table holding the elements in
// [at, len), leaving the receiver with [0, at).
func (t *SymbolTable) SplitOff(at int) *SymbolTable {
	if at > len(*t) {
		panic("datalog: split index out of bound")
	}
	newTable := make(SymbolTable, len(*t)-at)
	copy(newTable, (*t)[at:])
	*t = (*t)[:at]
	return &newTable
}

// PublicKeyTable interns third-party signer public keys (as their
// wire byte encoding) analogously to SymbolTable, and is used to
// resolve `trusting <public_key>` scope annotations.
type PublicKeyTable [][]byte

func (t *PublicKeyTable) Insert(key []byte) uint32 {
	for i, v := range *t {
		if string(v) == string(key) {
			return uint32(i)
		}
	}
	*t = append(*t, key)
	return uint32(len(*t) - 1)
}

func (t *PublicKeyTable) Get(id uint32) ([]byte, bool) {
	if int(id) >= len(*t) {
		return nil, false
	}
	return (*t)[id], true
}

func (t *PublicKeyTable) Clone() *PublicKeyTable {
	newTable := make(PublicKeyTable, len(*t))
	copy(newTable, *t)
	return &newTable
}

// IsDisjoint reports whether none of other's keys already appear in
// the receiver, the condition an appended block's key table must
// meet (FormatPublicKeyTableOverlap otherwise).
func (t *PublicKeyTable) IsDisjoint(other *PublicKeyTable) bool {
	m := make(map[string]struct{}, len(*t))
	for _, k := range *t {
		m[string(k)] = struct{}{}
	}
	for _, k := range *other {
		if _, ok := m[string(k)]; ok {
			return false
		}
	}
	return true
}

func (t *PublicKeyTable) Extend(other *PublicKeyTable) {
	for _, k := range *other {
		t.Insert(k)
	}
}
