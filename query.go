package biscuit

import (
	"time"

	"github.com/dalek-auth/biscuit/v2/datalog"
)

// FactSet is the builder-facing result of an Authorizer.Query call:
// ground facts translated back out of their interned wire form.
type FactSet []Fact

func termFromDatalog(symbols *datalog.SymbolTable, t datalog.Term) Term {
	switch v := t.(type) {
	case datalog.Symbol:
		return Symbol(symbols.Str(v))
	case datalog.Variable:
		return Variable(symbols.Str(datalog.Symbol(v)))
	case datalog.Integer:
		return Integer(v)
	case datalog.String:
		return String(v)
	case datalog.Date:
		return Date(time.Unix(int64(v), 0).UTC())
	case datalog.Bytes:
		return Bytes(v)
	case datalog.Bool:
		return Bool(v)
	case datalog.Null:
		return Null{}
	case datalog.Set:
		out := make(Set, len(v))
		for i, e := range v {
			out[i] = termFromDatalog(symbols, e)
		}
		return out
	case datalog.Array:
		out := make(Array, len(v))
		for i, e := range v {
			out[i] = termFromDatalog(symbols, e)
		}
		return out
	case datalog.Map:
		out := make(Map, len(v))
		for k, e := range v {
			var mk MapKey
			if k.IsStrKey {
				mk = StrMapKey(String(k.StrKey))
			} else {
				mk = IntMapKey(Integer(k.IntKey))
			}
			out[mk] = termFromDatalog(symbols, e)
		}
		return out
	default:
		return nil
	}
}

func predicateFromDatalog(symbols *datalog.SymbolTable, p datalog.Predicate) Predicate {
	ids := make([]Term, len(p.Terms))
	for i, t := range p.Terms {
		ids[i] = termFromDatalog(symbols, t)
	}
	return Predicate{Name: symbols.Str(p.Name), IDs: ids}
}

func factFromDatalog(symbols *datalog.SymbolTable, f datalog.Fact) Fact {
	return Fact{Predicate: predicateFromDatalog(symbols, f.Predicate)}
}
