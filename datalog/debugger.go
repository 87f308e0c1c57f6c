package datalog

import (
	"fmt"
	"strings"
)

// SymbolDebugger renders Datalog values back to readable strings
// using a symbol table, the sole diagnostic surface this package
// exposes (there is no logging here, only on-demand printing).
type SymbolDebugger struct {
	*SymbolTable
}

func (d SymbolDebugger) Term(t Term) string {
	if sym, ok := t.(Symbol); ok {
		return "#" + d.Str(sym)
	}
	return t.String()
}

func (d SymbolDebugger) Predicate(p Predicate) string {
	strs := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		strs[i] = d.Term(t)
	}
	return fmt.Sprintf("%s(%s)", d.Str(p.Name), strings.Join(strs, ", "))
}

func (d SymbolDebugger) Rule(r Rule) string {
	head := d.Predicate(r.Head)
	preds := make([]string, len(r.Body))
	for i, p := range r.Body {
		preds[i] = d.Predicate(p)
	}
	expressions := make([]string, len(r.Expressions))
	for i, e := range r.Expressions {
		expressions[i] = d.Expression(e)
	}

	var expressionsStart string
	if len(expressions) > 0 {
		expressionsStart = " @ "
	}

	return fmt.Sprintf("*%s <- %s%s%s", head, strings.Join(preds, ", "), expressionsStart, strings.Join(expressions, ", "))
}

func (d SymbolDebugger) Expression(e Expression) string {
	return e.Print(d.SymbolTable)
}

func (d SymbolDebugger) Check(c Check) string {
	queries := make([]string, len(c.Queries))
	for i, q := range c.Queries {
		queries[i] = d.Rule(q)
	}
	sep := " || "
	if c.Kind == CheckKindAll {
		sep = " && "
	}
	return strings.Join(queries, sep)
}

func (d SymbolDebugger) World(w *World) string {
	facts := make([]string, len(*w.facts))
	for i, f := range *w.facts {
		facts[i] = fmt.Sprintf("%s %s", d.Predicate(f.Predicate), f.Origin.String())
	}
	rules := make([]string, len(w.rules))
	for i, r := range w.rules {
		rules[i] = d.Rule(r)
	}
	return fmt.Sprintf("World {{\n\tfacts: %v\n\trules: %v\n}}", facts, rules)
}

func (d SymbolDebugger) FactSet(s *FactSet) string {
	strs := make([]string, len(*s))
	for i, f := range *s {
		strs[i] = d.Predicate(f.Predicate)
	}
	return fmt.Sprintf("%v", strs)
}
