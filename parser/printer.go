package parser

import (
	"fmt"
	"strings"

	biscuit "github.com/dalek-auth/biscuit/v2"
)

// PrintFact renders a Fact back to surface syntax.
func PrintFact(f biscuit.Fact) string { return f.Predicate.String() }

// PrintRule renders a Rule back to surface syntax. Scope round-trips
// only for the subset text can express (the implicit scope, and
// "trusting authority"); a richer explicit scope built through the Go
// API prints as "trusting authority" when it includes block 0 and
// otherwise without a trailing "trusting" clause, matching the
// grammar's stated textual subset.
func PrintRule(r biscuit.Rule) string {
	body := printBody(r.Body, r.Expressions)
	out := fmt.Sprintf("%s <- %s", r.Head.String(), body)
	if scope := printScope(r.Scope); scope != "" {
		out += " " + scope
	}
	return out
}

// PrintCheck renders a Check back to surface syntax.
func PrintCheck(c biscuit.Check) string {
	kw := "check if"
	if c.Kind == biscuit.CheckKindAll {
		kw = "check all"
	}
	return fmt.Sprintf("%s %s", kw, printQueries(c.Queries))
}

// PrintPolicy renders a Policy back to surface syntax.
func PrintPolicy(p biscuit.Policy) string {
	kw := "allow if"
	if p.Kind == biscuit.PolicyKindDeny {
		kw = "deny if"
	}
	return fmt.Sprintf("%s %s", kw, printQueries(p.Queries))
}

func printQueries(queries []biscuit.Rule) string {
	parts := make([]string, len(queries))
	for i, q := range queries {
		body := printBody(q.Body, q.Expressions)
		if scope := printScope(q.Scope); scope != "" {
			body += " " + scope
		}
		parts[i] = body
	}
	return strings.Join(parts, " or ")
}

func printBody(preds []biscuit.Predicate, exprs []biscuit.Expression) string {
	parts := make([]string, 0, len(preds)+len(exprs))
	for _, p := range preds {
		parts = append(parts, p.String())
	}
	for _, e := range exprs {
		parts = append(parts, printExpression(e))
	}
	return strings.Join(parts, ", ")
}

func printScope(s biscuit.Scope) string {
	if !s.Explicit {
		return ""
	}
	for _, b := range s.Blocks {
		if b == 0 {
			return "trusting authority"
		}
	}
	return ""
}

// printExpression renders a postfix biscuit.Expression back to infix
// surface form by replaying it on a string stack, the same technique
// datalog.Expression.Print uses once terms are already resolved to
// their literal text (builder Terms carry their own names, so no
// symbol table lookup is needed here).
func printExpression(e biscuit.Expression) string {
	stack := make([]string, 0, 8)
	for _, op := range e {
		switch o := op.(type) {
		case biscuit.Value:
			stack = append(stack, o.Term.String())
		case biscuit.UnaryOp:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack = append(stack, o.Func.Print(v))
		case biscuit.BinaryOp:
			r := stack[len(stack)-1]
			l := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, o.Func.Print(l, r))
		}
	}
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}
