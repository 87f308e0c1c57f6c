package parser

import (
	"encoding/hex"
	"fmt"

	biscuit "github.com/dalek-auth/biscuit/v2"
	"github.com/dalek-auth/biscuit/v2/datalog"
)

// ToBiscuit converts a parsed Term into the builder-facing biscuit.Term
// it denotes. Array literals become a biscuit.Set: the grammar has no
// separate array syntax, and every method call an expression can apply
// to a bracketed literal (contains, intersection, union, set_subset)
// is set-shaped, matching the teacher's choice of Set as the textual
// collection literal.
func (t *Term) ToBiscuit() (biscuit.Term, error) {
	switch {
	case t.Null:
		return biscuit.Null{}, nil
	case t.Bool != nil:
		return biscuit.Bool(*t.Bool), nil
	case t.Symbol != nil:
		return biscuit.Symbol(*t.Symbol), nil
	case t.Variable != nil:
		return biscuit.Variable(*t.Variable), nil
	case t.Bytes != nil:
		b, err := hex.DecodeString(string(*t.Bytes))
		if err != nil {
			return nil, fmt.Errorf("parser: invalid hex literal: %w", err)
		}
		return biscuit.Bytes(b), nil
	case t.String != nil:
		return biscuit.String(*t.String), nil
	case t.Integer != nil:
		return biscuit.Integer(*t.Integer), nil
	case t.Array != nil:
		set := make(biscuit.Set, len(t.Array))
		for i, e := range t.Array {
			et, err := e.ToBiscuit()
			if err != nil {
				return nil, err
			}
			if _, ok := et.(biscuit.Variable); ok {
				return nil, ErrVariableInFact
			}
			set[i] = et
		}
		return set, nil
	default:
		return nil, ErrUnsupportedTerm
	}
}

// ToBiscuit converts a parsed Predicate into a biscuit.Predicate.
func (p *Predicate) ToBiscuit() (biscuit.Predicate, error) {
	ids := make([]biscuit.Term, len(p.IDs))
	for i, t := range p.IDs {
		bt, err := t.ToBiscuit()
		if err != nil {
			return biscuit.Predicate{}, err
		}
		ids[i] = bt
	}
	return biscuit.Predicate{Name: p.Name, IDs: ids}, nil
}

// ToFact converts a parsed Predicate into a ground biscuit.Fact,
// rejecting any variable appearing directly or inside a Set.
func (p *Predicate) ToFact() (biscuit.Fact, error) {
	pred, err := p.ToBiscuit()
	if err != nil {
		return biscuit.Fact{}, err
	}
	if err := requireGround(pred); err != nil {
		return biscuit.Fact{}, err
	}
	return biscuit.Fact{Predicate: pred}, nil
}

func requireGround(p biscuit.Predicate) error {
	for _, t := range p.IDs {
		switch v := t.(type) {
		case biscuit.Variable:
			return ErrVariableInFact
		case biscuit.Set:
			for _, e := range v {
				if _, ok := e.(biscuit.Variable); ok {
					return ErrVariableInFact
				}
			}
		}
	}
	return nil
}

// ToBiscuit converts a Scope clause. A nil or non-authority Scope is
// the implicit {authority, self, authorizer} scope biscuit.Rule resolves to at
// evaluation time.
func (s *Scope) ToBiscuit() biscuit.Scope {
	if s == nil || !s.Authority {
		return biscuit.Scope{}
	}
	return biscuit.TrustingAuthority()
}

// ToExpression flattens the precedence-climbing Expr tree into a
// postfix biscuit.Expression, the shape datalog.Expression.Evaluate
// expects.
func (e *Expr) ToExpression() (biscuit.Expression, error) {
	var out biscuit.Expression
	if err := e.appendTo(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Expr) appendTo(out *biscuit.Expression) error {
	if err := e.Left.appendTo(out); err != nil {
		return err
	}
	for _, op := range e.Ops {
		if err := op.Right.appendTo(out); err != nil {
			return err
		}
		*out = append(*out, biscuit.BinaryOp{Func: datalog.Or{}})
	}
	return nil
}

func (a *AndExpr) appendTo(out *biscuit.Expression) error {
	if err := a.Left.appendTo(out); err != nil {
		return err
	}
	for _, op := range a.Ops {
		if err := op.Right.appendTo(out); err != nil {
			return err
		}
		*out = append(*out, biscuit.BinaryOp{Func: datalog.And{}})
	}
	return nil
}

func (c *CompExpr) appendTo(out *biscuit.Expression) error {
	if err := c.Left.appendTo(out); err != nil {
		return err
	}
	if c.Op != nil {
		if err := c.Op.Right.appendTo(out); err != nil {
			return err
		}
		f, err := compareFunc(c.Op.Op)
		if err != nil {
			return err
		}
		*out = append(*out, biscuit.BinaryOp{Func: f})
	}
	return nil
}

func compareFunc(op string) (datalog.BinaryOpFunc, error) {
	switch op {
	case "<":
		return datalog.LessThan{}, nil
	case "<=":
		return datalog.LessOrEqual{}, nil
	case ">":
		return datalog.GreaterThan{}, nil
	case ">=":
		return datalog.GreaterOrEqual{}, nil
	case "==":
		return datalog.Equal{}, nil
	case "!=":
		return datalog.NotEqual{}, nil
	default:
		return nil, fmt.Errorf("%w: comparison %q", ErrUnsupportedMethod, op)
	}
}

func (a *AddExpr) appendTo(out *biscuit.Expression) error {
	if err := a.Left.appendTo(out); err != nil {
		return err
	}
	for _, op := range a.Ops {
		if err := op.Right.appendTo(out); err != nil {
			return err
		}
		var f datalog.BinaryOpFunc = datalog.Add{}
		if op.Op == "-" {
			f = datalog.Sub{}
		}
		*out = append(*out, biscuit.BinaryOp{Func: f})
	}
	return nil
}

func (m *MulExpr) appendTo(out *biscuit.Expression) error {
	if err := m.Left.appendTo(out); err != nil {
		return err
	}
	for _, op := range m.Ops {
		if err := op.Right.appendTo(out); err != nil {
			return err
		}
		var f datalog.BinaryOpFunc = datalog.Mul{}
		if op.Op == "/" {
			f = datalog.Div{}
		}
		*out = append(*out, biscuit.BinaryOp{Func: f})
	}
	return nil
}

func (u *UnaryExpr) appendTo(out *biscuit.Expression) error {
	if err := u.Value.appendTo(out); err != nil {
		return err
	}
	if u.Negate {
		*out = append(*out, biscuit.UnaryOp{Func: datalog.Negate{}})
	}
	return nil
}

func (p *PostfixExpr) appendTo(out *biscuit.Expression) error {
	if err := p.Primary.appendTo(out); err != nil {
		return err
	}
	for _, call := range p.Calls {
		if err := call.appendTo(out); err != nil {
			return err
		}
	}
	return nil
}

func (pr *Primary) appendTo(out *biscuit.Expression) error {
	if pr.Paren != nil {
		return pr.Paren.appendTo(out)
	}
	t, err := pr.Term.ToBiscuit()
	if err != nil {
		return err
	}
	*out = append(*out, biscuit.Value{Term: t})
	return nil
}

func (m *MethodCall) appendTo(out *biscuit.Expression) error {
	if m.Name == "length" {
		*out = append(*out, biscuit.UnaryOp{Func: datalog.Length{}})
		return nil
	}
	if m.Arg == nil {
		return fmt.Errorf("%w: %s requires an argument", ErrUnsupportedMethod, m.Name)
	}
	if err := m.Arg.appendTo(out); err != nil {
		return err
	}
	var f datalog.BinaryOpFunc
	switch m.Name {
	case "contains":
		f = datalog.Contains{}
	case "starts_with":
		f = datalog.Prefix{}
	case "ends_with":
		f = datalog.Suffix{}
	case "matches":
		f = datalog.Regex{}
	case "intersection":
		f = datalog.Intersection{}
	case "union":
		f = datalog.Union{}
	case "set_subset":
		f = datalog.Subset{}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, m.Name)
	}
	*out = append(*out, biscuit.BinaryOp{Func: f})
	return nil
}

// ToBiscuit converts one "or"-disjunct of a check/policy query into a
// headless rule: Head is a zero-arity "query" predicate, since a
// check or policy only asks whether the body has an answer, not what
// the answer binds to.
func (q *QuerySyntax) ToBiscuit() (biscuit.Rule, error) {
	body, exprs, err := q.Elements.toBiscuit()
	if err != nil {
		return biscuit.Rule{}, err
	}
	return biscuit.Rule{
		Head:        biscuit.Predicate{Name: "query"},
		Body:        body,
		Expressions: exprs,
		Scope:       q.Scope.ToBiscuit(),
	}, nil
}

type bodyElements []*BodyElement

func (els bodyElements) toBiscuit() ([]biscuit.Predicate, []biscuit.Expression, error) {
	var body []biscuit.Predicate
	var exprs []biscuit.Expression
	for _, el := range els {
		switch {
		case el.Predicate != nil:
			p, err := el.Predicate.ToBiscuit()
			if err != nil {
				return nil, nil, err
			}
			body = append(body, p)
		case el.Expr != nil:
			e, err := el.Expr.ToExpression()
			if err != nil {
				return nil, nil, err
			}
			exprs = append(exprs, e)
		}
	}
	return body, exprs, nil
}

// ToBiscuit converts a parsed RuleSyntax into a biscuit.Rule.
func (r *RuleSyntax) ToBiscuit() (biscuit.Rule, error) {
	head, err := r.Head.ToBiscuit()
	if err != nil {
		return biscuit.Rule{}, err
	}
	body, exprs, err := bodyElements(r.Body).toBiscuit()
	if err != nil {
		return biscuit.Rule{}, err
	}
	return biscuit.Rule{
		Head:        head,
		Body:        body,
		Expressions: exprs,
		Scope:       r.Scope.ToBiscuit(),
	}, nil
}

// ToBiscuit converts a parsed CheckSyntax into a biscuit.Check.
func (c *CheckSyntax) ToBiscuit() (biscuit.Check, error) {
	kind := biscuit.CheckKindOne
	if c.Kind == "all" {
		kind = biscuit.CheckKindAll
	}
	queries := make([]biscuit.Rule, len(c.Queries))
	for i, q := range c.Queries {
		r, err := q.ToBiscuit()
		if err != nil {
			return biscuit.Check{}, err
		}
		queries[i] = r
	}
	return biscuit.Check{Kind: kind, Queries: queries}, nil
}

// ToBiscuit converts a parsed PolicySyntax into a biscuit.Policy.
func (p *PolicySyntax) ToBiscuit() (biscuit.Policy, error) {
	kind := biscuit.PolicyKindAllow
	if p.Kind == "deny" {
		kind = biscuit.PolicyKindDeny
	}
	queries := make([]biscuit.Rule, len(p.Queries))
	for i, q := range p.Queries {
		r, err := q.ToBiscuit()
		if err != nil {
			return biscuit.Policy{}, err
		}
		queries[i] = r
	}
	return biscuit.Policy{Kind: kind, Queries: queries}, nil
}
