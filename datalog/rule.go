package datalog

import "fmt"

// Rule is a head predicate, a non-empty body of predicate patterns,
// optional boolean expression guards, and a scope annotation bounding
// which origins its body may read from.
type Rule struct {
	Head        Predicate
	Body        []Predicate
	Expressions []Expression
	Scope       Scope

	forbiddenTerms []Term
}

// InvalidRuleError is returned when a rule's head references a
// variable that never appears bound in its body — rejected at
// load time rather than silently dropped.
type InvalidRuleError struct {
	Rule            Rule
	MissingVariable Variable
}

func (e InvalidRuleError) Error() string {
	return fmt.Sprintf("datalog: variable %d in head is missing from body", e.MissingVariable)
}

// Validate checks that every variable in the rule head also occurs in
// the body, per the spec's invariant.
func (r Rule) Validate() error {
	bodyVars := make(map[Variable]struct{})
	for _, p := range r.Body {
		for _, t := range p.Terms {
			if v, ok := t.(Variable); ok {
				bodyVars[v] = struct{}{}
			}
		}
	}
	for _, t := range r.Head.Terms {
		v, ok := t.(Variable)
		if !ok {
			continue
		}
		if _, ok := bodyVars[v]; !ok {
			return InvalidRuleError{Rule: r, MissingVariable: v}
		}
	}
	return nil
}

// WithForbiddenTerms returns a copy of r that refuses to produce any
// fact containing one of the given terms, used by the authorizer to
// stop a block rule from forging facts naming reserved symbols.
func (r Rule) WithForbiddenTerms(terms ...Term) Rule {
	r.forbiddenTerms = terms
	return r
}

// Apply evaluates the rule's body against facts visible in trusted,
// appending every derived ground fact to newFacts with an origin
// equal to the union of its contributing facts' origins and
// definingBlock.
func (r Rule) Apply(facts *FactSet, newFacts *FactSet, definingBlock uint32, keyBlocks map[uint32][]uint32) error {
	trusted := r.Scope.Resolve(definingBlock, keyBlocks)
	visible := facts.InOrigin(trusted)

	variables := make(MatchedVariables)
	for _, p := range r.Body {
		for _, t := range p.Terms {
			v, ok := t.(Variable)
			if !ok {
				continue
			}
			variables[v] = nil
		}
	}

	combined, err := NewCombinator(variables, r.Body, r.Expressions, visible).Combine()
	if err != nil {
		return err
	}

outer:
	for _, h := range combined {
		p := r.Head.Clone()
		origin := NewOrigin(definingBlock)
		for i, t := range p.Terms {
			if k, ok := t.(Variable); ok {
				bound, ok := h.bindings[k]
				if !ok {
					return InvalidRuleError{r, k}
				}
				p.Terms[i] = *bound
			}

			for _, f := range r.forbiddenTerms {
				if f.Equal(p.Terms[i]) {
					continue outer
				}
			}
		}
		newFacts.Insert(Fact{Predicate: p, Origin: origin.Union(h.origin)})
	}

	return nil
}

// CheckKind tags whether a Check requires one satisfying query (One)
// or every query to be satisfied (All).
type CheckKind byte

const (
	CheckKindOne CheckKind = iota
	CheckKindAll
)

// Check is a named set of rule-shaped queries evaluated against the
// accumulated fact set; it passes when, per Kind, at least one or
// every query yields a ground answer.
type Check struct {
	Kind    CheckKind
	Queries []Rule
}

// PolicyKind tags whether a matching Policy allows or denies the
// authorization.
type PolicyKind byte

const (
	PolicyKindAllow PolicyKind = iota
	PolicyKindDeny
)

// Policy is a tagged set of queries; the first Policy among an
// authorizer's list whose query matches decides the outcome.
type Policy struct {
	Kind    PolicyKind
	Queries []Rule
}
