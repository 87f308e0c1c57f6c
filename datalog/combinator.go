package datalog

// MatchedVariables tracks, for each variable appearing in a rule
// body, either an as-yet-unbound slot (nil) or the single Term every
// matching fact agreed on.
type MatchedVariables map[Variable]*Term

// Insert binds k to v, or confirms that an existing binding agrees
// with v. It returns false on conflict.
func (m MatchedVariables) Insert(k Variable, v Term) bool {
	existing := m[k]
	if existing == nil {
		m[k] = &v
		return true
	}
	return v.Equal(*existing)
}

// Complete returns the binding map if every variable is bound, nil
// otherwise.
func (m MatchedVariables) Complete() map[Variable]*Term {
	for _, v := range m {
		if v == nil {
			return nil
		}
	}
	return (map[Variable]*Term)(m)
}

func (m MatchedVariables) Clone() MatchedVariables {
	res := make(MatchedVariables, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

// binding is a single satisfying assignment produced by the
// combinator, together with the union of origins of every fact that
// contributed to it.
type binding struct {
	bindings map[Variable]*Term
	origin   Origin
}

// Combinator performs the join of a rule's body predicates against a
// candidate fact set, threading variable bindings and fact origins
// through each recursive step.
type Combinator struct {
	variables    MatchedVariables
	predicates   []Predicate
	expressions  []Expression
	allFacts     *FactSet
	currentFacts *FactSet
	originSoFar  Origin
}

func NewCombinator(variables MatchedVariables, predicates []Predicate, expressions []Expression, allFacts *FactSet) *Combinator {
	return newCombinator(variables, predicates, expressions, allFacts, NewOrigin())
}

func newCombinator(variables MatchedVariables, predicates []Predicate, expressions []Expression, allFacts *FactSet, originSoFar Origin) *Combinator {
	c := &Combinator{
		variables:   variables,
		predicates:  predicates,
		expressions: expressions,
		allFacts:    allFacts,
		originSoFar: originSoFar,
	}
	currentFacts := make(FactSet, 0, len(*allFacts))
	for _, f := range *allFacts {
		if len(predicates) > 0 && f.Predicate.Match(predicates[0]) {
			currentFacts = append(currentFacts, f)
		}
	}
	c.currentFacts = &currentFacts
	return c
}

func (c *Combinator) Combine() ([]binding, error) {
	var results []binding

	if len(c.predicates) == 0 {
		if vars := c.variables.Complete(); vars != nil {
			results = append(results, binding{bindings: vars, origin: c.originSoFar})
		}
		return results, nil
	}

	// currentFacts was pre-filtered to match predicates[0] (see
	// newCombinator); every candidate binding here has to come from
	// that predicate, and the rest of the body is handled by
	// recursing on predicates[1:] with its own freshly-filtered
	// candidate set, never by reusing this one against a later
	// predicate.
	pred := c.predicates[0]
	for _, fact := range *c.currentFacts {
		vars := c.variables.Clone()
		matchTerms := true
		minLen := len(pred.Terms)
		if l := len(fact.Predicate.Terms); l < minLen {
			minLen = l
		}

		for j := 0; j < minLen; j++ {
			t := pred.Terms[j]
			k, ok := t.(Variable)
			if !ok {
				continue
			}
			v := fact.Predicate.Terms[j]
			if !vars.Insert(k, v) {
				matchTerms = false
				break
			}
		}

		if !matchTerms {
			continue
		}

		nextOrigin := c.originSoFar.Union(fact.Origin)

		if len(c.predicates) > 1 {
			next, err := newCombinator(vars, c.predicates[1:], c.expressions, c.allFacts, nextOrigin).Combine()
			if err != nil {
				return nil, err
			}
			results = append(results, next...)
		} else if v := vars.Complete(); v != nil {
			valid := true
			for _, e := range c.expressions {
				res, err := e.Evaluate(v)
				if err != nil {
					return nil, err
				}
				if !res.Equal(Bool(true)) {
					valid = false
					break
				}
			}
			if valid {
				results = append(results, binding{bindings: v, origin: nextOrigin})
			}
		}
	}
	return results, nil
}
