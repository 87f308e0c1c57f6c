package parser

import (
	"fmt"

	"github.com/alecthomas/participle/v2"

	biscuit "github.com/dalek-auth/biscuit/v2"
)

var (
	factParser   = participle.MustBuild[Predicate](parserOptions...)
	ruleParser   = participle.MustBuild[RuleSyntax](parserOptions...)
	checkParser  = participle.MustBuild[CheckSyntax](parserOptions...)
	policyParser = participle.MustBuild[PolicySyntax](parserOptions...)
	blockParser  = participle.MustBuild[blockSource](parserOptions...)
)

// stmtBody is one `;`-terminated element of a block or authorizer
// source: a check, a policy, a rule, or (falling through once the
// others don't match) a fact. Checks and policies are tried first
// since they start with a reserved keyword no predicate name can
// produce; rule is tried before fact since a fact is exactly a rule
// without "<-" and a body.
type stmtBody struct {
	Check  *CheckSyntax  `  @@`
	Policy *PolicySyntax `| @@`
	Rule   *RuleSyntax   `| @@`
	Fact   *Predicate    `| @@`
}

type statement struct {
	Stmt *stmtBody `@@ ";"`
}

type blockSource struct {
	Statements []*statement `@@*`
}

// ParseFact parses a single ground predicate, e.g. `right("file1", #read)`.
func ParseFact(src string) (biscuit.Fact, error) {
	var pred Predicate
	if err := factParser.ParseString("", src, &pred); err != nil {
		return biscuit.Fact{}, err
	}
	return pred.ToFact()
}

// ParseRule parses a single `<-`-bodied rule.
func ParseRule(src string) (biscuit.Rule, error) {
	var r RuleSyntax
	if err := ruleParser.ParseString("", src, &r); err != nil {
		return biscuit.Rule{}, err
	}
	return r.ToBiscuit()
}

// ParseCheck parses a single `check if`/`check all` statement.
func ParseCheck(src string) (biscuit.Check, error) {
	var c CheckSyntax
	if err := checkParser.ParseString("", src, &c); err != nil {
		return biscuit.Check{}, err
	}
	return c.ToBiscuit()
}

// ParsePolicy parses a single `allow if`/`deny if` statement.
func ParsePolicy(src string) (biscuit.Policy, error) {
	var p PolicySyntax
	if err := policyParser.ParseString("", src, &p); err != nil {
		return biscuit.Policy{}, err
	}
	return p.ToBiscuit()
}

// ParseBlockSource parses a `;`-terminated sequence of facts, rules
// and checks — the textual body of a block builder (§4.C9). A policy
// statement is rejected: policies only belong to an authorizer.
func ParseBlockSource(src string) (facts []biscuit.Fact, rules []biscuit.Rule, checks []biscuit.Check, err error) {
	var b blockSource
	if perr := blockParser.ParseString("", src, &b); perr != nil {
		return nil, nil, nil, perr
	}
	for _, s := range b.Statements {
		switch body := s.Stmt; {
		case body.Fact != nil:
			f, e := body.Fact.ToFact()
			if e != nil {
				return nil, nil, nil, e
			}
			facts = append(facts, f)
		case body.Rule != nil:
			r, e := body.Rule.ToBiscuit()
			if e != nil {
				return nil, nil, nil, e
			}
			rules = append(rules, r)
		case body.Check != nil:
			c, e := body.Check.ToBiscuit()
			if e != nil {
				return nil, nil, nil, e
			}
			checks = append(checks, c)
		case body.Policy != nil:
			return nil, nil, nil, fmt.Errorf("parser: a policy is not allowed in a block")
		}
	}
	return facts, rules, checks, nil
}

// ParseAuthorizerSource parses a `;`-terminated sequence of facts,
// rules, checks and policies — the textual body of an authorizer.
func ParseAuthorizerSource(src string) (facts []biscuit.Fact, rules []biscuit.Rule, checks []biscuit.Check, policies []biscuit.Policy, err error) {
	var b blockSource
	if perr := blockParser.ParseString("", src, &b); perr != nil {
		return nil, nil, nil, nil, perr
	}
	for _, s := range b.Statements {
		switch body := s.Stmt; {
		case body.Fact != nil:
			f, e := body.Fact.ToFact()
			if e != nil {
				return nil, nil, nil, nil, e
			}
			facts = append(facts, f)
		case body.Rule != nil:
			r, e := body.Rule.ToBiscuit()
			if e != nil {
				return nil, nil, nil, nil, e
			}
			rules = append(rules, r)
		case body.Check != nil:
			c, e := body.Check.ToBiscuit()
			if e != nil {
				return nil, nil, nil, nil, e
			}
			checks = append(checks, c)
		case body.Policy != nil:
			p, e := body.Policy.ToBiscuit()
			if e != nil {
				return nil, nil, nil, nil, e
			}
			policies = append(policies, p)
		}
	}
	return facts, rules, checks, policies, nil
}
