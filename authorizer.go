package biscuit

import (
	"fmt"
	"strings"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/pb"
)

// AuthorizerState tracks an Authorizer's progress: Fresh until the
// token's blocks are loaded, Loaded once loaded and open to further
// AddFact/AddRule/AddCheck/AddPolicy calls, Evaluated once the world
// has been saturated, and Decided once Authorize has returned (§4.C8).
type AuthorizerState int

const (
	StateFresh AuthorizerState = iota
	StateLoaded
	StateEvaluated
	StateDecided
)

func (s AuthorizerState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateEvaluated:
		return "evaluated"
	case StateDecided:
		return "decided"
	default:
		return "unknown"
	}
}

// FailedCheck identifies a check that did not hold once the world was
// saturated: either one of the token's block checks or one added
// directly to the authorizer.
type FailedCheck struct {
	BlockID      int
	CheckID      int
	RuleSource   string
	IsAuthorizer bool
}

func (f FailedCheck) String() string {
	origin := fmt.Sprintf("block#%d", f.BlockID)
	if f.IsAuthorizer {
		origin = "authorizer"
	}
	return fmt.Sprintf("%s check#%d: %s", origin, f.CheckID, f.RuleSource)
}

// UnauthorizedError reports every check that failed, wrapping
// ErrLogicUnauthorized so callers can still match it with errors.Is.
type UnauthorizedError struct {
	Checks []FailedCheck
}

func (e *UnauthorizedError) Error() string {
	reasons := make([]string, len(e.Checks))
	for i, c := range e.Checks {
		reasons[i] = c.String()
	}
	return fmt.Sprintf("%s: %s", ErrLogicUnauthorized, strings.Join(reasons, "; "))
}

func (e *UnauthorizedError) Unwrap() error { return ErrLogicUnauthorized }

// Authorizer evaluates a token's blocks, together with caller-supplied
// facts, rules, checks and policies, against the Datalog engine and
// decides Allow/Deny per the first matching policy (§4.C8).
type Authorizer interface {
	AddFact(fact Fact) error
	AddRule(rule Rule) error
	AddCheck(check Check) error
	AddPolicy(policy Policy) error
	SetContext(context string)

	// LoadPolicies installs a precompiled facts/rules/checks/policies
	// bundle produced by SerializePolicies (§9 supplemented feature).
	LoadPolicies(data []byte) error
	SerializePolicies() ([]byte, error)

	// Authorize saturates the world and applies the checks-then-
	// policies decision procedure, returning an *UnauthorizedError (or
	// ErrLogicNoMatchingPolicy) on refusal.
	Authorize(opts ...Option) error

	// Query runs rule against the current (evaluated) world without
	// adding its result, for introspection after Authorize.
	Query(rule Rule) (FactSet, error)

	PrintWorld() string
	State() AuthorizerState
}

type authorizer struct {
	token   *Biscuit
	symbols *datalog.SymbolTable
	world   *datalog.World
	config  config

	authorizerChecks []datalog.Check
	policies         []datalog.Policy
	context          string

	state AuthorizerState
}

// NewAuthorizer builds an Authorizer over token, loading its blocks'
// facts and rules into a fresh World (§4.C8 "Fresh" -> "Loaded").
// Non-authority block rules are restricted from producing facts that
// claim the authority/ambient symbols, so a less-trusted block cannot
// forge facts for an origin it was not given (ErrLogicInvalidBlockRule
// would be the right error if Apply surfaced one; in practice the
// restriction silently drops the offending derivation, matching
// WithForbiddenTerms' contract).
func NewAuthorizer(token *Biscuit, opts ...Option) (Authorizer, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	cfg := newConfig(opts...)

	symbols := token.symbols.Clone()
	world := datalog.NewWorld(cfg.worldOptions()...)
	world.SetKeyBlocks(token.keyBlocks)

	a := &authorizer{
		token:   token,
		symbols: symbols,
		world:   world,
		config:  cfg,
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *authorizer) forbiddenBlockTerms() []datalog.Term {
	var terms []datalog.Term
	for _, name := range []string{"authority", "ambient"} {
		if sym := a.symbols.Sym(name); sym != nil {
			terms = append(terms, sym)
		}
	}
	return terms
}

func (a *authorizer) load() error {
	forbidden := a.forbiddenBlockTerms()

	for _, f := range *a.token.authority.facts {
		a.world.AddFact(f)
	}
	for _, r := range a.token.authority.rules {
		a.world.AddRule(r, 0)
	}

	for i, block := range a.token.blocks {
		blockID := uint32(i + 1)
		for _, f := range *block.facts {
			a.world.AddFact(f)
		}
		for _, r := range block.rules {
			a.world.AddRule(r.WithForbiddenTerms(forbidden...), blockID)
		}
	}

	a.state = StateLoaded
	return nil
}

func (a *authorizer) requireOpen() error {
	if a.state >= StateEvaluated {
		return ErrLogicAuthorizerNotEmpty
	}
	return nil
}

func (a *authorizer) AddFact(fact Fact) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	a.world.AddFact(fact.convert(a.symbols, datalog.AuthorizerOrigin))
	return nil
}

func (a *authorizer) AddRule(rule Rule) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	dlRule, err := rule.convert(a.symbols)
	if err != nil {
		return err
	}
	a.world.AddRule(dlRule, datalog.AuthorizerOrigin)
	return nil
}

func (a *authorizer) AddCheck(check Check) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	dlCheck, err := check.convert(a.symbols)
	if err != nil {
		return err
	}
	a.authorizerChecks = append(a.authorizerChecks, dlCheck)
	return nil
}

func (a *authorizer) AddPolicy(policy Policy) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	dlPolicy, err := policy.convert(a.symbols)
	if err != nil {
		return err
	}
	a.policies = append(a.policies, dlPolicy)
	return nil
}

func (a *authorizer) SetContext(context string) { a.context = context }

// LoadPolicies decodes a Policies bundle (built independently of any
// token, e.g. shared across services) and merges its facts, rules,
// checks and policies into the authorizer, continuing symbol
// interning from the receiver's own table.
func (a *authorizer) LoadPolicies(data []byte) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	bundle, err := pb.DecodePolicies(data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFormatDeserializationError, err)
	}

	remap := make(map[datalog.Symbol]datalog.Symbol, len(bundle.Symbols))
	for i, s := range bundle.Symbols {
		remap[datalog.Symbol(datalog.FirstUserSymbol+i)] = a.symbols.Insert(s)
	}

	for _, pf := range bundle.Facts {
		pred, err := protoToPredicate(pf.Predicate)
		if err != nil {
			return err
		}
		a.world.AddFact(datalog.Fact{
			Predicate: remapPredicate(pred, remap),
			Origin:    datalog.NewOrigin(datalog.AuthorizerOrigin),
		})
	}
	for _, pr := range bundle.Rules {
		r, err := protoToRule(pr)
		if err != nil {
			return err
		}
		a.world.AddRule(remapRule(r, remap), datalog.AuthorizerOrigin)
	}
	for _, pc := range bundle.Checks {
		c, err := protoToCheck(pc)
		if err != nil {
			return err
		}
		a.authorizerChecks = append(a.authorizerChecks, remapCheck(c, remap))
	}
	for _, pp := range bundle.Policies {
		p, err := protoToPolicy(pp)
		if err != nil {
			return err
		}
		a.policies = append(a.policies, remapPolicy(p, remap))
	}
	return nil
}

// SerializePolicies encodes the authorizer's own symbol table plus
// every fact/rule/check/policy it was given directly (token blocks are
// excluded: they travel inside the token itself) into a Policies
// bundle suitable for LoadPolicies.
func (a *authorizer) SerializePolicies() ([]byte, error) {
	bundle := &pb.Policies{
		Symbols: []string(*a.symbols)[datalog.FirstUserSymbol:],
		Version: SchemaVersion,
	}

	for _, f := range *a.world.Facts() {
		if !f.Origin.Contains(datalog.AuthorizerOrigin) || len(f.Origin) != 1 {
			continue
		}
		pred, err := predicateToProto(f.Predicate)
		if err != nil {
			return nil, err
		}
		bundle.Facts = append(bundle.Facts, &pb.Fact{Predicate: pred})
	}
	for i, r := range a.world.Rules() {
		if a.world.RuleBlocks()[i] != datalog.AuthorizerOrigin {
			continue
		}
		pr, err := ruleToProto(r)
		if err != nil {
			return nil, err
		}
		bundle.Rules = append(bundle.Rules, pr)
	}
	for _, c := range a.authorizerChecks {
		pc, err := checkToProto(c)
		if err != nil {
			return nil, err
		}
		bundle.Checks = append(bundle.Checks, pc)
	}
	for _, p := range a.policies {
		pp, err := policyToProto(p)
		if err != nil {
			return nil, err
		}
		bundle.Policies = append(bundle.Policies, pp)
	}

	return pb.EncodePolicies(bundle), nil
}

// Authorize saturates the world, evaluates the token's checks then the
// authorizer's own checks, and finally runs policies in order until
// one matches (§4.C8 "Evaluated" -> "Decided").
func (a *authorizer) Authorize(opts ...Option) error {
	cfg := a.config
	for _, o := range opts {
		o(&cfg)
	}
	a.world.Configure(cfg.worldOptions()...)

	if cfg.cancel != nil && cfg.cancel.Cancelled() {
		return ErrTimeout
	}

	if err := a.world.Run(); err != nil {
		a.state = StateDecided
		return mapRunLimitError(err)
	}
	a.state = StateEvaluated

	var failed []FailedCheck

	blockChecks := a.token.Checks()
	for blockID, checks := range blockChecks {
		for checkID, c := range checks {
			if !a.checkHolds(c, uint32(blockID)) {
				failed = append(failed, FailedCheck{
					BlockID:    blockID,
					CheckID:    checkID,
					RuleSource: datalog.SymbolDebugger{SymbolTable: a.symbols}.Check(c),
				})
			}
		}
	}
	for checkID, c := range a.authorizerChecks {
		if !a.checkHolds(c, datalog.AuthorizerOrigin) {
			failed = append(failed, FailedCheck{
				CheckID:      checkID,
				RuleSource:   datalog.SymbolDebugger{SymbolTable: a.symbols}.Check(c),
				IsAuthorizer: true,
			})
		}
	}

	a.state = StateDecided

	if len(failed) > 0 {
		return &UnauthorizedError{Checks: failed}
	}

	for _, p := range a.policies {
		matched, err := a.policyMatches(p)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		if p.Kind == datalog.PolicyKindDeny {
			return &UnauthorizedError{}
		}
		return nil
	}

	return ErrLogicNoMatchingPolicy
}

// checkHolds evaluates every query in c, each as if it were defined at
// definingBlock, and applies CheckKind's One/All semantics.
func (a *authorizer) checkHolds(c datalog.Check, definingBlock uint32) bool {
	for _, q := range c.Queries {
		facts, err := a.world.QueryRule(q, definingBlock)
		ok := err == nil && len(*facts) > 0
		switch c.Kind {
		case datalog.CheckKindOne:
			if ok {
				return true
			}
		case datalog.CheckKindAll:
			if !ok {
				return false
			}
		}
	}
	return c.Kind == datalog.CheckKindAll
}

func (a *authorizer) policyMatches(p datalog.Policy) (bool, error) {
	for _, q := range p.Queries {
		facts, err := a.world.QueryRule(q, datalog.AuthorizerOrigin)
		if err != nil {
			return false, err
		}
		if len(*facts) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func mapRunLimitError(err error) error {
	switch err {
	case datalog.ErrWorldRunLimitMaxFacts:
		return ErrTooManyFacts
	case datalog.ErrWorldRunLimitMaxIterations:
		return ErrTooManyIterations
	case datalog.ErrWorldRunLimitTimeout:
		return ErrTimeout
	default:
		return err
	}
}

// Query runs rule against the saturated world without inserting its
// result, translating matches back into builder-facing Facts.
func (a *authorizer) Query(rule Rule) (FactSet, error) {
	dlRule, err := rule.convert(a.symbols)
	if err != nil {
		return nil, err
	}
	facts, err := a.world.QueryRule(dlRule, datalog.AuthorizerOrigin)
	if err != nil {
		return nil, err
	}
	out := make(FactSet, 0, len(*facts))
	for _, f := range *facts {
		out = append(out, factFromDatalog(a.symbols, f))
	}
	return out, nil
}

func (a *authorizer) PrintWorld() string {
	return datalog.SymbolDebugger{SymbolTable: a.symbols}.World(a.world)
}

func (a *authorizer) State() AuthorizerState { return a.state }

func remapPredicate(p datalog.Predicate, remap map[datalog.Symbol]datalog.Symbol) datalog.Predicate {
	out := p.Clone()
	if s, ok := remap[out.Name]; ok {
		out.Name = s
	}
	for i, t := range out.Terms {
		if sym, ok := t.(datalog.Symbol); ok {
			if s, ok := remap[sym]; ok {
				out.Terms[i] = s
			}
		}
	}
	return out
}

func remapRule(r datalog.Rule, remap map[datalog.Symbol]datalog.Symbol) datalog.Rule {
	r.Head = remapPredicate(r.Head, remap)
	body := make([]datalog.Predicate, len(r.Body))
	for i, p := range r.Body {
		body[i] = remapPredicate(p, remap)
	}
	r.Body = body
	return r
}

func remapCheck(c datalog.Check, remap map[datalog.Symbol]datalog.Symbol) datalog.Check {
	queries := make([]datalog.Rule, len(c.Queries))
	for i, q := range c.Queries {
		queries[i] = remapRule(q, remap)
	}
	c.Queries = queries
	return c
}

func remapPolicy(p datalog.Policy, remap map[datalog.Symbol]datalog.Symbol) datalog.Policy {
	queries := make([]datalog.Rule, len(p.Queries))
	for i, q := range p.Queries {
		queries[i] = remapRule(q, remap)
	}
	p.Queries = queries
	return p
}
