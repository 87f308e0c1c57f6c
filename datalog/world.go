package datalog

import (
	"context"
	"errors"
	"time"
)

type runLimits struct {
	maxFacts      int
	maxIterations int
	maxDuration   time.Duration
}

// defaultRunLimits matches the spec's defaults: 1000 facts, 100
// iterations, a 1ms wall-clock deadline between iterations.
var defaultRunLimits = runLimits{
	maxFacts:      1000,
	maxIterations: 100,
	maxDuration:   time.Millisecond,
}

var (
	ErrWorldRunLimitMaxFacts      = errors.New("datalog: world runtime limit: too many facts")
	ErrWorldRunLimitMaxIterations = errors.New("datalog: world runtime limit: too many iterations")
	ErrWorldRunLimitTimeout       = errors.New("datalog: world runtime limit: timeout")
)

// WorldOption configures the bounds a World enforces during Run.
type WorldOption func(w *World)

func WithMaxFacts(maxFacts int) WorldOption {
	return func(w *World) { w.runLimits.maxFacts = maxFacts }
}

func WithMaxIterations(maxIterations int) WorldOption {
	return func(w *World) { w.runLimits.maxIterations = maxIterations }
}

func WithMaxDuration(maxDuration time.Duration) WorldOption {
	return func(w *World) { w.runLimits.maxDuration = maxDuration }
}

// WithCancel installs a cooperative cancellation channel, consulted
// at the same points as the deadline (§5 "Cancellation is
// cooperative"); closing it surfaces ErrWorldRunLimitTimeout the same
// way a deadline does.
func WithCancel(cancel <-chan struct{}) WorldOption {
	return func(w *World) { w.cancel = cancel }
}

// World holds the accumulated, origin-tagged fact set and the rules
// that saturate it. It implements the semi-naive fixed-point
// evaluation described in §4.C7.
type World struct {
	facts  *FactSet
	rules  []Rule
	blocks []uint32

	// keyBlocks maps a public-key table index to the block id(s)
	// signed by that key, letting `trusting <public_key>` scopes
	// resolve to concrete origins.
	keyBlocks map[uint32][]uint32

	runLimits runLimits
	cancel    <-chan struct{}
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		facts:     &FactSet{},
		keyBlocks: make(map[uint32][]uint32),
		runLimits: defaultRunLimits,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) AddFact(f Fact) { w.facts.Insert(f) }

func (w *World) Facts() *FactSet { return w.facts }

// AddRule registers a rule as defined in the given block id (or the
// AuthorizerOrigin sentinel, for authorizer-added rules).
func (w *World) AddRule(r Rule, definingBlock uint32) {
	w.rules = append(w.rules, r)
	w.blocks = append(w.blocks, definingBlock)
}

// Configure applies further options to an already-built World without
// touching its accumulated facts or rules, letting a caller narrow run
// limits or install a cancel channel per-call (e.g. Authorizer.Authorize).
func (w *World) Configure(opts ...WorldOption) {
	for _, opt := range opts {
		opt(w)
	}
}

func (w *World) ResetRules() {
	w.rules = nil
	w.blocks = nil
}

func (w *World) Rules() []Rule { return w.rules }

// RuleBlocks returns the defining-block id recorded alongside each
// entry in Rules, in the same order.
func (w *World) RuleBlocks() []uint32 { return w.blocks }

// SetKeyBlocks installs the public-key-table-index -> signing-block
// mapping used to resolve `trusting <public_key>` scopes.
func (w *World) SetKeyBlocks(m map[uint32][]uint32) { w.keyBlocks = m }

// Run saturates the fact set by repeatedly applying every rule until
// a fixed point, a bound, or the deadline is reached.
func (w *World) Run() error {
	done := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), w.runLimits.maxDuration)
	defer cancel()

	go func() {
		for i := 0; i < w.runLimits.maxIterations; i++ {
			select {
			case <-ctx.Done():
				return
			case <-w.cancel:
				done <- ErrWorldRunLimitTimeout
				return
			default:
			}

			var newFacts FactSet
			for idx, r := range w.rules {
				select {
				case <-ctx.Done():
					return
				case <-w.cancel:
					done <- ErrWorldRunLimitTimeout
					return
				default:
				}
				if err := r.Apply(w.facts, &newFacts, w.blocks[idx], w.keyBlocks); err != nil {
					done <- err
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-w.cancel:
				done <- ErrWorldRunLimitTimeout
				return
			default:
			}

			prevCount := len(*w.facts)
			w.facts.InsertAll([]Fact(newFacts))
			newCount := len(*w.facts)

			if newCount >= w.runLimits.maxFacts {
				done <- ErrWorldRunLimitMaxFacts
				return
			}
			if newCount == prevCount {
				done <- nil
				return
			}
		}
		done <- ErrWorldRunLimitMaxIterations
	}()

	select {
	case <-ctx.Done():
		return ErrWorldRunLimitTimeout
	case err := <-done:
		return err
	}
}

// QueryRule runs a single rule against the current fact set without
// adding the result to the world, honoring the rule's scope. This is
// the "extra evaluation pass" checks and policies run.
func (w *World) QueryRule(rule Rule, definingBlock uint32) (*FactSet, error) {
	newFacts := &FactSet{}
	err := rule.Apply(w.facts, newFacts, definingBlock, w.keyBlocks)
	return newFacts, err
}

// Query does a plain predicate pattern match against every fact,
// ignoring origin — used for debugging/introspection.
func (w *World) Query(pred Predicate) *FactSet {
	res := &FactSet{}
	for _, f := range *w.facts {
		if f.Predicate.Name != pred.Name || len(f.Predicate.Terms) != len(pred.Terms) {
			continue
		}
		matches := true
		for i, t := range pred.Terms {
			if _, ok := t.(Variable); ok {
				continue
			}
			if !f.Predicate.Terms[i].Equal(t) {
				matches = false
				break
			}
		}
		if matches {
			res.Insert(f)
		}
	}
	return res
}

func (w *World) Clone() *World {
	newFacts := make(FactSet, len(*w.facts))
	copy(newFacts, *w.facts)
	return &World{
		facts:     &newFacts,
		rules:     append([]Rule{}, w.rules...),
		blocks:    append([]uint32{}, w.blocks...),
		keyBlocks: w.keyBlocks,
		runLimits: w.runLimits,
	}
}
