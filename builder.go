package biscuit

import (
	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// BiscuitBuilder accumulates the authority block's facts, rules and
// checks before a token is minted with Build.
type BiscuitBuilder interface {
	AddFact(fact Fact) error
	AddRule(rule Rule) error
	AddCheck(check Check) error
	SetContext(context string)
	Build(root sig.Keypair, opts ...Option) (*Biscuit, error)
}

type biscuitBuilder struct {
	symbolsStart int
	symbols      *datalog.SymbolTable
	facts        *datalog.FactSet
	rules        []datalog.Rule
	checks       []datalog.Check
	context      string
}

// NewBiscuitBuilder starts a fresh authority block on top of the
// reserved symbol dictionary.
func NewBiscuitBuilder() BiscuitBuilder {
	symbols := datalog.NewSymbolTable()
	return &biscuitBuilder{
		symbolsStart: symbols.Len(),
		symbols:      symbols,
		facts:        new(datalog.FactSet),
	}
}

func (b *biscuitBuilder) AddFact(fact Fact) error {
	dlFact := fact.convert(b.symbols, 0)
	if !b.facts.Insert(dlFact) {
		return ErrDuplicateFact
	}
	return nil
}

func (b *biscuitBuilder) AddRule(rule Rule) error {
	dlRule, err := rule.convert(b.symbols)
	if err != nil {
		return err
	}
	b.rules = append(b.rules, dlRule)
	return nil
}

func (b *biscuitBuilder) AddCheck(check Check) error {
	dlCheck, err := check.convert(b.symbols)
	if err != nil {
		return err
	}
	b.checks = append(b.checks, dlCheck)
	return nil
}

func (b *biscuitBuilder) SetContext(context string) { b.context = context }

func (b *biscuitBuilder) Build(root sig.Keypair, opts ...Option) (*Biscuit, error) {
	cfg := newConfig(opts...)

	symbols := b.symbols.Clone()
	authority := &Block{
		index:   0,
		symbols: symbols.SplitOff(b.symbolsStart),
		facts:   b.facts,
		rules:   b.rules,
		checks:  b.checks,
		context: b.context,
		version: SchemaVersion,
	}

	return New(cfg.rng, root, authority, opts...)
}

// BlockBuilder accumulates a non-authority block's facts, rules and
// checks before it is appended to a token with Biscuit.Append.
type BlockBuilder interface {
	AddFact(fact Fact) error
	AddRule(rule Rule) error
	AddCheck(check Check) error
	SetContext(context string)
	Build() *Block
}

type blockBuilder struct {
	index        uint32
	symbolsStart int
	symbols      *datalog.SymbolTable
	facts        *datalog.FactSet
	rules        []datalog.Rule
	checks       []datalog.Check
	context      string
}

// NewBlockBuilder starts a new block at the given index, continuing
// symbol interning from baseSymbols (normally the biscuit's running
// table, from Biscuit.CreateBlock).
func NewBlockBuilder(index uint32, baseSymbols *datalog.SymbolTable) BlockBuilder {
	return &blockBuilder{
		index:        index,
		symbolsStart: baseSymbols.Len(),
		symbols:      baseSymbols.Clone(),
		facts:        new(datalog.FactSet),
	}
}

func (b *blockBuilder) AddFact(fact Fact) error {
	dlFact := fact.convert(b.symbols, b.index)
	if !b.facts.Insert(dlFact) {
		return ErrDuplicateFact
	}
	return nil
}

func (b *blockBuilder) AddRule(rule Rule) error {
	dlRule, err := rule.convert(b.symbols)
	if err != nil {
		return err
	}
	b.rules = append(b.rules, dlRule)
	return nil
}

func (b *blockBuilder) AddCheck(check Check) error {
	dlCheck, err := check.convert(b.symbols)
	if err != nil {
		return err
	}
	b.checks = append(b.checks, dlCheck)
	return nil
}

func (b *blockBuilder) SetContext(context string) { b.context = context }

func (b *blockBuilder) Build() *Block {
	symbols := b.symbols.SplitOff(b.symbolsStart)

	facts := make(datalog.FactSet, len(*b.facts))
	copy(facts, *b.facts)

	rules := make([]datalog.Rule, len(b.rules))
	copy(rules, b.rules)

	checks := make([]datalog.Check, len(b.checks))
	copy(checks, b.checks)

	return &Block{
		index:   b.index,
		symbols: symbols,
		facts:   &facts,
		rules:   rules,
		checks:  checks,
		context: b.context,
		version: SchemaVersion,
	}
}
