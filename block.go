package biscuit

import (
	"fmt"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// SchemaVersion is the current Datalog source version marker carried
// in every block, per §6 ("version (uint32, current = 5)").
const SchemaVersion uint32 = 5

// Block is one signed unit of a token: an ordered list of facts,
// rules and checks, a symbol/public-key table extension, an optional
// context string, and — for a third-party block — the external
// public key that co-signed it (§3 "Block").
type Block struct {
	index       uint32
	symbols     *datalog.SymbolTable
	publicKeys  *datalog.PublicKeyTable
	facts       *datalog.FactSet
	rules       []datalog.Rule
	checks      []datalog.Check
	context     string
	version     uint32
	externalKey sig.PublicKey
}

func (b *Block) String(symbols *datalog.SymbolTable) string {
	debug := datalog.SymbolDebugger{SymbolTable: symbols}

	facts := make([]string, 0, len(*b.facts))
	for _, f := range *b.facts {
		facts = append(facts, debug.Predicate(f.Predicate))
	}

	rules := make([]string, len(b.rules))
	for i, r := range b.rules {
		rules[i] = debug.Rule(r)
	}

	checks := make([]string, len(b.checks))
	for i, c := range b.checks {
		checks[i] = debug.Check(c)
	}

	thirdParty := ""
	if b.externalKey != nil {
		thirdParty = fmt.Sprintf("\n\texternal: %x", b.externalKey.Bytes())
	}

	return fmt.Sprintf(`Block[%d] {
	context: %q
	facts: %v
	rules: %v
	checks: %v
	version: %d%s
}`, b.index, b.context, facts, rules, checks, b.version, thirdParty)
}
