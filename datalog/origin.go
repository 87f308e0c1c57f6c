package datalog

import (
	"fmt"
	"sort"
	"strings"
)

// AuthorizerOrigin is the sentinel block id standing in for the
// authorizer itself, treated by the rule engine as one more block
// appended after every token block.
const AuthorizerOrigin uint32 = ^uint32(0)

// Origin is the set of block ids (plus, possibly, the authorizer
// sentinel) that justify a fact or bound a rule's visibility into
// the global fact set.
type Origin map[uint32]struct{}

// NewOrigin builds an Origin from a list of block ids.
func NewOrigin(ids ...uint32) Origin {
	o := make(Origin, len(ids))
	for _, id := range ids {
		o[id] = struct{}{}
	}
	return o
}

func (o Origin) Contains(id uint32) bool {
	_, ok := o[id]
	return ok
}

// Union returns a new Origin holding every id from either operand.
func (o Origin) Union(other Origin) Origin {
	res := make(Origin, len(o)+len(other))
	for id := range o {
		res[id] = struct{}{}
	}
	for id := range other {
		res[id] = struct{}{}
	}
	return res
}

// IsSubset reports whether every id in o also belongs to other. A
// fact is visible to a rule precisely when its Origin is a subset of
// the rule's trusted set.
func (o Origin) IsSubset(other Origin) bool {
	for id := range o {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

func (o Origin) Clone() Origin {
	res := make(Origin, len(o))
	for id := range o {
		res[id] = struct{}{}
	}
	return res
}

func (o Origin) String() string {
	ids := make([]string, 0, len(o))
	for id := range o {
		if id == AuthorizerOrigin {
			ids = append(ids, "authorizer")
		} else {
			ids = append(ids, fmt.Sprintf("%d", id))
		}
	}
	sort.Strings(ids)
	return fmt.Sprintf("{%s}", strings.Join(ids, ","))
}

// Scope is a rule's trusting clause: the set of block ids and
// external public key table indices whose facts the rule's body may
// read. An empty, non-explicit Scope defaults to {authority, self,
// authorizer} at apply time (§4.C7) — the authorizer sentinel is
// always trusted, since it stands in for the extra block appended
// after every token block.
type Scope struct {
	Explicit bool

	// Blocks lists trusted block ids named directly (authority is
	// block 0). There is no relative "previous" form: a preceding
	// block is trusted by listing its id here.
	Blocks []uint32

	// PublicKeys lists indices into the token's PublicKeyTable whose
	// signing block(s) are trusted ("trusting <public_key>").
	PublicKeys []uint32
}

// Resolve computes the effective trusted origin set for a rule
// defined in block definingBlock, given a mapping from public-key
// table index to the block id(s) it signed.
func (s Scope) Resolve(definingBlock uint32, keyBlocks map[uint32][]uint32) Origin {
	trusted := NewOrigin(definingBlock, AuthorizerOrigin)

	if !s.Explicit {
		trusted[0] = struct{}{}
		return trusted
	}

	for _, b := range s.Blocks {
		trusted[b] = struct{}{}
	}
	for _, k := range s.PublicKeys {
		for _, b := range keyBlocks[k] {
			trusted[b] = struct{}{}
		}
	}
	return trusted
}
