package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Predicate is the wire form of datalog.Predicate: a symbol id naming
// the predicate plus its ordered Term arguments.
type Predicate struct {
	Name  uint64
	Terms []*Term
}

func encodePredicate(p *Predicate) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, p.Name)
	for _, t := range p.Terms {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeTerm(t))
	}
	return b
}

func decodePredicate(data []byte) (*Predicate, error) {
	p := &Predicate{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid predicate tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			p.Name = v
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t, err := DecodeTerm(v)
			if err != nil {
				return nil, err
			}
			p.Terms = append(p.Terms, t)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid predicate field")
			}
			data = data[n:]
		}
	}
	return p, nil
}

// Fact is a ground Predicate, the wire form of datalog.Fact.
type Fact struct {
	Predicate *Predicate
}

// Scope is the wire form of datalog.Scope: block ids and public-key
// table indices a rule's body trusts.
type Scope struct {
	Explicit   bool
	Blocks     []uint32
	PublicKeys []uint32
}

func encodeScope(s *Scope) []byte {
	if !s.Explicit {
		return nil
	}
	var b []byte
	for _, id := range s.Blocks {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id))
	}
	for _, id := range s.PublicKeys {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id))
	}
	return b
}

func decodeScope(data []byte) (*Scope, error) {
	s := &Scope{}
	if len(data) == 0 {
		return s, nil
	}
	s.Explicit = true
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid scope tag")
		}
		data = data[n:]
		v, n, err := consumeVarint(data, typ)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		switch num {
		case 1:
			s.Blocks = append(s.Blocks, uint32(v))
		case 2:
			s.PublicKeys = append(s.PublicKeys, uint32(v))
		}
	}
	return s, nil
}

// Rule is the wire form of datalog.Rule.
type Rule struct {
	Head        *Predicate
	Body        []*Predicate
	Expressions [][]byte // each is a pre-encoded Expression (opaque postfix op stream)
	Scope       *Scope
}

func encodeRule(r *Rule) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, encodePredicate(r.Head))
	for _, p := range r.Body {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePredicate(p))
	}
	for _, e := range r.Expressions {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	if r.Scope != nil && r.Scope.Explicit {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeScope(r.Scope))
	}
	return b
}

func decodeRule(data []byte) (*Rule, error) {
	r := &Rule{Scope: &Scope{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid rule tag")
		}
		data = data[n:]
		v, n, err := consumeBytes(data, typ)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		switch num {
		case 1:
			p, err := decodePredicate(v)
			if err != nil {
				return nil, err
			}
			r.Head = p
		case 2:
			p, err := decodePredicate(v)
			if err != nil {
				return nil, err
			}
			r.Body = append(r.Body, p)
		case 3:
			r.Expressions = append(r.Expressions, append([]byte{}, v...))
		case 4:
			s, err := decodeScope(v)
			if err != nil {
				return nil, err
			}
			r.Scope = s
		}
	}
	return r, nil
}

// CheckKind mirrors datalog.CheckKind on the wire.
type CheckKind int32

const (
	CheckKindOne CheckKind = 0
	CheckKindAll CheckKind = 1
)

// Check is the wire form of datalog.Check.
type Check struct {
	Kind    CheckKind
	Queries []*Rule
}

// PolicyKind mirrors datalog.PolicyKind on the wire.
type PolicyKind int32

const (
	PolicyKindAllow PolicyKind = 0
	PolicyKindDeny  PolicyKind = 1
)

// Policy is the wire form of datalog.Policy.
type Policy struct {
	Kind    PolicyKind
	Queries []*Rule
}

func encodeCheck(c *Check) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Kind))
	for _, q := range c.Queries {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRule(q))
	}
	return b
}

func decodeCheck(data []byte) (*Check, error) {
	c := &Check{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid check tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			c.Kind = CheckKind(v)
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			q, err := decodeRule(v)
			if err != nil {
				return nil, err
			}
			c.Queries = append(c.Queries, q)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid check field")
			}
			data = data[n:]
		}
	}
	return c, nil
}

// Block is the wire form of a biscuit block, per §6: symbols, an
// optional context string, the version marker, facts/rules/checks,
// the block's own public-key table additions, and an optional
// external (third-party) public key.
type Block struct {
	Symbols     []string
	Context     string
	Version     uint32
	Facts       []*Fact
	Rules       []*Rule
	Checks      []*Check
	PublicKeys  []*PublicKey
	ExternalKey *PublicKey
}

func EncodeBlock(b *Block) []byte {
	var buf []byte
	for _, s := range b.Symbols {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(s))
	}
	if b.Context != "" {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(b.Context))
	}
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(b.Version))
	for _, f := range b.Facts {
		buf = protowire.AppendTag(buf, 4, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodePredicate(f.Predicate))
	}
	for _, r := range b.Rules {
		buf = protowire.AppendTag(buf, 5, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeRule(r))
	}
	for _, c := range b.Checks {
		buf = protowire.AppendTag(buf, 6, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeCheck(c))
	}
	for _, pk := range b.PublicKeys {
		buf = protowire.AppendTag(buf, 7, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodePublicKey(pk))
	}
	if b.ExternalKey != nil {
		buf = protowire.AppendTag(buf, 8, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodePublicKey(b.ExternalKey))
	}
	return buf
}

func DecodeBlock(data []byte) (*Block, error) {
	b := &Block{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid block tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			b.Symbols = append(b.Symbols, string(v))
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			b.Context = string(v)
		case 3:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			b.Version = uint32(v)
		case 4:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			p, err := decodePredicate(v)
			if err != nil {
				return nil, err
			}
			b.Facts = append(b.Facts, &Fact{Predicate: p})
		case 5:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			r, err := decodeRule(v)
			if err != nil {
				return nil, err
			}
			b.Rules = append(b.Rules, r)
		case 6:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			c, err := decodeCheck(v)
			if err != nil {
				return nil, err
			}
			b.Checks = append(b.Checks, c)
		case 7:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pk, err := decodePublicKey(v)
			if err != nil {
				return nil, err
			}
			b.PublicKeys = append(b.PublicKeys, pk)
		case 8:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pk, err := decodePublicKey(v)
			if err != nil {
				return nil, err
			}
			b.ExternalKey = pk
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid block field")
			}
			data = data[n:]
		}
	}
	return b, nil
}
