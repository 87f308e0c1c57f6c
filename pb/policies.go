package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Policies is the wire form of a precompiled authorizer policy
// bundle: facts/rules/checks/policies produced independently of any
// token, transported and loaded separately (§9 "supplemented
// features" — LoadPolicies/SerializePolicies).
type Policies struct {
	Symbols  []string
	Version  uint32
	Facts    []*Fact
	Rules    []*Rule
	Checks   []*Check
	Policies []*Policy
}

func encodePolicy(p *Policy) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Kind))
	for _, q := range p.Queries {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRule(q))
	}
	return b
}

func decodePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid policy tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			p.Kind = PolicyKind(v)
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
			p.Queries = append(p.Queries, q)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid policy field")
			}
			data = data[n:]
		}
	}
	return p, nil
}

func EncodePolicies(p *Policies) []byte {
	var b []byte
	for _, s := range p.Symbols {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(s))
	}
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Version))
	for _, f := range p.Facts {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePredicate(f.Predicate))
	}
	for _, r := range p.Rules {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRule(r))
	}
	for _, c := range p.Checks {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeCheck(c))
	}
	for _, pol := range p.Policies {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePolicy(pol))
	}
	return b
}

func DecodePolicies(data []byte) (*Policies, error) {
	p := &Policies{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid policies tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			p.Symbols = append(p.Symbols, string(v))
		case 2:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			p.Version = uint32(v)
		case 3:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pred, err := decodePredicate(v)
			if err != nil {
				return nil, err
			}
			p.Facts = append(p.Facts, &Fact{Predicate: pred})
		case 4:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			r, err := decodeRule(v)
			if err != nil {
				return nil, err
			}
			p.Rules = append(p.Rules, r)
		case 5:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			c, err := decodeCheck(v)
			if err != nil {
				return nil, err
			}
			p.Checks = append(p.Checks, c)
		case 6:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pol, err := decodePolicy(v)
			if err != nil {
				return nil, err
			}
			p.Policies = append(p.Policies, pol)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid policies field")
			}
			data = data[n:]
		}
	}
	return p, nil
}
