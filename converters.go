package biscuit

import (
	"fmt"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/pb"
	"github.com/dalek-auth/biscuit/v2/sig"
	"google.golang.org/protobuf/encoding/protowire"
)

// This file converts between the in-memory datalog/Block
// representation and the pb wire types (§4.C2). It is the single
// translation layer the teacher spread across converters_v0/v1/v2.go
// as the wire schema evolved release to release; this module only
// ever speaks the final (version 5) schema, so there is one
// converter, not three.

func termToProtoTerm(t datalog.Term) (*pb.Term, error) {
	switch v := t.(type) {
	case datalog.Symbol:
		id := uint64(v)
		return &pb.Term{Symbol: &id}, nil
	case datalog.Variable:
		id := uint32(v)
		return &pb.Term{Variable: &id}, nil
	case datalog.Integer:
		i := int64(v)
		return &pb.Term{Integer: &i}, nil
	case datalog.String:
		s := string(v)
		return &pb.Term{Str: &s}, nil
	case datalog.Date:
		d := uint64(v)
		return &pb.Term{Date: &d}, nil
	case datalog.Bytes:
		return &pb.Term{Bytes: []byte(v)}, nil
	case datalog.Bool:
		b := bool(v)
		return &pb.Term{Bool: &b}, nil
	case datalog.Null:
		return &pb.Term{Null: true}, nil
	case datalog.Set:
		terms := make([]*pb.Term, len(v))
		for i, e := range v {
			pt, err := termToProtoTerm(e)
			if err != nil {
				return nil, err
			}
			terms[i] = pt
		}
		return &pb.Term{Set: terms}, nil
	case datalog.Array:
		terms := make([]*pb.Term, len(v))
		for i, e := range v {
			pt, err := termToProtoTerm(e)
			if err != nil {
				return nil, err
			}
			terms[i] = pt
		}
		return &pb.Term{Array: terms}, nil
	case datalog.Map:
		entries := make([]*pb.MapEntry, 0, len(v))
		for k, val := range v {
			pv, err := termToProtoTerm(val)
			if err != nil {
				return nil, err
			}
			var pk pb.MapKey
			if k.IsStrKey {
				pk = pb.MapKey{IsString: true, Str: string(k.StrKey)}
			} else {
				pk = pb.MapKey{Int: int64(k.IntKey)}
			}
			entries = append(entries, &pb.MapEntry{Key: pk, Value: pv})
		}
		return &pb.Term{Map: entries}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported term type %T", ErrFormatSerializationError, t)
	}
}

func protoTermToTerm(t *pb.Term) (datalog.Term, error) {
	switch {
	case t.Symbol != nil:
		return datalog.Symbol(*t.Symbol), nil
	case t.Variable != nil:
		return datalog.Variable(*t.Variable), nil
	case t.Integer != nil:
		return datalog.Integer(*t.Integer), nil
	case t.Str != nil:
		return datalog.String(*t.Str), nil
	case t.Date != nil:
		return datalog.Date(*t.Date), nil
	case t.Bytes != nil:
		return datalog.Bytes(t.Bytes), nil
	case t.Bool != nil:
		return datalog.Bool(*t.Bool), nil
	case t.Null:
		return datalog.Null{}, nil
	case t.Set != nil:
		out := make(datalog.Set, len(t.Set))
		for i, e := range t.Set {
			dt, err := protoTermToTerm(e)
			if err != nil {
				return nil, err
			}
			out[i] = dt
		}
		return out, nil
	case t.Array != nil:
		out := make(datalog.Array, len(t.Array))
		for i, e := range t.Array {
			dt, err := protoTermToTerm(e)
			if err != nil {
				return nil, err
			}
			out[i] = dt
		}
		return out, nil
	case t.Map != nil:
		out := make(datalog.Map, len(t.Map))
		for _, e := range t.Map {
			dv, err := protoTermToTerm(e.Value)
			if err != nil {
				return nil, err
			}
			var dk datalog.MapKey
			if e.Key.IsString {
				dk = datalog.StrMapKey(datalog.String(e.Key.Str))
			} else {
				dk = datalog.IntMapKey(datalog.Integer(e.Key.Int))
			}
			out[dk] = dv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: empty term", ErrFormatDeserializationError)
	}
}

func predicateToProto(p datalog.Predicate) (*pb.Predicate, error) {
	terms := make([]*pb.Term, len(p.Terms))
	for i, t := range p.Terms {
		pt, err := termToProtoTerm(t)
		if err != nil {
			return nil, err
		}
		terms[i] = pt
	}
	return &pb.Predicate{Name: uint64(p.Name), Terms: terms}, nil
}

func protoToPredicate(p *pb.Predicate) (datalog.Predicate, error) {
	terms := make([]datalog.Term, len(p.Terms))
	for i, t := range p.Terms {
		dt, err := protoTermToTerm(t)
		if err != nil {
			return datalog.Predicate{}, err
		}
		terms[i] = dt
	}
	return datalog.Predicate{Name: datalog.Symbol(p.Name), Terms: terms}, nil
}

func scopeToProto(s datalog.Scope) *pb.Scope {
	return &pb.Scope{Explicit: s.Explicit, Blocks: s.Blocks, PublicKeys: s.PublicKeys}
}

func protoToScope(s *pb.Scope) datalog.Scope {
	if s == nil {
		return datalog.Scope{}
	}
	return datalog.Scope{Explicit: s.Explicit, Blocks: s.Blocks, PublicKeys: s.PublicKeys}
}

func ruleToProto(r datalog.Rule) (*pb.Rule, error) {
	head, err := predicateToProto(r.Head)
	if err != nil {
		return nil, err
	}
	body := make([]*pb.Predicate, len(r.Body))
	for i, p := range r.Body {
		bp, err := predicateToProto(p)
		if err != nil {
			return nil, err
		}
		body[i] = bp
	}
	exprs := make([][]byte, len(r.Expressions))
	for i, e := range r.Expressions {
		eb, err := expressionToBytes(e)
		if err != nil {
			return nil, err
		}
		exprs[i] = eb
	}
	return &pb.Rule{Head: head, Body: body, Expressions: exprs, Scope: scopeToProto(r.Scope)}, nil
}

func protoToRule(r *pb.Rule) (datalog.Rule, error) {
	head, err := protoToPredicate(r.Head)
	if err != nil {
		return datalog.Rule{}, err
	}
	body := make([]datalog.Predicate, len(r.Body))
	for i, p := range r.Body {
		bp, err := protoToPredicate(p)
		if err != nil {
			return datalog.Rule{}, err
		}
		body[i] = bp
	}
	exprs := make([]datalog.Expression, len(r.Expressions))
	for i, eb := range r.Expressions {
		e, err := bytesToExpression(eb)
		if err != nil {
			return datalog.Rule{}, err
		}
		exprs[i] = e
	}
	return datalog.Rule{Head: head, Body: body, Expressions: exprs, Scope: protoToScope(r.Scope)}, nil
}

func checkToProto(c datalog.Check) (*pb.Check, error) {
	queries := make([]*pb.Rule, len(c.Queries))
	for i, q := range c.Queries {
		pq, err := ruleToProto(q)
		if err != nil {
			return nil, err
		}
		queries[i] = pq
	}
	kind := pb.CheckKindOne
	if c.Kind == datalog.CheckKindAll {
		kind = pb.CheckKindAll
	}
	return &pb.Check{Kind: kind, Queries: queries}, nil
}

func protoToCheck(c *pb.Check) (datalog.Check, error) {
	queries := make([]datalog.Rule, len(c.Queries))
	for i, q := range c.Queries {
		dq, err := protoToRule(q)
		if err != nil {
			return datalog.Check{}, err
		}
		queries[i] = dq
	}
	kind := datalog.CheckKindOne
	if c.Kind == pb.CheckKindAll {
		kind = datalog.CheckKindAll
	}
	return datalog.Check{Kind: kind, Queries: queries}, nil
}

func policyToProto(p datalog.Policy) (*pb.Policy, error) {
	queries := make([]*pb.Rule, len(p.Queries))
	for i, q := range p.Queries {
		pq, err := ruleToProto(q)
		if err != nil {
			return nil, err
		}
		queries[i] = pq
	}
	kind := pb.PolicyKindAllow
	if p.Kind == datalog.PolicyKindDeny {
		kind = pb.PolicyKindDeny
	}
	return &pb.Policy{Kind: kind, Queries: queries}, nil
}

func protoToPolicy(p *pb.Policy) (datalog.Policy, error) {
	queries := make([]datalog.Rule, len(p.Queries))
	for i, q := range p.Queries {
		dq, err := protoToRule(q)
		if err != nil {
			return datalog.Policy{}, err
		}
		queries[i] = dq
	}
	kind := datalog.PolicyKindAllow
	if p.Kind == pb.PolicyKindDeny {
		kind = datalog.PolicyKindDeny
	}
	return datalog.Policy{Kind: kind, Queries: queries}, nil
}

// Expressions are stored in a block as an opaque byte stream (one per
// r.Expressions entry). Each element of the postfix op sequence is
// written as a tagged field: a Value wraps a full pb.Term, while a
// Unary/BinaryOp is just a small opcode naming which Func it carries —
// there is only ever a fixed, known set of those.
const (
	exprFieldValue = 1
	exprFieldUnary = 2
	exprFieldBinary = 3
)

var unaryOpTags = []datalog.UnaryOpFunc{
	datalog.Negate{},
	datalog.Parens{},
	datalog.Length{},
}

var binaryOpTags = []datalog.BinaryOpFunc{
	datalog.LessThan{},
	datalog.LessOrEqual{},
	datalog.GreaterThan{},
	datalog.GreaterOrEqual{},
	datalog.Equal{},
	datalog.NotEqual{},
	datalog.Contains{},
	datalog.Prefix{},
	datalog.Suffix{},
	datalog.Regex{},
	datalog.Add{},
	datalog.Sub{},
	datalog.Mul{},
	datalog.Div{},
	datalog.And{},
	datalog.Or{},
	datalog.Intersection{},
	datalog.Subset{},
	datalog.Union{},
}

func unaryOpToTag(f datalog.UnaryOpFunc) (uint64, error) {
	for i, candidate := range unaryOpTags {
		if candidate == f {
			return uint64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown unary operator %T", ErrFormatSerializationError, f)
}

func tagToUnaryOp(tag uint64) (datalog.UnaryOpFunc, error) {
	if tag >= uint64(len(unaryOpTags)) {
		return nil, fmt.Errorf("%w: unknown unary operator tag %d", ErrFormatDeserializationError, tag)
	}
	return unaryOpTags[tag], nil
}

func binaryOpToTag(f datalog.BinaryOpFunc) (uint64, error) {
	for i, candidate := range binaryOpTags {
		if candidate == f {
			return uint64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown binary operator %T", ErrFormatSerializationError, f)
}

func tagToBinaryOp(tag uint64) (datalog.BinaryOpFunc, error) {
	if tag >= uint64(len(binaryOpTags)) {
		return nil, fmt.Errorf("%w: unknown binary operator tag %d", ErrFormatDeserializationError, tag)
	}
	return binaryOpTags[tag], nil
}

func expressionToBytes(e datalog.Expression) ([]byte, error) {
	var buf []byte
	for _, op := range e {
		switch o := op.(type) {
		case datalog.Value:
			pt, err := termToProtoTerm(o.Term)
			if err != nil {
				return nil, err
			}
			buf = protowire.AppendTag(buf, exprFieldValue, protowire.BytesType)
			buf = protowire.AppendBytes(buf, pb.EncodeTerm(pt))
		case datalog.UnaryOp:
			tag, err := unaryOpToTag(o.Func)
			if err != nil {
				return nil, err
			}
			buf = protowire.AppendTag(buf, exprFieldUnary, protowire.VarintType)
			buf = protowire.AppendVarint(buf, tag)
		case datalog.BinaryOp:
			tag, err := binaryOpToTag(o.Func)
			if err != nil {
				return nil, err
			}
			buf = protowire.AppendTag(buf, exprFieldBinary, protowire.VarintType)
			buf = protowire.AppendVarint(buf, tag)
		default:
			return nil, fmt.Errorf("%w: unknown expression op %T", ErrFormatSerializationError, op)
		}
	}
	return buf, nil
}

func bytesToExpression(data []byte) (datalog.Expression, error) {
	var expr datalog.Expression
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: invalid expression tag", ErrFormatDeserializationError)
		}
		data = data[n:]
		switch num {
		case exprFieldValue:
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("%w: invalid expression value field", ErrFormatDeserializationError)
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: invalid expression value bytes", ErrFormatDeserializationError)
			}
			data = data[n:]
			pt, err := pb.DecodeTerm(v)
			if err != nil {
				return nil, err
			}
			t, err := protoTermToTerm(pt)
			if err != nil {
				return nil, err
			}
			expr = append(expr, datalog.Value{Term: t})
		case exprFieldUnary:
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("%w: invalid expression unary field", ErrFormatDeserializationError)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: invalid expression unary varint", ErrFormatDeserializationError)
			}
			data = data[n:]
			f, err := tagToUnaryOp(v)
			if err != nil {
				return nil, err
			}
			expr = append(expr, datalog.UnaryOp{Func: f})
		case exprFieldBinary:
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("%w: invalid expression binary field", ErrFormatDeserializationError)
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: invalid expression binary varint", ErrFormatDeserializationError)
			}
			data = data[n:]
			f, err := tagToBinaryOp(v)
			if err != nil {
				return nil, err
			}
			expr = append(expr, datalog.BinaryOp{Func: f})
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: invalid expression field", ErrFormatDeserializationError)
			}
			data = data[n:]
		}
	}
	return expr, nil
}

// packPublicKey packs a sig.PublicKey into datalog's algorithm-
// agnostic PublicKeyTable representation: a 1-byte algorithm tag
// followed by the key's raw bytes. Keeping this encoding inside the
// biscuit package (rather than teaching datalog about sig.Algorithm)
// keeps datalog free of a crypto dependency.
func packPublicKey(pk sig.PublicKey) []byte {
	return append([]byte{byte(pk.Algorithm())}, pk.Bytes()...)
}

func unpackPublicKey(raw []byte) (sig.PublicKey, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty public key table entry", ErrFormatInvalidKey)
	}
	return sig.ParsePublicKey(sig.Algorithm(raw[0]), raw[1:])
}

func pbPublicKeyToSig(pk *pb.PublicKey) (sig.PublicKey, error) {
	return sig.ParsePublicKey(sig.Algorithm(pk.Algorithm), pk.Key)
}

func sigToPbPublicKey(pk sig.PublicKey) *pb.PublicKey {
	return &pb.PublicKey{Algorithm: pb.AlgorithmTag(pk.Algorithm()), Key: pk.Bytes()}
}

func blockToProto(b *Block) (*pb.Block, error) {
	facts := make([]*pb.Fact, len(*b.facts))
	for i, f := range *b.facts {
		p, err := predicateToProto(f.Predicate)
		if err != nil {
			return nil, err
		}
		facts[i] = &pb.Fact{Predicate: p}
	}

	rules := make([]*pb.Rule, len(b.rules))
	for i, r := range b.rules {
		pr, err := ruleToProto(r)
		if err != nil {
			return nil, err
		}
		rules[i] = pr
	}

	checks := make([]*pb.Check, len(b.checks))
	for i, c := range b.checks {
		pc, err := checkToProto(c)
		if err != nil {
			return nil, err
		}
		checks[i] = pc
	}

	var pubKeys []*pb.PublicKey
	if b.publicKeys != nil {
		for _, raw := range *b.publicKeys {
			pk, err := unpackPublicKey(raw)
			if err != nil {
				return nil, err
			}
			pubKeys = append(pubKeys, sigToPbPublicKey(pk))
		}
	}

	var extKey *pb.PublicKey
	if b.externalKey != nil {
		extKey = sigToPbPublicKey(b.externalKey)
	}

	return &pb.Block{
		Symbols:     []string(*b.symbols),
		Context:     b.context,
		Version:     b.version,
		Facts:       facts,
		Rules:       rules,
		Checks:      checks,
		PublicKeys:  pubKeys,
		ExternalKey: extKey,
	}, nil
}

func protoToBlock(index uint32, pbBlock *pb.Block) (*Block, error) {
	symbols := datalog.SymbolTable(pbBlock.Symbols)

	facts := make(datalog.FactSet, len(pbBlock.Facts))
	for i, f := range pbBlock.Facts {
		p, err := protoToPredicate(f.Predicate)
		if err != nil {
			return nil, err
		}
		facts[i] = datalog.Fact{Predicate: p, Origin: datalog.NewOrigin(index)}
	}

	rules := make([]datalog.Rule, len(pbBlock.Rules))
	for i, r := range pbBlock.Rules {
		dr, err := protoToRule(r)
		if err != nil {
			return nil, err
		}
		rules[i] = dr
	}

	checks := make([]datalog.Check, len(pbBlock.Checks))
	for i, c := range pbBlock.Checks {
		dc, err := protoToCheck(c)
		if err != nil {
			return nil, err
		}
		checks[i] = dc
	}

	pubKeys := make(datalog.PublicKeyTable, len(pbBlock.PublicKeys))
	for i, pk := range pbBlock.PublicKeys {
		sigPk, err := pbPublicKeyToSig(pk)
		if err != nil {
			return nil, err
		}
		pubKeys[i] = packPublicKey(sigPk)
	}

	var extKey sig.PublicKey
	if pbBlock.ExternalKey != nil {
		k, err := pbPublicKeyToSig(pbBlock.ExternalKey)
		if err != nil {
			return nil, err
		}
		extKey = k
	}

	return &Block{
		index:       index,
		symbols:     &symbols,
		publicKeys:  &pubKeys,
		facts:       &facts,
		rules:       rules,
		checks:      checks,
		context:     pbBlock.Context,
		version:     pbBlock.Version,
		externalKey: extKey,
	}, nil
}
