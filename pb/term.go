// Package pb is the binary wire codec for biscuit tokens and blocks.
// It is hand-written on top of protowire's low-level primitives
// rather than a protoc-generated message: this exercise has no protoc
// available to regenerate descriptor-backed types, so the schema in
// §4.C2/§6 of the specification is implemented directly against
// google.golang.org/protobuf/encoding/protowire. Field tags, nesting
// and the "no unknown fields, deterministic ordering" requirement are
// all implemented by hand below; see DESIGN.md for the rationale.
package pb

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the Term oneof, fixed so every implementation of
// this wire format agrees on them.
const (
	termFieldSymbol   protowire.Number = 1
	termFieldVariable protowire.Number = 2
	termFieldInteger  protowire.Number = 3
	termFieldString   protowire.Number = 4
	termFieldDate     protowire.Number = 5
	termFieldBytes    protowire.Number = 6
	termFieldBool     protowire.Number = 7
	termFieldSet      protowire.Number = 8
	termFieldNull     protowire.Number = 9
	termFieldArray    protowire.Number = 10
	termFieldMap      protowire.Number = 11
)

// MapKey is the wire representation of a Map key: either an integer
// or a string, per §3.
type MapKey struct {
	IsString bool
	Int      int64
	Str      string
}

// MapEntry is one key/value pair of a wire Map term.
type MapEntry struct {
	Key   MapKey
	Value *Term
}

// Term is the wire-level tagged union mirroring datalog.Term. Exactly
// one field is set, matching the Term oneof described in §3/§6.
type Term struct {
	Symbol   *uint64
	Variable *uint32
	Integer  *int64
	Str      *string
	Date     *uint64
	Bytes    []byte
	Bool     *bool
	Set      []*Term
	Null     bool
	Array    []*Term
	Map      []*MapEntry
}

// EncodeTerm serializes t deterministically: sets are sorted in
// ascending byte order of their encoded elements, map entries in
// ascending order by key, matching §4.C2's canonical serialization
// rule ("sets and maps in ascending key order").
func EncodeTerm(t *Term) []byte {
	var b []byte
	switch {
	case t.Symbol != nil:
		b = protowire.AppendTag(b, termFieldSymbol, protowire.VarintType)
		b = protowire.AppendVarint(b, *t.Symbol)
	case t.Variable != nil:
		b = protowire.AppendTag(b, termFieldVariable, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*t.Variable))
	case t.Integer != nil:
		b = protowire.AppendTag(b, termFieldInteger, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(*t.Integer))
	case t.Str != nil:
		b = protowire.AppendTag(b, termFieldString, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*t.Str))
	case t.Date != nil:
		b = protowire.AppendTag(b, termFieldDate, protowire.VarintType)
		b = protowire.AppendVarint(b, *t.Date)
	case t.Bytes != nil:
		b = protowire.AppendTag(b, termFieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Bytes)
	case t.Bool != nil:
		b = protowire.AppendTag(b, termFieldBool, protowire.VarintType)
		v := uint64(0)
		if *t.Bool {
			v = 1
		}
		b = protowire.AppendVarint(b, v)
	case t.Set != nil:
		b = protowire.AppendTag(b, termFieldSet, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTermSet(t.Set))
	case t.Null:
		b = protowire.AppendTag(b, termFieldNull, protowire.VarintType)
		b = protowire.AppendVarint(b, 0)
	case t.Array != nil:
		b = protowire.AppendTag(b, termFieldArray, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTermArray(t.Array))
	case t.Map != nil:
		b = protowire.AppendTag(b, termFieldMap, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTermMap(t.Map))
	}
	return b
}

func encodeTermArray(terms []*Term) []byte {
	var b []byte
	for _, t := range terms {
		enc := EncodeTerm(t)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, enc)
	}
	return b
}

func encodeTermSet(terms []*Term) []byte {
	encoded := make([][]byte, len(terms))
	for i, t := range terms {
		encoded[i] = EncodeTerm(t)
	}
	sort.Slice(encoded, func(i, j int) bool {
		return string(encoded[i]) < string(encoded[j])
	})

	var b []byte
	for _, enc := range encoded {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, enc)
	}
	return b
}

func encodeMapKey(k MapKey) []byte {
	var b []byte
	if k.IsString {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(k.Str))
	} else {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(k.Int))
	}
	return b
}

func encodeTermMap(entries []*MapEntry) []byte {
	sorted := make([]*MapEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := sorted[i].Key, sorted[j].Key
		if ki.IsString != kj.IsString {
			return !ki.IsString
		}
		if ki.IsString {
			return ki.Str < kj.Str
		}
		return ki.Int < kj.Int
	})

	var b []byte
	for _, e := range sorted {
		entry := protowire.AppendTag(nil, 1, protowire.BytesType)
		entry = protowire.AppendBytes(entry, encodeMapKey(e.Key))
		valBytes := EncodeTerm(e.Value)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, valBytes)

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

// DecodeTerm parses a single wire-encoded Term message.
func DecodeTerm(data []byte) (*Term, error) {
	t := &Term{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid term tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case termFieldSymbol:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Symbol = &v
		case termFieldVariable:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			vv := uint32(v)
			t.Variable = &vv
		case termFieldInteger:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			iv := protowire.DecodeZigZag(v)
			t.Integer = &iv
		case termFieldString:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			s := string(v)
			t.Str = &s
		case termFieldDate:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Date = &v
		case termFieldBytes:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Bytes = append([]byte{}, v...)
		case termFieldBool:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			bv := v != 0
			t.Bool = &bv
		case termFieldSet:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			set, err := decodeTermList(v)
			if err != nil {
				return nil, err
			}
			t.Set = set
		case termFieldNull:
			_, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Null = true
		case termFieldArray:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			arr, err := decodeTermList(v)
			if err != nil {
				return nil, err
			}
			t.Array = arr
		case termFieldMap:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			m, err := decodeTermMap(v)
			if err != nil {
				return nil, err
			}
			t.Map = m
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid term field %d", num)
			}
			data = data[n:]
		}
	}
	return t, nil
}

func decodeTermList(data []byte) ([]*Term, error) {
	var out []*Term
	for len(data) > 0 {
		_, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid list tag")
		}
		data = data[n:]
		v, n, err := consumeBytes(data, typ)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		t, err := DecodeTerm(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTermMap(data []byte) ([]*MapEntry, error) {
	var out []*MapEntry
	for len(data) > 0 {
		_, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid map tag")
		}
		data = data[n:]
		entryBytes, n, err := consumeBytes(data, typ)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		entry := &MapEntry{}
		eb := entryBytes
		for len(eb) > 0 {
			num, typ, n := protowire.ConsumeTag(eb)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid map entry tag")
			}
			eb = eb[n:]
			switch num {
			case 1:
				kb, n, err := consumeBytes(eb, typ)
				if err != nil {
					return nil, err
				}
				eb = eb[n:]
				k, err := decodeMapKey(kb)
				if err != nil {
					return nil, err
				}
				entry.Key = k
			case 2:
				vb, n, err := consumeBytes(eb, typ)
				if err != nil {
					return nil, err
				}
				eb = eb[n:]
				val, err := DecodeTerm(vb)
				if err != nil {
					return nil, err
				}
				entry.Value = val
			default:
				n := protowire.ConsumeFieldValue(num, typ, eb)
				if n < 0 {
					return nil, fmt.Errorf("pb: invalid map entry field")
				}
				eb = eb[n:]
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeMapKey(data []byte) (MapKey, error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return MapKey{}, fmt.Errorf("pb: invalid map key tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return MapKey{}, err
			}
			data = data[n:]
			return MapKey{Int: protowire.DecodeZigZag(v)}, nil
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return MapKey{}, err
			}
			data = data[n:]
			return MapKey{IsString: true, Str: string(v)}, nil
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return MapKey{}, fmt.Errorf("pb: invalid map key field")
			}
			data = data[n:]
		}
	}
	return MapKey{}, fmt.Errorf("pb: empty map key")
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("pb: expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, fmt.Errorf("pb: invalid varint: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(data []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("pb: expected bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("pb: invalid bytes: %w", protowire.ParseError(n))
	}
	return v, n, nil
}
