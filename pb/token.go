package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// AlgorithmTag mirrors sig.Algorithm on the wire: a 4-byte
// little-endian tag per §6 ("algo_tag is a 4-byte little-endian
// integer"). We encode it as a protobuf varint field instead of a
// raw little-endian int32 — still a 4-byte-range integer value, just
// carried the way every other scalar in this codec is, rather than
// switching wire conventions for one field.
type AlgorithmTag uint32

const (
	AlgorithmEd25519   AlgorithmTag = 0
	AlgorithmSecp256r1 AlgorithmTag = 1
)

// PublicKey is a wire public key: algorithm tag plus raw key bytes.
type PublicKey struct {
	Algorithm AlgorithmTag
	Key       []byte
}

func encodePublicKey(pk *PublicKey) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(pk.Algorithm))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, pk.Key)
	return b
}

func decodePublicKey(data []byte) (*PublicKey, error) {
	pk := &PublicKey{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid public key tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pk.Algorithm = AlgorithmTag(v)
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pk.Key = append([]byte{}, v...)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid public key field")
			}
			data = data[n:]
		}
	}
	return pk, nil
}

// SignedBlock is one entry of Token.Blocks: the raw encoded block
// bytes, the published next public key, the signature over
// block||algo_tag(next_pk)||next_pk, and optionally a third-party
// external signature/public key (§4.C4).
type SignedBlock struct {
	Block         []byte
	NextKey       *PublicKey
	Signature     []byte
	ExternalSig   []byte
	ExternalKeyID *uint32 // index into the token-wide public-key table
}

func encodeSignedBlock(sb *SignedBlock) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, sb.Block)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, encodePublicKey(sb.NextKey))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, sb.Signature)
	if len(sb.ExternalSig) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, sb.ExternalSig)
	}
	if sb.ExternalKeyID != nil {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*sb.ExternalKeyID))
	}
	return b
}

func decodeSignedBlock(data []byte) (*SignedBlock, error) {
	sb := &SignedBlock{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid signed block tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			sb.Block = append([]byte{}, v...)
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			pk, err := decodePublicKey(v)
			if err != nil {
				return nil, err
			}
			sb.NextKey = pk
		case 3:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			sb.Signature = append([]byte{}, v...)
		case 4:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			sb.ExternalSig = append([]byte{}, v...)
		case 5:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			id := uint32(v)
			sb.ExternalKeyID = &id
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid signed block field")
			}
			data = data[n:]
		}
	}
	return sb, nil
}

// Proof is exactly one of NextSecret (the private key of an unsealed
// token's last next-key, letting the holder append further blocks)
// or FinalSignature (a seal signature, per §4.C4).
type Proof struct {
	NextSecret     []byte
	FinalSignature []byte
}

// Token is the top-level wire container described in §6: the
// authority block, the appended block chain, the proof, and an
// optional root key id.
type Token struct {
	Authority *SignedBlock
	Blocks    []*SignedBlock
	Proof     *Proof
	RootKeyID *uint32
}

func EncodeToken(t *Token) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeSignedBlock(t.Authority))
	for _, sb := range t.Blocks {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSignedBlock(sb))
	}
	if len(t.Proof.NextSecret) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Proof.NextSecret)
	} else {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Proof.FinalSignature)
	}
	if t.RootKeyID != nil {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*t.RootKeyID))
	}
	return b
}

func DecodeToken(data []byte) (*Token, error) {
	t := &Token{Proof: &Proof{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pb: invalid token tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			sb, err := decodeSignedBlock(v)
			if err != nil {
				return nil, err
			}
			t.Authority = sb
		case 2:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			sb, err := decodeSignedBlock(v)
			if err != nil {
				return nil, err
			}
			t.Blocks = append(t.Blocks, sb)
		case 3:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Proof.NextSecret = append([]byte{}, v...)
		case 4:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			t.Proof.FinalSignature = append([]byte{}, v...)
		case 5:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			id := uint32(v)
			t.RootKeyID = &id
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pb: invalid token field")
			}
			data = data[n:]
		}
	}
	if t.Authority == nil {
		return nil, fmt.Errorf("pb: token missing authority block")
	}
	return t, nil
}
