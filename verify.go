package biscuit

import (
	"fmt"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/pb"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// RootKeyProvider resolves the root public key a token's signature
// chain must be anchored to. It receives the token's optional
// root_key_id (§6), letting a caller serve multiple root keys from
// one verifier.
type RootKeyProvider func(rootKeyID *uint32) (sig.PublicKey, error)

// Parse decodes data and verifies its signature chain against a
// single root public key (§4.C4 "Verify").
func Parse(data []byte, root sig.PublicKey) (*Biscuit, error) {
	return ParseWithRootKeys(data, func(*uint32) (sig.PublicKey, error) { return root, nil })
}

// ParseWithRootKeys decodes data and verifies its signature chain,
// resolving the root public key to check against via provider.
func ParseWithRootKeys(data []byte, provider RootKeyProvider) (*Biscuit, error) {
	container, err := pb.DecodeToken(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFormatDeserializationError, err)
	}
	if container.Authority == nil {
		return nil, fmt.Errorf("%w: missing authority block", ErrFormatDeserializationError)
	}

	rootPk, err := provider(container.RootKeyID)
	if err != nil {
		return nil, err
	}
	if rootPk == nil {
		return nil, ErrFormatUnknownPublicKey
	}

	pbAuthority, err := pb.DecodeBlock(container.Authority.Block)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFormatBlockDeserialization, err)
	}
	authority, err := protoToBlock(0, pbAuthority)
	if err != nil {
		return nil, err
	}
	if authority.version > SchemaVersion {
		return nil, fmt.Errorf("%w: block version %d", ErrFormatVersion, authority.version)
	}

	if container.Authority.NextKey == nil || container.Authority.Signature == nil {
		return nil, ErrFormatSignatureInvalidFormat
	}
	nextKey, err := pbPublicKeyToSig(container.Authority.NextKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFormatInvalidKey, err)
	}
	if err := verifyChainLink(rootPk, container.Authority.Block, nextKey, container.Authority.Signature); err != nil {
		return nil, fmt.Errorf("%w: authority: %s", ErrFormatSignatureInvalidSignature, err)
	}

	symbols := datalog.NewSymbolTable()
	symbols.Extend(authority.symbols)

	publicKeys := new(datalog.PublicKeyTable)
	keyBlocks := map[uint32][]uint32{}
	if authority.publicKeys != nil {
		publicKeys.Extend(authority.publicKeys)
	}

	blocks := make([]*Block, 0, len(container.Blocks))
	prevPk := nextKey

	for i, sb := range container.Blocks {
		blockID := uint32(i + 1)

		pbBlock, err := pb.DecodeBlock(sb.Block)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %s", ErrFormatBlockDeserialization, blockID, err)
		}
		block, err := protoToBlock(blockID, pbBlock)
		if err != nil {
			return nil, err
		}
		if block.version > SchemaVersion {
			return nil, fmt.Errorf("%w: block %d version %d", ErrFormatVersion, blockID, block.version)
		}

		if !symbols.IsDisjoint(block.symbols) {
			return nil, ErrFormatSymbolTableOverlap
		}
		if block.publicKeys != nil && !publicKeys.IsDisjoint(block.publicKeys) {
			return nil, ErrFormatPublicKeyTableOverlap
		}

		if sb.NextKey == nil || sb.Signature == nil {
			return nil, ErrFormatSignatureInvalidFormat
		}
		blockNextKey, err := pbPublicKeyToSig(sb.NextKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFormatInvalidKey, err)
		}
		if err := verifyChainLink(prevPk, sb.Block, blockNextKey, sb.Signature); err != nil {
			return nil, fmt.Errorf("%w: block %d: %s", ErrFormatSignatureInvalidSignature, blockID, err)
		}

		if block.publicKeys != nil {
			publicKeys.Extend(block.publicKeys)
		}

		if sb.ExternalKeyID != nil {
			if block.externalKey == nil {
				return nil, ErrFormatUnknownExternalKey
			}
			if len(sb.ExternalSig) == 0 {
				return nil, ErrFormatSignatureInvalidFormat
			}
			if err := verifyThirdPartyChainLink(block.externalKey, sb.Block, blockNextKey, prevPk, sb.ExternalSig); err != nil {
				return nil, fmt.Errorf("%w: block %d external: %s", ErrFormatSignatureInvalidSignature, blockID, err)
			}
			id := publicKeys.Insert(packPublicKey(block.externalKey))
			if id != *sb.ExternalKeyID {
				return nil, ErrFormatExistingPublicKey
			}
			keyBlocks[id] = append(keyBlocks[id], blockID)
		}

		symbols.Extend(block.symbols)
		blocks = append(blocks, block)
		prevPk = blockNextKey
	}

	b := &Biscuit{
		authority:  authority,
		blocks:     blocks,
		symbols:    symbols,
		publicKeys: publicKeys,
		container:  container,
	}
	b.keyBlocks = keyBlocks

	if container.Proof == nil {
		return nil, ErrFormatSignatureInvalidFormat
	}
	switch {
	case len(container.Proof.FinalSignature) > 0:
		if err := verifySeal(prevPk, lastChainSignatureOf(container), container.Proof.FinalSignature); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFormatSealedSignature, err)
		}
		b.sealed = true
	case len(container.Proof.NextSecret) > 0:
		kp, err := unmarshalSecret(prevPk.Algorithm(), container.Proof.NextSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFormatPKCS8, err)
		}
		if !kp.Public().Equal(prevPk) {
			return nil, ErrFormatInvalidKey
		}
		b.nextSecret = kp
	default:
		return nil, ErrFormatEmptyKeys
	}

	return b, nil
}

func lastChainSignatureOf(container *pb.Token) []byte {
	if len(container.Blocks) == 0 {
		return container.Authority.Signature
	}
	return container.Blocks[len(container.Blocks)-1].Signature
}
