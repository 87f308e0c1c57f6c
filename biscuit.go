package biscuit

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dalek-auth/biscuit/v2/datalog"
	"github.com/dalek-auth/biscuit/v2/pb"
	"github.com/dalek-auth/biscuit/v2/sig"
)

// Biscuit is a validated, in-memory view of a token: the authority
// block, every appended block, the symbol/public-key tables
// accumulated across them, and the wire container those blocks were
// read from or will be serialized to (§3 "Biscuit").
type Biscuit struct {
	authority  *Block
	blocks     []*Block
	symbols    *datalog.SymbolTable
	publicKeys *datalog.PublicKeyTable

	// keyBlocks maps a public-key-table index to the block id(s)
	// signed by that key, resolving `trusting <public_key>` scopes
	// (§4.C7) to concrete block origins.
	keyBlocks map[uint32][]uint32

	// nextSecret is the keypair committed as the chain's next key,
	// kept so a further block can be appended. nil once sealed.
	nextSecret sig.Keypair
	sealed     bool

	container *pb.Token
}

func readSeed(rng io.Reader) ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rng, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// New mints a token from an authority block, signed by root. The
// block it is given becomes block 0; a fresh keypair is generated and
// committed as the chain's next key, per §4.C4.
func New(rng io.Reader, root sig.Keypair, authority *Block, opts ...Option) (*Biscuit, error) {
	cfg := newConfig(opts...)
	if rng != nil {
		cfg.rng = rng
	}

	if authority.index != 0 {
		return nil, fmt.Errorf("%w: authority block must have index 0", ErrFormatInvalidBlockID)
	}

	symbols := datalog.NewSymbolTable()
	symbols.Extend(authority.symbols)

	publicKeys := new(datalog.PublicKeyTable)
	if authority.publicKeys != nil {
		publicKeys.Extend(authority.publicKeys)
	}

	pbAuthority, err := blockToProto(authority)
	if err != nil {
		return nil, err
	}
	blockBytes := pb.EncodeBlock(pbAuthority)

	seed, err := readSeed(cfg.rng)
	if err != nil {
		return nil, err
	}
	nextKp, err := sig.GenerateKeypair(cfg.nextKeyAlgo, seed)
	if err != nil {
		return nil, err
	}

	signature, err := signChainLink(cfg.rng, root, blockBytes, nextKp.Public())
	if err != nil {
		return nil, err
	}

	nextSecretDER, err := marshalSecret(nextKp)
	if err != nil {
		return nil, err
	}

	container := &pb.Token{
		Authority: &pb.SignedBlock{
			Block:     blockBytes,
			NextKey:   sigToPbPublicKey(nextKp.Public()),
			Signature: signature,
		},
		Proof:     &pb.Proof{NextSecret: nextSecretDER},
		RootKeyID: cfg.rootKeyID,
	}

	return &Biscuit{
		authority:  authority,
		symbols:    symbols,
		publicKeys: publicKeys,
		keyBlocks:  map[uint32][]uint32{},
		nextSecret: nextKp,
		container:  container,
	}, nil
}

// CreateBlock returns a builder for the next block, continuing symbol
// interning from the token's running table.
func (b *Biscuit) CreateBlock() BlockBuilder {
	return NewBlockBuilder(uint32(len(b.blocks)+1), b.symbols)
}

// Append signs block with the chain's current next-key and returns a
// new Biscuit carrying it; the receiver is left untouched.
func (b *Biscuit) Append(block *Block, opts ...Option) (*Biscuit, error) {
	return b.appendBlock(block, nil, opts...)
}

// AppendThirdParty appends block the same way Append does, and in
// addition co-signs it with externalKey, interning externalKey into
// the public-key table so rules elsewhere can read `trusting
// <that key>` (§4.C4 "third-party block").
func (b *Biscuit) AppendThirdParty(block *Block, externalKey sig.Keypair, opts ...Option) (*Biscuit, error) {
	return b.appendBlock(block, externalKey, opts...)
}

func (b *Biscuit) appendBlock(block *Block, externalKey sig.Keypair, opts ...Option) (*Biscuit, error) {
	if b.sealed {
		return nil, ErrAppendOnSealed
	}
	if int(block.index) != len(b.blocks)+1 {
		return nil, ErrInvalidBlockIndex
	}
	if !b.symbols.IsDisjoint(block.symbols) {
		return nil, ErrFormatSymbolTableOverlap
	}
	if block.publicKeys != nil && !b.publicKeys.IsDisjoint(block.publicKeys) {
		return nil, ErrFormatPublicKeyTableOverlap
	}

	cfg := newConfig(opts...)

	prevPublic := b.nextSecret.Public()

	if externalKey != nil {
		block.externalKey = externalKey.Public()
	}

	pbBlock, err := blockToProto(block)
	if err != nil {
		return nil, err
	}
	blockBytes := pb.EncodeBlock(pbBlock)

	seed, err := readSeed(cfg.rng)
	if err != nil {
		return nil, err
	}
	newNextKp, err := sig.GenerateKeypair(cfg.nextKeyAlgo, seed)
	if err != nil {
		return nil, err
	}

	signature, err := signChainLink(cfg.rng, b.nextSecret, blockBytes, newNextKp.Public())
	if err != nil {
		return nil, err
	}

	var externalSig []byte
	var externalKeyID *uint32
	publicKeys := b.publicKeys.Clone()
	keyBlocks := make(map[uint32][]uint32, len(b.keyBlocks))
	for k, v := range b.keyBlocks {
		keyBlocks[k] = append([]uint32{}, v...)
	}
	if block.publicKeys != nil {
		publicKeys.Extend(block.publicKeys)
	}
	if externalKey != nil {
		sigBytes, err := signThirdPartyChainLink(cfg.rng, externalKey, blockBytes, newNextKp.Public(), prevPublic)
		if err != nil {
			return nil, err
		}
		externalSig = sigBytes
		id := publicKeys.Insert(packPublicKey(externalKey.Public()))
		externalKeyID = &id
		keyBlocks[id] = append(keyBlocks[id], block.index)
	}

	nextSecretDER, err := marshalSecret(newNextKp)
	if err != nil {
		return nil, err
	}

	blocks := make([]*Block, len(b.blocks)+1)
	copy(blocks, b.blocks)
	blocks[len(b.blocks)] = block

	symbols := b.symbols.Clone()
	symbols.Extend(block.symbols)

	container := &pb.Token{
		Authority: b.container.Authority,
		Blocks:    append(append([]*pb.SignedBlock{}, b.container.Blocks...), &pb.SignedBlock{
			Block:         blockBytes,
			NextKey:       sigToPbPublicKey(newNextKp.Public()),
			Signature:     signature,
			ExternalSig:   externalSig,
			ExternalKeyID: externalKeyID,
		}),
		Proof:     &pb.Proof{NextSecret: nextSecretDER},
		RootKeyID: b.container.RootKeyID,
	}

	return &Biscuit{
		authority:  b.authority,
		blocks:     blocks,
		symbols:    symbols,
		publicKeys: publicKeys,
		keyBlocks:  keyBlocks,
		nextSecret: newNextKp,
		container:  container,
	}, nil
}

// lastChainSignature returns the signature bytes of the most recently
// appended link (the authority block's, if no blocks were appended).
func (b *Biscuit) lastChainSignature() []byte {
	if len(b.container.Blocks) == 0 {
		return b.container.Authority.Signature
	}
	return b.container.Blocks[len(b.container.Blocks)-1].Signature
}

// Seal replaces the token's proof with a seal signature, permanently
// forbidding further Append calls (§4.C4 "Seal").
func (b *Biscuit) Seal(opts ...Option) (*Biscuit, error) {
	if b.sealed {
		return nil, ErrAlreadySealed
	}
	cfg := newConfig(opts...)

	sealSig, err := signSeal(cfg.rng, b.nextSecret, b.lastChainSignature())
	if err != nil {
		return nil, err
	}

	container := &pb.Token{
		Authority: b.container.Authority,
		Blocks:    b.container.Blocks,
		Proof:     &pb.Proof{FinalSignature: sealSig},
		RootKeyID: b.container.RootKeyID,
	}

	return &Biscuit{
		authority:  b.authority,
		blocks:     b.blocks,
		symbols:    b.symbols,
		publicKeys: b.publicKeys,
		keyBlocks:  b.keyBlocks,
		sealed:     true,
		container:  container,
	}, nil
}

// Sealed reports whether the token's proof is a seal signature.
func (b *Biscuit) Sealed() bool { return b.sealed }

// Serialize encodes the token to its binary wire form.
func (b *Biscuit) Serialize() ([]byte, error) {
	return pb.EncodeToken(b.container), nil
}

// Checks returns every check in the token, indexed by block (0 is the
// authority block).
func (b *Biscuit) Checks() [][]datalog.Check {
	result := make([][]datalog.Check, 0, len(b.blocks)+1)
	result = append(result, b.authority.checks)
	for _, block := range b.blocks {
		result = append(result, block.checks)
	}
	return result
}

// GetBlockID returns the index of the first block (authority first,
// then appended blocks in order) containing fact.
func (b *Biscuit) GetBlockID(fact Fact) (int, error) {
	symbols := b.symbols.Clone()
	datalogFact := fact.convert(symbols, 0)

	for _, f := range *b.authority.facts {
		if f.Predicate.Equal(datalogFact.Predicate) {
			return 0, nil
		}
	}
	for i, block := range b.blocks {
		for _, f := range *block.facts {
			if f.Predicate.Equal(datalogFact.Predicate) {
				return i + 1, nil
			}
		}
	}
	return 0, ErrFactNotFound
}

// SHA256Sum hashes the authority block's raw bytes and next key, then
// the raw bytes and next key of each of the first count appended
// blocks, giving callers a stable fingerprint of a token prefix.
func (b *Biscuit) SHA256Sum(count int) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidArgument, count)
	}
	if count > len(b.container.Blocks) {
		return nil, fmt.Errorf("%w: count %d exceeds %d blocks", ErrInvalidArgument, count, len(b.container.Blocks))
	}

	h := sha256.New()
	h.Write(b.container.Authority.Block)
	h.Write(b.container.Authority.NextKey.Key)
	for _, block := range b.container.Blocks[:count] {
		h.Write(block.Block)
		h.Write(block.NextKey.Key)
	}
	return h.Sum(nil), nil
}

// BlockCount returns the number of appended (non-authority) blocks.
func (b *Biscuit) BlockCount() int { return len(b.blocks) }

func (b *Biscuit) String() string {
	blocks := make([]string, len(b.blocks))
	for i, block := range b.blocks {
		blocks[i] = block.String(b.symbols)
	}
	return fmt.Sprintf(`Biscuit {
	symbols: %+q
	authority: %s
	blocks: %v
}`, []string(*b.symbols), b.authority.String(b.symbols), blocks)
}

// PrintBlockSource returns block i (0 is authority) as Block.String
// renders it: a labelled debug summary listing the block's facts,
// rules and checks in Datalog notation alongside its context and
// version. The result is not block source the parser can read back.
func (b *Biscuit) PrintBlockSource(i int) (string, error) {
	if i == 0 {
		return b.authority.String(b.symbols), nil
	}
	if i-1 >= len(b.blocks) || i < 0 {
		return "", fmt.Errorf("%w: block %d", ErrInvalidBlockIndex, i)
	}
	return b.blocks[i-1].String(b.symbols), nil
}
