package biscuit

import "errors"

// Format errors: wire/crypto failures detected while parsing,
// verifying or constructing a token (§7 "Wire/format").
var (
	ErrFormatSignatureInvalidFormat    = errors.New("biscuit: format: invalid signature format")
	ErrFormatSignatureInvalidSignature = errors.New("biscuit: format: invalid signature")
	ErrFormatSealedSignature           = errors.New("biscuit: format: invalid seal signature")
	ErrFormatEmptyKeys                 = errors.New("biscuit: format: empty keys")
	ErrFormatUnknownPublicKey          = errors.New("biscuit: format: unknown public key")
	ErrFormatDeserializationError      = errors.New("biscuit: format: deserialization error")
	ErrFormatSerializationError        = errors.New("biscuit: format: serialization error")
	ErrFormatBlockDeserialization      = errors.New("biscuit: format: block deserialization error")
	ErrFormatBlockSerialization        = errors.New("biscuit: format: block serialization error")
	ErrFormatVersion                   = errors.New("biscuit: format: unsupported version")
	ErrFormatInvalidBlockID            = errors.New("biscuit: format: invalid block id")
	ErrFormatExistingPublicKey         = errors.New("biscuit: format: public key already exists")
	ErrFormatSymbolTableOverlap        = errors.New("biscuit: format: symbol table overlap")
	ErrFormatPublicKeyTableOverlap     = errors.New("biscuit: format: public key table overlap")
	ErrFormatUnknownExternalKey        = errors.New("biscuit: format: unknown external key")
	ErrFormatUnknownSymbol             = errors.New("biscuit: format: unknown symbol")
	ErrFormatInvalidKeySize            = errors.New("biscuit: format: invalid key size")
	ErrFormatInvalidSignatureSize      = errors.New("biscuit: format: invalid signature size")
	ErrFormatInvalidKey                = errors.New("biscuit: format: invalid key")
	ErrFormatPKCS8                     = errors.New("biscuit: format: invalid pkcs8 encoding")
)

// Lifecycle errors (§7 "Lifecycle").
var (
	ErrAppendOnSealed = errors.New("biscuit: append failed: token is sealed")
	ErrAlreadySealed  = errors.New("biscuit: already sealed")
)

// Evaluation-limit errors (§7 "Evaluation limits"). The authorizer
// translates datalog's run-limit errors into these, so callers never
// need to import that package just to compare errors.
var (
	ErrTooManyFacts      = errors.New("biscuit: too many facts")
	ErrTooManyIterations = errors.New("biscuit: too many iterations")
	ErrTimeout           = errors.New("biscuit: timeout")
)

// Semantic errors (§7 "Semantic").
var (
	ErrLogicInvalidBlockRule = errors.New("biscuit: invalid block rule: forges facts for an untrusted origin")
	ErrLogicUnauthorized     = errors.New("biscuit: unauthorized: one or more checks failed")
	ErrLogicNoMatchingPolicy = errors.New("biscuit: no policy matched")
	ErrLogicAuthorizerNotEmpty = errors.New("biscuit: authorizer already evaluated")
)

// Caller-input and misc errors.
var (
	ErrInvalidArgument     = errors.New("biscuit: invalid argument")
	ErrLanguageError       = errors.New("biscuit: language error")
	ErrConversionError     = errors.New("biscuit: conversion error")
	ErrExecution           = errors.New("biscuit: execution error")
	ErrUnexpectedQueryResult = errors.New("biscuit: unexpected query result")
	ErrInternalError       = errors.New("biscuit: internal error")
	ErrFactNotFound        = errors.New("biscuit: fact not found")
	ErrDuplicateFact       = errors.New("biscuit: fact already exists")
	ErrInvalidBlockIndex   = errors.New("biscuit: invalid block index")
)
