package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is used for error registration and storage key prefixes.
const ModuleName = "intent"

var (
	ErrInvalidSignature  = errorsmod.Register(ModuleName, 2, "invalid signature")
	ErrAddressMismatch   = errorsmod.Register(ModuleName, 3, "public key does not derive claimed user address")
	ErrIntentExpired     = errorsmod.Register(ModuleName, 4, "intent expired")
	ErrNonceAlreadyUsed  = errorsmod.Register(ModuleName, 5, "nonce already used")
	ErrMalformedIntent   = errorsmod.Register(ModuleName, 6, "malformed intent")
)
