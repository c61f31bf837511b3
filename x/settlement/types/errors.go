package types

import errorsmod "cosmossdk.io/errors"

const ModuleName = "settlement"

var (
	ErrNotFound               = errorsmod.Register(ModuleName, 2, "settlement not found")
	ErrInvalidStateTransition = errorsmod.Register(ModuleName, 3, "invalid settlement state transition")
	ErrUnauthorized           = errorsmod.Register(ModuleName, 4, "caller is not authorized for this transition")
	ErrAlreadyExists          = errorsmod.Register(ModuleName, 5, "settlement id already exists")
)
