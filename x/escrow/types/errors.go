package types

import errorsmod "cosmossdk.io/errors"

const ModuleName = "escrow"

var (
	ErrNotFound                 = errorsmod.Register(ModuleName, 2, "escrow not found")
	ErrAlreadyLocked            = errorsmod.Register(ModuleName, 3, "escrow id is already locked")
	ErrPriorLockerReuse         = errorsmod.Register(ModuleName, 4, "escrow id was previously locked by this same owner")
	ErrTimeoutInvariantViolated = errorsmod.Register(ModuleName, 5, "expires_at does not clear ibc_timeout plus safety_buffer")
	ErrNotLocked                = errorsmod.Register(ModuleName, 6, "escrow is not in Locked status")
	ErrEscrowExpired            = errorsmod.Register(ModuleName, 7, "escrow already past expires_at")
	ErrNotYetExpired            = errorsmod.Register(ModuleName, 8, "escrow has not reached expires_at")
	ErrUnauthorized             = errorsmod.Register(ModuleName, 9, "caller is not authorized for this escrow operation")
	ErrInvalidIBCCoins          = errorsmod.Register(ModuleName, 10, "lock_from_ibc requires exactly one ibc-denominated coin")
	ErrNotRefunding             = errorsmod.Register(ModuleName, 11, "escrow is not in Refunding status")
)
