package coordinator

import errorsmod "cosmossdk.io/errors"

const ModuleName = "coordinator"

var (
	ErrPhase1aFailed      = errorsmod.Register(ModuleName, 2, "phase 1a (lock user input) failed")
	ErrPhase1bFailed      = errorsmod.Register(ModuleName, 3, "phase 1b (lock solver output) failed")
	ErrCompensationFailed = errorsmod.Register(ModuleName, 4, "phase 1b compensation (escrow refund) failed")
	ErrPhase2aFailed      = errorsmod.Register(ModuleName, 5, "phase 2a (dispatch ibc transfer) failed")
	ErrUnknownSettlement  = errorsmod.Register(ModuleName, 6, "settlement not tracked by this coordinator")
)
