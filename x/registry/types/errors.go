package types

import errorsmod "cosmossdk.io/errors"

const ModuleName = "registry"

var (
	ErrChannelNotFound         = errorsmod.Register(ModuleName, 2, "no registered channel between chains")
	ErrNoRouteFound            = errorsmod.Register(ModuleName, 3, "no route to destination chain")
	ErrSolverNotFound          = errorsmod.Register(ModuleName, 4, "solver not registered")
	ErrSolverAlreadyExists     = errorsmod.Register(ModuleName, 5, "solver already registered")
	ErrInsufficientBond        = errorsmod.Register(ModuleName, 6, "bond below required minimum")
	ErrBondRatioBelowThreshold = errorsmod.Register(ModuleName, 7, "solver bond/exposure ratio below threshold")
)
