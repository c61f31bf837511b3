package types

import errorsmod "cosmossdk.io/errors"

const ModuleName = "auction"

var (
	ErrIntentExpired        = errorsmod.Register(ModuleName, 2, "intent expired before the auction ran")
	ErrLimitPriceViolated   = errorsmod.Register(ModuleName, 3, "clearing price would violate an intent's limit price")
	ErrTooManyQuotes        = errorsmod.Register(ModuleName, 4, "more solver quotes than MAX_QUOTES_PER_AUCTION")
	ErrOracleUnavailable    = errorsmod.Register(ModuleName, 5, "oracle price required by policy was unavailable")
	ErrPriceOutsideOracleBand = errorsmod.Register(ModuleName, 6, "clearing price deviates from the oracle band")
	ErrNoViableFills        = errorsmod.Register(ModuleName, 7, "no intents or quotes could be matched")
)
