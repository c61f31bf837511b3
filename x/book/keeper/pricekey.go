package keeper

import (
	"strings"

	sdkmath "cosmossdk.io/math"
)

// priceKeyWidth bounds the zero-padded decimal key so that lexicographic
// string order matches numeric order for every price this engine will
// ever see (LegacyDec's 18 fractional digits plus headroom for the
// integer part).
const priceKeyWidth = 40

// priceKey renders a non-negative decimal price as a fixed-width,
// zero-padded string so it can be used as a deterministicmap.Map key,
// giving each price exactly one level entry. The map iterates in
// insertion order, not key order, so matching sorts the levels by
// price itself (sortedLevels).
func priceKey(price sdkmath.LegacyDec) string {
	s := price.BigInt().String()
	if len(s) < priceKeyWidth {
		s = strings.Repeat("0", priceKeyWidth-len(s)) + s
	}
	return s
}
