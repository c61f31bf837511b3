package types

import (
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Verify checks the intent's signature and expiry. Replay protection
// (the nonce-watermark check) is stateful and lives in
// keeper.Keeper.CheckAndRecordNonce instead, since it requires a store.
func Verify(in Intent, now time.Time) error {
	if in.Expired(now) {
		return ErrIntentExpired
	}

	pubKey := secp256k1.PubKey{Key: in.PublicKey}
	hash := CanonicalHash(in)
	if !pubKey.VerifySignature(hash[:], in.Signature) {
		return ErrInvalidSignature
	}

	derived := sdk.AccAddress(pubKey.Address())
	if derived.String() != in.User {
		return ErrAddressMismatch
	}

	return nil
}
