// Package signer loads the single operator signing identity
// cmd/intentd broadcasts bank, IBC transfer, and CosmWasm execute
// transactions as.
package signer

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// coinType is the standard Cosmos BIP-44 coin type.
const coinType = 118

// Identity is the signing key a txBroadcaster submits transactions
// under: the keyring holding it, the key's name, and its address.
type Identity struct {
	Keyring keyring.Keyring
	KeyName string
	Address sdk.AccAddress
}

// FromMnemonic imports mnemonic into a fresh in-memory keyring under
// keyName and returns the derived signing identity. The keyring never
// touches disk: cmd/intentd receives the mnemonic from its own
// configuration (an operator-supplied secret), not from a persisted
// keystore.
func FromMnemonic(mnemonic, keyName string) (Identity, error) {
	interfaceRegistry := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(interfaceRegistry)
	cdc := codec.NewProtoCodec(interfaceRegistry)
	kr := keyring.NewInMemory(cdc)

	keyInfo, err := kr.NewAccount(
		keyName,
		mnemonic,
		"",
		hd.CreateHDPath(coinType, 0, 0).String(),
		hd.Secp256k1,
	)
	if err != nil {
		return Identity{}, fmt.Errorf("import signing mnemonic: %w", err)
	}

	addr, err := keyInfo.GetAddress()
	if err != nil {
		return Identity{}, fmt.Errorf("derive signing address: %w", err)
	}

	return Identity{Keyring: kr, KeyName: keyName, Address: addr}, nil
}
