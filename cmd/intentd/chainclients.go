package main

import (
	"context"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"

	"github.com/tokenize-x/intent-swap-core/pkg/coordinator"
	escrowtypes "github.com/tokenize-x/intent-swap-core/x/escrow/types"
	settlementtypes "github.com/tokenize-x/intent-swap-core/x/settlement/types"
)

var (
	_ escrowtypes.BankKeeper         = bankBroadcastKeeper{}
	_ escrowtypes.TransferKeeper     = transferBroadcastKeeper{}
	_ settlementtypes.TransferKeeper = transferBroadcastKeeper{}
	_ coordinator.WasmExecutor       = wasmBroadcastExecutor{}
)

// bankBroadcastKeeper satisfies x/escrow's BankKeeper by broadcasting
// an ordinary signed bank.MsgSend rather than calling an in-process
// x/bank keeper. It assumes the escrow module's custodied funds sit
// behind the single signing identity this process holds: senderModule
// is accepted for interface symmetry with a real module-account
// keeper but otherwise unused, and fromAddr on a direct SendCoins call
// is expected to be that same custody address, since this process can
// only sign as the one identity it was configured with.
type bankBroadcastKeeper struct {
	bc *txBroadcaster
}

func (k bankBroadcastKeeper) SendCoinsFromModuleToAccount(ctx context.Context, _ string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	_, err := k.bc.broadcast(ctx, &banktypes.MsgSend{
		FromAddress: k.bc.clientCtx.FromAddress.String(),
		ToAddress:   recipientAddr.String(),
		Amount:      amt,
	})
	return err
}

func (k bankBroadcastKeeper) SendCoins(ctx context.Context, fromAddr, toAddr sdk.AccAddress, amt sdk.Coins) error {
	_, err := k.bc.broadcast(ctx, &banktypes.MsgSend{
		FromAddress: fromAddr.String(),
		ToAddress:   toAddr.String(),
		Amount:      amt,
	})
	return err
}

// transferBroadcastKeeper satisfies both escrow's and settlement's
// narrower TransferKeeper interfaces by broadcasting the real
// MsgTransfer and recovering the dispatched packet's sequence number
// from the broadcast result's send_packet event, since a remote
// broadcast never returns a populated MsgTransferResponse the way an
// in-process channel keeper call would.
type transferBroadcastKeeper struct {
	bc *txBroadcaster
}

func (k transferBroadcastKeeper) Transfer(ctx context.Context, msg *transfertypes.MsgTransfer) (*transfertypes.MsgTransferResponse, error) {
	res, err := k.bc.broadcast(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &transfertypes.MsgTransferResponse{Sequence: packetSequenceFromEvents(res.Events)}, nil
}

func packetSequenceFromEvents(events []abci.Event) uint64 {
	for _, ev := range events {
		if ev.Type != "send_packet" {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key != "packet_sequence" {
				continue
			}
			if seq, err := strconv.ParseUint(attr.Value, 10, 64); err == nil {
				return seq
			}
		}
	}
	return 0
}

// wasmBroadcastExecutor satisfies pkg/coordinator.WasmExecutor by
// broadcasting the real MsgExecuteContract. The solver vault's
// lock/release/unlock calls never inspect the response payload
// (VaultClient discards it), so the returned response is empty rather
// than reconstructed from broadcast events.
type wasmBroadcastExecutor struct {
	bc *txBroadcaster
}

func (k wasmBroadcastExecutor) Execute(ctx context.Context, msg *wasmtypes.MsgExecuteContract) (*wasmtypes.MsgExecuteContractResponse, error) {
	if _, err := k.bc.broadcast(ctx, msg); err != nil {
		return nil, err
	}
	return &wasmtypes.MsgExecuteContractResponse{}, nil
}
