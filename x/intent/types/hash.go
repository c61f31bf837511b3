package types

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/cometbft/cometbft/crypto/tmhash"
)

// presence markers for optional fields.
const (
	markerAbsent byte = 0x00
	markerSet    byte = 0x01
)

// CanonicalHash computes the streaming byte hash that an intent's
// signature is verified against. It covers every field the
// signing-hash invariant names: identity, input, output, constraints
// (with presence markers for optional fields and sorted-then-length-prefixed
// collections), and fill_config (including the nested strategy
// variant). Changing any one field changes the hash.
func CanonicalHash(in Intent) [32]byte {
	buf := new(bytes.Buffer)

	// identity
	writeUint16(buf, in.Version)
	writeUint64(buf, in.Nonce)
	writeString(buf, in.User)

	// input
	writeString(buf, in.Input.Chain)
	writeString(buf, in.Input.Denom)
	writeBigInt(buf, in.Input.Amount)

	// output
	writeString(buf, in.Output.Chain)
	writeString(buf, in.Output.Denom)
	writeBigInt(buf, in.Output.MinAmount)
	writeDec(buf, in.Output.LimitPrice)
	writeString(buf, in.Output.Recipient)

	// constraints
	writeInt64(buf, in.Constraints.Deadline.UnixNano())
	writeOptionalUint32(buf, in.Constraints.MaxHops)

	sorted := append([]string(nil), in.Constraints.ExcludedVenues...)
	sort.Strings(sorted)
	writeUint32(buf, uint32(len(sorted)))
	for _, v := range sorted {
		writeString(buf, v)
	}

	writeOptionalUint32(buf, in.Constraints.MaxSolverFeeBps)
	writeBool(buf, in.Constraints.AllowCrossEcosystem)
	writeOptionalUint64(buf, in.Constraints.MaxBridgeTimeSecs)

	// fill_config
	writeBool(buf, in.FillConfig.AllowPartial)
	writeBigInt(buf, in.FillConfig.MinFillAmount)
	writeDec(buf, in.FillConfig.MinFillPct)
	writeUint64(buf, in.FillConfig.AggregationWindowMs)
	buf.WriteByte(byte(in.FillConfig.Strategy.Kind))
	if in.FillConfig.Strategy.Kind == StrategyMinimumThenEager {
		writeDec(buf, in.FillConfig.Strategy.MinimumPct)
	}

	var out [32]byte
	copy(out[:], tmhash.Sum(buf.Bytes()))
	return out
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}

// writeString writes a length-prefixed UTF-8 string.
func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// bigIntMarshaler is satisfied by sdkmath.Int and sdkmath.LegacyDec.
type bigIntMarshaler interface {
	Marshal() ([]byte, error)
}

func writeBigInt(buf *bytes.Buffer, v bigIntMarshaler) {
	b, err := v.Marshal()
	if err != nil {
		// Marshal only fails on a nil big.Int receiver, which is a
		// caller bug (an intent field was left zero-valued).
		panic(err)
	}
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeDec(buf *bytes.Buffer, v bigIntMarshaler) {
	writeBigInt(buf, v)
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(markerSet)
	} else {
		buf.WriteByte(markerAbsent)
	}
}

func writeOptionalUint32(buf *bytes.Buffer, v *uint32) {
	if v == nil {
		buf.WriteByte(markerAbsent)
		return
	}
	buf.WriteByte(markerSet)
	writeUint32(buf, *v)
}

func writeOptionalUint64(buf *bytes.Buffer, v *uint64) {
	if v == nil {
		buf.WriteByte(markerAbsent)
		return
	}
	buf.WriteByte(markerSet)
	writeUint64(buf, *v)
}
