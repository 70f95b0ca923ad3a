// Package decoder extracts the operation header from inbound message bodies.
package decoder

import (
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/vietddude/poolwatch/internal/core/domain"
)

// HeaderBits is the size of the opcode and query id prefix.
const HeaderBits = 32 + 64

// Input is a transaction with its decoded operation header.
type Input struct {
	Tx      *domain.RawTransaction
	OpCode  uint32
	QueryID uint64
	// Payload is positioned right after the query id.
	Payload *cell.Slice
}

// Clone returns a copy of in with its own payload cursor, so reads by one
// consumer do not move the payload seen by another.
func (in *Input) Clone() *Input {
	c := *in
	if in.Payload != nil {
		c.Payload = in.Payload.Copy()
	}
	return &c
}

// Decode reads the opcode and query id of the inbound message body.
// Transactions without an internal inbound message, or with a body too short
// to hold the header, are skipped.
func Decode(tx *domain.RawTransaction) (*Input, bool) {
	if tx == nil || tx.InMsg == nil || tx.InMsg.Body == nil {
		return nil, false
	}

	body := tx.InMsg.Body.BeginParse()
	if body.BitsLeft() < HeaderBits {
		return nil, false
	}

	op, err := body.LoadUInt(32)
	if err != nil {
		return nil, false
	}
	queryID, err := body.LoadUInt(64)
	if err != nil {
		return nil, false
	}

	return &Input{
		Tx:      tx,
		OpCode:  uint32(op),
		QueryID: queryID,
		Payload: body,
	}, true
}

// DecodeAll decodes txs in order and reports how many were skipped.
func DecodeAll(txs []*domain.RawTransaction) ([]*Input, int) {
	inputs := make([]*Input, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		in, ok := Decode(tx)
		if !ok {
			skipped++
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, skipped
}
