package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Message is the inbound internal message that triggered a transaction.
type Message struct {
	Source      string
	Destination string
	Body        *cell.Cell
}

// RawTransaction is a transaction as fetched from the chain. It is never
// mutated after the fetcher returns it.
type RawTransaction struct {
	Shard   ShardID
	Account string
	LT      uint64
	Hash    []byte
	Now     uint32
	InMsg   *Message
}

// ID renders the transaction identity used in logs.
func (t *RawTransaction) ID() string {
	return fmt.Sprintf("%d:%s", t.LT, hex.EncodeToString(t.Hash))
}
