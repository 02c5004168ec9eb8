// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/daglabs/halfnode/chainhash"
)

// maxTxPerBlock caps the number of transactions a block message may carry,
// a sane fraction of the maximum message payload.
const maxTxPerBlock = (MaxMessagePayload / 60) + 1

// MsgBlock implements the Message interface and represents a Bitcoin block
// message: a header plus a vector of transactions. The first transaction is
// always the coinbase.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// NewMsgBlock returns a new block message with the given header.
func NewMsgBlock(header *BlockHeader) *MsgBlock {
	return &MsgBlock{Header: *header}
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// BlockHash returns the block identifier computed from the header alone.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// BtcEncode encodes the receiver to w using the classic Bitcoin wire
// encoding for blocks.
func (msg *MsgBlock) BtcEncode(w io.Writer) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.BtcEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode decodes r using the classic Bitcoin wire encoding into the
// receiver.
func (msg *MsgBlock) BtcDecode(r io.Reader) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if txCount > uint64(maxTxPerBlock) {
		return errTooManyElements("transactions", txCount)
	}

	msg.Transactions = make([]*MsgTx, txCount)
	for i := range msg.Transactions {
		tx := &MsgTx{}
		if err := tx.BtcDecode(r); err != nil {
			return err
		}
		msg.Transactions[i] = tx
	}
	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgBlock) Command() string { return CmdBlock }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgBlock) MaxPayloadLength() uint32 { return MaxMessagePayload }

// Serialize encodes the full block message (header + transactions) as it
// is persisted to the block file store. This is distinct from the
// header-only Serialize on BlockHeader.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	return msg.BtcEncode(w)
}
