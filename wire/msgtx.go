// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/daglabs/halfnode/chainhash"
)

// MaxSatoshi is the maximum number of satoshis that can ever exist, used to
// bound a single output's value.
const MaxSatoshi = 21_000_000 * 100_000_000

// maxTxInPerMessage / maxTxOutPerMessage cap the CompactSize-prefixed input
// and output vectors read off the wire to a sane fraction of the maximum
// message payload.
const (
	maxTxInPerMessage  = (MaxMessagePayload / 41) + 1
	maxTxOutPerMessage = (MaxMessagePayload / 9) + 1
	maxScriptSize      = 10000
)

// TxIn defines a Bitcoin transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut defines a Bitcoin transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// MsgTx implements the Message interface and represents a Bitcoin
// transaction: a vector of inputs and a vector of outputs.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewMsgTx returns a new empty transaction message.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

// IsCoinBase reports whether tx is a coinbase transaction: exactly one
// input whose previous outpoint is null.
func (msg *MsgTx) IsCoinBase() bool {
	return len(msg.TxIn) == 1 && msg.TxIn[0].PreviousOutPoint.IsNull()
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash computes the double-SHA256 identifier of the transaction.
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.BtcEncode(&buf)
	return doubleSha256(buf.Bytes())
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction.
func (msg *MsgTx) SerializeSize() int {
	var buf bytes.Buffer
	_ = msg.BtcEncode(&buf)
	return buf.Len()
}

// BtcEncode encodes the receiver to w using the classic Bitcoin wire
// encoding for transactions.
func (msg *MsgTx) BtcEncode(w io.Writer) error {
	if err := WriteElement(w, msg.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := ti.PreviousOutPoint.serialize(w); err != nil {
			return err
		}
		if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
			return err
		}
		if err := WriteElement(w, ti.Sequence); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := WriteElement(w, to.Value); err != nil {
			return err
		}
		if err := WriteVarBytes(w, to.PkScript); err != nil {
			return err
		}
	}
	return WriteElement(w, msg.LockTime)
}

// BtcDecode decodes r using the classic Bitcoin wire encoding into the
// receiver.
func (msg *MsgTx) BtcDecode(r io.Reader) error {
	if err := ReadElement(r, &msg.Version); err != nil {
		return err
	}

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if inCount > uint64(maxTxInPerMessage) {
		return errTooManyElements("inputs", inCount)
	}
	msg.TxIn = make([]*TxIn, inCount)
	for i := range msg.TxIn {
		ti := &TxIn{}
		if err := ti.PreviousOutPoint.deserialize(r); err != nil {
			return err
		}
		script, err := ReadVarBytes(r, maxScriptSize, "signature script")
		if err != nil {
			return err
		}
		ti.SignatureScript = script
		if err := ReadElement(r, &ti.Sequence); err != nil {
			return err
		}
		msg.TxIn[i] = ti
	}

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if outCount > uint64(maxTxOutPerMessage) {
		return errTooManyElements("outputs", outCount)
	}
	msg.TxOut = make([]*TxOut, outCount)
	for i := range msg.TxOut {
		to := &TxOut{}
		if err := ReadElement(r, &to.Value); err != nil {
			return err
		}
		script, err := ReadVarBytes(r, maxScriptSize, "pk script")
		if err != nil {
			return err
		}
		to.PkScript = script
		msg.TxOut[i] = to
	}

	return ReadElement(r, &msg.LockTime)
}

// Command returns the protocol command string for the message.
func (msg *MsgTx) Command() string { return CmdTx }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgTx) MaxPayloadLength() uint32 { return MaxMessagePayload }

func errTooManyElements(what string, count uint64) error {
	return &messageErr{msg: what, count: count}
}

type messageErr struct {
	msg   string
	count uint64
}

func (e *messageErr) Error() string {
	return "too many " + e.msg
}
