// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/daglabs/halfnode/chainhash"
)

// MaxOutpointIndex is the sanity bound the spec places on any output index
// that is ever tested or recorded: no outpoint at or beyond this index is
// legal.
const MaxOutpointIndex = 100000

// OutPoint defines a Bitcoin data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new Bitcoin transaction outpoint point with the
// provided hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

// IsNull reports whether the outpoint is the null outpoint used by a
// coinbase input.
func (o *OutPoint) IsNull() bool {
	return o.Index == ^uint32(0) && o.Hash.IsZero()
}

func (o *OutPoint) serialize(w io.Writer) error {
	return writeElements(w, o.Hash, o.Index)
}

func (o *OutPoint) deserialize(r io.Reader) error {
	return readElements(r, &o.Hash, &o.Index)
}
