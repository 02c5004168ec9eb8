// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"crypto/sha256"

	"github.com/daglabs/halfnode/chainhash"
)

// doubleSha256 computes the Bitcoin double-SHA256 digest used for block and
// transaction identifiers.
func doubleSha256(b []byte) chainhash.Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return chainhash.Hash(second)
}
