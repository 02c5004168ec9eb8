// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import "github.com/pkg/errors"

// ErrNotFound is returned by lookups that miss: no such block, transaction,
// or metadata record. It is a typed absence, never treated as exceptional.
var ErrNotFound = errors.New("chaindb: not found")

// ErrDuplicate is returned by putblock when the submitted block is already
// known, either on disk or in the orphan table.
var ErrDuplicate = errors.New("chaindb: duplicate block")

// ErrStructuralInvalid is returned when a block or transaction fails a
// context-free structural check (empty vectors, bad merkle root, PoW above
// target, more than one coinbase, invalid signatures).
var ErrStructuralInvalid = errors.New("chaindb: structurally invalid block")

// ErrCorruptStore signals that the block file or the key-value index
// returned data that cannot be a valid record. Callers should treat this as
// fatal.
var ErrCorruptStore = errors.New("chaindb: corrupt store")

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
