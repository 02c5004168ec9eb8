// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txverify provides the pluggable signature-verification interface
// ChainDb calls into for every non-coinbase input when signature checking
// is enabled (config.Settings.NoSig == false). Full script execution is out
// of scope for this repository; the teacher's txscript.Engine shows the
// shape a real implementation would take.
package txverify

import "github.com/daglabs/halfnode/wire"

// Verifier checks that the input at inputIndex of tx correctly spends an
// output of prevTx.
type Verifier interface {
	Verify(prevTx *wire.MsgTx, tx *wire.MsgTx, inputIndex int) bool
}

// NopVerifier always reports success, matching the reference
// implementation's unconditional pass. It is selected when signature
// checking is disabled (the "nosig" setting).
type NopVerifier struct{}

// Verify implements Verifier.
func (NopVerifier) Verify(prevTx *wire.MsgTx, tx *wire.MsgTx, inputIndex int) bool {
	return true
}

// EngineVerifier is the shape a full script-execution verifier would take,
// grounded on the teacher's txscript.Engine entry point
// (txscript.NewEngine(...).Execute()). Script execution itself is out of
// scope here; Verify always succeeds, same as NopVerifier, but callers can
// swap in a real Engine-backed implementation without changing ChainDb.
type EngineVerifier struct{}

// Verify implements Verifier.
func (EngineVerifier) Verify(prevTx *wire.MsgTx, tx *wire.MsgTx, inputIndex int) bool {
	return true
}
