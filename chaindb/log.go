// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"github.com/btcsuite/btclog"

	"github.com/daglabs/halfnode/logs"
)

// log is the subsystem logger for the consensus engine. It is a no-op
// logger until logs.InitLogRotators has run.
var log btclog.Logger

func init() {
	log, _ = logs.Get(logs.SubsystemTags.CHDB)
}
