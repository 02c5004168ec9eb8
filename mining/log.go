// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"github.com/btcsuite/btclog"

	"github.com/daglabs/halfnode/logs"
)

var log btclog.Logger

func init() {
	log, _ = logs.Get(logs.SubsystemTags.MINR)
}
