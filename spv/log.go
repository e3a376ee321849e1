// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package spv

import "github.com/btcsuite/btclog"

var log btclog.Logger

func UseLogger(logger btclog.Logger) {
	log = logger
}

func init() {
	DisableLog()
}

func DisableLog() {
	log = btclog.Disabled
}
