// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owi implements the master side of the Dallas / Maxim 1-wire bus
// protocol on top of a bit-level link.
//
// The protocol layer is separated from the electrical layer: any adapter
// that can reset the bus and shift bits implements the Link interface, and
// Master supplies ROM addressing, the binary tree search and CRC validated
// block transfers on top of it. The ds248x package drives an I²C bus
// extender and the ds9097 package a passive serial adapter; the owitest
// package provides a scripted link and a bus emulator for tests.
//
// Master also implements onewire.Bus from periph.io/x/conn/v3, so existing
// 1-wire device drivers run unchanged on any Link.
package owi
