// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package blockdev provides the byte-addressable image device and the
// fixed-size block abstraction that the blockfs layers are built on top
// of. Both are treated as external collaborators by the core file
// system (it only ever calls through the Device interface and the
// Block methods below), but something concrete has to sit underneath
// for the library to be runnable.
package blockdev

import "fmt"

// Device is a fixed-size, block-addressable image. FileDevice takes an
// exclusive advisory lock for the lifetime of the Device, released on
// Close; MemDevice takes no lock.
type Device interface {
	// ReadBlock reads the block at index i.
	ReadBlock(i uint64) (*Block, error)

	// WriteBlock writes b back at its own index.
	WriteBlock(b *Block) error

	// BlockSize returns the fixed size, in bytes, of every block.
	BlockSize() uint32

	// NBlocks returns the total number of blocks on the device.
	NBlocks() uint64

	// Close releases the Device, including any lock taken at
	// construction.
	Close() error
}

// ErrBlockIndexOutOfRange is returned by ReadBlock/WriteBlock when the
// requested index does not exist on the device.
type ErrBlockIndexOutOfRange struct {
	Index, NBlocks uint64
}

func (e *ErrBlockIndexOutOfRange) Error() string {
	return fmt.Sprintf("block index %d out of range [0, %d)", e.Index, e.NBlocks)
}
