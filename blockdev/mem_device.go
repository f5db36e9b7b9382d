// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockdev

var _ Device = (*MemDevice)(nil)

// MemDevice is an in-memory Device, useful for tests that want a fresh
// image without touching the filesystem.
type MemDevice struct {
	blockSize uint32
	blocks    [][]byte
}

// NewMemDevice returns a zeroed MemDevice of the given geometry.
func NewMemDevice(blockSize uint32, nblocks uint64) *MemDevice {
	blocks := make([][]byte, nblocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemDevice{blockSize: blockSize, blocks: blocks}
}

func (d *MemDevice) ReadBlock(i uint64) (*Block, error) {
	if i >= uint64(len(d.blocks)) {
		return nil, &ErrBlockIndexOutOfRange{Index: i, NBlocks: uint64(len(d.blocks))}
	}

	data := make([]byte, d.blockSize)
	copy(data, d.blocks[i])
	return &Block{Index: i, Data: data}, nil
}

func (d *MemDevice) WriteBlock(b *Block) error {
	if b.Index >= uint64(len(d.blocks)) {
		return &ErrBlockIndexOutOfRange{Index: b.Index, NBlocks: uint64(len(d.blocks))}
	}

	data := make([]byte, d.blockSize)
	copy(data, b.Data)
	d.blocks[b.Index] = data
	return nil
}

func (d *MemDevice) BlockSize() uint32 {
	return d.blockSize
}

func (d *MemDevice) NBlocks() uint64 {
	return uint64(len(d.blocks))
}

func (d *MemDevice) Close() error {
	return nil
}
