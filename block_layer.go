// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockfs

import (
	"fmt"

	"github.com/dpeckett/blockfs/blockdev"
)

// SuperBlockOffset is the byte offset of the serialized SuperBlock
// within block 0.
const SuperBlockOffset = 0

// SbValid is a pure predicate enforcing every SuperBlock invariant.
func SbValid(sb SuperBlock) bool {
	if sb.InodeStart == 0 {
		return false
	}
	if !(sb.InodeStart < sb.BmapStart && sb.BmapStart < sb.DataStart) {
		return false
	}
	if uint64(InodeSize)*sb.NInodes > (sb.BmapStart-sb.InodeStart)*sb.BlockSize {
		return false
	}
	if (sb.DataStart-sb.BmapStart)*sb.BlockSize*8 < sb.NDataBlocks {
		return false
	}
	if sb.DataStart+sb.NDataBlocks > sb.NBlocks {
		return false
	}
	if 1+(sb.BmapStart-sb.InodeStart)+(sb.DataStart-sb.BmapStart)+sb.NDataBlocks > sb.NBlocks {
		return false
	}
	return true
}

// Mkfs validates sb, writes it to block 0 of dev, zero-initializes
// every inode slot to Free (written explicitly, since dev's existing
// contents are not assumed to be zero), and marks inode 1 as the root
// directory. It returns the resulting mounted FS.
func Mkfs(dev blockdev.Device, sb SuperBlock) (*FS, error) {
	if !SbValid(sb) {
		return nil, ErrInvalidSuperBlock
	}

	fs := &FS{dev: dev, sb: sb}

	if err := fs.SupPut(sb); err != nil {
		return nil, err
	}

	if err := fs.initInodes(); err != nil {
		return nil, err
	}

	root, err := fs.IGet(1)
	if err != nil {
		return nil, err
	}
	root.DInode.Ft = FtDir
	root.DInode.Nlink = 1
	if err := fs.IPut(root); err != nil {
		return nil, err
	}

	return fs, nil
}

// Mountfs reads block 0 of dev, validates the superblock found there,
// checks that dev's own geometry agrees with it, and returns the
// mounted FS.
func Mountfs(dev blockdev.Device) (*FS, error) {
	fs := &FS{dev: dev}

	b, err := dev.ReadBlock(0)
	if err != nil {
		return nil, wrapDeviceErr("read superblock", err)
	}

	var sb SuperBlock
	if err := b.DeserializeFrom(&sb, SuperBlockOffset); err != nil {
		return nil, wrapDeviceErr("deserialize superblock", err)
	}

	if !SbValid(sb) {
		return nil, ErrInvalidSuperBlock
	}

	if uint64(dev.BlockSize()) != sb.BlockSize || dev.NBlocks() != sb.NBlocks {
		return nil, ErrIncompatibleDeviceSuperBlock
	}

	fs.sb = sb
	return fs, nil
}

// Unmountfs releases ownership of the Device, returning it to the
// caller.
func (fs *FS) Unmountfs() (blockdev.Device, error) {
	dev := fs.dev
	fs.dev = nil
	return dev, nil
}

// BGet reads block i from the device.
func (fs *FS) BGet(i uint64) (*blockdev.Block, error) {
	b, err := fs.dev.ReadBlock(i)
	if err != nil {
		return nil, wrapDeviceErr(fmt.Sprintf("read block %d", i), err)
	}
	return b, nil
}

// BPut writes b back to the device at its own index.
func (fs *FS) BPut(b *blockdev.Block) error {
	if err := fs.dev.WriteBlock(b); err != nil {
		return wrapDeviceErr(fmt.Sprintf("write block %d", b.Index), err)
	}
	return nil
}

// SupGet returns the cached superblock.
func (fs *FS) SupGet() SuperBlock {
	return fs.sb
}

// SupPut serializes sup into block 0, writes it, and replaces the
// cache.
func (fs *FS) SupPut(sup SuperBlock) error {
	b := blockdev.NewZeroBlock(0, uint32(sup.BlockSize))
	if err := b.SerializeInto(&sup, SuperBlockOffset); err != nil {
		return fmt.Errorf("failed to serialize superblock: %w", err)
	}
	if err := fs.BPut(b); err != nil {
		return err
	}
	fs.sb = sup
	return nil
}

// bitmapLocation returns the block index within the bitmap region, the
// byte offset within that block, and the bit offset within that byte,
// for data-block index i.
func (fs *FS) bitmapLocation(i uint64) (blockIdx uint64, byteOff int, bitOff uint) {
	bitsPerBlock := fs.sb.BlockSize * 8
	blockIdx = fs.sb.BmapStart + i/bitsPerBlock
	withinBlock := i % bitsPerBlock
	byteOff = int(withinBlock / 8)
	bitOff = uint(withinBlock % 8)
	return
}

// BZero overwrites the data block at relative index i with zeros.
func (fs *FS) BZero(i uint64) error {
	if i >= fs.sb.NDataBlocks {
		return ErrDataIndexOutOfBounds
	}

	b := blockdev.NewZeroBlock(fs.sb.DataStart+i, uint32(fs.sb.BlockSize))
	return fs.BPut(b)
}

// BFree clears bit i in the bitmap.
func (fs *FS) BFree(i uint64) error {
	if i >= fs.sb.NDataBlocks {
		return ErrDataIndexOutOfBounds
	}

	blockIdx, byteOff, bitOff := fs.bitmapLocation(i)
	b, err := fs.BGet(blockIdx)
	if err != nil {
		return err
	}

	mask := byte(1) << bitOff
	if b.Data[byteOff]&mask == 0 {
		return ErrBlockIsAlreadyFree
	}

	b.Data[byteOff] &^= mask
	return fs.BPut(b)
}

// BAlloc searches the bitmap, LSB-first within each byte, for the
// first clear bit whose logical index is within [0, ndatablocks). On
// success it sets the bit, zeroes the corresponding data block, and
// returns the data-block index (relative to DataStart).
func (fs *FS) BAlloc() (uint64, error) {
	bitsPerBlock := fs.sb.BlockSize * 8
	nbmapBlocks := fs.sb.DataStart - fs.sb.BmapStart

	for blk := uint64(0); blk < nbmapBlocks; blk++ {
		b, err := fs.BGet(fs.sb.BmapStart + blk)
		if err != nil {
			return 0, err
		}

		for byteOff := 0; byteOff < len(b.Data); byteOff++ {
			if b.Data[byteOff] == 0xff {
				continue
			}

			for bitOff := uint(0); bitOff < 8; bitOff++ {
				idx := blk*bitsPerBlock + uint64(byteOff)*8 + uint64(bitOff)
				if idx >= fs.sb.NDataBlocks {
					return 0, ErrNoFreeDataBlock
				}

				mask := byte(1) << bitOff
				if b.Data[byteOff]&mask != 0 {
					continue
				}

				b.Data[byteOff] |= mask
				if err := fs.BPut(b); err != nil {
					return 0, err
				}
				if err := fs.BZero(idx); err != nil {
					return 0, err
				}
				return idx, nil
			}
		}
	}

	return 0, ErrNoFreeDataBlock
}
