// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockfs

// inodeLocation returns the block index within the inode region, and
// the byte offset within that block, for inode index i.
func (fs *FS) inodeLocation(i uint64) (blockIdx uint64, byteOff int) {
	ipb := fs.ipb()
	blockIdx = fs.sb.InodeStart + i/ipb
	byteOff = int(i%ipb) * InodeSize
	return
}

// initInodes zero-initializes every inode slot to FtFree. Every slot is
// written explicitly, since the device's existing contents are not
// assumed to be zero.
func (fs *FS) initInodes() error {
	ipb := fs.ipb()
	nblocks := ceilDiv(fs.sb.NInodes, ipb)

	for blk := uint64(0); blk < nblocks; blk++ {
		b, err := fs.BGet(fs.sb.InodeStart + blk)
		if err != nil {
			return err
		}

		for slot := uint64(0); slot < ipb; slot++ {
			i := blk*ipb + slot
			if i >= fs.sb.NInodes {
				break
			}

			free := DInode{Ft: FtFree}
			if err := b.SerializeInto(&free, int(slot)*InodeSize); err != nil {
				return err
			}
		}

		if err := fs.BPut(b); err != nil {
			return err
		}
	}

	return nil
}

// IGet reads and deserializes inode i.
func (fs *FS) IGet(i uint64) (Inode, error) {
	if i >= fs.sb.NInodes {
		return Inode{}, ErrInodeIndexOutOfBounds
	}

	blockIdx, byteOff := fs.inodeLocation(i)
	b, err := fs.BGet(blockIdx)
	if err != nil {
		return Inode{}, err
	}

	var dinode DInode
	if err := b.DeserializeFrom(&dinode, byteOff); err != nil {
		return Inode{}, err
	}

	return Inode{Inum: i, DInode: dinode}, nil
}

// IPut serializes ino's DInode into its slot and writes the containing
// block back.
func (fs *FS) IPut(ino Inode) error {
	if ino.Inum >= fs.sb.NInodes {
		return ErrInodeIndexOutOfBounds
	}

	blockIdx, byteOff := fs.inodeLocation(ino.Inum)
	b, err := fs.BGet(blockIdx)
	if err != nil {
		return err
	}

	if err := b.SerializeInto(&ino.DInode, byteOff); err != nil {
		return err
	}

	return fs.BPut(b)
}

// IAlloc scans inodes [1, ninodes) for the first Free slot (inode 0 is
// reserved and must never be allocated), sets its type to ft with
// size and nlink reset to zero, persists it, and returns it.
func (fs *FS) IAlloc(ft FileType) (Inode, error) {
	for i := uint64(1); i < fs.sb.NInodes; i++ {
		ino, err := fs.IGet(i)
		if err != nil {
			return Inode{}, err
		}

		if ino.DInode.Ft == FtFree {
			ino.DInode.Ft = ft
			ino.DInode.Size = 0
			ino.DInode.Nlink = 0
			ino.DInode.DirectBlocks = [NDirect]uint64{}

			if err := fs.IPut(ino); err != nil {
				return Inode{}, err
			}
			return ino, nil
		}
	}

	return Inode{}, ErrNoFreeInode
}

// IFree releases inode i, if it is in use and has no remaining links:
// every non-zero entry of direct_blocks[..ceil(size/block_size)] is
// freed in the bitmap, the inode's type is reset to FtFree and its
// direct blocks are zeroed.
func (fs *FS) IFree(i uint64) error {
	ino, err := fs.IGet(i)
	if err != nil {
		return err
	}

	if ino.DInode.Ft == FtFree {
		return ErrInodeAlreadyFree
	}

	if ino.DInode.Nlink != 0 {
		return nil
	}

	if err := fs.freeDirectBlocks(&ino.DInode); err != nil {
		return err
	}

	ino.DInode.Ft = FtFree
	ino.DInode.DirectBlocks = [NDirect]uint64{}

	return fs.IPut(ino)
}

// ITrunc frees the data blocks currently referenced by inode, resets
// its size to zero, and persists the result.
func (fs *FS) ITrunc(inode *Inode) error {
	if err := fs.freeDirectBlocks(&inode.DInode); err != nil {
		return err
	}

	inode.DInode.Size = 0
	inode.DInode.DirectBlocks = [NDirect]uint64{}

	return fs.IPut(*inode)
}

// freeDirectBlocks releases, via BFree, every non-zero entry of
// direct_blocks[..ceil(size/block_size)]. Blocks beyond that bound are
// left untouched even if non-zero, per spec.
func (fs *FS) freeDirectBlocks(din *DInode) error {
	nblocks := ceilDiv(din.Size, fs.sb.BlockSize)
	if nblocks > NDirect {
		nblocks = NDirect
	}

	for k := uint64(0); k < nblocks; k++ {
		abs := din.DirectBlocks[k]
		if abs == 0 {
			continue
		}
		if err := fs.BFree(abs - fs.sb.DataStart); err != nil {
			return err
		}
	}

	return nil
}
