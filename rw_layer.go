// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockfs

// IRead copies min(n, len(buf), inode.Size-off) bytes from inode's
// content into buf starting at off, and returns the number of bytes
// copied. Reading exactly at inode.Size returns 0; reading past it
// fails with ErrIndexOutOfBounds. Reads never allocate.
func (fs *FS) IRead(inode Inode, buf []byte, off uint64, n int) (int, error) {
	if off == inode.DInode.Size {
		return 0, nil
	}
	if off > inode.DInode.Size {
		return 0, ErrIndexOutOfBounds
	}

	remaining := inode.DInode.Size - off
	want := n
	if uint64(want) > remaining {
		want = int(remaining)
	}
	if want > len(buf) {
		want = len(buf)
	}

	blockSize := fs.sb.BlockSize
	read := 0
	for read < want {
		p := off + uint64(read)
		blockIdx := p / blockSize
		within := p % blockSize

		abs := inode.DInode.DirectBlocks[blockIdx]
		if abs == 0 {
			break
		}

		b, err := fs.BGet(abs)
		if err != nil {
			return read, err
		}

		chunk := int(blockSize - within)
		if chunk > want-read {
			chunk = want - read
		}

		if err := b.ReadData(buf[read:read+chunk], int(within)); err != nil {
			return read, err
		}

		read += chunk
	}

	return read, nil
}

// IWrite copies n bytes from buf into inode's content starting at off,
// growing the inode (allocating new direct blocks and advancing size)
// as needed. Writing past NDirect*block_size fails ErrWriteTooLarge
// without mutating the inode.
func (fs *FS) IWrite(inode *Inode, buf []byte, off uint64, n int) error {
	if off > inode.DInode.Size {
		return ErrIndexOutOfBounds
	}
	if len(buf) < n {
		return ErrBufTooSmall
	}

	blockSize := fs.sb.BlockSize
	maxSize := uint64(NDirect) * blockSize
	if off+uint64(n) > maxSize {
		return ErrWriteTooLarge
	}

	if err := fs.growForWrite(inode, off, uint64(n)); err != nil {
		return err
	}

	written := 0
	for written < n {
		p := off + uint64(written)
		blockIdx := p / blockSize
		within := p % blockSize

		abs := inode.DInode.DirectBlocks[blockIdx]

		b, err := fs.BGet(abs)
		if err != nil {
			return err
		}

		chunk := int(blockSize - within)
		if chunk > n-written {
			chunk = n - written
		}

		if err := b.WriteData(buf[written:written+chunk], int(within)); err != nil {
			return err
		}
		if err := fs.BPut(b); err != nil {
			return err
		}

		written += chunk
	}

	return nil
}

// growForWrite allocates any new direct blocks needed to cover
// [off, off+n) and advances inode.Size, persisting inode once.
func (fs *FS) growForWrite(inode *Inode, off, n uint64) error {
	blockSize := fs.sb.BlockSize
	end := off + n

	curBlocks := ceilDiv(inode.DInode.Size, blockSize)
	neededBlocks := ceilDiv(end, blockSize)

	dirty := false

	for k := curBlocks; k < neededBlocks; k++ {
		idx, err := fs.BAlloc()
		if err != nil {
			return err
		}
		inode.DInode.DirectBlocks[k] = fs.sb.DataStart + idx
		dirty = true
	}

	if end > inode.DInode.Size {
		inode.DInode.Size = end
		dirty = true
	}

	if dirty {
		return fs.IPut(*inode)
	}
	return nil
}
