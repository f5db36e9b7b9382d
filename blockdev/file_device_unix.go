//go:build !windows
// +build !windows

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var _ Device = (*FileDevice)(nil)

// FileDevice is a Device backed by a memory-mapped image file, guarded
// by an exclusive advisory flock taken at construction and released on
// Close.
type FileDevice struct {
	f         *os.File
	blockSize uint32
	nblocks   uint64
	mapping   []byte
}

// OpenFileDevice opens path as a FileDevice of the given geometry. The
// file must already be at least blockSize*nblocks bytes long (use
// CreateFileDevice to allocate a fresh image).
func OpenFileDevice(path string, blockSize uint32, nblocks uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	return newFileDevice(f, blockSize, nblocks)
}

// CreateFileDevice creates a fresh, zeroed image file of the given
// geometry at path and returns a FileDevice over it.
func CreateFileDevice(path string, blockSize uint32, nblocks uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}

	size := int64(blockSize) * int64(nblocks)
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to allocate image of size %d: %w", size, err)
	}

	return newFileDevice(f, blockSize, nblocks)
}

func newFileDevice(f *os.File, blockSize uint32, nblocks uint64) (*FileDevice, error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock image: %w", err)
	}

	size := int(blockSize) * int(nblocks)
	mapping, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("failed to map image: %w", err)
	}

	return &FileDevice{
		f:         f,
		blockSize: blockSize,
		nblocks:   nblocks,
		mapping:   mapping,
	}, nil
}

func (d *FileDevice) ReadBlock(i uint64) (*Block, error) {
	if i >= d.nblocks {
		return nil, &ErrBlockIndexOutOfRange{Index: i, NBlocks: d.nblocks}
	}

	off := int64(i) * int64(d.blockSize)
	data := make([]byte, d.blockSize)
	copy(data, d.mapping[off:off+int64(d.blockSize)])
	return &Block{Index: i, Data: data}, nil
}

func (d *FileDevice) WriteBlock(b *Block) error {
	if b.Index >= d.nblocks {
		return &ErrBlockIndexOutOfRange{Index: b.Index, NBlocks: d.nblocks}
	}

	off := int64(b.Index) * int64(d.blockSize)
	copy(d.mapping[off:off+int64(d.blockSize)], b.Data)
	return nil
}

func (d *FileDevice) BlockSize() uint32 {
	return d.blockSize
}

func (d *FileDevice) NBlocks() uint64 {
	return d.nblocks
}

// Close flushes the mapping, unmaps and unlocks the image, and closes
// the underlying file.
func (d *FileDevice) Close() error {
	if err := unix.Msync(d.mapping, unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to sync image: %w", err)
	}
	if err := unix.Munmap(d.mapping); err != nil {
		return fmt.Errorf("failed to unmap image: %w", err)
	}
	if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("failed to unlock image: %w", err)
	}
	return d.f.Close()
}
