// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package blockfs implements a Unix-flavored, block-addressable file
// system on top of a fixed-size block device image: a superblock, an
// inode region, a free-block bitmap, a data region and directory
// entries stored in that data region.
//
// The four layers (block, inode, directory, and inode read/write) are
// collapsed into a single concrete FS type, each layer's operations
// grouped into their own file, in the style of the teacher's own
// Image/Inode pair.
package blockfs

import (
	"encoding/binary"

	"github.com/dpeckett/blockfs/blockdev"
)

// NDirect is the number of direct data-block pointers carried by every
// inode. Indirect blocks are explicitly out of scope.
const NDirect = 12

// DirNameSize is the fixed width, in bytes, of a directory entry's name
// field. 14 matches the worked end-to-end scenario in spec.md (a
// directory holding 135 names of this width, across 3 blocks of 1000
// bytes, occupies exactly direct_blocks[0..3] and the 136th insertion
// lands at offset 3000); any other width changes every byte offset
// that scenario names.
const DirNameSize = 14

// FileType tags the kind of object an inode represents.
type FileType uint32

const (
	// FtFree marks an unallocated inode.
	FtFree FileType = iota
	// FtFile marks a regular file inode.
	FtFile
	// FtDir marks a directory inode.
	FtDir
)

// SuperBlock is the fixed metadata record describing the on-disk region
// layout, cached in memory for the lifetime of a mounted FS.
type SuperBlock struct {
	BlockSize   uint64 // bytes per block
	NBlocks     uint64 // total blocks on the device
	NInodes     uint64 // total inodes
	InodeStart  uint64 // first block of the inode region
	BmapStart   uint64 // first block of the bitmap region
	DataStart   uint64 // first block of the data region
	NDataBlocks uint64 // size of the data region, in blocks
}

// DInode is the on-disk inode record.
type DInode struct {
	Ft           FileType
	Nlink        uint32
	Size         uint64
	DirectBlocks [NDirect]uint64
}

// InodeSize is the serialized size, in bytes, of a DInode.
var InodeSize = binary.Size(DInode{})

// DirEntrySize is the serialized size, in bytes, of a DirEntry.
var DirEntrySize = binary.Size(DirEntry{})

// Inode is the in-memory pairing of an inode number and its on-disk
// record. Mutations are not visible on disk until passed to IPut.
type Inode struct {
	Inum   uint64
	DInode DInode
}

// DirEntry is the fixed-size on-disk directory entry record.
type DirEntry struct {
	Inum uint64
	Name [DirNameSize]byte
}

// FS is a mounted blockfs file system: the cached SuperBlock plus the
// underlying Device, with the block, inode, directory, and inode
// read/write layers implemented as methods across block_layer.go,
// inode_layer.go, directory_layer.go and rw_layer.go.
type FS struct {
	dev blockdev.Device
	sb  SuperBlock
}

// ipb returns the number of inodes packed per inode-region block.
func (fs *FS) ipb() uint64 {
	return fs.sb.BlockSize / uint64(InodeSize)
}

// dpb returns the number of directory entries packed per data block.
func (fs *FS) dpb() uint64 {
	return fs.sb.BlockSize / uint64(DirEntrySize)
}

// ceilDiv computes ceil(a/b) using integer arithmetic, as spec'd, to
// avoid floating-point rounding pitfalls.
func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}
