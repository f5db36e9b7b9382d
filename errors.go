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
	"errors"
	"fmt"
)

// Package-specific error variables that can be used with errors.Is()
// for error handling, one per layer-level precondition violation.
var (
	// ErrInvalidSuperBlock is returned by Mkfs/Mountfs when the
	// superblock fails SbValid.
	ErrInvalidSuperBlock = errors.New("invalid superblock")

	// ErrIncompatibleDeviceSuperBlock is returned by Mountfs when the
	// Device's geometry disagrees with the superblock it is mounting.
	ErrIncompatibleDeviceSuperBlock = errors.New("device geometry incompatible with superblock")

	// ErrDataIndexOutOfBounds is returned when a data-block index is
	// not within [0, ndatablocks).
	ErrDataIndexOutOfBounds = errors.New("data block index out of bounds")

	// ErrBlockIsAlreadyFree is returned by BFree when the target bit is
	// already clear.
	ErrBlockIsAlreadyFree = errors.New("data block is already free")

	// ErrNoFreeDataBlock is returned by BAlloc when every data block is
	// allocated.
	ErrNoFreeDataBlock = errors.New("no free data block")

	// ErrInodeIndexOutOfBounds is returned when an inode index is not
	// within [0, ninodes).
	ErrInodeIndexOutOfBounds = errors.New("inode index out of bounds")

	// ErrInodeAlreadyFree is returned by IFree when the target inode is
	// already Free.
	ErrInodeAlreadyFree = errors.New("inode is already free")

	// ErrNoFreeInode is returned by IAlloc when every inode is in use.
	ErrNoFreeInode = errors.New("no free inode")

	// ErrInodeWrongType is returned when an operation expected a
	// directory inode and got something else.
	ErrInodeWrongType = errors.New("inode has wrong type")

	// ErrNoEntryFoundForName is returned by DirLookup on a miss.
	ErrNoEntryFoundForName = errors.New("no entry found for name")

	// ErrInvalidEntryName is returned when a name fails the syntactic
	// rules in SetNameStr, or when DirLink is asked to insert a
	// duplicate name.
	ErrInvalidEntryName = errors.New("invalid entry name")

	// ErrDirectoryInodeNotInUse is returned by DirLink when the target
	// inode is Free.
	ErrDirectoryInodeNotInUse = errors.New("directory link target inode is not in use")

	// ErrInodeBlocksFull is returned by DirLink when the directory
	// would need a 13th direct block.
	ErrInodeBlocksFull = errors.New("inode has no free direct block slots")

	// ErrIndexOutOfBounds is returned by IRead/IWrite when the
	// requested offset is past the inode's size.
	ErrIndexOutOfBounds = errors.New("offset out of bounds")

	// ErrBufTooSmall is returned by IWrite when the supplied buffer is
	// shorter than the requested write length.
	ErrBufTooSmall = errors.New("buffer too small for requested write")

	// ErrWriteTooLarge is returned by IWrite when the write would
	// exceed NDirect*BlockSize.
	ErrWriteTooLarge = errors.New("write exceeds maximum file size")
)

// DeviceError wraps a failed Device block read or write (BGet, BPut,
// and Mountfs's read of block 0) and Mountfs's decoding of the
// superblock, so that the original error remains reachable through
// errors.Unwrap/errors.As while the caller still gets a blockfs-flavored
// message. Serialization failures inside other operations (inode,
// directory entry and superblock encoding) are not wrapped in a
// DeviceError; they are returned as the Block methods report them.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("blockfs: %s: %s", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func wrapDeviceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}
