//go:build windows

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package blockdev

import "errors"

// FileDevice is not implemented on Windows; use MemDevice, or a custom
// Device backed by os.File + ReadAt/WriteAt, instead.
type FileDevice struct{}

func OpenFileDevice(path string, blockSize uint32, nblocks uint64) (*FileDevice, error) {
	return nil, errors.New("blockdev: FileDevice is not supported on windows")
}

func CreateFileDevice(path string, blockSize uint32, nblocks uint64) (*FileDevice, error) {
	return nil, errors.New("blockdev: FileDevice is not supported on windows")
}
