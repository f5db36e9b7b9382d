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
	"bytes"
	"encoding/binary"
	"fmt"
)

// Block is a fixed-size byte array tagged with the index it was read
// from (or is destined for).
type Block struct {
	Index uint64
	Data  []byte
}

// NewZeroBlock returns an all-zero block of the given size, tagged with
// index.
func NewZeroBlock(index uint64, size uint32) *Block {
	return &Block{
		Index: index,
		Data:  make([]byte, size),
	}
}

// SerializeInto marshals v (in binary.LittleEndian order) into the
// block starting at byte offset off.
func (b *Block) SerializeInto(v any, off int) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("value of type %T is not fixed-size", v)
	}
	if off < 0 || off+n > len(b.Data) {
		return fmt.Errorf("serialize at offset %d, size %d: out of range of block of size %d", off, n, len(b.Data))
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	copy(b.Data[off:off+n], buf.Bytes())
	return nil
}

// DeserializeFrom unmarshals a value of the same shape as v (in
// binary.LittleEndian order) from the block starting at byte offset
// off, into v.
func (b *Block) DeserializeFrom(v any, off int) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("value of type %T is not fixed-size", v)
	}
	if off < 0 || off+n > len(b.Data) {
		return fmt.Errorf("deserialize at offset %d, size %d: out of range of block of size %d", off, n, len(b.Data))
	}

	r := bytes.NewReader(b.Data[off : off+n])
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// ReadData copies len(buf) bytes from the block starting at byte
// offset off into buf.
func (b *Block) ReadData(buf []byte, off int) error {
	if off < 0 || off+len(buf) > len(b.Data) {
		return fmt.Errorf("read at offset %d, length %d: out of range of block of size %d", off, len(buf), len(b.Data))
	}
	copy(buf, b.Data[off:off+len(buf)])
	return nil
}

// WriteData copies buf into the block starting at byte offset off.
func (b *Block) WriteData(buf []byte, off int) error {
	if off < 0 || off+len(buf) > len(b.Data) {
		return fmt.Errorf("write at offset %d, length %d: out of range of block of size %d", off, len(buf), len(b.Data))
	}
	copy(b.Data[off:off+len(buf)], buf)
	return nil
}
