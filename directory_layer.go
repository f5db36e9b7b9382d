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
	"bytes"
	"unicode"
)

// GetNameStr returns the NUL-terminated prefix of de's name field.
func GetNameStr(de DirEntry) string {
	n := bytes.IndexByte(de.Name[:], 0)
	if n == -1 {
		n = len(de.Name)
	}
	return string(de.Name[:n])
}

// SetNameStr encodes name into de's fixed-width name field. name must
// be non-empty, no longer than DirNameSize, and either "." or ".." or
// made up entirely of alphanumeric characters.
func SetNameStr(de *DirEntry, name string) error {
	if !validEntryName(name) {
		return ErrInvalidEntryName
	}

	de.Name = [DirNameSize]byte{}
	copy(de.Name[:], name)
	return nil
}

func validEntryName(name string) bool {
	if len(name) == 0 || len(name) > DirNameSize {
		return false
	}
	if name == "." || name == ".." {
		return true
	}
	for _, r := range name {
		if !isAlphanumeric(r) {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NewDirEntry returns a DirEntry referencing inum under name, or
// ErrInvalidEntryName if name fails SetNameStr's rules.
func NewDirEntry(inum uint64, name string) (DirEntry, error) {
	de := DirEntry{Inum: inum}
	if err := SetNameStr(&de, name); err != nil {
		return DirEntry{}, err
	}
	return de, nil
}

// DirLookup searches dir (which must be a directory) for an entry
// named name, in block then slot order, stopping at dir's logical
// size. On a match it returns the referenced inode and the absolute
// byte offset of the entry within dir's content.
func (fs *FS) DirLookup(dir Inode, name string) (Inode, uint64, error) {
	if dir.DInode.Ft != FtDir {
		return Inode{}, 0, ErrInodeWrongType
	}

	dpb := fs.dpb()
	nblocks := ceilDiv(dir.DInode.Size, fs.sb.BlockSize)

	for k := uint64(0); k < nblocks; k++ {
		abs := dir.DInode.DirectBlocks[k]
		if abs == 0 {
			continue
		}

		b, err := fs.BGet(abs)
		if err != nil {
			return Inode{}, 0, err
		}

		for slot := uint64(0); slot < dpb; slot++ {
			off := k*fs.sb.BlockSize + slot*uint64(DirEntrySize)
			if off >= dir.DInode.Size {
				break
			}

			var de DirEntry
			if err := b.DeserializeFrom(&de, int(slot)*DirEntrySize); err != nil {
				return Inode{}, 0, err
			}
			if de.Inum == 0 {
				continue
			}
			if GetNameStr(de) == name {
				target, err := fs.IGet(de.Inum)
				if err != nil {
					return Inode{}, 0, err
				}
				return target, off, nil
			}
		}
	}

	return Inode{}, 0, ErrNoEntryFoundForName
}

// DirLink inserts a new entry (name -> inum) into dir, extending dir's
// directory-block allocation as needed, and returns the absolute byte
// offset at which the entry was written. dir is mutated and persisted
// in place.
func (fs *FS) DirLink(dir *Inode, name string, inum uint64) (uint64, error) {
	if dir.DInode.Ft != FtDir {
		return 0, ErrInodeWrongType
	}

	target, err := fs.IGet(inum)
	if err != nil {
		return 0, err
	}
	if target.DInode.Ft == FtFree {
		return 0, ErrDirectoryInodeNotInUse
	}

	de, err := NewDirEntry(inum, name)
	if err != nil {
		return 0, ErrInvalidEntryName
	}

	if _, _, err := fs.DirLookup(*dir, name); err == nil {
		return 0, ErrInvalidEntryName
	} else if err != ErrNoEntryFoundForName {
		return 0, err
	}

	off, err := fs.insertEntry(dir, de)
	if err != nil {
		return 0, err
	}

	if inum != dir.Inum {
		target.DInode.Nlink++
		if err := fs.IPut(target); err != nil {
			return 0, err
		}
	}

	return off, nil
}

// insertEntry implements DirLink's first-fit insertion policy: an
// empty slot within dir's already-counted content, then room left in
// the current frontier block, then a freshly allocated block.
func (fs *FS) insertEntry(dir *Inode, de DirEntry) (uint64, error) {
	dpb := fs.dpb()
	occupiedBlocks := ceilDiv(dir.DInode.Size, fs.sb.BlockSize)

	for k := uint64(0); k < occupiedBlocks; k++ {
		abs := dir.DInode.DirectBlocks[k]
		if abs == 0 {
			continue
		}

		b, err := fs.BGet(abs)
		if err != nil {
			return 0, err
		}

		for slot := uint64(0); slot < dpb; slot++ {
			off := k*fs.sb.BlockSize + slot*uint64(DirEntrySize)
			if off >= dir.DInode.Size {
				break
			}

			var existing DirEntry
			if err := b.DeserializeFrom(&existing, int(slot)*DirEntrySize); err != nil {
				return 0, err
			}
			if existing.Inum != 0 {
				continue
			}

			if err := b.SerializeInto(&de, int(slot)*DirEntrySize); err != nil {
				return 0, err
			}
			if err := fs.BPut(b); err != nil {
				return 0, err
			}
			return off, nil
		}
	}

	withinBlock := dir.DInode.Size % fs.sb.BlockSize
	curBlockIdx := dir.DInode.Size / fs.sb.BlockSize
	if withinBlock != 0 && withinBlock+uint64(DirEntrySize) <= fs.sb.BlockSize && dir.DInode.DirectBlocks[curBlockIdx] != 0 {
		abs := dir.DInode.DirectBlocks[curBlockIdx]
		b, err := fs.BGet(abs)
		if err != nil {
			return 0, err
		}

		if err := b.SerializeInto(&de, int(withinBlock)); err != nil {
			return 0, err
		}
		if err := fs.BPut(b); err != nil {
			return 0, err
		}

		off := dir.DInode.Size
		dir.DInode.Size += uint64(DirEntrySize)
		if err := fs.IPut(*dir); err != nil {
			return 0, err
		}
		return off, nil
	}

	if occupiedBlocks == NDirect {
		return 0, ErrInodeBlocksFull
	}

	newIdx, err := fs.BAlloc()
	if err != nil {
		return 0, err
	}
	abs := fs.sb.DataStart + newIdx

	b, err := fs.BGet(abs)
	if err != nil {
		return 0, err
	}
	if err := b.SerializeInto(&de, 0); err != nil {
		return 0, err
	}
	if err := fs.BPut(b); err != nil {
		return 0, err
	}

	dir.DInode.DirectBlocks[occupiedBlocks] = abs
	off := occupiedBlocks * fs.sb.BlockSize
	dir.DInode.Size = occupiedBlocks*fs.sb.BlockSize + uint64(DirEntrySize)
	if err := fs.IPut(*dir); err != nil {
		return 0, err
	}

	return off, nil
}
