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
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

var (
	_ fs.FS        = (*View)(nil)
	_ fs.ReadDirFS = (*View)(nil)
	_ fs.StatFS    = (*View)(nil)
)

// View adapts a mounted FS to the standard io/fs.FS interfaces, rooted
// at a given inode (typically inode 1, the root directory), so tooling
// written against io/fs (fs.WalkDir, dirhash) can traverse it.
type View struct {
	fs   *FS
	root uint64
}

// NewView returns a View rooted at root.
func NewView(fs *FS, root uint64) *View {
	return &View{fs: fs, root: root}
}

func (v *View) Open(name string) (fs.File, error) {
	ino, err := v.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	return &viewFile{fs: v.fs, name: filepath.Base(name), inode: ino}, nil
}

func (v *View) ReadDir(name string) ([]fs.DirEntry, error) {
	ino, err := v.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if ino.DInode.Ft != FtDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrInodeWrongType}
	}

	entries, err := v.fs.listDir(ino)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}

	dirents := make([]fs.DirEntry, 0, len(entries))
	for _, de := range entries {
		child, err := v.fs.IGet(de.Inum)
		if err != nil {
			return nil, err
		}
		dirents = append(dirents, &viewDirEntry{name: de.name, inode: child})
	}

	return dirents, nil
}

func (v *View) Stat(name string) (fs.FileInfo, error) {
	ino, err := v.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}

	return &viewFileInfo{name: filepath.Base(name), inode: ino}, nil
}

func (v *View) resolve(name string) (Inode, error) {
	ino, err := v.fs.IGet(v.root)
	if err != nil {
		return Inode{}, err
	}
	if name == "." {
		return ino, nil
	}

	for _, comp := range splitPath(name) {
		ino, _, err = v.fs.DirLookup(ino, comp)
		if err != nil {
			return Inode{}, err
		}
	}

	return ino, nil
}

// namedEntry pairs a non-deleted DirEntry with its decoded name.
type namedEntry struct {
	Inum uint64
	name string
}

// listDir returns every live (non-"." non-".." non-hole) entry in dir,
// in on-disk block/slot order.
func (fs *FS) listDir(dir Inode) ([]namedEntry, error) {
	dpb := fs.dpb()
	nblocks := ceilDiv(dir.DInode.Size, fs.sb.BlockSize)

	var entries []namedEntry
	for k := uint64(0); k < nblocks; k++ {
		abs := dir.DInode.DirectBlocks[k]
		if abs == 0 {
			continue
		}

		b, err := fs.BGet(abs)
		if err != nil {
			return nil, err
		}

		for slot := uint64(0); slot < dpb; slot++ {
			off := k*fs.sb.BlockSize + slot*uint64(DirEntrySize)
			if off >= dir.DInode.Size {
				break
			}

			var de DirEntry
			if err := b.DeserializeFrom(&de, int(slot)*DirEntrySize); err != nil {
				return nil, err
			}
			if de.Inum == 0 {
				continue
			}

			name := GetNameStr(de)
			if name == "." || name == ".." {
				continue
			}

			entries = append(entries, namedEntry{Inum: de.Inum, name: name})
		}
	}

	return entries, nil
}

func splitPath(name string) []string {
	var components []string
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}

type viewFile struct {
	fs     *FS
	name   string
	inode  Inode
	offset uint64
}

func (f *viewFile) Read(p []byte) (int, error) {
	n, err := f.fs.IRead(f.inode, p, f.offset, len(p))
	f.offset += uint64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *viewFile) Close() error {
	return nil
}

func (f *viewFile) Stat() (fs.FileInfo, error) {
	return &viewFileInfo{name: f.name, inode: f.inode}, nil
}

type viewDirEntry struct {
	name  string
	inode Inode
}

func (de *viewDirEntry) Name() string {
	return de.name
}

func (de *viewDirEntry) IsDir() bool {
	return de.inode.DInode.Ft == FtDir
}

func (de *viewDirEntry) Type() fs.FileMode {
	if de.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (de *viewDirEntry) Info() (fs.FileInfo, error) {
	return &viewFileInfo{name: de.name, inode: de.inode}, nil
}

type viewFileInfo struct {
	name  string
	inode Inode
}

func (fi *viewFileInfo) Name() string {
	return fi.name
}

func (fi *viewFileInfo) Size() int64 {
	return int64(fi.inode.DInode.Size)
}

func (fi *viewFileInfo) Mode() fs.FileMode {
	if fi.inode.DInode.Ft == FtDir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

func (fi *viewFileInfo) ModTime() time.Time {
	return time.Time{}
}

func (fi *viewFileInfo) IsDir() bool {
	return fi.inode.DInode.Ft == FtDir
}

func (fi *viewFileInfo) Sys() any {
	return &fi.inode
}
