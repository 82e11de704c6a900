// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"io/fs"
	"path"
	"slices"
	"strings"
)

// DefaultIgnore lists entry names that are never included in a directory
// descriptor.  Names beginning with a dot are always skipped as well.
var DefaultIgnore = []string{"core", "CVS", "Thumbs.db", "desktop.ini"}

// fileEntry is one leaf file found under a root directory.
type fileEntry struct {
	path []string // raw segments relative to the root
	name string   // location within the walked fs.FS
}

type walkItem struct {
	path []string
	name string
}

// enumerate lists the regular files beneath dir in fsys in no particular
// order.  The walk uses an explicit stack so depth is bounded only by
// memory.  Symbolic links to files are followed, links to directories are
// not.
func (b *builder) enumerate(fsys fs.FS, dir string) ([]fileEntry, error) {
	var files []fileEntry
	stack := []walkItem{{name: dir}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dirents, err := fs.ReadDir(fsys, item.name)
		if err != nil {
			return nil, b.ioError("readdir", item.name, err)
		}
		for _, d := range dirents {
			base := d.Name()
			if b.ignore[base] || strings.HasPrefix(base, ".") {
				b.log.Debug("skipped ignored entry", "path", path.Join(item.name, base))
				continue
			}
			child := walkItem{
				path: append(slices.Clip(item.path), base),
				name: path.Join(item.name, base),
			}
			mode := d.Type()
			if mode&fs.ModeSymlink != 0 {
				info, err := fs.Stat(fsys, child.name)
				if err != nil {
					return nil, b.ioError("stat", child.name, err)
				}
				if info.IsDir() {
					b.log.Debug("skipped directory symlink", "path", child.name)
					continue
				}
				mode = info.Mode().Type()
			}
			switch {
			case mode.IsDir():
				stack = append(stack, child)
			case mode.IsRegular():
				files = append(files, fileEntry(child))
			default:
				b.log.Debug("skipped irregular file", "path", child.name, "mode", mode.String())
			}
		}
	}
	return files, nil
}
