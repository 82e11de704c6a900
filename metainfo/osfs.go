// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"io/fs"
	"os"
	"path/filepath"
)

// osFS is the host directory tree rooted at a directory.  Unlike os.DirFS it
// accepts names that are not valid UTF-8, which legacy filesystem encodings
// produce.  Names are still slash separated and relative.
type osFS string

func (dir osFS) join(name string) string {
	return filepath.Join(string(dir), filepath.FromSlash(name))
}

func (dir osFS) Open(name string) (fs.File, error) {
	f, err := os.Open(dir.join(name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (dir osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(dir.join(name))
}

func (dir osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir.join(name))
}
