// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package torrenttest provides utilities for building test content trees and
// computing reference piece digests.
package torrenttest

import (
	"crypto/sha1"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Pattern returns n deterministic bytes that differ for different seeds.
func Pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	x := uint32(seed)*2654435761 + 1
	for i := range p {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		p[i] = byte(x)
	}
	return p
}

// WriteTree creates the files of tree under dir.  Keys are slash separated
// paths relative to dir; parent directories are created as needed.
func WriteTree(tb testing.TB, dir string, tree map[string][]byte) {
	tb.Helper()
	for name, content := range tree {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("create directory for %q: %v", name, err)
		}
		if err := os.WriteFile(p, content, 0o644); err != nil {
			tb.Fatalf("write %q: %v", name, err)
		}
	}
}

// Concat returns the contents of tree concatenated in ascending order of
// the keys.  For keys without dot or ignored segments this is the order of
// the logical stream of a descriptor built from the tree, as long as no name
// sorts differently as a whole path than segment by segment.
func Concat(tree map[string][]byte) []byte {
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	var p []byte
	for _, name := range names {
		p = append(p, tree[name]...)
	}
	return p
}

// Pieces segments data into windows of plen bytes and returns the SHA-1
// digest of each.  The last window may be short.  Empty data has no pieces.
func Pieces(data []byte, plen int64) [][sha1.Size]byte {
	var pieces [][sha1.Size]byte
	for len(data) > 0 {
		n := int64(len(data))
		if n > plen {
			n = plen
		}
		pieces = append(pieces, sha1.Sum(data[:n]))
		data = data[n:]
	}
	return pieces
}
