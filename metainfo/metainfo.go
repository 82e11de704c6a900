// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metainfo builds torrent-style descriptors: the file list, piece
// length and per-piece SHA-1 digests of a file or directory tree, wrapped
// with a tracker locator and optional descriptive fields.
//
// The files of a directory are hashed as one logical stream in a fixed,
// platform independent order, so a piece may straddle two or more files.
package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"io"

	"github.com/bmatsuo/metafile/bencoding"
)

// PieceDigest is the SHA-1 digest of one piece.
type PieceDigest [sha1.Size]byte

func (d PieceDigest) String() string { return hex.EncodeToString(d[:]) }

// One file in a multi-file Info object.
type FileInfo struct {
	Path        []string // File path components.
	Length      int64    // Length in bytes.
	MD5Sum      string   // Optional.
	ContentType string   // Optional.
}

// The main contents of a Metainfo type.
type Info struct {
	Name        string        // Name of file (single-file mode) or directory (multi-file mode)
	PieceLength int64         // Length in bytes.
	Pieces      []PieceDigest // SHA-1 hash values of all pieces
	Length      int64         // Single-file mode only.
	Files       []FileInfo    // Nil if and only if single-file mode
	MD5Sum      string        // Optional, single-file mode only.
	ContentType string        // Optional, single-file mode only.
	Private     bool          // Optional
}

// Returns true if info is in Single file mode.
func (info *Info) SingleFileMode() bool { return info.Files == nil }

// NumPieces returns the number of pieces.
func (info *Info) NumPieces() int { return len(info.Pieces) }

// TotalLength returns the length of the logical stream the pieces cover.
func (info *Info) TotalLength() int64 {
	if info.SingleFileMode() {
		return info.Length
	}
	var n int64
	for _, f := range info.Files {
		n += f.Length
	}
	return n
}

// Empty reports whether info describes no content at all: a directory
// without files.  Such an Info is legal but of no use to a downloader.
func (info *Info) Empty() bool {
	return !info.SingleFileMode() && len(info.Files) == 0
}

// MarshalBencoding writes the info dictionary.  The keys present depend on
// the mode: "length" in single-file mode, "files" (possibly an empty list) in
// multi-file mode.
func (info Info) MarshalBencoding() ([]byte, error) {
	pieces := make([]byte, 0, len(info.Pieces)*sha1.Size)
	for _, d := range info.Pieces {
		pieces = append(pieces, d[:]...)
	}
	dict := map[string]interface{}{
		"name":         info.Name,
		"piece length": info.PieceLength,
		"pieces":       pieces,
	}
	if info.Private {
		dict["private"] = 1
	}
	if info.SingleFileMode() {
		dict["length"] = info.Length
		addOptional(dict, "md5sum", info.MD5Sum)
		addOptional(dict, "content_type", info.ContentType)
		return bencoding.Marshal(dict)
	}
	files := make([]map[string]interface{}, 0, len(info.Files))
	for _, f := range info.Files {
		file := map[string]interface{}{
			"length": f.Length,
			"path":   f.Path,
		}
		addOptional(file, "md5sum", f.MD5Sum)
		addOptional(file, "content_type", f.ContentType)
		files = append(files, file)
	}
	dict["files"] = files
	return bencoding.Marshal(dict)
}

func addOptional(dict map[string]interface{}, key, value string) {
	if value != "" {
		dict[key] = value
	}
}

// Hash returns the SHA-1 digest of the canonical encoding of info, the
// value peers use to identify the content.
func (info *Info) Hash() ([sha1.Size]byte, error) {
	p, err := bencoding.Marshal(info)
	if err != nil {
		return [sha1.Size]byte{}, err
	}
	return sha1.Sum(p), nil
}

// The contents of a .torrent file.
type Metainfo struct {
	Announce     string   `bencoding:"announce"`             // Required
	CreationDate int64    `bencoding:"creation date"`        // Seconds since the Unix epoch.
	Info         *Info    `bencoding:"info"`                 // Required
	Title        string   `bencoding:"title,omitempty"`      // Optional
	Comment      string   `bencoding:"comment,omitempty"`    // Optional
	CreatedBy    string   `bencoding:"created by,omitempty"` // Optional
	Safe         string   `bencoding:"safe,omitempty"`       // Optional
	URLList      []string `bencoding:"url-list,omitempty"`   // Optional
}

// Encode writes the canonical encoding of meta to w.  Nothing is written if
// meta cannot be encoded.
func (meta *Metainfo) Encode(w io.Writer) error {
	return bencoding.NewEncoder(w).Encode(meta)
}
