// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"crypto/md5"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
)

var errClosed = errors.New("closed")

// pieceWriter segments a byte stream into pieces of plen bytes and records
// the SHA-1 digest of each.  It is either idle (sha == nil, no bytes of the
// current piece seen) or accumulating done bytes of the current piece.
// A pieceWriter belongs to a single Writer and is not safe for concurrent use.
type pieceWriter struct {
	pieces []PieceDigest
	plen   int64
	done   int64
	sha    hash.Hash
	closed bool
}

func newPieceWriter(plen int64) *pieceWriter {
	return &pieceWriter{plen: plen}
}

func (w *pieceWriter) nonnil() {
	if w == nil {
		panic("nil receiver")
	}
}

// Pieces returns the digests of all completed pieces.
func (w *pieceWriter) Pieces() []PieceDigest {
	w.nonnil()
	return append([]PieceDigest(nil), w.pieces...)
}

// Write feeds p into the current piece, emitting a digest each time a piece
// fills.  A piece boundary may fall anywhere in p.
func (w *pieceWriter) Write(p []byte) (int, error) {
	w.nonnil()
	if w.closed {
		return 0, errClosed
	}
	n := len(p)
	for len(p) > 0 {
		if w.sha == nil {
			w.sha = sha1.New()
		}
		cut := w.plen - w.done
		if int64(len(p)) < cut {
			cut = int64(len(p))
		}
		w.sha.Write(p[:cut])
		w.done += cut
		p = p[cut:]
		if w.done == w.plen {
			w.emit()
		}
	}
	return n, nil
}

func (w *pieceWriter) emit() {
	var d PieceDigest
	w.sha.Sum(d[:0])
	w.pieces = append(w.pieces, d)
	w.sha = nil
	w.done = 0
}

// Close emits the trailing partial piece, if any bytes of it were written.
func (w *pieceWriter) Close() error {
	w.nonnil()
	if w.closed {
		return errClosed
	}
	if w.done > 0 {
		w.emit()
	}
	w.closed = true
	return nil
}

type fileInfoWriter struct {
	path   []string
	w      *pieceWriter
	length int64
	md5    hash.Hash // nil unless checksums were requested
	closed bool
}

func newFileInfoWriter(w *pieceWriter, path []string, sum bool) *fileInfoWriter {
	w.nonnil()
	info := &fileInfoWriter{
		path: path,
		w:    w,
	}
	if sum {
		info.md5 = md5.New()
	}
	return info
}

func (h *fileInfoWriter) nonnil() {
	if h == nil {
		panic("nil header")
	}
}

func (h *fileInfoWriter) Write(p []byte) (int, error) {
	h.nonnil()
	if h.closed {
		return 0, errClosed
	}
	n, err := h.w.Write(p)
	if n > 0 && h.md5 != nil {
		h.md5.Write(p[:n])
	}
	h.length += int64(n)
	return n, err
}

// Close ends the file.  The piece writer is left open so the next file
// continues the current piece.
func (h *fileInfoWriter) Close() error {
	h.nonnil()
	h.closed = true
	return nil
}

func (h *fileInfoWriter) MD5Sum() string {
	if h.md5 == nil {
		return ""
	}
	return fmt.Sprintf("%x", h.md5.Sum(nil))
}

// Writer is used to compute piece digests and file lengths and create Info
// objects.  Files are written one after another, as a single stream, in the
// order they are opened; a piece may span the end of one file and the
// beginning of the next.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	closed bool
	files  []*fileInfoWriter
	file   *fileInfoWriter
	single bool
	md5sum bool
	plen   int64
	w      *pieceWriter
}

// NewWriter allocates and returns a new Writer in directory mode.
func NewWriter(plen int64) (*Writer, error) {
	if plen <= 0 {
		return nil, &ConfigError{Field: "piece length", Reason: fmt.Sprintf("%d is not positive", plen)}
	}
	t := &Writer{
		plen: plen,
		w:    newPieceWriter(plen),
	}
	return t, nil
}

// NewWriterSingle returns a writer in single-file mode.  Writers returned by
// NewWriterSingle can be written to without opening a path.
func NewWriterSingle(plen int64, name string) (*Writer, error) {
	t, err := NewWriter(plen)
	if err != nil {
		return nil, err
	}
	err = t.Open(name)
	if err != nil {
		return nil, err
	}
	t.single = true
	return t, nil
}

func (t *Writer) nonnil() {
	if t == nil {
		panic("nil writer")
	}
}

// SetMD5Sum enables computation of an md5sum for every subsequently opened
// file, and for the open file if nothing has been written to it yet.
func (t *Writer) SetMD5Sum(on bool) {
	t.nonnil()
	t.md5sum = on
	if on && t.file != nil && t.file.length == 0 && t.file.md5 == nil {
		t.file.md5 = md5.New()
	}
}

// Open creates a new file entry in t.  Subsequent calls to Write increment
// the file's length counter.
func (t *Writer) Open(path ...string) error {
	t.nonnil()
	if t.closed {
		return errClosed
	}
	if t.file != nil && t.single {
		return fmt.Errorf("single-file writer cannot create new files")
	}
	if t.file != nil {
		t.file.Close()
	}
	file := newFileInfoWriter(t.w, path, t.md5sum)
	t.files = append(t.files, file)
	t.file = file
	return nil
}

// Write adds bytes to t's open file.  Write returns an error if t.Open() has
// not been called.
func (t *Writer) Write(p []byte) (int, error) {
	t.nonnil()
	if t.closed {
		return 0, errClosed
	}
	if t.file == nil {
		return 0, fmt.Errorf("no open file")
	}
	return t.file.Write(p)
}

// Close flushes checksum buffers and prevents future write operations on t.
func (t *Writer) Close() error {
	t.nonnil()
	if t.closed {
		return errClosed
	}
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	t.closed = true
	return t.w.Close()
}

// Info returns an Info built from the bytes written to t.  Info closes t if
// it is not already closed.  If t is in single-file mode, name is ignored
// and the name given to NewWriterSingle is used.  Otherwise it is used as the
// Info's Name field.
func (t *Writer) Info(name string) (*Info, error) {
	err := t.Close()
	if err != nil && err != errClosed {
		return nil, err
	}
	if t.single {
		return t.infoSingle(), nil
	}
	return t.infoMulti(name), nil
}

func (t *Writer) infoMulti(name string) *Info {
	info := &Info{
		Name:        name,
		PieceLength: t.plen,
		Pieces:      t.w.Pieces(),
		Files:       make([]FileInfo, 0, len(t.files)),
	}
	for _, file := range t.files {
		info.Files = append(info.Files, FileInfo{
			Path:   file.path,
			Length: file.length,
			MD5Sum: file.MD5Sum(),
		})
	}
	return info
}

func (t *Writer) infoSingle() *Info {
	file := t.files[0]
	return &Info{
		Name:        file.path[0],
		PieceLength: t.plen,
		Pieces:      t.w.Pieces(),
		Length:      file.length,
		MD5Sum:      file.MD5Sum(),
	}
}
