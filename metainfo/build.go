// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"
)

// MaxPieceExponent bounds the piece length to 1 TiB.
const MaxPieceExponent = 40

// PieceLength returns the piece length 2^exp.
func PieceLength(exp int) (int64, error) {
	if exp <= 0 || exp > MaxPieceExponent {
		return 0, &ConfigError{
			Field:  "piece exponent",
			Reason: fmt.Sprintf("%d is outside [1, %d]", exp, MaxPieceExponent),
		}
	}
	return int64(1) << exp, nil
}

var utf8Normalizer = &Normalizer{name: DefaultEncoding}

// Build hashes the file or directory at root and returns its Info.  Pieces
// are 2^exp bytes long.
//
// A directory is walked recursively, skipping ignored names and dot files.
// Symbolic links to files are followed.  Symbolic links to directories are
// skipped, so content reached only through such a link is left out.  The
// files are sorted by their normalized path and hashed as one stream, and
// the Info lists them in that order.  A directory with no files yields an
// Info with an empty file list and no pieces; see Info.Empty.
//
// The context can be used to abandon the build; nothing is returned for a
// cancelled build.
func Build(ctx context.Context, root string, exp int, opts ...BuildOption) (*Info, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioError("resolve", root, err)
	}
	dir, base := filepath.Split(abs)
	if base == "" {
		dir, base = abs, "."
	}
	b, err := newBuilder(opts)
	if err != nil {
		return nil, err
	}
	b.base = dir
	return b.build(ctx, osFS(dir), base, exp)
}

// BuildFS is like Build but reads root from fsys.  When root is "." the
// name must be supplied with WithName.
func BuildFS(ctx context.Context, fsys fs.FS, root string, exp int, opts ...BuildOption) (*Info, error) {
	b, err := newBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.build(ctx, fsys, root, exp)
}

type builder struct {
	cfg    buildConfig
	norm   *Normalizer
	ignore map[string]bool
	log    *slog.Logger
	base   string // host directory of the walked fs.FS, for error messages
}

func newBuilder(opts []BuildOption) (*builder, error) {
	cfg := buildConfig{
		ignore:    DefaultIgnore,
		readAhead: DefaultReadAhead,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	norm, err := NewNormalizer(cfg.encoding)
	if err != nil {
		return nil, err
	}
	b := &builder{
		cfg:    cfg,
		norm:   norm,
		ignore: make(map[string]bool, len(cfg.ignore)),
		log:    cfg.logger,
	}
	if b.log == nil {
		b.log = slog.New(slog.DiscardHandler)
	}
	for _, name := range cfg.ignore {
		b.ignore[name] = true
	}
	return b, nil
}

// source is one file of the logical stream.
type source struct {
	path []string // normalized segments
	name string   // location within the fs.FS
	size int64
}

func (b *builder) build(ctx context.Context, fsys fs.FS, root string, exp int) (*Info, error) {
	plen, err := PieceLength(exp)
	if err != nil {
		return nil, err
	}
	name, err := b.rootName(root)
	if err != nil {
		return nil, err
	}
	st, err := fs.Stat(fsys, root)
	if err != nil {
		return nil, b.ioError("stat", root, err)
	}

	var info *Info
	switch {
	case st.IsDir():
		info, err = b.buildDir(ctx, fsys, root, plen, name)
	case st.Mode().IsRegular():
		info, err = b.buildFile(ctx, fsys, root, st.Size(), plen, name)
	default:
		err = b.ioError("open", root, errors.New("not a regular file or directory"))
	}
	if err != nil {
		return nil, err
	}

	info.Private = b.cfg.private
	if info.Empty() {
		b.log.Warn("directory contains no files", "root", b.where(root))
	}
	nfiles := len(info.Files)
	if info.SingleFileMode() {
		nfiles = 1
	}
	b.log.Info("built metainfo",
		"name", info.Name,
		"files", nfiles,
		"size", info.TotalLength(),
		"piece_length", plen,
		"pieces", info.NumPieces(),
	)
	return info, nil
}

func (b *builder) rootName(root string) (string, error) {
	if b.cfg.hasName {
		return utf8Normalizer.Normalize(b.cfg.name)
	}
	base := path.Base(root)
	if base == "." || base == "/" {
		return "", &ConfigError{Field: "name", Reason: "root has no base name"}
	}
	name, err := b.norm.Normalize(base)
	if err != nil {
		return "", b.nameError(root, err)
	}
	return name, nil
}

func (b *builder) buildDir(ctx context.Context, fsys fs.FS, root string, plen int64, name string) (*Info, error) {
	entries, err := b.enumerate(fsys, root)
	if err != nil {
		return nil, err
	}
	files := make([]source, len(entries))
	var total int64
	for i, e := range entries {
		segs := make([]string, len(e.path))
		for j, raw := range e.path {
			segs[j], err = b.norm.Normalize(raw)
			if err != nil {
				return nil, b.nameError(e.name, err)
			}
		}
		st, serr := fs.Stat(fsys, e.name)
		if serr != nil {
			return nil, b.ioError("stat", e.name, serr)
		}
		files[i] = source{path: segs, name: e.name, size: st.Size()}
		total += st.Size()
	}
	// The stream order follows the names stored in the descriptor, not the
	// raw names on disk.
	slices.SortFunc(files, func(x, y source) int {
		return slices.Compare(x.path, y.path)
	})
	b.log.Debug("enumerated directory", "root", b.where(root), "files", len(files), "size", total)

	w, err := NewWriter(plen)
	if err != nil {
		return nil, err
	}
	w.SetMD5Sum(b.cfg.md5sum)
	open := func(src source) error { return w.Open(src.path...) }
	if err := b.hash(ctx, fsys, w, files, open); err != nil {
		return nil, err
	}
	info, err := w.Info(name)
	if err != nil {
		return nil, err
	}
	for i := range info.Files {
		info.Files[i].ContentType = b.cfg.contentType
	}
	return info, nil
}

func (b *builder) buildFile(ctx context.Context, fsys fs.FS, root string, size, plen int64, name string) (*Info, error) {
	w, err := NewWriterSingle(plen, name)
	if err != nil {
		return nil, err
	}
	w.SetMD5Sum(b.cfg.md5sum)
	files := []source{{path: []string{name}, name: root, size: size}}
	if err := b.hash(ctx, fsys, w, files, nil); err != nil {
		return nil, err
	}
	info, err := w.Info(name)
	if err != nil {
		return nil, err
	}
	info.ContentType = b.cfg.contentType
	return info, nil
}

type chunk struct {
	file  int
	first bool   // first chunk of the file; sent even when the file is empty
	buf   []byte // pooled buffer
	n     int
}

// hash streams files into w in order.  One goroutine reads ahead into pooled
// buffers while another feeds w, so output does not depend on timing.  open,
// if not nil, is called before the first byte of each file.
func (b *builder) hash(ctx context.Context, fsys fs.FS, w io.Writer, files []source, open func(source) error) error {
	depth := max(b.cfg.readAhead, 0)
	chunks := make(chan chunk, depth)
	free := make(chan []byte, depth+2)
	for range depth + 2 {
		free <- make([]byte, chunkSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		for i, src := range files {
			if err := b.readFile(gctx, fsys, i, src, chunks, free); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			var c chunk
			var ok bool
			select {
			case <-gctx.Done():
				return gctx.Err()
			case c, ok = <-chunks:
			}
			if !ok {
				return nil
			}
			if c.first && open != nil {
				if err := open(files[c.file]); err != nil {
					return err
				}
			}
			if c.n > 0 {
				if _, err := w.Write(c.buf[:c.n]); err != nil {
					return err
				}
				b.report(int64(c.n))
			}
			free <- c.buf
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	// A build that finished in spite of cancellation is still discarded.
	return ctx.Err()
}

// readFile sends exactly src.size bytes of src in chunks.  A file that
// shrinks while being read is an error; growth past the size recorded during
// enumeration is ignored.
func (b *builder) readFile(ctx context.Context, fsys fs.FS, i int, src source, chunks chan<- chunk, free chan []byte) error {
	f, err := fsys.Open(src.name)
	if err != nil {
		return b.ioError("open", src.name, err)
	}
	defer f.Close()

	r := io.LimitReader(f, src.size)
	var read int64
	for first := true; ; {
		var buf []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf = <-free:
		}
		n, err := io.ReadFull(r, buf)
		read += int64(n)
		if n > 0 || first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunks <- chunk{file: i, first: first, buf: buf, n: n}:
			}
			first = false
		} else {
			free <- buf
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return b.ioError("read", src.name, err)
		}
	}
	if read != src.size {
		return b.ioError("read", src.name, fmt.Errorf("file shrank during hashing: read %d of %d bytes", read, src.size))
	}
	return nil
}

func (b *builder) report(n int64) {
	if b.cfg.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("progress callback panicked", "panic", r)
		}
	}()
	b.cfg.progress(n)
}

func (b *builder) where(name string) string {
	if b.base == "" {
		return name
	}
	return filepath.Join(b.base, filepath.FromSlash(name))
}

// nameError records the location of the file whose name failed to
// normalize.
func (b *builder) nameError(name string, err error) error {
	switch e := err.(type) {
	case *EncodingError:
		e.Path = b.where(name)
	case *ReservedCharacterError:
		e.Path = b.where(name)
	}
	return err
}

func (b *builder) ioError(op, name string, err error) error {
	return ioError(op, b.where(name), err)
}

func ioError(op, name string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &IOError{Op: op, Path: name, Err: err}
}
