// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mktorrent writes a .torrent descriptor for a file or directory.
//
//	mktorrent [flags] <announce> <path>
//
// The announce argument may be left out when the configuration file sets it.
// The descriptor is written beside path as <path>.torrent unless --output
// names another file.  An existing file is only replaced with --force.
package main

import (
	"bytes"
	"context"
	_ "crypto/sha256" // digest.Canonical
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/pflag"

	"github.com/bmatsuo/metafile/config"
	"github.com/bmatsuo/metafile/metainfo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "mktorrent: %v\n", err)
		var uerr *usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// usageError reports bad command line arguments.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

type flags struct {
	set *pflag.FlagSet

	configPath  string
	exp         int
	name        string
	title       string
	comment     string
	safe        string
	urls        []string
	output      string
	force       bool
	private     bool
	md5sum      bool
	contentType string
	encoding    string
	createdBy   string
	allowEmpty  bool
	quiet       bool
	verbose     bool
}

func newFlags(stderr io.Writer) *flags {
	f := &flags{set: pflag.NewFlagSet("mktorrent", pflag.ContinueOnError)}
	s := f.set
	s.SetOutput(stderr)
	s.Usage = func() {
		fmt.Fprintln(stderr, "usage: mktorrent [flags] <announce> <path>")
		s.PrintDefaults()
	}
	s.StringVar(&f.configPath, "config", "", "YAML configuration file (default $"+config.EnvVar+")")
	s.IntVarP(&f.exp, "piece-exponent", "p", 0, "piece length is 2^N bytes (default 19)")
	s.StringVar(&f.name, "name", "", "name stored in the descriptor (default base name of path)")
	s.StringVar(&f.title, "title", "", "descriptor title")
	s.StringVar(&f.comment, "comment", "", "descriptor comment")
	s.StringVar(&f.safe, "safe", "", "value of the descriptor's safe field")
	s.StringArrayVar(&f.urls, "url", nil, "extra download locator (repeatable)")
	s.StringVarP(&f.output, "output", "o", "", "output file (default <path>.torrent)")
	s.BoolVarP(&f.force, "force", "f", false, "replace an existing output file")
	s.BoolVar(&f.private, "private", false, "mark the content private")
	s.BoolVar(&f.md5sum, "md5sum", false, "record an md5sum for every file")
	s.StringVar(&f.contentType, "content-type", "", "content type recorded for every file")
	s.StringVar(&f.encoding, "encoding", "", "encoding of file names on disk (default utf-8)")
	s.StringVar(&f.createdBy, "created-by", "", "program recorded as the creator")
	s.BoolVar(&f.allowEmpty, "allow-empty", false, "write a descriptor for a directory without files")
	s.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings and errors")
	s.BoolVarP(&f.verbose, "verbose", "v", false, "log skipped files and other details")
	return f
}

// apply overrides the file configuration with every flag given explicitly.
func (f *flags) apply(cfg *config.Config) {
	s := f.set
	if s.Changed("piece-exponent") {
		cfg.PieceExponent = f.exp
	}
	if s.Changed("comment") {
		cfg.Comment = f.comment
	}
	if s.Changed("safe") {
		cfg.Safe = f.safe
	}
	if s.Changed("url") {
		cfg.URLList = f.urls
	}
	if s.Changed("private") {
		cfg.Private = f.private
	}
	if s.Changed("md5sum") {
		cfg.MD5Sum = f.md5sum
	}
	if s.Changed("encoding") {
		cfg.Encoding = f.encoding
	}
	if s.Changed("created-by") {
		cfg.CreatedBy = f.createdBy
	}
	if s.Changed("allow-empty") {
		cfg.AllowEmpty = f.allowEmpty
	}
}

// run writes a summary of the descriptor to stdout and diagnostics to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f := newFlags(stderr)
	if err := f.set.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cfg)

	var path string
	switch pos := f.set.Args(); {
	case len(pos) == 2:
		cfg.Announce, path = pos[0], pos[1]
	case len(pos) == 1 && cfg.Announce != "":
		path = pos[0]
	default:
		f.set.Usage()
		return &usageError{msg: "expected <announce> <path>"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, logLevel(f.quiet, f.verbose))
	output := f.output
	if output == "" {
		output = defaultOutput(path)
	}
	if !f.force {
		if _, err := os.Lstat(output); err == nil {
			return fmt.Errorf("%s exists; use --force to replace it", output)
		}
	}

	opts := []metainfo.BuildOption{
		metainfo.WithLogger(logger),
		metainfo.WithEncoding(cfg.Encoding),
		metainfo.WithReadAhead(cfg.ReadAhead),
		metainfo.WithMD5Sum(cfg.MD5Sum),
		metainfo.WithPrivate(cfg.Private),
		metainfo.WithContentType(f.contentType),
	}
	if cfg.Ignore != nil {
		opts = append(opts, metainfo.WithIgnore(cfg.Ignore...))
	}
	if f.name != "" {
		opts = append(opts, metainfo.WithName(f.name))
	}
	var prog *progress
	if !f.quiet && isTerminal(stderr) {
		prog = newProgress(stderr)
		opts = append(opts, metainfo.WithProgress(prog.add))
	}

	start := time.Now()
	info, err := metainfo.Build(ctx, path, cfg.PieceExponent, opts...)
	if prog != nil {
		prog.finish()
	}
	if err != nil {
		return err
	}
	if info.Empty() && !cfg.AllowEmpty {
		return fmt.Errorf("%s contains no files; use --allow-empty to write the descriptor anyway", path)
	}

	meta, err := metainfo.Assemble(cfg.Announce, info, time.Now(),
		metainfo.WithTitle(f.title),
		metainfo.WithComment(cfg.Comment),
		metainfo.WithCreatedBy(cfg.CreatedBy),
		metainfo.WithSafe(cfg.Safe),
		metainfo.WithURLList(cfg.URLList...),
	)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := meta.Encode(&buf); err != nil {
		return err
	}
	if err := writeOutput(output, buf.Bytes(), f.force); err != nil {
		return err
	}

	hash, err := info.Hash()
	if err != nil {
		return err
	}
	infoHash := hex.EncodeToString(hash[:])
	fileDigest := digest.FromBytes(buf.Bytes())
	logger.Info("wrote descriptor",
		"output", output,
		"name", info.Name,
		"size", humanize.IBytes(uint64(info.TotalLength())),
		"pieces", info.NumPieces(),
		"piece_length", humanize.IBytes(uint64(info.PieceLength)),
		"info_hash", infoHash,
		"digest", fileDigest.String(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	printSummary(stdout, output, info, infoHash, fileDigest)
	return nil
}

// printSummary reports the written descriptor.  The digest identifies the
// file itself, the info hash the content it describes.
func printSummary(w io.Writer, output string, info *metainfo.Info, infoHash string, d digest.Digest) {
	fmt.Fprintf(w, "%s\n", output)
	fmt.Fprintf(w, "  name       %s\n", info.Name)
	fmt.Fprintf(w, "  size       %s in %d pieces of %s\n",
		humanize.IBytes(uint64(info.TotalLength())), info.NumPieces(), humanize.IBytes(uint64(info.PieceLength)))
	fmt.Fprintf(w, "  info hash  %s\n", infoHash)
	fmt.Fprintf(w, "  digest     %s\n", d)
}

// defaultOutput places the descriptor beside path.
func defaultOutput(path string) string {
	return filepath.Clean(path) + ".torrent"
}

// writeOutput writes p to name.  Without force an existing file is an error.
func writeOutput(name string, p []byte, force bool) error {
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return err
	}
	if _, err := out.Write(p); err != nil {
		out.Close()
		os.Remove(name)
		return err
	}
	return out.Close()
}
