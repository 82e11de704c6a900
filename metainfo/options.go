// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import "log/slog"

// ProgressFunc is called with the number of bytes hashed after each chunk
// read.  It is called from a single goroutine.  A panic in a ProgressFunc is
// recovered and does not affect the build.
type ProgressFunc func(n int64)

// DefaultReadAhead is the number of chunks read ahead of the hasher when no
// WithReadAhead option is given.
const DefaultReadAhead = 4

// chunkSize is the size of each read from a source file.
const chunkSize = 32 * 1024

type buildConfig struct {
	name        string
	hasName     bool
	progress    ProgressFunc
	encoding    string
	ignore      []string
	logger      *slog.Logger
	readAhead   int
	md5sum      bool
	contentType string
	private     bool
}

// BuildOption configures Build and BuildFS.
type BuildOption func(*buildConfig)

// WithName overrides the descriptor name, which otherwise is the base name of
// the root path.  The name is normalized like any file name.
func WithName(name string) BuildOption {
	return func(c *buildConfig) {
		c.name = name
		c.hasName = true
	}
}

// WithProgress registers a callback receiving the byte count of every chunk
// hashed.
func WithProgress(fn ProgressFunc) BuildOption {
	return func(c *buildConfig) {
		c.progress = fn
	}
}

// WithEncoding sets the encoding of raw file names on the source
// filesystem.  See NewNormalizer.
func WithEncoding(name string) BuildOption {
	return func(c *buildConfig) {
		c.encoding = name
	}
}

// WithIgnore replaces DefaultIgnore.  Dot files are skipped regardless.
func WithIgnore(names ...string) BuildOption {
	return func(c *buildConfig) {
		c.ignore = append([]string{}, names...)
	}
}

// WithLogger sets the logger for build diagnostics.  Without it nothing is
// logged.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// WithReadAhead sets how many chunks may be read before the hasher consumes
// them.  Values below one read and hash in lock step.
func WithReadAhead(n int) BuildOption {
	return func(c *buildConfig) {
		c.readAhead = n
	}
}

// WithMD5Sum records an md5sum for every file.
func WithMD5Sum(on bool) BuildOption {
	return func(c *buildConfig) {
		c.md5sum = on
	}
}

// WithContentType records a content type for every file.
func WithContentType(contentType string) BuildOption {
	return func(c *buildConfig) {
		c.contentType = contentType
	}
}

// WithPrivate marks the content private.
func WithPrivate(on bool) BuildOption {
	return func(c *buildConfig) {
		c.private = on
	}
}
