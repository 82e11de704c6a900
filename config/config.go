// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads mktorrent settings from a YAML file.
//
// The file is named by the --config flag or, failing that, the
// MKTORRENT_CONFIG environment variable.  Without either the defaults are
// used.  Command line flags override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bmatsuo/metafile/metainfo"
)

// EnvVar names the configuration file when no path is given explicitly.
const EnvVar = "MKTORRENT_CONFIG"

// Config holds the settings of one mktorrent invocation.
type Config struct {
	// Announce is the tracker locator.  A positional argument overrides it.
	Announce string `yaml:"announce"`

	// PieceExponent selects a piece length of 2^PieceExponent bytes.
	// Default: 19
	PieceExponent int `yaml:"piece_exponent"`

	Comment   string   `yaml:"comment"`
	CreatedBy string   `yaml:"created_by"`
	Safe      string   `yaml:"safe"`
	URLList   []string `yaml:"url_list"`

	// Encoding names the character encoding of file names on disk.
	// Default: utf-8
	Encoding string `yaml:"encoding"`

	// Ignore replaces the default set of skipped names when present.  An
	// empty list skips nothing but dot files.
	Ignore []string `yaml:"ignore"`

	// ReadAhead is the number of chunks read ahead of hashing.
	// Default: 4
	ReadAhead int `yaml:"read_ahead"`

	Private    bool `yaml:"private"`
	MD5Sum     bool `yaml:"md5sum"`
	AllowEmpty bool `yaml:"allow_empty"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		PieceExponent: 19,
		CreatedBy:     "mktorrent",
		Encoding:      metainfo.DefaultEncoding,
		ReadAhead:     metainfo.DefaultReadAhead,
	}
}

// Load reads the file at path over the defaults.  An empty path falls back to
// the file named by MKTORRENT_CONFIG, and then to the defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a single file into c.  Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Validate checks every field and reports all problems at once.  Each
// problem matches metainfo.ErrConfig.
func (c *Config) Validate() error {
	var errs []error

	if _, err := metainfo.PieceLength(c.PieceExponent); err != nil {
		errs = append(errs, &metainfo.ConfigError{
			Field:  "piece_exponent",
			Reason: fmt.Sprintf("%d not in [1, %d]", c.PieceExponent, metainfo.MaxPieceExponent),
		})
	}
	if _, err := metainfo.NewNormalizer(c.Encoding); err != nil {
		errs = append(errs, &metainfo.ConfigError{Field: "encoding", Reason: fmt.Sprintf("unknown encoding %q", c.Encoding)})
	}
	if c.ReadAhead < 0 {
		errs = append(errs, &metainfo.ConfigError{Field: "read_ahead", Reason: "negative"})
	}
	for i, u := range c.URLList {
		if u == "" {
			errs = append(errs, &metainfo.ConfigError{Field: fmt.Sprintf("url_list[%d]", i), Reason: "empty"})
		}
	}

	return errors.Join(errs...)
}
