// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"errors"
	"fmt"
)

// Error classes.  Every error returned by Build and Assemble matches exactly
// one of these with errors.Is, except for context cancellation.
var (
	// ErrEncoding is matched by names that cannot be decoded from the
	// configured filesystem encoding.
	ErrEncoding = errors.New("name encoding")

	// ErrReservedCharacter is matched by names containing surrogates or
	// non-characters.
	ErrReservedCharacter = errors.New("reserved character")

	// ErrIO is matched by failures to stat, list, open or read source files.
	ErrIO = errors.New("i/o")

	// ErrConfig is matched by invalid arguments (empty locator, bad piece
	// exponent, missing name).
	ErrConfig = errors.New("configuration")
)

// EncodingError reports a file name that could not be decoded.
type EncodingError struct {
	Name     string // raw name bytes
	Path     string // file the name belongs to, if known
	Encoding string
	Err      error // decoder failure, if any
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("could not convert name %q to unicode using encoding %q", e.Name, e.Encoding)
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error        { return e.Err }
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// ReservedCharacterError reports a decoded name containing a code point that
// does not correspond to a character.
type ReservedCharacterError struct {
	Name string
	Path string // file the name belongs to, if known
	Rune rune
}

func (e *ReservedCharacterError) Error() string {
	msg := fmt.Sprintf("name %q contains reserved code point U+%04X", e.Name, e.Rune)
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return msg
}

func (e *ReservedCharacterError) Is(target error) bool { return target == ErrReservedCharacter }

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// ConfigError reports an invalid argument.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
