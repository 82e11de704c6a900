// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is the filesystem name encoding assumed when none is
// configured.
const DefaultEncoding = "utf-8"

// Normalizer converts raw file names into the canonical UTF-8 form stored in
// a descriptor.  The filesystem encoding is fixed when the Normalizer is
// created.
type Normalizer struct {
	name string
	enc  encoding.Encoding // nil for utf-8
}

// NewNormalizer returns a Normalizer decoding names from the named encoding.
// Names are looked up in the WHATWG encoding index ("utf-8", "latin1",
// "shift_jis", "gbk", ...).  An empty name selects DefaultEncoding.
func NewNormalizer(name string) (*Normalizer, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, &ConfigError{Field: "encoding", Reason: err.Error()}
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, &ConfigError{Field: "encoding", Reason: err.Error()}
	}
	n := &Normalizer{name: canonical}
	if canonical != "utf-8" {
		n.enc = enc
	}
	return n, nil
}

// Encoding returns the canonical name of n's filesystem encoding.
func (n *Normalizer) Encoding() string { return n.name }

// Normalize decodes raw and returns its UTF-8 form.  It fails with an
// *EncodingError when raw is not valid in n's encoding and with a
// *ReservedCharacterError when the decoded name contains a surrogate
// (U+D800-U+DFFF) or a non-character (U+FDD0-U+FDEF, U+FFFE, U+FFFF).
//
// Normalize is idempotent for names that are already canonical UTF-8 when n
// uses the utf-8 encoding.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if n.enc == nil {
		return n.normalizeUTF8(raw)
	}
	u, err := n.enc.NewDecoder().String(raw)
	if err != nil {
		return "", &EncodingError{Name: raw, Encoding: n.name, Err: err}
	}
	// Legacy decoders substitute U+FFFD for bytes they cannot map.
	if strings.ContainsRune(u, utf8.RuneError) {
		return "", &EncodingError{Name: raw, Encoding: n.name}
	}
	if r, ok := reservedRune(u); ok {
		return "", &ReservedCharacterError{Name: u, Rune: r}
	}
	return u, nil
}

func (n *Normalizer) normalizeUTF8(raw string) (string, error) {
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			// Encoded surrogates are well formed in every respect but
			// their value, report them as the reserved code points they are.
			if s, ok := surrogateAt(raw[i:]); ok {
				return "", &ReservedCharacterError{Name: raw, Rune: s}
			}
			return "", &EncodingError{Name: raw, Encoding: n.name}
		}
		if reserved(r) {
			return "", &ReservedCharacterError{Name: raw, Rune: r}
		}
		i += size
	}
	return raw, nil
}

// surrogateAt decodes a three byte UTF-8 style encoding of a surrogate at the
// start of s.
func surrogateAt(s string) (rune, bool) {
	if len(s) < 3 || s[0] != 0xED || s[1] < 0xA0 || s[1] > 0xBF || s[2]&0xC0 != 0x80 {
		return 0, false
	}
	return rune(s[0]&0x0F)<<12 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), true
}

func reservedRune(s string) (rune, bool) {
	for _, r := range s {
		if reserved(r) {
			return r, true
		}
	}
	return 0, false
}

func reserved(r rune) bool {
	switch {
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r >= 0xFDD0 && r <= 0xFDEF:
		return true
	case r == 0xFFFE || r == 0xFFFF:
		return true
	}
	return false
}
