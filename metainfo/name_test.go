// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_valid(t *testing.T) {
	n, err := NewNormalizer("")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", n.Encoding())

	for _, name := range []string{
		"plain.txt",
		"ユニコード.txt",
		"emoji-\U0001F600",
		"\uFDCF-just-below-noncharacters",
		"\uFDF0-just-above-noncharacters",
		"\uFFFD",
		"",
	} {
		got, err := n.Normalize(name)
		require.NoError(t, err, "%q", name)
		assert.Equal(t, name, got)
		assert.True(t, utf8.ValidString(got))

		again, err := n.Normalize(got)
		require.NoError(t, err)
		assert.Equal(t, got, again, "normalize must be idempotent")
	}
}

func TestNormalize_reserved(t *testing.T) {
	n, err := NewNormalizer("utf-8")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want rune
	}{
		{"U+FFFE", "bad\uFFFE.txt", 0xFFFE},
		{"U+FFFF", "\uFFFF", 0xFFFF},
		{"U+FDD0", "x\uFDD0", 0xFDD0},
		{"U+FDEF", "x\uFDEFy", 0xFDEF},
		{"encoded high surrogate", "a\xed\xa0\x80b", 0xD800},
		{"encoded low surrogate", "\xed\xbf\xbf", 0xDFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrReservedCharacter))
			var rerr *ReservedCharacterError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.want, rerr.Rune)
			assert.False(t, errors.Is(err, ErrEncoding))
		})
	}
}

func TestNormalize_invalidUTF8(t *testing.T) {
	n, err := NewNormalizer("utf8")
	require.NoError(t, err)

	for _, raw := range []string{"\xff", "caf\xe9", "trunc\xe3\x81", "\xed\xa0"} {
		_, err := n.Normalize(raw)
		require.Error(t, err, "%q", raw)
		assert.True(t, errors.Is(err, ErrEncoding), "%q: %v", raw, err)
		var eerr *EncodingError
		require.True(t, errors.As(err, &eerr))
		assert.Equal(t, raw, eerr.Name)
		assert.Equal(t, "utf-8", eerr.Encoding)
	}
}

func TestNormalize_legacyEncoding(t *testing.T) {
	n, err := NewNormalizer("latin1")
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", n.Encoding())

	got, err := n.Normalize("caf\xe9.txt")
	require.NoError(t, err)
	assert.Equal(t, "café.txt", got)

	sjis, err := NewNormalizer("shift_jis")
	require.NoError(t, err)
	got, err = sjis.Normalize("\x83\x6e\x83\x8d\x81\x5b") // ハロー
	require.NoError(t, err)
	assert.Equal(t, "ハロー", got)

	_, err = sjis.Normalize("\x85\x40")
	assert.True(t, errors.Is(err, ErrEncoding), "unmapped bytes: %v", err)
}

func TestNewNormalizer_unknown(t *testing.T) {
	_, err := NewNormalizer("no-such-encoding")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}
