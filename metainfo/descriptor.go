// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metainfo

import (
	"strings"
	"time"
)

// DescriptorOption sets an optional top-level field of a Metainfo.  Options
// given an empty value leave the field out of the encoding.
type DescriptorOption func(*Metainfo)

// WithTitle sets the "title" field.
func WithTitle(title string) DescriptorOption {
	return func(m *Metainfo) { m.Title = title }
}

// WithComment sets the "comment" field.
func WithComment(comment string) DescriptorOption {
	return func(m *Metainfo) { m.Comment = comment }
}

// WithURLList sets the extra locators ("url-list").
func WithURLList(urls ...string) DescriptorOption {
	return func(m *Metainfo) {
		if len(urls) == 0 {
			m.URLList = nil
			return
		}
		m.URLList = append([]string(nil), urls...)
	}
}

// WithCreatedBy sets the "created by" field.
func WithCreatedBy(program string) DescriptorOption {
	return func(m *Metainfo) { m.CreatedBy = program }
}

// WithSafe sets the "safe" field.
func WithSafe(safe string) DescriptorOption {
	return func(m *Metainfo) { m.Safe = safe }
}

// Assemble wraps info in a Metainfo announcing to locator.  Surrounding
// whitespace is trimmed from locator, which must not be empty.  created is
// stored with one second resolution.
func Assemble(locator string, info *Info, created time.Time, opts ...DescriptorOption) (*Metainfo, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, &ConfigError{Field: "locator", Reason: "empty"}
	}
	if info == nil {
		return nil, &ConfigError{Field: "info", Reason: "nil"}
	}
	meta := &Metainfo{
		Announce:     locator,
		CreationDate: created.Unix(),
		Info:         info,
	}
	for _, opt := range opts {
		opt(meta)
	}
	return meta, nil
}
