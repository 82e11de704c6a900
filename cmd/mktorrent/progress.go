// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

const progressInterval = 100 * time.Millisecond

// progress redraws a single status line as bytes are hashed.
type progress struct {
	w     io.Writer
	done  int64
	last  time.Time
	drawn bool
	now   func() time.Time
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w, now: time.Now}
}

// add is a metainfo.ProgressFunc.
func (p *progress) add(n int64) {
	p.done += n
	if t := p.now(); t.Sub(p.last) >= progressInterval {
		p.last = t
		p.draw()
	}
}

func (p *progress) draw() {
	fmt.Fprintf(p.w, "\rhashed %-12s", humanize.IBytes(uint64(p.done)))
	p.drawn = true
}

// finish draws the final count and ends the line.
func (p *progress) finish() {
	if !p.drawn {
		return
	}
	p.draw()
	fmt.Fprintln(p.w)
}
