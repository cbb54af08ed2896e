// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chain provides aggregated access to the input files of a sample.
// A Chain concatenates the files of one processing stage into a single
// logical stream and a Tree reads structured events from a chain.  Files
// are opened one at a time, only once the previous file is exhausted.
package chain

import (
	"context"
	"errors"
	"io"
)

// ErrClosed is returned when reading from a closed chain.
var ErrClosed = errors.New("chain: read from closed chain")

// Chain represents the ordered files of a single processing stage.
type Chain struct {
	ctx    context.Context
	opener Opener
	files  []string
	next   int
	cur    io.ReadCloser
	closed bool
}

// New creates a new chain over the given files.  The files are opened lazily
// with the given opener, which is bound to ctx.
func New(ctx context.Context, opener Opener, files []string) *Chain {
	return &Chain{
		ctx:    ctx,
		opener: opener,
		files:  append([]string(nil), files...),
	}
}

// Files returns the files in the chain.
func (c *Chain) Files() []string {
	return append([]string(nil), c.files...)
}

// File returns the file currently being read, or an empty string if none is
// open.
func (c *Chain) File() string {
	if c.cur == nil {
		return ""
	}
	return c.files[c.next-1]
}

// current returns the open file, opening the next one if necessary.
// It returns io.EOF once every file has been consumed.
func (c *Chain) current() (io.Reader, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.cur != nil {
		return c.cur, nil
	}
	if len(c.files) <= c.next {
		return nil, io.EOF
	}
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := c.opener.Open(c.ctx, c.files[c.next])
	if err != nil {
		return nil, err
	}
	c.cur = rc
	c.next++
	return c.cur, nil
}

// advance closes the open file so that the next call to current moves on.
func (c *Chain) advance() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}

// Read reads from the files in order.  It returns io.EOF only after the last
// file has been read.
func (c *Chain) Read(p []byte) (int, error) {
	for {
		r, err := c.current()
		if err != nil {
			return 0, err
		}
		n, err := r.Read(p)
		if err == io.EOF {
			if err = c.advance(); err != nil {
				return n, err
			}
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// Close releases the open file.  Reading from a closed chain fails with
// ErrClosed; closing it again is a no-op.
func (c *Chain) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.advance()
}
