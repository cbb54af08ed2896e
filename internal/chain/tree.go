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

package chain

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxEntrySize bounds the size of a single encoded event.
const maxEntrySize = 1 << 24

// Tree reads structured events from a chain.  Each non-empty line of the
// underlying files holds one event encoded as a JSON object; an event never
// spans two files.
type Tree struct {
	chain   *Chain
	scanner *bufio.Scanner
	read    int64
}

// NewTree creates a new tree reader over the given chain.
func NewTree(c *Chain) *Tree {
	return &Tree{chain: c}
}

// scan returns the next non-empty line.  The returned slice is only valid
// until the next call.
func (t *Tree) scan() ([]byte, error) {
	for {
		if t.scanner == nil {
			r, err := t.chain.current()
			if err != nil {
				return nil, err
			}
			t.scanner = bufio.NewScanner(r)
			t.scanner.Buffer(make([]byte, 0, 64*1024), maxEntrySize)
		}
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				return nil, fmt.Errorf("%s: %w", t.chain.File(), err)
			}
			t.scanner = nil
			if err := t.chain.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if line := bytes.TrimSpace(t.scanner.Bytes()); 0 < len(line) {
			return line, nil
		}
	}
}

// Next decodes the next event.  It returns io.EOF once every file in the
// chain has been read.
func (t *Tree) Next() (*structpb.Struct, error) {
	line, err := t.scan()
	if err != nil {
		return nil, err
	}
	event := new(structpb.Struct)
	if err = protojson.Unmarshal(line, event); err != nil {
		return nil, fmt.Errorf("%s: entry %d: %w", t.chain.File(), t.read, err)
	}
	t.read++
	return event, nil
}

// Decoded returns the number of events decoded so far.
func (t *Tree) Decoded() int64 {
	return t.read
}

// Entries counts the remaining events without decoding them.  This consumes
// the tree.
func (t *Tree) Entries() (n int64, err error) {
	for {
		if _, err = t.scan(); err != nil {
			if err == io.EOF {
				err = nil
			}
			return
		}
		n++
	}
}

// Close closes the underlying chain.
func (t *Tree) Close() error {
	t.scanner = nil
	return t.chain.Close()
}
