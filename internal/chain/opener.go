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
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// Opener opens a single input file of a chain.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// OpenerFunc is an adapter to allow the use of ordinary functions as openers.
type OpenerFunc func(ctx context.Context, path string) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return f(ctx, path)
}

// FileOpener opens local files and, if Client is set, Google Storage objects
// addressed as gs://bucket/object.  Compressed inputs are decompressed
// transparently.
type FileOpener struct {
	Client *storage.Client
}

// Open opens the file at the given path.
func (o FileOpener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if strings.HasPrefix(path, "gs://") {
		rc, err = o.openObject(ctx, path)
	} else {
		rc, err = os.Open(path)
	}
	if err != nil {
		return nil, pfx.Err(err)
	}

	drc, err := Decompress(rc)
	if err != nil {
		rc.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	return drc, nil
}

func (o FileOpener) openObject(ctx context.Context, path string) (io.ReadCloser, error) {
	if o.Client == nil {
		return nil, fmt.Errorf("%s: no storage client configured", path)
	}
	parts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%s: expected gs://bucket/object", path)
	}
	r, err := o.Client.Bucket(parts[0]).Object(parts[1]).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Compression represents the compression format of an input file.
type Compression byte

const (
	None Compression = iota
	Gzip
	Zip
	XZ
	Zlib
	BZip2
)

// signatures lists the magic numbers of the supported compression formats.
var signatures = []struct {
	compression Compression
	magic       []byte
}{
	{Gzip, []byte{0x1f, 0x8b, 0x08}},
	{Zip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{XZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{Zlib, []byte{0x78, 0x9c}},
	{BZip2, []byte{0x42, 0x5a, 0x68}},
}

// Detect returns the compression format of the given leading bytes.
func Detect(head []byte) Compression {
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.compression
		}
	}
	return None
}

// Decompress wraps the given reader with a decompressor selected from the
// leading bytes of the stream.  Closing the result closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(6)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var r io.Reader
	switch Detect(head) {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case Zlib:
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case Zip:
		zr := zipstream.NewReader(br)
		if _, err := zr.Next(); err != nil {
			return nil, err
		}
		r = zr
	case XZ:
		if r, err = xz.NewReader(br, 0); err != nil {
			return nil, err
		}
	case BZip2:
		r = bzip2.NewReader(br)
	default:
		r = br
	}
	return &readCloser{Reader: r, closers: []io.Closer{rc}}, nil
}

// readCloser closes every closer in order, returning the first error.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *readCloser) Close() (err error) {
	for _, closer := range c.closers {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return
}
