// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"
)

// =============================================================================
// FRAGMENT READER
// =============================================================================

const defaultReadSize = 4096

// FragmentReader turns a plain-text chunked body into text fragments.
//
// Each successful read becomes one fragment, except that a multi-byte UTF-8
// sequence split across reads is held back until it is complete.
type FragmentReader struct {
	src     io.Reader
	buf     []byte
	pending []byte

	fragments int
	bytes     int
}

// NewFragmentReader creates a reader over r.
func NewFragmentReader(r io.Reader) *FragmentReader {
	return &FragmentReader{
		src: r,
		buf: make([]byte, defaultReadSize),
	}
}

// Process reads until EOF and calls callback for each fragment.
// Blocks until the body is exhausted, a read fails or ctx is done.
func (f *FragmentReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := f.src.Read(f.buf)
		if n > 0 {
			f.pending = append(f.pending, f.buf[:n]...)
			if cut := completePrefix(f.pending); cut > 0 {
				f.emit(callback, f.pending[:cut])
				f.pending = append(f.pending[:0], f.pending[cut:]...)
			}
		}

		if errors.Is(err, io.EOF) {
			if len(f.pending) > 0 {
				f.emit(callback, f.pending)
				f.pending = nil
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Fragments returns the number of fragments delivered.
func (f *FragmentReader) Fragments() int {
	return f.fragments
}

// Bytes returns the number of bytes delivered.
func (f *FragmentReader) Bytes() int {
	return f.bytes
}

func (f *FragmentReader) emit(callback StreamCallback, b []byte) {
	f.fragments++
	f.bytes += len(b)
	callback(string(b))
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
