// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decompress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// gzipCodec wraps a single gzip member per bucket.
type gzipCodec struct{}

func newGzip() (Codec, error) { return gzipCodec{}, nil }

func (gzipCodec) Code() Code { return CodeGzip }

func (gzipCodec) Compress(src []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buffer, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := writer.Write(src); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buffer.Bytes(), nil
}

func (gzipCodec) Decompress(src, dst []byte) (int, error) {
	reader, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fault.WireFormat("gzip header: %w", err)
	}
	defer reader.Close()
	return drainInto(reader, dst, CodeGzip)
}

// brotliCodec wraps a brotli stream per bucket.
type brotliCodec struct{}

func newBrotli() (Codec, error) { return brotliCodec{}, nil }

func (brotliCodec) Code() Code { return CodeBrotli }

func (brotliCodec) Compress(src []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer := brotli.NewWriterLevel(&buffer, brotli.DefaultCompression)
	if _, err := writer.Write(src); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	return buffer.Bytes(), nil
}

func (brotliCodec) Decompress(src, dst []byte) (int, error) {
	return drainInto(brotli.NewReader(bytes.NewReader(src)), dst, CodeBrotli)
}

// drainInto reads a decompressing stream into dst. The stream must end
// within len(dst) bytes; a stream that still has data once dst is full
// exceeds the announced size. Only a clean io.EOF ends the stream: a
// truncated compressed input surfaces as io.ErrUnexpectedEOF from the
// decoder and is a wire-format error.
func drainInto(reader io.Reader, dst []byte, code Code) (int, error) {
	written := 0
	for written < len(dst) {
		count, err := reader.Read(dst[written:])
		written += count
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return 0, fault.WireFormat("%s decompress: %w", code, err)
		}
	}

	var probe [1]byte
	for {
		extra, err := reader.Read(probe[:])
		if extra > 0 {
			return 0, fault.WireFormat("%s output exceeds announced size %d", code, len(dst))
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return 0, fault.WireFormat("%s decompress: %w", code, err)
		}
	}
}
