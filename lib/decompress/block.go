// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decompress

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// noneCodec copies bytes through unchanged.
type noneCodec struct{}

func newNone() (Codec, error) { return noneCodec{}, nil }

func (noneCodec) Code() Code { return CodeNone }

func (noneCodec) Compress(src []byte) ([]byte, error) { return src, nil }

func (noneCodec) Decompress(src, dst []byte) (int, error) {
	if len(src) > len(dst) {
		return 0, fault.WireFormat("uncompressed payload is %d bytes, exceeds announced size %d", len(src), len(dst))
	}
	return copy(dst, src), nil
}

// lz4Codec is LZ4 block mode. The block format carries no length, so
// the announced size is the only bound on the output.
type lz4Codec struct{}

func newLZ4() (Codec, error) { return lz4Codec{}, nil }

func (lz4Codec) Code() Code { return CodeLZ4 }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrIncompressible
	}
	destination := make([]byte, lz4.CompressBlockBound(len(src)))
	written, err := lz4.CompressBlock(src, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// A literal-only block is no smaller than its input.
	if written == 0 || written >= len(src) {
		return nil, ErrIncompressible
	}
	return destination[:written], nil
}

func (lz4Codec) Decompress(src, dst []byte) (int, error) {
	read, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, fault.WireFormat("lz4 decompress into %d bytes: %w", len(dst), err)
	}
	return read, nil
}

// zstdMinDecoderMemory is the smallest memory limit given to a zstd
// decoder, so frames with a window larger than a tiny bucket still
// decode.
const zstdMinDecoderMemory = 8 << 20

// zstdCodec holds one encoder, safe for concurrent use through
// EncodeAll. Decoders are built per call with a memory limit derived
// from the announced size.
type zstdCodec struct {
	encoder *zstd.Encoder
}

func newZstd() (Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return &zstdCodec{encoder: encoder}, nil
}

func (*zstdCodec) Code() Code { return CodeZstd }

func (c *zstdCodec) Compress(src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, nil), nil
}

func (c *zstdCodec) Decompress(src, dst []byte) (int, error) {
	// Streaming into dst stops one byte past the announced size, so a
	// frame that expands beyond it is rejected before it is buffered.
	limit := uint64(len(dst)) + 1
	if limit < zstdMinDecoderMemory {
		limit = zstdMinDecoderMemory
	}
	decoder, err := zstd.NewReader(bytes.NewReader(src),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(limit),
	)
	if err != nil {
		return 0, fault.WireFormat("zstd decompress: %w", err)
	}
	defer decoder.Close()
	return drainInto(decoder, dst, CodeZstd)
}

// s2Codec is the S2 block format. Unlike LZ4 blocks, S2 blocks carry
// their decoded length, which is checked against the bound before
// decoding.
type s2Codec struct{}

func newS2() (Codec, error) { return s2Codec{}, nil }

func (s2Codec) Code() Code { return CodeS2 }

func (s2Codec) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s2Codec) Decompress(src, dst []byte) (int, error) {
	decodedLength, err := s2.DecodedLen(src)
	if err != nil {
		return 0, fault.WireFormat("s2 header: %w", err)
	}
	if decodedLength > len(dst) {
		return 0, fault.WireFormat("s2 block decodes to %d bytes, exceeds announced size %d", decodedLength, len(dst))
	}
	result, err := s2.Decode(dst, src)
	if err != nil {
		return 0, fault.WireFormat("s2 decompress: %w", err)
	}
	return len(result), nil
}
