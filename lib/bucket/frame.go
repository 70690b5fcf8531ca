// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// Framing: each record is preceded by an unsigned little-endian length
// of PrefixWidth bytes, repeated until end of stream.
const (
	// PrefixWidth32 is the default 4-byte length prefix.
	PrefixWidth32 = 4

	// PrefixWidth64 is the 8-byte length prefix.
	PrefixWidth64 = 8

	// MaxFrameSize bounds a single framed record. A larger prefix is
	// treated as corruption rather than an allocation request.
	MaxFrameSize = 256 << 20
)

// ValidPrefixWidth reports whether width is a supported prefix size.
func ValidPrefixWidth(width int) bool {
	return width == PrefixWidth32 || width == PrefixWidth64
}

// writeFrame writes one length-prefixed record.
func writeFrame(w io.Writer, width int, record []byte) error {
	if len(record) == 0 || len(record) > MaxFrameSize {
		return fmt.Errorf("frame length %d outside (0, %d]", len(record), MaxFrameSize)
	}
	var prefix [PrefixWidth64]byte
	switch width {
	case PrefixWidth32:
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(record)))
	case PrefixWidth64:
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(record)))
	default:
		return fmt.Errorf("unsupported prefix width %d", width)
	}
	if _, err := w.Write(prefix[:width]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(record); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed record into buffer (growing it as
// needed) and returns the record bytes. io.EOF is returned only when
// the stream ends exactly on a frame boundary. Anything else short of
// a complete frame is a wire-format error.
func readFrame(r io.Reader, width int, buffer []byte) ([]byte, error) {
	var prefix [PrefixWidth64]byte
	read, err := io.ReadFull(r, prefix[:width])
	if err != nil {
		if errors.Is(err, io.EOF) && read == 0 {
			return buffer, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return buffer, fault.WireFormat("truncated frame length: got %d of %d bytes", read, width)
		}
		return buffer, fmt.Errorf("reading frame length: %w", err)
	}

	var length uint64
	if width == PrefixWidth32 {
		length = uint64(binary.LittleEndian.Uint32(prefix[:]))
	} else {
		length = binary.LittleEndian.Uint64(prefix[:])
	}
	if length == 0 {
		return buffer, fault.WireFormat("frame length is zero")
	}
	if length > MaxFrameSize {
		return buffer, fault.WireFormat("frame length %d exceeds maximum %d", length, MaxFrameSize)
	}

	if uint64(cap(buffer)) < length {
		buffer = make([]byte, length)
	}
	buffer = buffer[:length]
	if read, err := io.ReadFull(r, buffer); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return buffer, fault.WireFormat("truncated frame: got %d of %d bytes", read, length)
		}
		return buffer, fmt.Errorf("reading frame body: %w", err)
	}
	return buffer, nil
}
