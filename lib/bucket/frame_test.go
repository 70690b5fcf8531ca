// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, width := range []int{PrefixWidth32, PrefixWidth64} {
		var stream bytes.Buffer
		records := [][]byte{[]byte("first"), bytes.Repeat([]byte{7}, 5000), []byte("x")}
		for _, record := range records {
			if err := writeFrame(&stream, width, record); err != nil {
				t.Fatalf("writeFrame(width %d): %v", width, err)
			}
		}

		var buffer []byte
		for i, want := range records {
			got, err := readFrame(&stream, width, buffer)
			if err != nil {
				t.Fatalf("readFrame %d (width %d): %v", i, width, err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("frame %d (width %d) mismatch", i, width)
			}
			buffer = got
		}
		if _, err := readFrame(&stream, width, buffer); !errors.Is(err, io.EOF) {
			t.Errorf("width %d: read past end: err = %v, want io.EOF", width, err)
		}
	}
}

func TestReadFrameErrors(t *testing.T) {
	zeroLength := make([]byte, 4)
	oversized := binary.LittleEndian.AppendUint32(nil, MaxFrameSize+1)
	shortBody := append(binary.LittleEndian.AppendUint32(nil, 10), []byte("abc")...)

	tests := map[string][]byte{
		"truncated prefix": {0x05, 0x00},
		"zero length":      zeroLength,
		"oversized":        oversized,
		"truncated body":   shortBody,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readFrame(bytes.NewReader(input), PrefixWidth32, nil)
			if !fault.Is(err, fault.CategoryWireFormat) {
				t.Errorf("err = %v, want wire-format error", err)
			}
		})
	}
}

func TestWriteFrameRejectsBadInput(t *testing.T) {
	if err := writeFrame(io.Discard, PrefixWidth32, nil); err == nil {
		t.Error("writeFrame should reject an empty record")
	}
	if err := writeFrame(io.Discard, 3, []byte("x")); err == nil {
		t.Error("writeFrame should reject width 3")
	}
}
