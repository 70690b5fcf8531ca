// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleRecord struct {
	Code    uint8             `cbor:"1,keyasint"`
	Size    uint64            `cbor:"2,keyasint"`
	Digest  [4]byte           `cbor:"3,keyasint"`
	Payload []byte            `cbor:"4,keyasint"`
	Table   map[string][]byte `cbor:"5,keyasint,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Code:    2,
		Size:    4096,
		Digest:  [4]byte{1, 2, 3, 4},
		Payload: []byte("payload bytes"),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Code != original.Code || decoded.Size != original.Size || decoded.Digest != original.Digest {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("payload = %q, want %q", decoded.Payload, original.Payload)
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	// Go map iteration order is random; Core Deterministic Encoding
	// must sort keys so repeated encodes agree byte for byte.
	record := sampleRecord{Table: map[string][]byte{
		"zeta":  []byte("z"),
		"alpha": []byte("a"),
		"mu":    []byte("m"),
	}}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded sampleRecord
	if err := Unmarshal([]byte{0xff, 0x00, 0x13}, &decoded); err == nil {
		t.Error("Unmarshal should fail on malformed input")
	}
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	data, err := Marshal(sampleRecord{Code: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	data = append(data, 0x00)

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("Unmarshal should reject trailing bytes")
	}
}
