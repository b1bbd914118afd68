package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encodeArtifact serializes an artifact to deterministic CBOR.
func encodeArtifact(a any) ([]byte, error) {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeUnixMicro
	em, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encode mode: %w", err)
	}
	data, err := em.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// decodeArtifact deserializes CBOR into the given pointer.
func decodeArtifact(data []byte, a any) error {
	if err := cbor.Unmarshal(data, a); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}
