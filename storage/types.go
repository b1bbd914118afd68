package storage

import (
	"time"

	"github.com/zkpresence/zkpresence/types"
)

// ProofRecord is a verified presence proof as persisted and served. The
// record identifier is the nullifier, which is unique by construction.
type ProofRecord struct {
	IdentityCommitment types.HexBytes      `json:"identityCommitment" cbor:"1,keyasint"`
	Location           types.Location      `json:"location" cbor:"2,keyasint"`
	Timestamp          time.Time           `json:"timestamp" cbor:"3,keyasint"`
	Proof              types.HexBytes      `json:"proof" cbor:"4,keyasint"`
	Nullifier          types.HexBytes      `json:"nullifier" cbor:"5,keyasint"`
	Demographics       *types.Demographics `json:"demographics,omitempty" cbor:"6,keyasint,omitempty"`
	MerkleRoot         types.HexBytes      `json:"merkleRoot" cbor:"7,keyasint"`
	Signal             types.HexBytes      `json:"signal,omitempty" cbor:"8,keyasint,omitempty"`
	GroupAnchor        string              `json:"networkSchoolId" cbor:"9,keyasint"`
	Verified           bool                `json:"verified" cbor:"10,keyasint"`
	CreatedAt          time.Time           `json:"createdAt" cbor:"11,keyasint"`
}

// ID returns the stable identifier of the record.
func (p *ProofRecord) ID() string {
	return p.Nullifier.String()
}
