package api

import (
	"time"

	"github.com/zkpresence/zkpresence/storage/groups"
	"github.com/zkpresence/zkpresence/types"
)

// SubmitProofRequest is the proof submission envelope. It will be provided
// by the prover's device to register a presence attestation.
type SubmitProofRequest struct {
	IdentityCommitment types.HexBytes      `json:"identityCommitment"`
	Location           types.Location      `json:"location"`
	Timestamp          time.Time           `json:"timestamp"`
	Proof              types.HexBytes      `json:"proof"`
	Nullifier          types.HexBytes      `json:"nullifier"`
	MerkleRoot         types.HexBytes      `json:"merkleRoot"`
	Signal             types.HexBytes      `json:"signal,omitempty"`
	Demographics       *types.Demographics `json:"demographics"`
}

// SubmitProofResponse is the terminal state of an accepted submission.
type SubmitProofResponse struct {
	ProofID     string         `json:"proofId"`
	Verified    bool           `json:"verified"`
	GroupID     string         `json:"groupId"`
	MerkleRoot  types.HexBytes `json:"merkleRoot"`
	MemberAdded bool           `json:"memberAdded"`
}

// NewGroupRequest is the group creation envelope.
type NewGroupRequest struct {
	Anchor   string         `json:"networkSchoolId"`
	Name     string         `json:"name"`
	Geofence types.Geofence `json:"location"`
	Depth    int            `json:"depth,omitempty"`
}

// GroupList is the response to a group listing request.
type GroupList struct {
	Groups []*groups.GroupSummary `json:"groups"`
	Count  int                    `json:"count"`
}

// ProofList is the response to a proof listing request.
type ProofList struct {
	Proofs []*ProofInfo `json:"proofs"`
	Count  int          `json:"count"`
}

// ProofInfo is the served projection of a stored proof record.
type ProofInfo struct {
	ProofID            string              `json:"proofId"`
	IdentityCommitment types.HexBytes      `json:"identityCommitment"`
	Location           types.Location      `json:"location"`
	Timestamp          time.Time           `json:"timestamp"`
	Nullifier          types.HexBytes      `json:"nullifier"`
	MerkleRoot         types.HexBytes      `json:"merkleRoot"`
	GroupAnchor        string              `json:"networkSchoolId"`
	Demographics       *types.Demographics `json:"demographics,omitempty"`
	Verified           bool                `json:"verified"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// DemographicsSummary is the aggregated read side of a group's accepted
// proofs. Counters and coarse location clusters only, no raw records.
// TotalMembers counts distinct identity commitments, so a member proving
// presence many times is still counted once.
type DemographicsSummary struct {
	Anchor       string             `json:"networkSchoolId"`
	TotalProofs  int                `json:"totalProofs"`
	TotalMembers int                `json:"totalMembers"`
	AgeRanges    map[string]int     `json:"ageRanges"`
	Genders      map[string]int     `json:"genders"`
	Locations    []*LocationCluster `json:"locationDistribution"`
	LastProofAt  *time.Time         `json:"lastProofAt,omitempty"`
}

// LocationCluster is a bucket of proofs whose coordinates quantize to the
// same cell. The center is the first proof's location, not an average.
type LocationCluster struct {
	Center      ClusterCenter `json:"center"`
	Radius      float64       `json:"radius"`
	MemberCount int           `json:"memberCount"`
}

// ClusterCenter is a bare coordinate pair, without the accuracy field a
// submitted location carries.
type ClusterCenter struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
