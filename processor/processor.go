// Package processor implements the submission pipeline: a fixed sequence of
// validation stages over an incoming presence proof, ending in an atomic
// commit of the proof record and the group membership growth. Stages before
// the commit are side-effect free, so a submission can be rejected or
// cancelled at any of them without cleanup.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zkpresence/zkpresence/geo"
	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/storage/groups"
	"github.com/zkpresence/zkpresence/types"
	"github.com/zkpresence/zkpresence/zk"
)

// Submission is a presence proof as handed to the pipeline, already parsed
// from the transport envelope.
type Submission struct {
	IdentityCommitment types.HexBytes
	Location           types.Location
	Timestamp          time.Time
	ProofBlob          types.HexBytes
	Nullifier          types.HexBytes
	MerkleRoot         types.HexBytes
	Signal             types.HexBytes
	Demographics       *types.Demographics
}

// Anchor returns the target group anchor named by the submission.
func (s *Submission) Anchor() string {
	if s.Demographics == nil {
		return ""
	}
	return s.Demographics.GroupAnchor
}

// Receipt is the terminal state of an accepted submission.
type Receipt struct {
	Record      *storage.ProofRecord
	GroupID     string
	Root        types.HexBytes // group root after the commit
	MemberAdded bool           // false when the commitment was already a leaf
}

// Processor validates and commits presence proof submissions.
type Processor struct {
	stg      *storage.Storage
	verifier zk.Verifier
}

// New creates a submission processor over the given storage, delegating
// cryptographic verification to the given primitive.
func New(stg *storage.Storage, verifier zk.Verifier) *Processor {
	return &Processor{stg: stg, verifier: verifier}
}

// Submit runs the pipeline stages in strict order and returns a receipt on
// acceptance or one of the package sentinel errors on rejection. The context
// is honored between stages up to the commit; once the commit is entered it
// runs to completion.
func (p *Processor) Submit(ctx context.Context, sub *Submission) (*Receipt, error) {
	// Stage 1: structural check.
	if err := p.structuralCheck(sub); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: replay gate, fast path only. The authoritative gate is the
	// atomic insert at commit.
	used, err := p.stg.HasNullifier(sub.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("%w: nullifier probe: %v", ErrStorageFailure, err)
	}
	if used {
		return nil, ErrDuplicateNullifier
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: group resolution.
	group, err := p.stg.Groups().Load(sub.Anchor())
	if err != nil {
		if errors.Is(err, groups.ErrGroupNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, sub.Anchor())
		}
		return nil, fmt.Errorf("%w: load group: %v", ErrStorageFailure, err)
	}

	// Stage 4: membership proof verification. The claimed root must be one
	// the group actually produced, then the primitive checks the proof
	// binds root, nullifier and signal.
	if !group.KnownRoot(sub.MerkleRoot) {
		return nil, fmt.Errorf("%w: unknown merkle root %s", ErrInvalidProof, sub.MerkleRoot)
	}
	ok, reason := p.verifier.Verify(&zk.Proof{
		Blob:      sub.ProofBlob,
		Root:      sub.MerkleRoot,
		Nullifier: sub.Nullifier,
		Signal:    sub.Signal,
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProof, reason)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 5: geofence check.
	if inside, distance := geo.WithinGeofence(sub.Location, group.Geofence); !inside {
		return nil, &OutsideGeofenceError{Distance: distance, Radius: group.Geofence.Radius}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 6: commit. The proof insert is the atomic anti-replay gate; a
	// race here aborts without touching the group. The member append comes
	// after, serialized by the group's own lock.
	rec := &storage.ProofRecord{
		IdentityCommitment: sub.IdentityCommitment,
		Location:           sub.Location,
		Timestamp:          sub.Timestamp,
		Proof:              sub.ProofBlob,
		Nullifier:          sub.Nullifier,
		Demographics:       sub.Demographics,
		MerkleRoot:         sub.MerkleRoot,
		Signal:             sub.Signal,
		GroupAnchor:        sub.Anchor(),
		Verified:           true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := p.stg.InsertProof(rec); err != nil {
		if errors.Is(err, storage.ErrNullifierUsed) {
			return nil, ErrDuplicateNullifier
		}
		return nil, fmt.Errorf("%w: insert proof: %v", ErrStorageFailure, err)
	}
	root, added, err := group.AddMemberIfAbsent(sub.IdentityCommitment)
	if err != nil {
		// The proof record is already durable; the membership growth is
		// the part that failed. Surface it, never retry.
		if errors.Is(err, groups.ErrGroupFull) {
			return nil, fmt.Errorf("%w: %s", ErrGroupFull, sub.Anchor())
		}
		return nil, fmt.Errorf("%w: add member: %v", ErrStorageFailure, err)
	}
	log.Infow("submission accepted", "anchor", sub.Anchor(),
		"nullifier", sub.Nullifier.String(), "memberAdded", added,
		"root", root.String())
	return &Receipt{
		Record:      rec,
		GroupID:     group.GroupID,
		Root:        root,
		MemberAdded: added,
	}, nil
}

// structuralCheck validates field presence and coordinate ranges. It never
// touches storage.
func (p *Processor) structuralCheck(sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("%w: nil submission", ErrInvalidRequest)
	}
	if len(sub.IdentityCommitment) == 0 {
		return fmt.Errorf("%w: missing identity commitment", ErrInvalidRequest)
	}
	if len(sub.Nullifier) == 0 {
		return fmt.Errorf("%w: missing nullifier", ErrInvalidRequest)
	}
	if len(sub.ProofBlob) == 0 {
		return fmt.Errorf("%w: missing proof", ErrInvalidRequest)
	}
	if len(sub.MerkleRoot) == 0 {
		return fmt.Errorf("%w: missing merkle root", ErrInvalidRequest)
	}
	if sub.Anchor() == "" {
		return fmt.Errorf("%w: missing group anchor", ErrInvalidRequest)
	}
	if strings.ContainsRune(sub.Anchor(), '/') {
		return fmt.Errorf("%w: group anchor must not contain '/'", ErrInvalidRequest)
	}
	if sub.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRequest)
	}
	loc := sub.Location
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidRequest, loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidRequest, loc.Longitude)
	}
	if loc.Accuracy < 0 {
		return fmt.Errorf("%w: negative accuracy", ErrInvalidRequest)
	}
	return nil
}
