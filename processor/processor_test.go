package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/storage/groups"
	"github.com/zkpresence/zkpresence/types"
	"github.com/zkpresence/zkpresence/util"
	"github.com/zkpresence/zkpresence/zk"
	"go.vocdoni.io/dvote/db/metadb"
)

const testAnchor = "ns1"

var testFence = types.Geofence{Latitude: 40.7128, Longitude: -74.0060, Radius: 500}

// insideFence is within a few meters of the fence center.
var insideFence = types.Location{Latitude: 40.7128, Longitude: -74.0060, Accuracy: 5}

// outsideFence is roughly 8.5km away from the fence center.
var outsideFence = types.Location{Latitude: 40.7899, Longitude: -74.0060, Accuracy: 5}

func testSetup(t *testing.T, verifier zk.Verifier) (*Processor, *storage.Storage, *groups.GroupRef) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	ref, err := stg.Groups().New(testAnchor, "Test School", testFence, 16)
	c.Assert(err, qt.IsNil)
	return New(stg, verifier), stg, ref
}

// testSubmission builds a structurally valid submission for the given group
// root, with a DevVerifier-acceptable blob.
func testSubmission(c *qt.C, root types.HexBytes) *Submission {
	nullifier := types.HexBytes(util.RandomBytes(32))
	signal := []byte("presence")
	blob, err := zk.NewDevProof(nullifier, root, signal)
	c.Assert(err, qt.IsNil)
	return &Submission{
		IdentityCommitment: util.RandomBytes(32),
		Location:           insideFence,
		Timestamp:          time.Now().UTC(),
		ProofBlob:          blob,
		Nullifier:          nullifier,
		MerkleRoot:         root,
		Signal:             signal,
		Demographics: &types.Demographics{
			AgeRange:    "18-25",
			Gender:      "other",
			Geofence:    testFence,
			GroupAnchor: testAnchor,
			Timestamp:   time.Now().Unix(),
		},
	}
}

func TestSubmitAccepted(t *testing.T) {
	c := qt.New(t)
	p, stg, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())

	receipt, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.MemberAdded, qt.IsTrue)
	c.Assert(receipt.GroupID, qt.Equals, ref.GroupID)
	c.Assert(receipt.Root, qt.DeepEquals, ref.Root())
	c.Assert(receipt.Record.Verified, qt.IsTrue)
	c.Assert(ref.IsMember(sub.IdentityCommitment), qt.IsTrue)

	stored, err := stg.ProofByNullifier(sub.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.GroupAnchor, qt.Equals, testAnchor)
}

func TestSubmitStructuralFailures(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"no commitment", func(s *Submission) { s.IdentityCommitment = nil }},
		{"no nullifier", func(s *Submission) { s.Nullifier = nil }},
		{"no proof", func(s *Submission) { s.ProofBlob = nil }},
		{"no root", func(s *Submission) { s.MerkleRoot = nil }},
		{"no anchor", func(s *Submission) { s.Demographics = nil }},
		{"anchor with separator", func(s *Submission) { s.Demographics.GroupAnchor = "ns1/evil" }},
		{"no timestamp", func(s *Submission) { s.Timestamp = time.Time{} }},
		{"bad latitude", func(s *Submission) { s.Location.Latitude = 91 }},
		{"bad longitude", func(s *Submission) { s.Location.Longitude = -181 }},
		{"negative accuracy", func(s *Submission) { s.Location.Accuracy = -1 }},
	}
	for _, tc := range cases {
		sub := testSubmission(c, ref.Root())
		tc.mutate(sub)
		_, err := p.Submit(ctx, sub)
		c.Assert(err, qt.ErrorIs, ErrInvalidRequest, qt.Commentf("case %q", tc.name))
	}
	_, err := p.Submit(ctx, nil)
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
}

func TestSubmitUnknownGroup(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())
	sub.Demographics.GroupAnchor = "ns-missing"
	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrGroupNotFound)
}

func TestSubmitUnknownRoot(t *testing.T) {
	c := qt.New(t)
	p, _, _ := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, util.RandomBytes(32))
	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
}

func TestSubmitVerifierRejection(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.StaticVerifier{OK: false, Reason: "bad pairing"})
	sub := testSubmission(c, ref.Root())
	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	c.Assert(err.Error(), qt.Contains, "bad pairing")
}

func TestSubmitTamperedDevProof(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())
	sub.Signal = []byte("different signal")
	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
}

func TestSubmitOutsideGeofence(t *testing.T) {
	c := qt.New(t)
	p, stg, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())
	sub.Location = outsideFence

	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrOutsideGeofence)
	var geoErr *OutsideGeofenceError
	c.Assert(err, qt.ErrorAs, &geoErr)
	c.Assert(geoErr.Radius, qt.Equals, testFence.Radius)
	c.Assert(geoErr.Distance > geoErr.Radius, qt.IsTrue)

	// Rejection before commit leaves no trace.
	used, err := stg.HasNullifier(sub.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
	c.Assert(ref.Size(), qt.Equals, 0)
}

func TestSubmitDuplicateNullifier(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())
	_, err := p.Submit(context.Background(), sub)
	c.Assert(err, qt.IsNil)

	// Second submission against the post-append root, same nullifier.
	dup := testSubmission(c, ref.Root())
	dup.Nullifier = sub.Nullifier
	blob, err := zk.NewDevProof(dup.Nullifier, dup.MerkleRoot, dup.Signal)
	c.Assert(err, qt.IsNil)
	dup.ProofBlob = blob
	_, err = p.Submit(context.Background(), dup)
	c.Assert(err, qt.ErrorIs, ErrDuplicateNullifier)
}

func TestSubmitStaleRootWithinWindow(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})

	// First submission grows the tree; the second proves against the now
	// stale pre-append root and must still pass.
	staleRoot := ref.Root()
	_, err := p.Submit(context.Background(), testSubmission(c, staleRoot))
	c.Assert(err, qt.IsNil)
	c.Assert(ref.Root(), qt.Not(qt.DeepEquals), staleRoot)

	_, err = p.Submit(context.Background(), testSubmission(c, staleRoot))
	c.Assert(err, qt.IsNil)
}

func TestSubmitConcurrentSameNullifier(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})

	nullifier := types.HexBytes(util.RandomBytes(32))
	root := ref.Root()
	signal := []byte("presence")
	blob, err := zk.NewDevProof(nullifier, root, signal)
	c.Assert(err, qt.IsNil)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	var accepted, duplicated int32
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			sub := testSubmission(c, root)
			sub.Nullifier = nullifier
			sub.Signal = signal
			sub.ProofBlob = blob
			switch _, err := p.Submit(context.Background(), sub); {
			case err == nil:
				atomic.AddInt32(&accepted, 1)
			case err == ErrDuplicateNullifier:
				atomic.AddInt32(&duplicated, 1)
			default:
				c.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	c.Assert(accepted, qt.Equals, int32(1))
	c.Assert(duplicated, qt.Equals, int32(numGoroutines-1))
}

func TestSubmitConcurrentDistinctAgainstSameGroup(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})
	root := ref.Root()

	const numGoroutines = 8
	subs := make([]*Submission, numGoroutines)
	for i := range subs {
		subs[i] = testSubmission(c, root)
	}
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	errCh := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(sub *Submission) {
			defer wg.Done()
			_, err := p.Submit(context.Background(), sub)
			errCh <- err
		}(subs[i])
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		c.Assert(err, qt.IsNil)
	}
	c.Assert(ref.Size(), qt.Equals, numGoroutines)
}

func TestSubmitCancelledBeforeCommit(t *testing.T) {
	c := qt.New(t)
	p, stg, ref := testSetup(t, zk.DevVerifier{})
	sub := testSubmission(c, ref.Root())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Submit(ctx, sub)
	c.Assert(err, qt.ErrorIs, context.Canceled)

	used, err := stg.HasNullifier(sub.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
}

func TestSubmitRepeatIdentityNewNullifier(t *testing.T) {
	c := qt.New(t)
	p, _, ref := testSetup(t, zk.DevVerifier{})

	sub1 := testSubmission(c, ref.Root())
	receipt1, err := p.Submit(context.Background(), sub1)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt1.MemberAdded, qt.IsTrue)

	// The same commitment under a fresh nullifier is accepted and does not
	// grow the tree again.
	sub2 := testSubmission(c, ref.Root())
	sub2.IdentityCommitment = sub1.IdentityCommitment
	receipt2, err := p.Submit(context.Background(), sub2)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt2.MemberAdded, qt.IsFalse)
	c.Assert(ref.Size(), qt.Equals, 1)
}

func TestSubmitGroupFull(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	ref, err := stg.Groups().New(testAnchor, "Tiny", testFence, 2)
	c.Assert(err, qt.IsNil)
	p := New(stg, zk.DevVerifier{})

	for i := 0; i < 4; i++ {
		_, _, err := ref.AddMemberIfAbsent(util.RandomBytes(32))
		c.Assert(err, qt.IsNil)
	}
	sub := testSubmission(c, ref.Root())
	_, err = p.Submit(context.Background(), sub)
	c.Assert(err, qt.ErrorIs, ErrGroupFull)
}

func TestKind(t *testing.T) {
	c := qt.New(t)
	c.Assert(Kind(nil), qt.Equals, "accepted")
	c.Assert(Kind(ErrDuplicateNullifier), qt.Equals, "duplicate_nullifier")
	c.Assert(Kind(&OutsideGeofenceError{Distance: 900, Radius: 500}), qt.Equals, "outside_geofence")
	c.Assert(Kind(context.Canceled), qt.Equals, "internal")
}
