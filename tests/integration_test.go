package tests

import (
	"context"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/zkpresence/zkpresence/api"
	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/types"
)

func init() {
	log.Init(log.LogLevelDebug, "stdout", nil)
}

var (
	fence = types.Geofence{Latitude: 41.3874, Longitude: 2.1686, Radius: 500}
	// inside is a few meters from the fence center.
	inside = types.Location{Latitude: 41.3875, Longitude: 2.1686, Accuracy: 10}
	// outside is several kilometers north.
	outside = types.Location{Latitude: 41.45, Longitude: 2.1686, Accuracy: 10}
)

func TestIntegration(t *testing.T) {
	c := qt.New(t)

	// Setup
	ctx := context.Background()
	apiSrv := setupAPI(t, ctx)
	_, port := apiSrv.HostPort()
	cli, err := newTestClient(port)
	c.Assert(err, qt.IsNil)

	const anchor = "school-42"

	c.Run("create group", func(c *qt.C) {
		summary, err := cli.NewGroup(&api.NewGroupRequest{
			Anchor:   anchor,
			Name:     "Test School",
			Geofence: fence,
			Depth:    16,
		})
		c.Assert(err, qt.IsNil)
		c.Assert(summary.Anchor, qt.Equals, anchor)
		c.Assert(summary.MemberCount, qt.Equals, 0)
		c.Assert(summary.Root, qt.Not(qt.HasLen), 0)

		// Creating it again conflicts.
		_, status, err := cli.Request("POST", &api.NewGroupRequest{
			Anchor:   anchor,
			Name:     "Test School",
			Geofence: fence,
		}, nil, api.GroupsEndpoint)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusConflict)

		list, err := cli.Groups()
		c.Assert(err, qt.IsNil)
		c.Assert(list.Count, qt.Equals, 1)
	})

	c.Run("submit proof", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)

		req := newSubmission(c, anchor, group.Root, fence, inside)
		resp, err := cli.SubmitProof(req)
		c.Assert(err, qt.IsNil)
		c.Assert(resp.Verified, qt.IsTrue)
		c.Assert(resp.MemberAdded, qt.IsTrue)
		c.Assert(resp.ProofID, qt.Equals, req.Nullifier.String())

		// The group grew and its root moved.
		after, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)
		c.Assert(after.MemberCount, qt.Equals, 1)
		c.Assert(after.Root.String(), qt.Not(qt.Equals), group.Root.String())
		c.Assert(resp.MerkleRoot.String(), qt.Equals, after.Root.String())
	})

	c.Run("replayed nullifier rejected", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)

		req := newSubmission(c, anchor, group.Root, fence, inside)
		_, err = cli.SubmitProof(req)
		c.Assert(err, qt.IsNil)

		_, status, err := cli.Request("POST", req, nil, api.ProofsEndpoint)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusConflict)
	})

	c.Run("stale root within window accepted", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)
		staleRoot := group.Root

		// Grow the group once, then prove against the pre-growth root.
		_, err = cli.SubmitProof(newSubmission(c, anchor, staleRoot, fence, inside))
		c.Assert(err, qt.IsNil)
		resp, err := cli.SubmitProof(newSubmission(c, anchor, staleRoot, fence, inside))
		c.Assert(err, qt.IsNil)
		c.Assert(resp.Verified, qt.IsTrue)
	})

	c.Run("outside geofence rejected", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)

		req := newSubmission(c, anchor, group.Root, fence, outside)
		_, status, err := cli.Request("POST", req, nil, api.ProofsEndpoint)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusForbidden)
	})

	c.Run("unknown group rejected", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)

		req := newSubmission(c, "nowhere", group.Root, fence, inside)
		_, status, err := cli.Request("POST", req, nil, api.ProofsEndpoint)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusNotFound)
	})

	c.Run("tampered proof rejected", func(c *qt.C) {
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)

		req := newSubmission(c, anchor, group.Root, fence, inside)
		req.Signal = types.HexBytes("some other signal")
		_, status, err := cli.Request("POST", req, nil, api.ProofsEndpoint)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
	})

	c.Run("proof listings", func(c *qt.C) {
		list, err := cli.ProofsBySchool(anchor, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(list.Count > 0, qt.IsTrue)
		for i := 1; i < len(list.Proofs); i++ {
			after := list.Proofs[i].Timestamp.After(list.Proofs[i-1].Timestamp)
			c.Assert(after, qt.IsFalse)
		}

		all, err := cli.Proofs(0)
		c.Assert(err, qt.IsNil)
		c.Assert(all.Count, qt.Equals, list.Count)

		limited, err := cli.ProofsBySchool(anchor, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(limited.Count, qt.Equals, 1)
	})

	c.Run("demographics aggregation", func(c *qt.C) {
		before, err := cli.Demographics(anchor)
		c.Assert(err, qt.IsNil)
		c.Assert(before.Anchor, qt.Equals, anchor)
		c.Assert(before.TotalProofs > 0, qt.IsTrue)
		c.Assert(before.AgeRanges["18-25"], qt.Equals, before.TotalProofs)
		c.Assert(before.Genders["female"], qt.Equals, before.TotalProofs)
		c.Assert(before.LastProofAt, qt.IsNotNil)

		// Two more proofs from the same member, under fresh nullifiers.
		group, err := cli.Group(anchor)
		c.Assert(err, qt.IsNil)
		first := newSubmission(c, anchor, group.Root, fence, inside)
		_, err = cli.SubmitProof(first)
		c.Assert(err, qt.IsNil)
		repeat := newSubmission(c, anchor, group.Root, fence, inside)
		repeat.IdentityCommitment = first.IdentityCommitment
		_, err = cli.SubmitProof(repeat)
		c.Assert(err, qt.IsNil)

		// The member is counted once even though it proved twice.
		after, err := cli.Demographics(anchor)
		c.Assert(err, qt.IsNil)
		c.Assert(after.TotalProofs, qt.Equals, before.TotalProofs+2)
		c.Assert(after.TotalMembers, qt.Equals, before.TotalMembers+1)

		// Every proof lands in a location cluster.
		c.Assert(len(after.Locations) > 0, qt.IsTrue)
		clustered := 0
		for _, cl := range after.Locations {
			c.Assert(cl.Radius, qt.Equals, 100.0)
			clustered += cl.MemberCount
		}
		c.Assert(clustered, qt.Equals, after.TotalProofs)

		// Unknown anchors get a 404, not empty buckets.
		_, status, err := cli.Request("GET", nil, nil, "demographics", "nowhere")
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, http.StatusNotFound)
	})
}
