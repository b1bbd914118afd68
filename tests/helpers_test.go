package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/zkpresence/zkpresence/api"
	"github.com/zkpresence/zkpresence/api/client"
	"github.com/zkpresence/zkpresence/service"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/types"
	"github.com/zkpresence/zkpresence/util"
	"github.com/zkpresence/zkpresence/zk"
	"go.vocdoni.io/dvote/db/metadb"
)

// setupAPI creates and starts a new API server for testing, backed by a
// fresh database and the dev verifier. It returns the running service.
func setupAPI(t *testing.T, ctx context.Context) *service.APIService {
	tmpPort := util.RandomInt(40000, 60000)
	stg := storage.New(metadb.NewTest(t))
	srv := service.NewAPI(stg, zk.DevVerifier{}, "127.0.0.1", tmpPort)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("failed to start API service: %v", err)
	}
	t.Cleanup(srv.Stop)

	// Wait for the HTTP server to start
	time.Sleep(500 * time.Millisecond)
	return srv
}

// newTestClient creates a new API client for testing.
func newTestClient(port int) (*client.HTTPclient, error) {
	return client.New(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// newSubmission builds a dev-verifiable submission against the given group
// root and anchor.
func newSubmission(c *qt.C, anchor string, root types.HexBytes, fence types.Geofence, loc types.Location) *api.SubmitProofRequest {
	nullifier := types.HexBytes(util.RandomBytes(32))
	signal := types.HexBytes("presence-check")
	blob, err := zk.NewDevProof(nullifier, root, signal)
	c.Assert(err, qt.IsNil)
	return &api.SubmitProofRequest{
		IdentityCommitment: util.RandomBytes(32),
		Location:           loc,
		Timestamp:          time.Now().UTC(),
		Proof:              blob,
		Nullifier:          nullifier,
		MerkleRoot:         root,
		Signal:             signal,
		Demographics: &types.Demographics{
			AgeRange:    "18-25",
			Gender:      "female",
			Geofence:    fence,
			GroupAnchor: anchor,
			Timestamp:   time.Now().Unix(),
		},
	}
}
