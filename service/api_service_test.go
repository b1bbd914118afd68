package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/util"
	"github.com/zkpresence/zkpresence/zk"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestAPIService(t *testing.T) {
	c := qt.New(t)

	store := storage.New(metadb.NewTest(t))
	port := 10000 + util.RandomInt(0, 20000)
	apiService := NewAPI(store, zk.DevVerifier{}, "127.0.0.1", port)

	ctx := context.Background()
	err := apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	defer apiService.Stop()

	// Give the service time to start
	time.Sleep(500 * time.Millisecond)

	// Test stopping and restarting
	apiService.Stop()
	err = apiService.Start(ctx)
	c.Assert(err, qt.IsNil)

	// Test starting an already running service
	err = apiService.Start(ctx)
	c.Assert(err, qt.ErrorMatches, "service already running")
}
