// Package service wires the storage, the verification primitive and the
// HTTP API into a startable unit with a clean shutdown path.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zkpresence/zkpresence/api"
	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/zk"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage  *storage.Storage
	verifier zk.Verifier
	api      *api.API
	mu       sync.Mutex
	running  bool
	host     string
	port     int
}

// NewAPI creates a new APIService instance.
func NewAPI(storage *storage.Storage, verifier zk.Verifier, host string, port int) *APIService {
	return &APIService{
		storage:  storage,
		verifier: verifier,
		host:     host,
		port:     port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.running {
		return fmt.Errorf("service already running")
	}

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:     as.host,
		Port:     as.port,
		Storage:  as.storage,
		Verifier: as.verifier,
	})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.running = true
	return nil
}

// Stop halts the API server, draining in-flight requests. The storage
// lifecycle belongs to the caller.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.running {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := as.api.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err)
	}
	as.running = false
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
