// Package api implements the HTTP surface of the presence proof service:
// proof submission and listing, group management and the aggregated
// demographics read side.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/processor"
	stg "github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/zk"
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port, the storage instance and the proof
// verification primitive the pipeline delegates to.
type APIConfig struct {
	Host     string
	Port     int
	Storage  *stg.Storage
	Verifier zk.Verifier
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	storage   *stg.Storage
	processor *processor.Processor
	server    *http.Server
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Verifier == nil {
		return nil, fmt.Errorf("missing proof verifier")
	}
	a := &API{
		storage:   conf.Storage,
		processor: processor.New(conf.Storage, conf.Verifier),
	}

	// Initialize router
	a.initRouter()
	a.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler: a.router,
	}
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to the
// context deadline.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", ProofsEndpoint, "method", "POST")
	a.router.Post(ProofsEndpoint, a.submitProof)
	log.Infow("register handler", "endpoint", ProofsEndpoint, "method", "GET")
	a.router.Get(ProofsEndpoint, a.listProofs)
	log.Infow("register handler", "endpoint", ProofsByAnchorEndpoint, "method", "GET")
	a.router.Get(ProofsByAnchorEndpoint, a.proofsByAnchor)
	log.Infow("register handler", "endpoint", GroupsEndpoint, "method", "POST")
	a.router.Post(GroupsEndpoint, a.newGroup)
	log.Infow("register handler", "endpoint", GroupsEndpoint, "method", "GET")
	a.router.Get(GroupsEndpoint, a.listGroups)
	log.Infow("register handler", "endpoint", GroupEndpoint, "method", "GET")
	a.router.Get(GroupEndpoint, a.groupInfo)
	log.Infow("register handler", "endpoint", DemographicsEndpoint, "method", "GET")
	a.router.Get(DemographicsEndpoint, a.demographics)
	log.Infow("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Get(MetricsEndpoint, metricsHandler().ServeHTTP)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
