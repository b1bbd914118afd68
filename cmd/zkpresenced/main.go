package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/service"
	"github.com/zkpresence/zkpresence/storage"
	"github.com/zkpresence/zkpresence/zk"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	host := flag.String("host", "0.0.0.0", "API host address")
	port := flag.Int("port", 8080, "API port")
	dataDir := flag.String("dataDir", "./zkpresence-data", "data directory for the key-value database")
	logLevel := flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	vkeyFile := flag.String("vkey", "", "Groth16 verification key JSON file; empty enables the dev verifier")
	flag.Parse()

	log.Init(*logLevel, "stdout", nil)

	var verifier zk.Verifier
	if *vkeyFile != "" {
		v, err := zk.NewGroth16VerifierFromFile(*vkeyFile)
		if err != nil {
			log.Fatalf("failed to load verification key: %v", err)
		}
		verifier = v
	} else {
		log.Warn("no verification key provided, using the dev verifier (NOT FOR PRODUCTION)")
		verifier = zk.DevVerifier{}
	}

	kv, err := metadb.New(db.TypePebble, *dataDir)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(kv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiService := service.NewAPI(stg, verifier, *host, *port)
	if err := apiService.Start(ctx); err != nil {
		log.Fatalf("failed to start API service: %v", err)
	}
	log.Infow("service started", "host", *host, "port", *port, "dataDir", *dataDir)

	<-ctx.Done()
	log.Info("shutting down")
	apiService.Stop()
	stg.Close()
}
