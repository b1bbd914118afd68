// Package storage provides the persistent handles of the service: the group
// registry and the proof store, both backed by the same key-value database.
// Proof writes are serialized by a storage-level lock so that the nullifier
// check and the insert happen atomically within a single write transaction.
package storage

import (
	"fmt"
	"sync"

	"github.com/zkpresence/zkpresence/storage/groups"
	"go.vocdoni.io/dvote/db"
)

var (
	proofPrefix       = []byte("pr/")
	proofAnchorPrefix = []byte("pa/")
)

var (
	// ErrNullifierUsed is returned on an insert whose nullifier is taken.
	ErrNullifierUsed = fmt.Errorf("nullifier already used")
	// ErrNotFound is returned when a proof does not exist.
	ErrNotFound = fmt.Errorf("proof not found")
)

// Storage manages the persistent storage of proofs and groups.
type Storage struct {
	db     db.Database
	groups *groups.GroupDB

	// proofLock serializes check-and-insert on the nullifier space.
	proofLock sync.Mutex
}

// New creates a new Storage instance over the given database.
func New(d db.Database) *Storage {
	return &Storage{
		db:     d,
		groups: groups.NewGroupDB(d),
	}
}

// Close closes the storage database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		panic(err)
	}
}

// Groups returns the group registry.
func (s *Storage) Groups() *groups.GroupDB {
	return s.groups
}
