package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// anchorIndexKey builds the secondary index key for a proof. Timestamps are
// stored inverted so lexicographic iteration yields newest first.
func anchorIndexKey(anchor string, ts time.Time, nullifier []byte) []byte {
	key := make([]byte, 0, len(anchor)+1+8+len(nullifier))
	key = append(key, []byte(anchor)...)
	key = append(key, '/')
	var inv [8]byte
	binary.BigEndian.PutUint64(inv[:], ^uint64(ts.UnixNano()))
	key = append(key, inv[:]...)
	key = append(key, nullifier...)
	return key
}

// InsertProof stores a verified proof record. The nullifier probe and the
// write happen under the storage lock in a single transaction, so a
// nullifier can be spent at most once regardless of submission concurrency.
// Returns ErrNullifierUsed if the nullifier is already spent.
func (s *Storage) InsertProof(rec *ProofRecord) error {
	if len(rec.Nullifier) == 0 {
		return fmt.Errorf("proof record has no nullifier")
	}
	// '/' is the anchor index key separator, so an anchor carrying one
	// would shadow another anchor's index range.
	if strings.ContainsRune(rec.GroupAnchor, '/') {
		return fmt.Errorf("group anchor must not contain '/': %q", rec.GroupAnchor)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := encodeArtifact(rec)
	if err != nil {
		return err
	}

	s.proofLock.Lock()
	defer s.proofLock.Unlock()

	tx := s.db.WriteTx()
	defer tx.Discard()

	pTx := prefixeddb.NewPrefixedWriteTx(tx, proofPrefix)
	if _, err := pTx.Get(rec.Nullifier); err == nil {
		return ErrNullifierUsed
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	if err := pTx.Set(rec.Nullifier, data); err != nil {
		return err
	}
	if rec.GroupAnchor != "" {
		iTx := prefixeddb.NewPrefixedWriteTx(tx, proofAnchorPrefix)
		if err := iTx.Set(anchorIndexKey(rec.GroupAnchor, rec.Timestamp, rec.Nullifier), rec.Nullifier); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugw("proof stored", "nullifier", rec.Nullifier.String(),
		"anchor", rec.GroupAnchor)
	return nil
}

// HasNullifier reports whether a nullifier is already spent. Read-only, so
// it can race with a concurrent insert; InsertProof remains the single
// enforcement point.
func (s *Storage) HasNullifier(nullifier types.HexBytes) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(s.db, proofPrefix).Get(nullifier)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// ProofByNullifier retrieves a single proof record, or ErrNotFound.
func (s *Storage) ProofByNullifier(nullifier types.HexBytes) (*ProofRecord, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, proofPrefix).Get(nullifier)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec := &ProofRecord{}
	if err := decodeArtifact(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CountProofs returns the total number of stored proofs.
func (s *Storage) CountProofs() (int, error) {
	count := 0
	if err := prefixeddb.NewPrefixedReader(s.db, proofPrefix).Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, err
	}
	return count, nil
}

// ListProofs returns stored proof records, newest first. Records that never
// passed verification are excluded from listings.
func (s *Storage) ListProofs(limit int) ([]*ProofRecord, error) {
	var out []*ProofRecord
	var decErr error
	if err := prefixeddb.NewPrefixedReader(s.db, proofPrefix).Iterate(nil, func(k, v []byte) bool {
		rec := &ProofRecord{}
		if decErr = decodeArtifact(v, rec); decErr != nil {
			decErr = fmt.Errorf("proof %x: %w", k, decErr)
			return false
		}
		if rec.Verified {
			out = append(out, rec)
		}
		return true
	}); err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, decErr
	}
	sortProofsByTimestampDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProofsByAnchor returns the verified proofs submitted against the given
// anchor, newest first. A non-positive limit returns all of them.
func (s *Storage) ProofsByAnchor(anchor string, limit int) ([]*ProofRecord, error) {
	if anchor == "" {
		return nil, fmt.Errorf("empty group anchor")
	}
	idxPrefix := append([]byte(anchor), '/')
	var nullifiers []types.HexBytes
	if err := prefixeddb.NewPrefixedReader(s.db, proofAnchorPrefix).Iterate(idxPrefix,
		func(_, v []byte) bool {
			nullifiers = append(nullifiers, bytes.Clone(v))
			return true
		}); err != nil {
		return nil, err
	}
	out := make([]*ProofRecord, 0, len(nullifiers))
	for _, n := range nullifiers {
		rec, err := s.ProofByNullifier(n)
		if err != nil {
			return nil, fmt.Errorf("anchor index for %s points at missing proof %s: %w",
				anchor, n.String(), err)
		}
		if !rec.Verified {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// sortProofsByTimestampDesc orders newest first. The kv iteration order is
// by nullifier, not time, so listings over the primary prefix need it.
func sortProofsByTimestampDesc(recs []*ProofRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
}
