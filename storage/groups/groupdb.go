// Package groups owns the authoritative mapping from external anchor (the
// network school identifier) to group, and serializes every mutation of a
// single group's member list and root. Group records are persisted on the
// shared key-value database; the membership trees themselves are rebuilt
// from the member list on load, since the root is a pure function of it.
package groups

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zkpresence/zkpresence/grouptree"
	"github.com/zkpresence/zkpresence/log"
	"github.com/zkpresence/zkpresence/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var groupDBPrefix = []byte("gr/")

var (
	// ErrGroupNotFound is returned when an anchor is not registered.
	ErrGroupNotFound = fmt.Errorf("group not found in the local database")
	// ErrGroupAlreadyExists is returned by New() if the anchor is taken.
	ErrGroupAlreadyExists = fmt.Errorf("group already exists in the local database")
	// ErrGroupFull is returned when a group reached its 2^depth capacity.
	ErrGroupFull = fmt.Errorf("group is at its maximum membership capacity")
)

// groupRecord is the persisted form of a group.
type groupRecord struct {
	GroupID     string           `json:"groupId"`
	Anchor      string           `json:"networkSchoolId"`
	Name        string           `json:"name"`
	Geofence    types.Geofence   `json:"location"`
	Depth       int              `json:"depth"`
	Members     []types.HexBytes `json:"members"`
	Root        types.HexBytes   `json:"merkleRoot"`
	RootHistory []types.HexBytes `json:"rootHistory"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// GroupSummary is the projection returned by List: no raw leaves.
type GroupSummary struct {
	GroupID     string         `json:"groupId"`
	Anchor      string         `json:"networkSchoolId"`
	Name        string         `json:"name"`
	Geofence    types.Geofence `json:"location"`
	Depth       int            `json:"depth"`
	MemberCount int            `json:"memberCount"`
	Root        types.HexBytes `json:"merkleRoot"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// GroupDB is a safe and persistent registry of groups keyed by anchor.
type GroupDB struct {
	mu     sync.RWMutex
	db     db.Database
	loaded map[string]*GroupRef // by anchor
}

// NewGroupDB creates a registry over the given database.
func NewGroupDB(d db.Database) *GroupDB {
	return &GroupDB{
		db:     d,
		loaded: make(map[string]*GroupRef),
	}
}

// New registers a group under the given anchor. The tree starts empty at
// the given depth (types.DefaultTreeDepth when zero). Returns
// ErrGroupAlreadyExists if the anchor is taken.
func (g *GroupDB) New(anchor, name string, fence types.Geofence, depth int) (*GroupRef, error) {
	if anchor == "" {
		return nil, fmt.Errorf("empty group anchor")
	}
	// The anchor is embedded in index keys with '/' as separator; an
	// anchor carrying one would alias another group's keyspace.
	if strings.ContainsRune(anchor, '/') {
		return nil, fmt.Errorf("group anchor must not contain '/': %q", anchor)
	}
	if depth == 0 {
		depth = types.DefaultTreeDepth
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.loaded[anchor]; exists {
		return nil, ErrGroupAlreadyExists
	}
	rd := prefixeddb.NewPrefixedReader(g.db, groupDBPrefix)
	if _, err := rd.Get([]byte(anchor)); err == nil {
		return nil, ErrGroupAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}

	tree, err := grouptree.New(depth)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ref := &GroupRef{
		GroupID:   fmt.Sprintf("group_%s_%s", anchor, uuid.New().String()),
		Anchor:    anchor,
		Name:      name,
		Geofence:  fence,
		Depth:     depth,
		CreatedAt: now,
		gdb:       g,
		tree:      tree,
		updatedAt: now,
	}
	root := rootBytes(tree.Root())
	ref.rootHistory = []types.HexBytes{root}

	if err := g.writeGroup(ref); err != nil {
		return nil, err
	}
	g.loaded[anchor] = ref
	log.Infow("group created", "anchor", anchor, "groupId", ref.GroupID,
		"depth", depth, "root", root.String())
	return ref, nil
}

// Exists returns true if the anchor is registered. A storage error is
// reported as such, never as a missing group.
func (g *GroupDB) Exists(anchor string) (bool, error) {
	g.mu.RLock()
	_, exists := g.loaded[anchor]
	g.mu.RUnlock()
	if exists {
		return true, nil
	}
	_, err := prefixeddb.NewPrefixedReader(g.db, groupDBPrefix).Get([]byte(anchor))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// Load returns the group registered under anchor, from memory or from the
// persistent database. Returns ErrGroupNotFound if absent.
func (g *GroupDB) Load(anchor string) (*GroupRef, error) {
	g.mu.RLock()
	if ref, exists := g.loaded[anchor]; exists {
		g.mu.RUnlock()
		return ref, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	// Double-check: another goroutine may have loaded it meanwhile.
	if ref, exists := g.loaded[anchor]; exists {
		return ref, nil
	}

	data, err := prefixeddb.NewPrefixedReader(g.db, groupDBPrefix).Get([]byte(anchor))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, anchor)
		}
		return nil, err
	}
	var rec groupRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode group record: %w", err)
	}
	ref, err := refFromRecord(g, &rec)
	if err != nil {
		return nil, err
	}
	g.loaded[anchor] = ref
	return ref, nil
}

// List returns summaries for every registered group.
func (g *GroupDB) List() ([]*GroupSummary, error) {
	rd := prefixeddb.NewPrefixedReader(g.db, groupDBPrefix)
	var out []*GroupSummary
	var decErr error
	if err := rd.Iterate(nil, func(k, v []byte) bool {
		var rec groupRecord
		if err := cbor.Unmarshal(v, &rec); err != nil {
			decErr = fmt.Errorf("decode group record %q: %w", k, err)
			return false
		}
		out = append(out, &GroupSummary{
			GroupID:     rec.GroupID,
			Anchor:      rec.Anchor,
			Name:        rec.Name,
			Geofence:    rec.Geofence,
			Depth:       rec.Depth,
			MemberCount: len(rec.Members),
			Root:        rec.Root,
			CreatedAt:   rec.CreatedAt,
		})
		return true
	}); err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, decErr
	}
	return out, nil
}

// writeGroup persists a group record. Callers hold the reference's treeMu
// (or are still constructing the reference), so the snapshot is consistent.
func (g *GroupDB) writeGroup(ref *GroupRef) error {
	rec := &groupRecord{
		GroupID:     ref.GroupID,
		Anchor:      ref.Anchor,
		Name:        ref.Name,
		Geofence:    ref.Geofence,
		Depth:       ref.Depth,
		Members:     ref.members,
		Root:        ref.currentRoot(),
		RootHistory: ref.rootHistory,
		CreatedAt:   ref.CreatedAt,
		UpdatedAt:   ref.updatedAt,
	}
	enc, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode group record: %w", err)
	}
	tx := g.db.WriteTx()
	defer tx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(tx, groupDBPrefix).Set([]byte(ref.Anchor), enc); err != nil {
		return err
	}
	return tx.Commit()
}

// refFromRecord rebuilds the in-memory tree from the persisted member list.
func refFromRecord(g *GroupDB, rec *groupRecord) (*GroupRef, error) {
	tree, err := grouptree.New(rec.Depth)
	if err != nil {
		return nil, err
	}
	for _, m := range rec.Members {
		if _, _, err := tree.Append(leafValue(m)); err != nil {
			return nil, fmt.Errorf("rebuild tree for %s: %w", rec.Anchor, err)
		}
	}
	root := rootBytes(tree.Root())
	if !root.Equal(rec.Root) {
		return nil, fmt.Errorf("group %s: stored root %s does not match recomputed root %s",
			rec.Anchor, rec.Root, root)
	}
	return &GroupRef{
		GroupID:     rec.GroupID,
		Anchor:      rec.Anchor,
		Name:        rec.Name,
		Geofence:    rec.Geofence,
		Depth:       rec.Depth,
		CreatedAt:   rec.CreatedAt,
		gdb:         g,
		tree:        tree,
		members:     rec.Members,
		rootHistory: rec.RootHistory,
		updatedAt:   rec.UpdatedAt,
	}, nil
}
