package groups

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/zkpresence/zkpresence/grouptree"
	"github.com/zkpresence/zkpresence/types"
)

// rootByteLen is the serialized width of a tree root.
const rootByteLen = 32

// GroupRef is a loaded group. All access to the underlying tree, member
// list and root history is protected by treeMu: appends to the same group
// never interleave, because leaf-index assignment and root recomputation
// are order dependent.
type GroupRef struct {
	GroupID   string
	Anchor    string
	Name      string
	Geofence  types.Geofence
	Depth     int
	CreatedAt time.Time

	gdb         *GroupDB
	treeMu      sync.Mutex
	tree        *grouptree.Tree
	members     []types.HexBytes
	rootHistory []types.HexBytes // oldest first, bounded by types.RootHistorySize
	updatedAt   time.Time
}

// Root returns the current membership root.
func (gr *GroupRef) Root() types.HexBytes {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()
	return gr.currentRoot()
}

// currentRoot is Root without locking; callers hold treeMu.
func (gr *GroupRef) currentRoot() types.HexBytes {
	return rootBytes(gr.tree.Root())
}

// Size returns the number of members.
func (gr *GroupRef) Size() int {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()
	return gr.tree.Size()
}

// Members returns a copy of the ordered member list.
func (gr *GroupRef) Members() []types.HexBytes {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()
	out := make([]types.HexBytes, len(gr.members))
	copy(out, gr.members)
	return out
}

// IsMember reports whether the commitment is already a leaf.
func (gr *GroupRef) IsMember(commitment types.HexBytes) bool {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()
	return gr.tree.Contains(leafValue(commitment))
}

// KnownRoot reports whether root is the current root or one of the recent
// roots in the bounded history window. Proofs generated against a slightly
// stale root (because of a concurrent append) stay valid inside the window.
func (gr *GroupRef) KnownRoot(root types.HexBytes) bool {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()
	for _, r := range gr.rootHistory {
		if r.Equal(root) {
			return true
		}
	}
	return false
}

// AddMemberIfAbsent appends the commitment as the next leaf, recomputes the
// root and persists members, root and history as one unit. If the
// commitment is already a member the call is a no-op returning the
// unchanged root with added=false. Returns ErrGroupFull at capacity.
func (gr *GroupRef) AddMemberIfAbsent(commitment types.HexBytes) (root types.HexBytes, added bool, err error) {
	gr.treeMu.Lock()
	defer gr.treeMu.Unlock()

	leaf := leafValue(commitment)
	if gr.tree.Contains(leaf) {
		return gr.currentRoot(), false, nil
	}
	newRoot, _, err := gr.tree.Append(leaf)
	if err != nil {
		if errors.Is(err, grouptree.ErrTreeFull) {
			return nil, false, ErrGroupFull
		}
		return nil, false, err
	}

	rb := rootBytes(newRoot)
	gr.members = append(gr.members, append(types.HexBytes{}, commitment...))
	gr.rootHistory = append(gr.rootHistory, rb)
	if len(gr.rootHistory) > types.RootHistorySize {
		gr.rootHistory = gr.rootHistory[len(gr.rootHistory)-types.RootHistorySize:]
	}
	gr.updatedAt = time.Now().UTC()

	// A failed write leaves the in-memory state ahead of disk; the caller
	// treats it as indeterminate and never retries the same submission.
	if err := gr.gdb.writeGroup(gr); err != nil {
		return nil, false, err
	}
	return rb, true, nil
}

// leafValue converts a commitment to its tree leaf field element.
func leafValue(commitment types.HexBytes) *big.Int {
	return new(big.Int).SetBytes(commitment)
}

// rootBytes serializes a root as fixed-width big-endian bytes.
func rootBytes(root *big.Int) types.HexBytes {
	out := make([]byte, rootByteLen)
	root.FillBytes(out)
	return out
}
