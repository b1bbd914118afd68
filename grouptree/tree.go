// Package grouptree implements the fixed-depth append-only Merkle tree that
// commits to a group's ordered member list. Leaves are identity commitments
// placed at their append index; empty positions hold the zero value. Nodes
// are Poseidon hashes, so roots are compatible with circuits proving leaf
// knowledge.
//
// The tree is strictly additive: there is no update-in-place and no
// deletion. Appending a leaf that is already present is a no-op.
package grouptree

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/zkpresence/zkpresence/util"
)

var (
	// ErrTreeFull is returned when a tree holds 2^depth leaves and one
	// more is appended.
	ErrTreeFull = errors.New("membership tree is at capacity")
	// ErrInvalidDepth is returned for a non-positive or oversized depth.
	ErrInvalidDepth = errors.New("invalid tree depth")
)

// maxDepth bounds the tree height; 2^32 leaves is far beyond any group.
const maxDepth = 32

// Tree is an incremental fixed-depth Poseidon Merkle tree. It keeps the
// roots of the filled left subtrees so an append costs depth hashes.
// Tree is not safe for concurrent use; callers serialize access.
type Tree struct {
	depth  int
	zeros  []*big.Int // zeros[i] is the root of an empty subtree of height i
	filled []*big.Int // filled[i] is the last completed left sibling at height i
	leaves []*big.Int
	index  map[string]int // leaf value -> leaf index
	root   *big.Int
}

// New creates an empty tree of the given depth. Capacity is 2^depth leaves.
func New(depth int) (*Tree, error) {
	zeros, err := zeroHashes(depth)
	if err != nil {
		return nil, err
	}
	return &Tree{
		depth:  depth,
		zeros:  zeros,
		filled: make([]*big.Int, depth),
		index:  make(map[string]int),
		root:   zeros[depth],
	}, nil
}

// zeroHashes returns the empty subtree roots for every height up to depth.
func zeroHashes(depth int) ([]*big.Int, error) {
	if depth <= 0 || depth > maxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	zeros := make([]*big.Int, depth+1)
	zeros[0] = big.NewInt(0)
	for i := 1; i <= depth; i++ {
		h, err := poseidon.Hash([]*big.Int{zeros[i-1], zeros[i-1]})
		if err != nil {
			return nil, err
		}
		zeros[i] = h
	}
	return zeros, nil
}

// EmptyRoot returns the root of a tree of the given depth with no leaves.
func EmptyRoot(depth int) (*big.Int, error) {
	zeros, err := zeroHashes(depth)
	if err != nil {
		return nil, err
	}
	return zeros[depth], nil
}

// ComputeRoot returns the root of the tree holding the given ordered leaf
// sequence at the given depth. It is pure: the same sequence always yields
// the same root. Returns ErrTreeFull if the sequence exceeds 2^depth.
func ComputeRoot(leaves []*big.Int, depth int) (*big.Int, error) {
	t, err := New(depth)
	if err != nil {
		return nil, err
	}
	for _, leaf := range leaves {
		if _, _, err := t.Append(leaf); err != nil {
			return nil, err
		}
	}
	return t.Root(), nil
}

// Append places leaf at index Size() and returns the resulting root. If the
// leaf is already anywhere in the tree the call is a no-op: the current
// root is returned and added is false.
func (t *Tree) Append(leaf *big.Int) (root *big.Int, added bool, err error) {
	leaf = util.BigToFF(leaf)
	if _, ok := t.index[leaf.String()]; ok {
		return t.root, false, nil
	}
	pos := len(t.leaves)
	if int64(pos) >= int64(1)<<uint(t.depth) {
		return nil, false, fmt.Errorf("%w: depth %d", ErrTreeFull, t.depth)
	}

	cur := leaf
	for i := 0; i < t.depth; i++ {
		if pos>>uint(i)&1 == 0 {
			// cur is a left child; its right sibling is still empty.
			t.filled[i] = cur
			cur, err = poseidon.Hash([]*big.Int{cur, t.zeros[i]})
		} else {
			cur, err = poseidon.Hash([]*big.Int{t.filled[i], cur})
		}
		if err != nil {
			return nil, false, err
		}
	}

	t.index[leaf.String()] = len(t.leaves)
	t.leaves = append(t.leaves, leaf)
	t.root = cur
	return cur, true, nil
}

// Root returns the current root.
func (t *Tree) Root() *big.Int {
	return t.root
}

// Size returns the number of leaves.
func (t *Tree) Size() int {
	return len(t.leaves)
}

// Depth returns the fixed tree depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Contains reports whether leaf is present in the tree.
func (t *Tree) Contains(leaf *big.Int) bool {
	_, ok := t.index[util.BigToFF(leaf).String()]
	return ok
}

// LeafIndex returns the index of leaf, or -1 if absent.
func (t *Tree) LeafIndex(leaf *big.Int) int {
	i, ok := t.index[util.BigToFF(leaf).String()]
	if !ok {
		return -1
	}
	return i
}
