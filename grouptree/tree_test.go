package grouptree

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func leaves(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestEmptyRootDeterministic(t *testing.T) {
	c := qt.New(t)
	r1, err := EmptyRoot(20)
	c.Assert(err, qt.IsNil)
	r2, err := EmptyRoot(20)
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r2), qt.Equals, 0)

	r3, err := EmptyRoot(10)
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r3), qt.Not(qt.Equals), 0)
}

func TestEmptyRootMatchesEmptyTree(t *testing.T) {
	c := qt.New(t)
	tree, err := New(16)
	c.Assert(err, qt.IsNil)
	er, err := EmptyRoot(16)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.Root().Cmp(er), qt.Equals, 0)
	c.Assert(tree.Size(), qt.Equals, 0)
}

func TestComputeRootDeterminism(t *testing.T) {
	c := qt.New(t)
	l := leaves(101, 202, 303)
	r1, err := ComputeRoot(l, 20)
	c.Assert(err, qt.IsNil)
	r2, err := ComputeRoot(l, 20)
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r2), qt.Equals, 0)
}

func TestComputeRootSensitivity(t *testing.T) {
	c := qt.New(t)
	r1, err := ComputeRoot(leaves(101, 202, 303), 20)
	c.Assert(err, qt.IsNil)
	r2, err := ComputeRoot(leaves(101, 999, 303), 20)
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r2), qt.Not(qt.Equals), 0)

	// Order matters: leaf index is part of the commitment.
	r3, err := ComputeRoot(leaves(202, 101, 303), 20)
	c.Assert(err, qt.IsNil)
	c.Assert(r1.Cmp(r3), qt.Not(qt.Equals), 0)
}

func TestComputeRootMatchesIncremental(t *testing.T) {
	c := qt.New(t)
	tree, err := New(8)
	c.Assert(err, qt.IsNil)
	all := leaves(7, 8, 9, 10, 11)
	for _, l := range all {
		_, added, err := tree.Append(l)
		c.Assert(err, qt.IsNil)
		c.Assert(added, qt.IsTrue)
	}
	batch, err := ComputeRoot(all, 8)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.Root().Cmp(batch), qt.Equals, 0)
	c.Assert(tree.Size(), qt.Equals, 5)
}

func TestAppendIdempotent(t *testing.T) {
	c := qt.New(t)
	tree, err := New(10)
	c.Assert(err, qt.IsNil)

	r1, added, err := tree.Append(big.NewInt(42))
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.IsTrue)

	r2, added, err := tree.Append(big.NewInt(42))
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.IsFalse)
	c.Assert(r2.Cmp(r1), qt.Equals, 0)
	c.Assert(tree.Size(), qt.Equals, 1)
	c.Assert(tree.Contains(big.NewInt(42)), qt.IsTrue)
	c.Assert(tree.LeafIndex(big.NewInt(42)), qt.Equals, 0)
	c.Assert(tree.LeafIndex(big.NewInt(43)), qt.Equals, -1)
}

func TestCapacityExceeded(t *testing.T) {
	c := qt.New(t)
	tree, err := New(2) // capacity 4
	c.Assert(err, qt.IsNil)
	for i := int64(1); i <= 4; i++ {
		_, _, err := tree.Append(big.NewInt(i))
		c.Assert(err, qt.IsNil)
	}
	_, _, err = tree.Append(big.NewInt(5))
	c.Assert(err, qt.ErrorIs, ErrTreeFull)
	c.Assert(tree.Size(), qt.Equals, 4)

	_, err = ComputeRoot(leaves(1, 2, 3, 4, 5), 2)
	c.Assert(err, qt.ErrorIs, ErrTreeFull)
}

func TestInvalidDepth(t *testing.T) {
	c := qt.New(t)
	_, err := New(0)
	c.Assert(err, qt.ErrorIs, ErrInvalidDepth)
	_, err = New(64)
	c.Assert(err, qt.ErrorIs, ErrInvalidDepth)
	_, err = EmptyRoot(-1)
	c.Assert(err, qt.ErrorIs, ErrInvalidDepth)
}

func TestLeafReducedIntoField(t *testing.T) {
	c := qt.New(t)
	tree, err := New(8)
	c.Assert(err, qt.IsNil)
	// A 32-byte commitment above the BN254 scalar field must be reduced,
	// not rejected.
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	_, added, err := tree.Append(huge)
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.IsTrue)
	c.Assert(tree.Contains(huge), qt.IsTrue)
}
