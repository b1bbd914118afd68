// Package zk defines the boundary with the zero-knowledge membership proof
// verification primitive. The submission pipeline treats a Verifier as a
// trusted black box: it forwards the submitted proof material and acts on a
// boolean plus a rejection reason. Proof construction happens on the
// prover's device and is out of scope.
package zk

import (
	"github.com/zkpresence/zkpresence/types"
)

// Proof bundles the submitted material a Verifier checks: the opaque proof
// blob, the membership root it claims, the anti-replay nullifier and the
// signal the proof is bound to.
type Proof struct {
	Blob      []byte
	Root      types.HexBytes
	Nullifier types.HexBytes
	Signal    []byte
}

// Verifier checks that a proof attests knowledge of a secret matching one
// leaf of the tree committed by Root, bound to Signal and Nullifier.
// Implementations must be deterministic and side-effect free. The reason
// string is only meaningful when ok is false.
type Verifier interface {
	Verify(p *Proof) (ok bool, reason string)
}

// StaticVerifier always returns a fixed result. It is a test double for
// exercising the pipeline independently of real proof math.
type StaticVerifier struct {
	OK     bool
	Reason string
}

func (s StaticVerifier) Verify(*Proof) (bool, string) {
	return s.OK, s.Reason
}
