package zk

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/zkpresence/zkpresence/types"
	"github.com/zkpresence/zkpresence/util"
)

// DevVerifier implements the verification primitive with a deterministic
// hash binding instead of a zkSNARK: the blob must be the decimal Poseidon
// hash of (nullifier, signalHash, root). It provides no zero-knowledge and
// exists so the full pipeline can run in development and tests without
// circuit artifacts.
type DevVerifier struct{}

func (DevVerifier) Verify(p *Proof) (bool, string) {
	want, err := devDigest(p.Nullifier, p.Root, p.Signal)
	if err != nil {
		return false, "cannot compute dev digest"
	}
	got, ok := new(big.Int).SetString(string(p.Blob), 10)
	if !ok {
		return false, "dev proof blob is not a decimal integer"
	}
	if want.Cmp(got) != 0 {
		return false, "dev proof digest mismatch"
	}
	return true, ""
}

// NewDevProof builds a blob the DevVerifier accepts for the given inputs.
// It stands in for the on-device prover in development setups.
func NewDevProof(nullifier, root types.HexBytes, signal []byte) ([]byte, error) {
	d, err := devDigest(nullifier, root, signal)
	if err != nil {
		return nil, err
	}
	return []byte(d.Text(10)), nil
}

func devDigest(nullifier, root types.HexBytes, signal []byte) (*big.Int, error) {
	return poseidon.Hash([]*big.Int{
		util.BigToFF(new(big.Int).SetBytes(nullifier)),
		SignalHash(signal),
		util.BigToFF(new(big.Int).SetBytes(root)),
	})
}
