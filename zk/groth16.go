package zk

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	prooftypes "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/zkpresence/zkpresence/util"
)

// Public signal positions in a Semaphore-style membership circuit.
const (
	signalIdxRoot = iota
	signalIdxNullifier
	signalIdxSignalHash
	numPublicSignals
)

// groth16Blob is the wire layout of the opaque proof blob: a circom Groth16
// proof plus its public signals as decimal strings.
type groth16Blob struct {
	Proof         *prooftypes.ProofData `json:"proof"`
	PublicSignals []string              `json:"publicSignals"`
}

// Groth16Verifier verifies circom Groth16 membership proofs against a
// verification key fixed at construction time.
type Groth16Verifier struct {
	vkey []byte
}

// NewGroth16Verifier returns a verifier using the given verification key
// (the circom snarkjs JSON format).
func NewGroth16Verifier(vkey []byte) (*Groth16Verifier, error) {
	if len(vkey) == 0 {
		return nil, fmt.Errorf("empty verification key")
	}
	// Fail early on keys that are not even JSON.
	var probe map[string]any
	if err := json.Unmarshal(vkey, &probe); err != nil {
		return nil, fmt.Errorf("malformed verification key: %w", err)
	}
	return &Groth16Verifier{vkey: vkey}, nil
}

// NewGroth16VerifierFromFile loads the verification key from disk.
func NewGroth16VerifierFromFile(path string) (*Groth16Verifier, error) {
	vkey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verification key: %w", err)
	}
	return NewGroth16Verifier(vkey)
}

// Verify checks that the blob parses, that its public signals bind the
// submitted root, nullifier and signal, and that the Groth16 proof itself
// verifies under the configured key.
func (g *Groth16Verifier) Verify(p *Proof) (bool, string) {
	var blob groth16Blob
	if err := json.Unmarshal(p.Blob, &blob); err != nil {
		return false, fmt.Sprintf("malformed proof blob: %v", err)
	}
	if blob.Proof == nil {
		return false, "proof blob carries no proof data"
	}
	if len(blob.PublicSignals) < numPublicSignals {
		return false, fmt.Sprintf("expected at least %d public signals, got %d",
			numPublicSignals, len(blob.PublicSignals))
	}

	signals := make([]*big.Int, numPublicSignals)
	for i := range signals {
		v, ok := new(big.Int).SetString(blob.PublicSignals[i], 10)
		if !ok {
			return false, fmt.Sprintf("public signal %d is not a decimal integer", i)
		}
		signals[i] = v
	}

	if root := util.BigToFF(new(big.Int).SetBytes(p.Root)); signals[signalIdxRoot].Cmp(root) != 0 {
		return false, "proof root does not match the claimed root"
	}
	if nul := util.BigToFF(new(big.Int).SetBytes(p.Nullifier)); signals[signalIdxNullifier].Cmp(nul) != 0 {
		return false, "proof nullifier does not match the submitted nullifier"
	}
	if sh := SignalHash(p.Signal); signals[signalIdxSignalHash].Cmp(sh) != 0 {
		return false, "proof signal hash does not match the submitted signal"
	}

	if err := verifier.VerifyGroth16(prooftypes.ZKProof{
		Proof:      blob.Proof,
		PubSignals: blob.PublicSignals,
	}, g.vkey); err != nil {
		return false, fmt.Sprintf("groth16 verification failed: %v", err)
	}
	return true, ""
}
