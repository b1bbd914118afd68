package zk

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignalHash maps an arbitrary signal to a field element: keccak256 shifted
// right by 8 bits, the convention used by Semaphore-style circuits so the
// result always fits the BN254 scalar field.
func SignalHash(signal []byte) *big.Int {
	h := new(big.Int).SetBytes(ethcrypto.Keccak256(signal))
	return h.Rsh(h, 8)
}
