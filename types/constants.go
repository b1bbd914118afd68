package types

const (
	// DefaultTreeDepth is the membership tree depth used when a group is
	// created without an explicit one. It bounds the group to 2^20 members.
	DefaultTreeDepth = 20
	// MaxTreeDepth is the largest depth accepted at group creation.
	MaxTreeDepth = 32
	// MaxProofListLimit is the largest page served by the proof listing
	// endpoints.
	MaxProofListLimit = 100
	// RootHistorySize is the number of recent membership roots kept per
	// group. A proof generated against any root still in the window is
	// accepted, so concurrent appends do not invalidate in-flight proofs.
	RootHistorySize = 32
)
