package module

import (
	"math/big"

	"github.com/vesplit/vesplit/common"
)

// PositionID identifies a lock inside the external vote-escrow registry.
type PositionID uint64

// VoteEscrow is the external registry that owns locked positions. The engine
// custodies exactly one canonical position plus a pending set awaiting merge.
type VoteEscrow interface {
	// Lock creates a new permanently locked position for the given principal
	// and returns its id.
	Lock(principal *big.Int) (PositionID, error)

	// Merge folds src into dst. The registry rejects a merge when src has
	// voted in the current cycle.
	Merge(src, dst PositionID) error

	// Split carves amount out of the position into a new one. Used only for
	// liquidation redemption.
	Split(id PositionID, amount *big.Int) (PositionID, error)

	// IsPermanentUnvoted reports whether the position is permanently locked
	// and has not voted in the current cycle.
	IsPermanentUnvoted(id PositionID) bool

	// ClaimRebaseGrowth collects the position's accumulated rebase growth
	// and returns the collected amount.
	ClaimRebaseGrowth(id PositionID) (*big.Int, error)

	// Principal returns the locked principal of the position.
	Principal(id PositionID) *big.Int
}

// GaugeRouter is the external vote-submission interface.
type GaugeRouter interface {
	// MaxPoolsPerCall is the largest pool count a single SubmitVotes call
	// accepts.
	MaxPoolsPerCall() int

	// BucketCapable reports whether the router supports weight-preserving
	// multi-bucket submission.
	BucketCapable() bool

	SubmitVotes(pools []common.Address, weights []*big.Int) error
}

// TokenVault holds reward-token balances on behalf of the engine and
// performs the actual outbound transfers for claims and sweeps.
type TokenVault interface {
	Balance(token common.Address) *big.Int
	Transfer(token common.Address, to common.Address, amount *big.Int) error
}

// ClaimDescriptor describes a remote claim to be attested by the
// cross-chain oracle.
type ClaimDescriptor struct {
	ID     string         `json:"id"`
	Holder common.Address `json:"holder"`
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
	Epoch  int64          `json:"epoch"`
}

// AttestationOracle answers whether a claim is attested by the remote state
// root. Treated as opaque; latency may be hours and a negative answer is
// retryable next period.
type AttestationOracle interface {
	Verify(claim *ClaimDescriptor, proof []byte) bool
}
