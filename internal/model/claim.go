package model

import "time"

// Address identifies an account or a contract. User addresses are the
// hex-encoded ed25519 public key; contract addresses are configured names.
type Address string

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimStatusPending     ClaimStatus = "pending"
	ClaimStatusUnderReview ClaimStatus = "under_review"
	ClaimStatusTrue        ClaimStatus = "true"
	ClaimStatusFalse       ClaimStatus = "false"
)

// ClaimFee is the submission fee in stroops (0.5 XLM), credited to the
// claim's stake pool.
const ClaimFee int64 = 5_000_000

// Rank orders statuses: Pending < UnderReview < {True, False}. Unknown
// statuses rank -1.
func (s ClaimStatus) Rank() int {
	switch s {
	case ClaimStatusPending:
		return 0
	case ClaimStatusUnderReview:
		return 1
	case ClaimStatusTrue, ClaimStatusFalse:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool { return s.Rank() >= 0 }

// Resolved reports whether s is a verdict status.
func (s ClaimStatus) Resolved() bool { return s.Rank() == 2 }

// CanTransition reports whether a claim may move from s to next. A pending
// claim only goes under review, and only a claim under review is resolved.
// A resolved claim may still flip between True and False while its
// consensus snapshot is recomputed.
func (s ClaimStatus) CanTransition(next ClaimStatus) bool {
	switch s {
	case ClaimStatusPending:
		return next == ClaimStatusUnderReview
	case ClaimStatusUnderReview, ClaimStatusTrue, ClaimStatusFalse:
		return next.Resolved()
	default:
		return false
	}
}

// Claim is a textual assertion under review.
type Claim struct {
	ID          uint64      `json:"id" yaml:"id"`
	Submitter   Address     `json:"submitter" yaml:"submitter"`
	Text        string      `json:"text" yaml:"text"`
	Category    string      `json:"category" yaml:"category"`
	Sources     []string    `json:"sources" yaml:"sources"`
	Status      ClaimStatus `json:"status" yaml:"status"`
	StakePool   int64       `json:"stake_pool" yaml:"stake_pool"`
	ReviewCount uint32      `json:"review_count" yaml:"review_count"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
}
