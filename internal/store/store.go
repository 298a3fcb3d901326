package store

import (
	"context"

	"github.com/sells-group/truthstamp/internal/model"
)

// Sequence counters.
const (
	CounterClaims  = "claims"
	CounterExperts = "experts"
	CounterReviews = "reviews"
)

// EventFilter specifies criteria for listing events.
type EventFilter struct {
	Kind     model.EventKind `json:"kind,omitempty"`
	EntityID string          `json:"entity_id,omitempty"`
	AfterSeq int64           `json:"after_seq,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// TransferFilter specifies criteria for listing journal entries. Zero
// values match everything.
type TransferFilter struct {
	ClaimID uint64        `json:"claim_id,omitempty"`
	Address model.Address `json:"address,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Tx is the persistent state visible to a single protocol operation. All
// writes made through a Tx commit or roll back together. Getters return
// (nil, nil) when the record does not exist.
type Tx interface {
	// Contracts
	GetContract(ctx context.Context, name model.ContractName) (*model.Contract, error)
	PutContract(ctx context.Context, c *model.Contract) error

	// Counters
	NextID(ctx context.Context, counter string) (uint64, error)
	Count(ctx context.Context, counter string) (uint64, error)

	// Claims
	GetClaim(ctx context.Context, id uint64) (*model.Claim, error)
	PutClaim(ctx context.Context, c *model.Claim) error
	ListClaims(ctx context.Context, afterID, throughID uint64) ([]model.Claim, error)

	// Experts
	GetExpert(ctx context.Context, addr model.Address) (*model.Expert, error)
	PutExpert(ctx context.Context, e *model.Expert) error

	// Reviews, ordered by id within a claim or expert.
	GetReview(ctx context.Context, id uint64) (*model.Review, error)
	PutReview(ctx context.Context, r *model.Review) error
	ListClaimReviews(ctx context.Context, claimID uint64) ([]model.Review, error)
	ListExpertReviews(ctx context.Context, addr model.Address) ([]model.Review, error)

	// Consensus
	GetConsensus(ctx context.Context, claimID uint64) (*model.ConsensusResult, error)
	PutConsensus(ctx context.Context, c *model.ConsensusResult) error

	// Journals
	InsertTransfer(ctx context.Context, t *model.Transfer) error
	ListTransfers(ctx context.Context, filter TransferFilter) ([]model.Transfer, error)
	InsertEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
}

// Store defines the persistence interface for the protocol.
type Store interface {
	// WithTx runs fn inside one transaction. A non-nil error from fn rolls
	// back every write fn made.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
