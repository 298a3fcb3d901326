package model

import "time"

// EventKind names the operation that produced an event.
type EventKind string

const (
	EventClaimSubmitted     EventKind = "claim_submitted"
	EventStatusUpdated      EventKind = "status_updated"
	EventStakePoolIncreased EventKind = "stake_pool_increased"
	EventExpertRegistered   EventKind = "expert_registered"
	EventReputationUpdated  EventKind = "reputation_updated"
	EventStakeAdded         EventKind = "stake_added"
	EventStakeSlashed       EventKind = "stake_slashed"
	EventReviewSubmitted    EventKind = "review_submitted"
	EventConsensusReached   EventKind = "consensus_reached"
	EventRewardsDistributed EventKind = "rewards_distributed"
)

// Event is a notification for off-system observers. Seq is assigned by the
// store on insert and orders events globally.
type Event struct {
	ID       string    `json:"id" yaml:"id"`
	Seq      int64     `json:"seq" yaml:"seq"`
	Kind     EventKind `json:"kind" yaml:"kind"`
	EntityID string    `json:"entity_id" yaml:"entity_id"`
	At       time.Time `json:"at" yaml:"at"`
}

// TransferKind classifies a native-asset movement.
type TransferKind string

const (
	TransferFee          TransferKind = "fee"
	TransferPoolTopUp    TransferKind = "pool_topup"
	TransferStakeDeposit TransferKind = "stake_deposit"
	TransferReward       TransferKind = "reward"
	TransferSlash        TransferKind = "slash"
)

// Transfer is one entry in the native-asset transfer journal. Settlement of
// the journal against the real asset happens outside the protocol.
type Transfer struct {
	ID       string       `json:"id" yaml:"id"`
	Kind     TransferKind `json:"kind" yaml:"kind"`
	From     Address      `json:"from" yaml:"from"`
	To       Address      `json:"to" yaml:"to"`
	Amount   int64        `json:"amount" yaml:"amount"`
	ClaimID  uint64       `json:"claim_id,omitempty" yaml:"claim_id,omitempty"`
	ReviewID uint64       `json:"review_id,omitempty" yaml:"review_id,omitempty"`
	At       time.Time    `json:"at" yaml:"at"`
}
