package model

import "time"

// ContractName names one of the three protocol components.
type ContractName string

const (
	ContractClaimRegistry   ContractName = "claim_registry"
	ContractExpertRegistry  ContractName = "expert_registry"
	ContractReviewConsensus ContractName = "review_consensus"
)

// Contract is the configuration record a component creates at
// initialization and reads on every privileged call.
type Contract struct {
	Name          ContractName             `json:"name" yaml:"name"`
	Admin         Address                  `json:"admin" yaml:"admin"`
	Partners      map[ContractName]Address `json:"partners" yaml:"partners"`
	Params        *ConsensusParams         `json:"params,omitempty" yaml:"params,omitempty"`
	InitializedAt time.Time                `json:"initialized_at" yaml:"initialized_at"`
}

// Partner returns the bound address for name, if any.
func (c *Contract) Partner(name ContractName) (Address, bool) {
	if c == nil || c.Partners == nil {
		return "", false
	}
	addr, ok := c.Partners[name]
	return addr, ok && addr != ""
}

// IsTrustedCaller reports whether caller is the bound partner for name.
func (c *Contract) IsTrustedCaller(name ContractName, caller Address) bool {
	addr, ok := c.Partner(name)
	return ok && addr == caller
}
