/*
 * Copyright 2023 Vesplit Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package engine

import (
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/reward"
	"github.com/vesplit/vesplit/vote"
)

// Config is the sealed deployment parameter set. Seal validates once and
// freezes it; re-sealing or mutating a sealed config is rejected so every
// component observes the same parameters for the process lifetime.
type Config struct {
	Genesis int64

	// settlement policy applied to every reward stream
	Policy reward.Policy

	// deposit split in basis points; the fee leg absorbs rounding dust so
	// the three legs always sum exactly to the principal
	VotingSplitBP  int64
	CapitalSplitBP int64
	FeeSplitBP     int64

	// minimum vote granularity
	VoteUnit *big.Int

	MaxPools int

	// emission curve parameters
	EmissionK     *big.Int
	EmissionCap   *big.Int
	InitialMinted *big.Int

	// number of backlog periods one rollover call may process
	EmissionMaxSteps int

	// share of each period's emission routed to the pool allocation table
	// built from the last executed vote ranking; the rest feeds the
	// emission reward stream
	EmissionPoolShareBP int64

	// single reward token every stream pays out in
	RewardToken common.Address

	// destination of swept settlement amounts and bribe leftovers
	Sink common.Address

	// receiver of unredeemed liquidation value
	Custody common.Address

	sealed bool
}

func DefaultConfig(genesis int64) *Config {
	return &Config{
		Genesis:             genesis,
		Policy:              reward.PolicySweep,
		VotingSplitBP:       9000,
		CapitalSplitBP:      900,
		FeeSplitBP:          100,
		VoteUnit:            new(big.Int).Set(common.BigIntScale),
		MaxPools:            vote.DefaultMaxPools,
		EmissionK:           new(big.Int).Mul(common.BigIntScale, big.NewInt(1000)),
		EmissionCap:         new(big.Int).Mul(common.BigIntScale, big.NewInt(100_000_000)),
		InitialMinted:       new(big.Int).Mul(common.BigIntScale, big.NewInt(1_000_000)),
		EmissionMaxSteps:    8,
		EmissionPoolShareBP: 5000,
	}
}

func (c *Config) Sealed() bool {
	return c.sealed
}

// Seal validates and freezes the config. It succeeds at most once.
func (c *Config) Seal() error {
	if c.sealed {
		return errors.AlreadyConfiguredError.Errorf("AlreadyConfigured: config is sealed")
	}
	splitSum := c.VotingSplitBP + c.CapitalSplitBP + c.FeeSplitBP
	if splitSum != common.BigIntBasisPoint.Int64() {
		return errors.IllegalArgumentError.Errorf(
			"deposit split %d/%d/%d must sum to %s basis points",
			c.VotingSplitBP, c.CapitalSplitBP, c.FeeSplitBP, common.BigIntBasisPoint)
	}
	if c.VotingSplitBP <= 0 || c.CapitalSplitBP <= 0 || c.FeeSplitBP < 0 {
		return errors.IllegalArgumentError.Errorf(
			"voting and capital split legs must be positive")
	}
	if c.VoteUnit == nil || c.VoteUnit.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid vote unit %v", c.VoteUnit)
	}
	if c.MaxPools <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid pool bound %d", c.MaxPools)
	}
	if c.EmissionK == nil || c.EmissionK.Sign() <= 0 ||
		c.EmissionCap == nil || c.EmissionCap.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid emission parameters")
	}
	if c.InitialMinted == nil || c.InitialMinted.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf(
			"initial minted must be positive to seed curve progress")
	}
	if c.EmissionMaxSteps <= 0 {
		return errors.IllegalArgumentError.Errorf(
			"invalid emission step bound %d", c.EmissionMaxSteps)
	}
	if c.EmissionPoolShareBP < 0 || c.EmissionPoolShareBP > common.BigIntBasisPoint.Int64() {
		return errors.IllegalArgumentError.Errorf(
			"invalid pool share %d basis points", c.EmissionPoolShareBP)
	}
	c.sealed = true
	return nil
}
