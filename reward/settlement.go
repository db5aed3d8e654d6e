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

package reward

import (
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
)

// Policy selects what happens to rewards crystallized on a moved balance.
// One policy applies to every stream of a deployment; mixing policies across
// streams is not supported.
type Policy int

const (
	// PolicySweep routes crystallized amounts to a fixed external sink.
	PolicySweep Policy = iota
	// PolicyReindex feeds crystallized amounts back into the stream's
	// accumulator, redistributing them across all current holders.
	PolicyReindex
)

func (p Policy) String() string {
	switch p {
	case PolicySweep:
		return "sweep"
	case PolicyReindex:
		return "reindex"
	default:
		return "unknown"
	}
}

// Settlement crystallizes each stream's unclaimed rewards on the moved
// amount whenever a capital-right balance changes hands. The sender's
// checkpoint stays untouched so its remaining balance keeps accruing from
// the same baseline; the recipient's checkpoint is re-derived by
// balance-weighted blending.
type Settlement struct {
	policy   Policy
	balances BalanceSource
	streams  []*Ledger
}

func NewSettlement(policy Policy, balances BalanceSource, streams ...*Ledger) *Settlement {
	return &Settlement{
		policy:   policy,
		balances: balances,
		streams:  streams,
	}
}

func (s *Settlement) Policy() Policy {
	return s.policy
}

// Settle runs the protocol for a transfer of amount from one holder to
// another. It must run against pre-transfer balances; the caller applies the
// balance move afterwards. The returned map carries per-stream swept amounts
// for the caller to route to the sink; it is empty under PolicyReindex.
//
// A self-transfer is a strict no-op. Settling it would expose a
// rounding-based arbitrage through the blend.
func (s *Settlement) Settle(from, to *common.Address, amount *big.Int) (map[Kind]*big.Int, error) {
	noop, err := s.check(from, to, amount)
	if noop || err != nil {
		return nil, err
	}
	toBefore := s.balances.BalanceOf(to)
	toAfter := new(big.Int).Add(toBefore, amount)

	swept := make(map[Kind]*big.Int)
	for _, ledger := range s.streams {
		unclaimed := crystallize(ledger, from, amount)
		// Blend before the policy applies: the moved amount arrives
		// stripped of its backlog, so its baseline is the pre-policy index.
		// Under reindex it then participates in the redistribution like
		// every other held unit.
		ledger.blendInbound(to, amount, toBefore, toAfter)
		if unclaimed.Sign() > 0 {
			switch s.policy {
			case PolicyReindex:
				ledger.reindex(unclaimed)
			case PolicySweep:
				ledger.markSwept(unclaimed)
				swept[ledger.kind] = unclaimed
			}
		}
	}
	return swept, nil
}

// check validates a transfer and reports whether it is a no-op.
func (s *Settlement) check(from, to *common.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() < 0 {
		return false, errors.IllegalArgumentError.Errorf("invalid transfer amount=%v", amount)
	}
	if from.Equal(to) || amount.Sign() == 0 {
		return true, nil
	}
	fromBalance := s.balances.BalanceOf(from)
	if fromBalance.Cmp(amount) < 0 {
		return false, errors.InsufficientUnlockedError.Errorf(
			"transfer %s exceeds balance %s of %s", amount, fromBalance, from)
	}
	return false, nil
}

// Preview reports the per-stream amounts Settle would sweep for the same
// transfer without touching any checkpoint or index. A caller that must pay
// the sink before committing the settlement reads the amount from here
// first; a rejected payout then leaves the ledgers exactly as they were.
func (s *Settlement) Preview(from, to *common.Address, amount *big.Int) (map[Kind]*big.Int, error) {
	noop, err := s.check(from, to, amount)
	if noop || err != nil || s.policy != PolicySweep {
		return nil, err
	}
	swept := make(map[Kind]*big.Int)
	for _, ledger := range s.streams {
		if unclaimed := crystallize(ledger, from, amount); unclaimed.Sign() > 0 {
			swept[ledger.kind] = unclaimed
		}
	}
	return swept, nil
}

// crystallize computes the unclaimed reward carried by the moved amount.
// The sender's checkpoint is deliberately left unchanged.
func crystallize(l *Ledger, from *common.Address, amount *big.Int) *big.Int {
	diff := new(big.Int).Sub(l.index, l.Checkpoint(from))
	if diff.Sign() <= 0 {
		return new(big.Int)
	}
	unclaimed := diff.Mul(diff, amount)
	return unclaimed.Div(unclaimed, common.BigIntScale)
}

// reindex feeds an already-distributed amount back into the accumulator.
// It does not count toward TotalDistributed; the amount never left the
// ledger.
func (l *Ledger) reindex(amount *big.Int) {
	supply := l.balances.TotalSupply()
	if supply.Sign() == 0 {
		return
	}
	delta := new(big.Int).Mul(amount, common.BigIntScale)
	delta.Div(delta, supply)
	l.index.Add(l.index, delta)
}

// markSwept records an outflow settled outside Claim so conservation
// accounting stays closed.
func (l *Ledger) markSwept(amount *big.Int) {
	l.claimed.Add(l.claimed, amount)
}

// blendInbound re-derives the recipient's checkpoint after the arriving
// amount, which carries the current index as its baseline. The division
// rounds up: rounding down would let repeated dust transfers erode the
// checkpoint below the true weighted average and mint a windfall claim.
func (l *Ledger) blendInbound(to *common.Address, amount, balanceBefore, balanceAfter *big.Int) {
	if balanceBefore.Sign() == 0 {
		l.checkpoints[*to] = new(big.Int).Set(l.index)
		return
	}
	weighted := new(big.Int).Mul(balanceBefore, l.Checkpoint(to))
	weighted.Add(weighted, new(big.Int).Mul(amount, l.index))
	l.checkpoints[*to] = common.CeilDiv(weighted, balanceAfter)
}
