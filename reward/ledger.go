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
	"fmt"
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
)

type Kind int

const (
	KindFee Kind = iota
	KindEmission
	KindRebase
)

func (k Kind) String() string {
	switch k {
	case KindFee:
		return "fee"
	case KindEmission:
		return "emission"
	case KindRebase:
		return "rebase"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSupply rejects a distribution against an empty ledger. The caller
	// must queue or reroute the amount; it is never dropped here.
	ErrNoSupply = errors.NewBase(errors.InvalidStateError, "NoSupply")
)

// BalanceSource exposes the capital-right balances the ledger accrues
// against. The ledger never mutates balances.
type BalanceSource interface {
	BalanceOf(holder *common.Address) *big.Int
	TotalSupply() *big.Int
}

// Ledger is the index-based reward accumulator for one stream. Distribution
// and claim are O(1) in the holder count: the global index advances by
// amount*Scale/totalSupply and each holder settles against a per-holder
// checkpoint.
type Ledger struct {
	kind        Kind
	algorithmic bool
	index       *big.Int
	checkpoints map[common.Address]*big.Int
	balances    BalanceSource

	distributed *big.Int
	claimed     *big.Int
}

func NewLedger(kind Kind, algorithmic bool, balances BalanceSource) *Ledger {
	return &Ledger{
		kind:        kind,
		algorithmic: algorithmic,
		index:       new(big.Int),
		checkpoints: make(map[common.Address]*big.Int),
		balances:    balances,
		distributed: new(big.Int),
		claimed:     new(big.Int),
	}
}

func (l *Ledger) Kind() Kind {
	return l.kind
}

func (l *Ledger) Algorithmic() bool {
	return l.algorithmic
}

func (l *Ledger) Index() *big.Int {
	return new(big.Int).Set(l.index)
}

// Checkpoint returns the holder's checkpoint. A holder without one is
// treated as checkpointed at the current index, so it can never claim
// rewards accrued before its first exposure.
func (l *Ledger) Checkpoint(holder *common.Address) *big.Int {
	if cp, ok := l.checkpoints[*holder]; ok {
		return new(big.Int).Set(cp)
	}
	return new(big.Int).Set(l.index)
}

// Touch pins the holder's checkpoint at the current index if the holder has
// none. Called on first exposure (mint or first inbound transfer).
func (l *Ledger) Touch(holder *common.Address) {
	if _, ok := l.checkpoints[*holder]; !ok {
		l.checkpoints[*holder] = new(big.Int).Set(l.index)
	}
}

// Forget drops the holder's checkpoint. Only valid once the holder's
// balance and claimable amount are both zero.
func (l *Ledger) Forget(holder *common.Address) {
	delete(l.checkpoints, *holder)
}

func (l *Ledger) Distribute(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.IllegalArgumentError.Errorf("invalid distribution amount=%v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	supply := l.balances.TotalSupply()
	if supply.Sign() == 0 {
		return errors.Errorcf(
			ErrNoSupply.ErrorCode(), "distribute %s on empty %s ledger", amount, l.kind)
	}
	delta := new(big.Int).Mul(amount, common.BigIntScale)
	delta.Div(delta, supply)
	l.index.Add(l.index, delta)
	l.distributed.Add(l.distributed, amount)
	return nil
}

func (l *Ledger) Claimable(holder *common.Address) *big.Int {
	balance := l.balances.BalanceOf(holder)
	if balance.Sign() == 0 {
		return new(big.Int)
	}
	cp, ok := l.checkpoints[*holder]
	if !ok {
		// first observation of a live balance pins its checkpoint, so
		// accrual starts here instead of floating with the index forever
		l.Touch(holder)
		return new(big.Int)
	}
	diff := new(big.Int).Sub(l.index, cp)
	if diff.Sign() <= 0 {
		return new(big.Int)
	}
	amount := diff.Mul(diff, balance)
	return amount.Div(amount, common.BigIntScale)
}

// Claim settles the holder against the current index and returns the amount
// for the caller to transfer out.
func (l *Ledger) Claim(holder *common.Address) (*big.Int, error) {
	amount := l.Claimable(holder)
	if amount.Sign() == 0 {
		return nil, errors.NothingToClaimError.Errorf(
			"nothing to claim for %s on %s stream", holder, l.kind)
	}
	l.checkpoints[*holder] = new(big.Int).Set(l.index)
	l.claimed.Add(l.claimed, amount)
	return amount, nil
}

// TotalDistributed and TotalClaimed track lifetime flow for conservation
// checks and reporting.
func (l *Ledger) TotalDistributed() *big.Int {
	return new(big.Int).Set(l.distributed)
}

func (l *Ledger) TotalClaimed() *big.Int {
	return new(big.Int).Set(l.claimed)
}

func (l *Ledger) String() string {
	return fmt.Sprintf("Ledger{kind=%s index=%s distributed=%s claimed=%s}",
		l.kind, l.index, l.distributed, l.claimed)
}
