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

package bribe

import (
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/epoch"
	"github.com/vesplit/vesplit/module"
)

var (
	ErrAlreadySnapshotted = errors.NewBase(errors.AlreadyDoneError, "AlreadySnapshotted")
	ErrNoVotedWeight      = errors.NewBase(errors.InvalidStateError, "NoVotedWeight")
)

// WeightSource reports committed vote weights for the current epoch.
type WeightSource interface {
	WeightOf(holder *common.Address) *big.Int
	TotalWeight() *big.Int
}

// Snapshot is one holder's proof of participation for one epoch.
type Snapshot struct {
	Weight      *big.Int
	TotalWeight *big.Int
}

type snapshotKey struct {
	holder common.Address
	epoch  int64
}

type claimKey struct {
	holder common.Address
	token  common.Address
	epoch  int64
}

type potKey struct {
	token common.Address
	epoch int64
}

type pot struct {
	funded  *big.Int
	claimed *big.Int
	swept   bool
}

// Ledger distributes third-party bribes to voters proportional to their
// snapshotted weight. Bribes fund a per-token, per-epoch pot; holders
// snapshot inside the post-voting window and claim against the previous
// epoch's snapshot during the next epoch, until a fixed deadline. After the
// deadline anyone with authority sweeps the leftovers. Pots are per-epoch,
// so a sweep can never consume funds still inside a live claim window.
type Ledger struct {
	clock *epoch.Clock
	votes WeightSource
	vault module.TokenVault
	sink  common.Address

	snapshots map[snapshotKey]*Snapshot
	claims    map[claimKey]bool
	pots      map[potKey]*pot

	log log.Logger
}

func NewLedger(clock *epoch.Clock, votes WeightSource, vault module.TokenVault, sink common.Address, logger log.Logger) *Ledger {
	return &Ledger{
		clock:     clock,
		votes:     votes,
		vault:     vault,
		sink:      sink,
		snapshots: make(map[snapshotKey]*Snapshot),
		claims:    make(map[claimKey]bool),
		pots:      make(map[potKey]*pot),
		log:       logger.WithFields(log.Fields{log.FieldKeyModule: "bribe"}),
	}
}

// Fund credits an arriving bribe to the current epoch's pot. The tokens
// themselves are already in the vault; this records which epoch they pay.
func (l *Ledger) Fund(token *common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid bribe amount=%v", amount)
	}
	key := potKey{token: *token, epoch: l.clock.Current()}
	p, ok := l.pots[key]
	if !ok {
		p = &pot{funded: new(big.Int), claimed: new(big.Int)}
		l.pots[key] = p
	}
	p.funded.Add(p.funded, amount)
	l.log.Debugf("bribe funded token=%s epoch=%d amount=%s", token, key.epoch, amount)
	return nil
}

func (l *Ledger) SnapshotOf(holder *common.Address, epochN int64) *Snapshot {
	return l.snapshots[snapshotKey{holder: *holder, epoch: epochN}]
}

// TakeSnapshot records the holder's (weight, total weight) for the current
// epoch. Only valid inside the snapshot window, only with voted weight, and
// only once per epoch.
func (l *Ledger) TakeSnapshot(holder *common.Address, now int64) error {
	if !l.clock.InWindow(now, epoch.WindowSnapshot) {
		return errors.InvalidTimingError.Errorf(
			"snapshot at ts=%d in %s window", now, l.clock.WindowOf(now))
	}
	current := l.clock.Current()
	key := snapshotKey{holder: *holder, epoch: current}
	if _, ok := l.snapshots[key]; ok {
		return ErrAlreadySnapshotted.Errorf(
			"AlreadySnapshotted: holder=%s epoch=%d", holder, current)
	}
	weight := l.votes.WeightOf(holder)
	if weight.Sign() == 0 {
		return ErrNoVotedWeight.Errorf("NoVotedWeight: holder=%s epoch=%d", holder, current)
	}
	l.snapshots[key] = &Snapshot{
		Weight:      weight,
		TotalWeight: l.votes.TotalWeight(),
	}
	return nil
}

// Claim pays the holder its proportional share of each token's pot for the
// previous epoch, against the snapshot taken then. Double claims per
// (holder, token, epoch) are rejected.
func (l *Ledger) Claim(holder *common.Address, tokens []common.Address, now int64) (map[common.Address]*big.Int, error) {
	snapEpoch := l.clock.Current() - 1
	if snapEpoch < 0 {
		return nil, errors.WrongEpochError.Errorf("no completed epoch to claim")
	}
	if now > l.clock.ClaimDeadline(snapEpoch) {
		return nil, errors.InvalidTimingError.Errorf(
			"claim at ts=%d past deadline=%d", now, l.clock.ClaimDeadline(snapEpoch))
	}
	snap := l.SnapshotOf(holder, snapEpoch)
	if snap == nil {
		return nil, errors.WrongEpochError.Errorf(
			"WrongEpoch: no snapshot for holder=%s epoch=%d", holder, snapEpoch)
	}
	// validate all tokens before paying any; a rejected call must leave
	// every balance untouched
	for _, token := range tokens {
		if l.claims[claimKey{holder: *holder, token: token, epoch: snapEpoch}] {
			return nil, errors.AlreadyDoneError.Errorf(
				"bribe already claimed: holder=%s token=%s epoch=%d", holder, &token, snapEpoch)
		}
	}
	paid := make(map[common.Address]*big.Int, len(tokens))
	for i := range tokens {
		token := tokens[i]
		amount := new(big.Int)
		p := l.pots[potKey{token: token, epoch: snapEpoch}]
		if p != nil {
			amount.Mul(snap.Weight, p.funded)
			amount.Div(amount, snap.TotalWeight)
		}
		// pay before marking; a failed transfer leaves the entitlement
		// claimable and the pot accounting untouched
		if amount.Sign() > 0 {
			if err := l.vault.Transfer(token, *holder, amount); err != nil {
				return nil, err
			}
			p.claimed.Add(p.claimed, amount)
		}
		l.claims[claimKey{holder: *holder, token: token, epoch: snapEpoch}] = true
		paid[token] = amount
	}
	return paid, nil
}

// Sweep moves a pot's unclaimed remainder to the sink once its claim
// deadline has passed.
func (l *Ledger) Sweep(token *common.Address, epochN int64, now int64) (*big.Int, error) {
	if now <= l.clock.ClaimDeadline(epochN) {
		return nil, errors.InvalidTimingError.Errorf(
			"sweep at ts=%d before deadline=%d", now, l.clock.ClaimDeadline(epochN))
	}
	p, ok := l.pots[potKey{token: *token, epoch: epochN}]
	if !ok {
		return nil, errors.NotFoundError.Errorf("no pot for token=%s epoch=%d", token, epochN)
	}
	if p.swept {
		return nil, errors.AlreadyDoneError.Errorf(
			"pot already swept: token=%s epoch=%d", token, epochN)
	}
	remainder := new(big.Int).Sub(p.funded, p.claimed)
	p.swept = true
	if remainder.Sign() > 0 {
		if err := l.vault.Transfer(*token, l.sink, remainder); err != nil {
			p.swept = false
			return nil, err
		}
	}
	l.log.Infof("bribe pot swept token=%s epoch=%d remainder=%s", token, epochN, remainder)
	return remainder, nil
}
