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

package vote

import (
	"math/big"
	"sort"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/epoch"
	"github.com/vesplit/vesplit/position"
)

// DefaultMaxPools bounds the live pool table. The source design packed pool
// records into bounded storage; a plain map capped to the same maximum keeps
// the semantics without the packing.
const DefaultMaxPools = 256

var (
	ErrAllPassiveRejected = errors.NewBase(errors.InvalidStateError, "AllPassiveRejected")
	ErrPoolTableFull      = errors.NewBase(errors.IllegalArgumentError, "PoolTableFull")
)

type PoolWeight struct {
	Pool   common.Address
	Weight *big.Int
}

// Aggregator records per-holder, per-pool vote weights for the current
// epoch. Active votes direct a pool; passive votes are proportioned across
// the already-placed active votes at epoch end. Voting locks the spent
// voting-right balance until the epoch reset.
type Aggregator struct {
	clock    *epoch.Clock
	rights   *position.Rights
	unit     *big.Int
	maxPools int

	active       map[common.Address]map[common.Address]*big.Int
	passive      map[common.Address]*big.Int
	poolTotals   map[common.Address]*big.Int
	totalActive  *big.Int
	totalPassive *big.Int

	finalizedEpoch int64
	resetEpoch     int64

	log log.Logger
}

func NewAggregator(clock *epoch.Clock, rights *position.Rights, unit *big.Int, maxPools int, logger log.Logger) *Aggregator {
	if maxPools <= 0 {
		maxPools = DefaultMaxPools
	}
	return &Aggregator{
		clock:          clock,
		rights:         rights,
		unit:           new(big.Int).Set(unit),
		maxPools:       maxPools,
		active:         make(map[common.Address]map[common.Address]*big.Int),
		passive:        make(map[common.Address]*big.Int),
		poolTotals:     make(map[common.Address]*big.Int),
		totalActive:    new(big.Int),
		totalPassive:   new(big.Int),
		finalizedEpoch: -1,
		resetEpoch:     -1,
		log:            logger.WithFields(log.Fields{log.FieldKeyModule: "vote"}),
	}
}

func (a *Aggregator) checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid vote amount=%v", amount)
	}
	if new(big.Int).Mod(amount, a.unit).Sign() != 0 {
		return errors.NonWholeUnitError.Errorf(
			"MustVoteWholeUnits: amount=%s unit=%s", amount, a.unit)
	}
	return nil
}

func (a *Aggregator) checkWindow(now int64) error {
	if !a.clock.InWindow(now, epoch.WindowVoting) {
		return errors.InvalidTimingError.Errorf(
			"vote at ts=%d in %s window", now, a.clock.WindowOf(now))
	}
	return nil
}

// Vote directs amount of the holder's voting right at the pool.
func (a *Aggregator) Vote(holder, pool *common.Address, amount *big.Int, now int64) error {
	if err := a.checkWindow(now); err != nil {
		return err
	}
	if err := a.checkAmount(amount); err != nil {
		return err
	}
	total, known := a.poolTotals[*pool]
	if !known {
		if len(a.poolTotals) >= a.maxPools {
			return ErrPoolTableFull.Errorf("PoolTableFull: max=%d", a.maxPools)
		}
		total = new(big.Int)
	}
	if err := a.rights.Lock(holder, amount); err != nil {
		return err
	}
	pools, ok := a.active[*holder]
	if !ok {
		pools = make(map[common.Address]*big.Int)
		a.active[*holder] = pools
	}
	w := pools[*pool]
	if w == nil {
		w = new(big.Int)
	}
	pools[*pool] = w.Add(w, amount)
	a.poolTotals[*pool] = total.Add(total, amount)
	a.totalActive.Add(a.totalActive, amount)
	a.log.Debugf("vote holder=%s pool=%s amount=%s", holder, pool, amount)
	return nil
}

// VotePassive commits amount without directing a pool; it inherits the
// distribution of the active votes at epoch end. Rejected while no active
// vote exists anywhere this epoch, since there is nothing to proportion
// against.
func (a *Aggregator) VotePassive(holder *common.Address, amount *big.Int, now int64) error {
	if err := a.checkWindow(now); err != nil {
		return err
	}
	if err := a.checkAmount(amount); err != nil {
		return err
	}
	if a.totalActive.Sign() == 0 {
		return ErrAllPassiveRejected.Errorf("AllPassiveRejected: no active votes this epoch")
	}
	if err := a.rights.Lock(holder, amount); err != nil {
		return err
	}
	w := a.passive[*holder]
	if w == nil {
		w = new(big.Int)
	}
	a.passive[*holder] = w.Add(w, amount)
	a.totalPassive.Add(a.totalPassive, amount)
	return nil
}

// WeightOf is the holder's committed weight this epoch, active plus
// passive. The bribe snapshot reads it after voting closes.
func (a *Aggregator) WeightOf(holder *common.Address) *big.Int {
	w := new(big.Int)
	if pools, ok := a.active[*holder]; ok {
		for _, v := range pools {
			w.Add(w, v)
		}
	}
	if v, ok := a.passive[*holder]; ok {
		w.Add(w, v)
	}
	return w
}

func (a *Aggregator) TotalWeight() *big.Int {
	return new(big.Int).Add(a.totalActive, a.totalPassive)
}

func (a *Aggregator) PoolCount() int {
	return len(a.poolTotals)
}

// Finalize produces the epoch's ranked (pool, weight) list: active totals
// plus the passive pot proportioned over them, sorted by weight descending
// with pool-id order breaking ties. Only valid in the execution window and
// once per epoch.
func (a *Aggregator) Finalize(now int64) ([]PoolWeight, error) {
	if !a.clock.InWindow(now, epoch.WindowExecution) {
		return nil, errors.InvalidTimingError.Errorf(
			"finalize at ts=%d in %s window", now, a.clock.WindowOf(now))
	}
	current := a.clock.Current()
	if a.finalizedEpoch == current {
		return nil, errors.AlreadyDoneError.Errorf("votes already executed for epoch %d", current)
	}
	ranked := make([]PoolWeight, 0, len(a.poolTotals))
	for pool, total := range a.poolTotals {
		weight := new(big.Int).Set(total)
		if a.totalPassive.Sign() > 0 {
			share := new(big.Int).Mul(a.totalPassive, total)
			share.Div(share, a.totalActive)
			weight.Add(weight, share)
		}
		ranked = append(ranked, PoolWeight{Pool: pool, Weight: weight})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Weight.Cmp(ranked[j].Weight); c != 0 {
			return c > 0
		}
		return ranked[i].Pool.Compare(&ranked[j].Pool) < 0
	})
	a.finalizedEpoch = current
	a.log.Infof("finalized epoch=%d pools=%d active=%s passive=%s",
		current, len(ranked), a.totalActive, a.totalPassive)
	return ranked, nil
}

// Reset clears all vote records and unlocks the committed voting balances
// for a new epoch. Callable by anyone; a second call in the same epoch is a
// no-op, not a failure.
func (a *Aggregator) Reset() {
	current := a.clock.Current()
	if a.resetEpoch == current {
		return
	}
	a.active = make(map[common.Address]map[common.Address]*big.Int)
	a.passive = make(map[common.Address]*big.Int)
	a.poolTotals = make(map[common.Address]*big.Int)
	a.totalActive = new(big.Int)
	a.totalPassive = new(big.Int)
	a.rights.ReleaseAll()
	a.resetEpoch = current
	a.log.Debugf("votes reset for epoch=%d", current)
}
