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

package emission

import (
	"fmt"
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
)

// Source supplies the utilization inputs snapshotted once per period.
type Source interface {
	LockedVotingSupply() *big.Int
	CirculatingVotingSupply() *big.Int
}

// Curve computes the per-period mint amount k*P*(1-P) scaled by the
// utilization multiplier 4*S*(1-S), where P is the saturating progress
// toward the hard cap and S the locked/circulating voting ratio. The
// multiplier peaks at S=0.5. Each period's inputs are snapshotted
// independently, so catch-up processing of a backlog is deterministic and
// replaying an already-processed period mints nothing.
type Curve struct {
	k      *big.Int
	cap    *big.Int
	minted *big.Int

	lastPeriod int64
	source     Source
	log        log.Logger
}

// NewCurve seeds minted progress with the genesis supply so P starts above
// zero; a curve starting at P=0 would stay there forever.
func NewCurve(k, cap, initialMinted *big.Int, source Source, logger log.Logger) *Curve {
	return &Curve{
		k:      new(big.Int).Set(k),
		cap:    new(big.Int).Set(cap),
		minted: new(big.Int).Set(initialMinted),
		source: source,
		log:    logger.WithFields(log.Fields{log.FieldKeyModule: "emission"}),
	}
}

func (c *Curve) Minted() *big.Int {
	return new(big.Int).Set(c.minted)
}

func (c *Curve) LastPeriod() int64 {
	return c.lastPeriod
}

// progress returns P in fixed point, clamped to [0, Scale].
func (c *Curve) progress() *big.Int {
	if c.cap.Sign() == 0 {
		return new(big.Int).Set(common.BigIntScale)
	}
	p := new(big.Int).Mul(c.minted, common.BigIntScale)
	p.Div(p, c.cap)
	if p.Cmp(common.BigIntScale) > 0 {
		p.Set(common.BigIntScale)
	}
	return p
}

// utilization returns 4*S*(1-S) in fixed point, clamped to [0, Scale].
func (c *Curve) utilization() *big.Int {
	circulating := c.source.CirculatingVotingSupply()
	if circulating.Sign() == 0 {
		return new(big.Int)
	}
	s := new(big.Int).Mul(c.source.LockedVotingSupply(), common.BigIntScale)
	s.Div(s, circulating)
	if s.Cmp(common.BigIntScale) > 0 {
		s.Set(common.BigIntScale)
	}
	u := new(big.Int).Sub(common.BigIntScale, s)
	u.Mul(u, s)
	u.Div(u, common.BigIntScale)
	u.Mul(u, big.NewInt(4))
	return u
}

// EmissionAt is the pure curve: k*P*(Scale-P)/Scale^2 * util/Scale for
// fixed-point P and util.
func EmissionAt(k, p, util *big.Int) *big.Int {
	e := new(big.Int).Sub(common.BigIntScale, p)
	e.Mul(e, p)
	e.Div(e, common.BigIntScale)
	e.Mul(e, k)
	e.Div(e, common.BigIntScale)
	e.Mul(e, util)
	e.Div(e, common.BigIntScale)
	return e
}

// Peek returns the amount the next period would mint with current inputs,
// without mutating anything.
func (c *Curve) Peek() *big.Int {
	return c.clampToCap(EmissionAt(c.k, c.progress(), c.utilization()))
}

func (c *Curve) clampToCap(amount *big.Int) *big.Int {
	headroom := new(big.Int).Sub(c.cap, c.minted)
	if headroom.Sign() < 0 {
		return new(big.Int)
	}
	if amount.Cmp(headroom) > 0 {
		return headroom
	}
	return amount
}

// ProcessPeriods advances the curve toward currentPeriod, at most maxSteps
// periods in one call so an unbounded backlog can never make a single call
// unbounded. It returns the periods processed, whether the backlog is now
// empty, and the total amount minted for the caller to distribute.
func (c *Curve) ProcessPeriods(currentPeriod int64, maxSteps int) (int, bool, *big.Int, error) {
	if maxSteps <= 0 {
		return 0, false, nil, errors.IllegalArgumentError.Errorf("invalid step bound %d", maxSteps)
	}
	if currentPeriod < c.lastPeriod {
		return 0, false, nil, errors.WrongEpochError.Errorf(
			"period %d already processed up to %d", currentPeriod, c.lastPeriod)
	}
	total := new(big.Int)
	processed := 0
	for c.lastPeriod < currentPeriod && processed < maxSteps {
		amount := c.clampToCap(EmissionAt(c.k, c.progress(), c.utilization()))
		c.minted.Add(c.minted, amount)
		c.lastPeriod++
		processed++
		total.Add(total, amount)
	}
	empty := c.lastPeriod == currentPeriod
	if processed > 0 {
		c.log.Infof("emission processed=%d upTo=%d minted=%s backlogEmpty=%v",
			processed, c.lastPeriod, total, empty)
	}
	return processed, empty, total, nil
}

func (c *Curve) String() string {
	return fmt.Sprintf("Curve{k=%s cap=%s minted=%s period=%d}", c.k, c.cap, c.minted, c.lastPeriod)
}
