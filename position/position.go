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

package position

import (
	"fmt"
	"math/big"

	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/module"
)

// Position is the sole custodied vote-escrow lock. After deposit the
// protocol owns it exclusively; it leaves only through liquidation
// redemption.
type Position struct {
	id        module.PositionID
	principal *big.Int
	permanent bool
	rebase    *big.Int // growth per epoch observed at last rebase claim
}

func NewPosition(id module.PositionID, principal *big.Int) *Position {
	return &Position{
		id:        id,
		principal: new(big.Int).Set(principal),
		permanent: true,
		rebase:    new(big.Int),
	}
}

func (p *Position) ID() module.PositionID {
	return p.id
}

func (p *Position) Principal() *big.Int {
	return new(big.Int).Set(p.principal)
}

func (p *Position) Permanent() bool {
	return p.permanent
}

func (p *Position) Rebase() *big.Int {
	return new(big.Int).Set(p.rebase)
}

func (p *Position) grow(amount *big.Int) {
	p.principal.Add(p.principal, amount)
	p.rebase.Set(amount)
}

func (p *Position) String() string {
	return fmt.Sprintf("Position{id=%d principal=%s}", p.id, p.principal)
}

type pendingEntry struct {
	id         module.PositionID
	enqueuedAt int64
}

// Consolidator keeps deposited positions as an explicit two-phase state: a
// pending set plus the canonical position. The external registry rejects a
// merge for a position that voted in the current cycle, so consolidation is
// deferred at least one tick past enqueue and resolved by the idempotent
// Settle, invoked lazily like epoch rollover.
type Consolidator struct {
	escrow    module.VoteEscrow
	canonical *Position
	pending   []pendingEntry
	log       log.Logger
}

func NewConsolidator(escrow module.VoteEscrow, logger log.Logger) *Consolidator {
	return &Consolidator{
		escrow: escrow,
		log:    logger.WithFields(log.Fields{log.FieldKeyModule: "position"}),
	}
}

func (c *Consolidator) Canonical() *Position {
	return c.canonical
}

func (c *Consolidator) PendingCount() int {
	return len(c.pending)
}

// Enqueue registers a freshly deposited position for consolidation.
func (c *Consolidator) Enqueue(id module.PositionID, now int64) {
	c.pending = append(c.pending, pendingEntry{id: id, enqueuedAt: now})
	c.log.Debugf("enqueue position id=%d at=%d pending=%d", id, now, len(c.pending))
}

// Settle merges every pending position enqueued strictly before now into
// the canonical position. Entries the registry reports as voted this cycle
// stay pending for the next call. Returns how many positions were merged;
// calling again with no eligible entries merges zero and changes nothing.
func (c *Consolidator) Settle(now int64) (int, error) {
	merged := 0
	var remaining []pendingEntry
	for i, e := range c.pending {
		if e.enqueuedAt >= now || !c.escrow.IsPermanentUnvoted(e.id) {
			remaining = append(remaining, e)
			continue
		}
		if c.canonical == nil {
			c.canonical = NewPosition(e.id, c.escrow.Principal(e.id))
			merged++
			continue
		}
		principal := c.escrow.Principal(e.id)
		if err := c.escrow.Merge(e.id, c.canonical.id); err != nil {
			c.pending = append(remaining, c.pending[i:]...)
			return merged, err
		}
		c.canonical.principal.Add(c.canonical.principal, principal)
		merged++
	}
	c.pending = remaining
	return merged, nil
}

// ClaimRebase pulls accumulated rebase growth from the registry into the
// canonical position and returns the collected amount for the rebase
// stream.
func (c *Consolidator) ClaimRebase() (*big.Int, error) {
	if c.canonical == nil {
		return new(big.Int), nil
	}
	amount, err := c.escrow.ClaimRebaseGrowth(c.canonical.id)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		c.canonical.grow(amount)
	}
	return amount, nil
}
