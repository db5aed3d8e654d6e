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

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
)

// Rights is a fungible balance ledger for one of the two decomposed rights.
// Minting and burning belong to the issuing engine; a locked portion of a
// balance is committed to a vote or a liquidation phase and cannot move
// until released.
type Rights struct {
	name     string
	balances map[common.Address]*big.Int
	locked   map[common.Address]*big.Int
	supply   *big.Int
}

func NewRights(name string) *Rights {
	return &Rights{
		name:     name,
		balances: make(map[common.Address]*big.Int),
		locked:   make(map[common.Address]*big.Int),
		supply:   new(big.Int),
	}
}

func (r *Rights) Name() string {
	return r.name
}

func (r *Rights) BalanceOf(holder *common.Address) *big.Int {
	if v, ok := r.balances[*holder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (r *Rights) LockedOf(holder *common.Address) *big.Int {
	if v, ok := r.locked[*holder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (r *Rights) UnlockedOf(holder *common.Address) *big.Int {
	return new(big.Int).Sub(r.BalanceOf(holder), r.LockedOf(holder))
}

func (r *Rights) TotalSupply() *big.Int {
	return new(big.Int).Set(r.supply)
}

func (r *Rights) Mint(holder *common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.IllegalArgumentError.Errorf("invalid mint amount=%v", amount)
	}
	v := r.BalanceOf(holder)
	r.balances[*holder] = v.Add(v, amount)
	r.supply.Add(r.supply, amount)
	return nil
}

func (r *Rights) Burn(holder *common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.IllegalArgumentError.Errorf("invalid burn amount=%v", amount)
	}
	unlocked := r.UnlockedOf(holder)
	if unlocked.Cmp(amount) < 0 {
		return errors.InsufficientUnlockedError.Errorf(
			"burn %s exceeds unlocked %s of %s on %s", amount, unlocked, holder, r.name)
	}
	v := r.BalanceOf(holder)
	r.balances[*holder] = v.Sub(v, amount)
	r.supply.Sub(r.supply, amount)
	return nil
}

func (r *Rights) Move(from, to *common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.IllegalArgumentError.Errorf("invalid transfer amount=%v", amount)
	}
	unlocked := r.UnlockedOf(from)
	if unlocked.Cmp(amount) < 0 {
		return errors.InsufficientUnlockedError.Errorf(
			"transfer %s exceeds unlocked %s of %s on %s", amount, unlocked, from, r.name)
	}
	if from.Equal(to) {
		return nil
	}
	fv := r.BalanceOf(from)
	tv := r.BalanceOf(to)
	r.balances[*from] = fv.Sub(fv, amount)
	r.balances[*to] = tv.Add(tv, amount)
	return nil
}

// Lock commits part of the holder's balance until the next release. Votes
// and liquidation consents lock what they spend.
func (r *Rights) Lock(holder *common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid lock amount=%v", amount)
	}
	unlocked := r.UnlockedOf(holder)
	if unlocked.Cmp(amount) < 0 {
		return errors.InsufficientUnlockedError.Errorf(
			"lock %s exceeds unlocked %s of %s on %s", amount, unlocked, holder, r.name)
	}
	v := r.LockedOf(holder)
	r.locked[*holder] = v.Add(v, amount)
	return nil
}

func (r *Rights) Unlock(holder *common.Address, amount *big.Int) error {
	v := r.LockedOf(holder)
	if v.Cmp(amount) < 0 {
		return errors.InvalidStateError.Errorf(
			"unlock %s exceeds locked %s of %s on %s", amount, v, holder, r.name)
	}
	v.Sub(v, amount)
	if v.Sign() == 0 {
		delete(r.locked, *holder)
	} else {
		r.locked[*holder] = v
	}
	return nil
}

// ReleaseAll clears every lock. Called at epoch reset and when a failed
// liquidation phase resolves.
func (r *Rights) ReleaseAll() {
	r.locked = make(map[common.Address]*big.Int)
}

func (r *Rights) String() string {
	return fmt.Sprintf("Rights{name=%s supply=%s holders=%d}", r.name, r.supply, len(r.balances))
}
