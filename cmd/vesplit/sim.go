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

package main

import (
	"math/big"
	"sync"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/module"
)

// In-memory collaborator adapters for local development. A production
// deployment replaces these with clients for the real escrow registry, gauge
// router, token vault and attestation oracle.

type simEscrow struct {
	mu         sync.Mutex
	nextID     module.PositionID
	principals map[module.PositionID]*big.Int
}

func newSimEscrow() *simEscrow {
	return &simEscrow{principals: make(map[module.PositionID]*big.Int)}
}

func (s *simEscrow) Lock(principal *big.Int) (module.PositionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.principals[s.nextID] = new(big.Int).Set(principal)
	return s.nextID, nil
}

func (s *simEscrow) Merge(src, dst module.PositionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.principals[src]
	if !ok {
		return errors.NotFoundError.Errorf("no position %d", src)
	}
	dp, ok := s.principals[dst]
	if !ok {
		return errors.NotFoundError.Errorf("no position %d", dst)
	}
	dp.Add(dp, sp)
	delete(s.principals, src)
	return nil
}

func (s *simEscrow) Split(id module.PositionID, amount *big.Int) (module.PositionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok {
		return 0, errors.NotFoundError.Errorf("no position %d", id)
	}
	if p.Cmp(amount) < 0 {
		return 0, errors.IllegalArgumentError.Errorf("split %s exceeds principal %s", amount, p)
	}
	p.Sub(p, amount)
	s.nextID++
	s.principals[s.nextID] = new(big.Int).Set(amount)
	return s.nextID, nil
}

func (s *simEscrow) IsPermanentUnvoted(id module.PositionID) bool {
	return true
}

func (s *simEscrow) ClaimRebaseGrowth(id module.PositionID) (*big.Int, error) {
	return new(big.Int), nil
}

func (s *simEscrow) Principal(id module.PositionID) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.principals[id]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

type simRouter struct {
	log log.Logger
}

func (s *simRouter) MaxPoolsPerCall() int { return 16 }
func (s *simRouter) BucketCapable() bool  { return true }

func (s *simRouter) SubmitVotes(pools []common.Address, weights []*big.Int) error {
	s.log.Infof("sim router received %d pool votes", len(pools))
	return nil
}

type simVault struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	log      log.Logger
}

func newSimVault(logger log.Logger) *simVault {
	return &simVault{balances: make(map[common.Address]*big.Int), log: logger}
}

func (s *simVault) Balance(token common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.balances[token]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (s *simVault) Transfer(token common.Address, to common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.balances[token]
	if !ok || v.Cmp(amount) < 0 {
		return errors.InsufficientUnlockedError.Errorf(
			"vault balance short of %s on token %s", amount, &token)
	}
	v.Sub(v, amount)
	s.log.Infof("sim vault paid token=%s to=%s amount=%s", &token, &to, amount)
	return nil
}

type simOracle struct{}

func (simOracle) Verify(claim *module.ClaimDescriptor, proof []byte) bool {
	// dev mode attests everything
	return true
}
