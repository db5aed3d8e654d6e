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

package liquidation

import (
	"fmt"
	"math/big"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/position"
)

type Phase int

const (
	PhaseNormal Phase = iota
	PhaseCLock
	PhaseCVote
	PhaseVConfirm
	PhaseApproved
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "Normal"
	case PhaseCLock:
		return "CLock"
	case PhaseCVote:
		return "CVote"
	case PhaseVConfirm:
		return "VConfirm"
	case PhaseApproved:
		return "Approved"
	case PhaseClosed:
		return "Closed"
	default:
		return "unknown"
	}
}

// Thresholds in basis points of the respective total supply, and windows in
// periods.
const (
	CLockThresholdBP    = 2500
	CVoteThresholdBP    = 7500
	VConfirmThresholdBP = 5000

	VotingWindowPeriods = 90
	ClaimWindowPeriods  = 7
)

// Machine is the protocol wind-down workflow. Capital-right holders lock
// votes toward a 25% and then a 75% supermajority; voting-right holders
// confirm with 50%. Approval mints receipt rights redeemable 1:1 for
// underlying value inside a bounded claim window. A voting window that
// elapses short of its threshold resolves to failed and every participant
// withdraws its locked amount explicitly; nothing is forfeited silently.
//
// One instance exists for the process lifetime. Approved and Closed are
// absorbing: once past Normal the engine rejects all normal-path mutations.
type Machine struct {
	capital  *position.Rights
	voting   *position.Rights
	receipts *position.Rights
	custody  common.Address

	phase       Phase
	windowStart int64
	approvedAt  int64

	capitalVotes map[common.Address]*big.Int
	votingVotes  map[common.Address]*big.Int
	totalCapital *big.Int
	totalVoting  *big.Int

	// resolved-failure records awaiting explicit withdrawal
	failedCapital map[common.Address]*big.Int
	failedVoting  map[common.Address]*big.Int
	failedCycles  int

	redeemed map[common.Address]bool

	log log.Logger
}

func NewMachine(capital, voting *position.Rights, custody common.Address, logger log.Logger) *Machine {
	return &Machine{
		capital:       capital,
		voting:        voting,
		receipts:      position.NewRights("receipt"),
		custody:       custody,
		capitalVotes:  make(map[common.Address]*big.Int),
		votingVotes:   make(map[common.Address]*big.Int),
		totalCapital:  new(big.Int),
		totalVoting:   new(big.Int),
		failedCapital: make(map[common.Address]*big.Int),
		failedVoting:  make(map[common.Address]*big.Int),
		redeemed:      make(map[common.Address]bool),
		log:           logger.WithFields(log.Fields{log.FieldKeyModule: "liquidation"}),
	}
}

func (m *Machine) Phase() Phase {
	return m.phase
}

// Active reports whether normal-path entry points must be suspended.
func (m *Machine) Active() bool {
	return m.phase != PhaseNormal
}

func (m *Machine) Receipts() *position.Rights {
	return m.receipts
}

func (m *Machine) CapitalVoteOf(holder *common.Address) *big.Int {
	if v, ok := m.capitalVotes[*holder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (m *Machine) TotalCapitalVotes() *big.Int {
	return new(big.Int).Set(m.totalCapital)
}

func (m *Machine) TotalVotingVotes() *big.Int {
	return new(big.Int).Set(m.totalVoting)
}

func meetsThreshold(votes, supply *big.Int, thresholdBP int64) bool {
	if supply.Sign() == 0 {
		return false
	}
	lhs := new(big.Int).Mul(votes, common.BigIntBasisPoint)
	rhs := new(big.Int).Mul(supply, big.NewInt(thresholdBP))
	return lhs.Cmp(rhs) >= 0
}

// Tick lazily resolves time-based transitions: a voting window elapsed
// short of its threshold fails the attempt, and an elapsed claim window
// closes an approved liquidation. Callers invoke it before any
// liquidation-specific operation; it is idempotent.
func (m *Machine) Tick(period int64) {
	switch m.phase {
	case PhaseCVote, PhaseVConfirm:
		if period > m.windowStart+VotingWindowPeriods {
			m.resolveFailed(period)
		}
	case PhaseApproved:
		if period > m.approvedAt+ClaimWindowPeriods {
			m.close(period)
		}
	}
}

func (m *Machine) resolveFailed(period int64) {
	m.log.Warnf("liquidation failed phase=%s window=[%d,%d] period=%d capital=%s voting=%s",
		m.phase, m.windowStart, m.windowStart+VotingWindowPeriods, period,
		m.totalCapital, m.totalVoting)
	for holder, amount := range m.capitalVotes {
		m.failedCapital[holder] = amount
	}
	for holder, amount := range m.votingVotes {
		m.failedVoting[holder] = amount
	}
	m.capitalVotes = make(map[common.Address]*big.Int)
	m.votingVotes = make(map[common.Address]*big.Int)
	m.totalCapital = new(big.Int)
	m.totalVoting = new(big.Int)
	m.failedCycles++
	m.phase = PhaseNormal
	m.windowStart = 0
}

// VoteCapital locks amount of the holder's capital right as consent to
// liquidate. The first vote moves Normal to CLock; the vote crossing 25%
// of capital supply opens the 90-period window in CVote; crossing 75%
// advances to VConfirm.
func (m *Machine) VoteCapital(holder *common.Address, amount *big.Int, period int64) error {
	m.Tick(period)
	switch m.phase {
	case PhaseNormal, PhaseCLock, PhaseCVote:
	default:
		return errors.InvalidStateError.Errorf(
			"capital vote in phase %s", m.phase)
	}
	if err := m.capital.Lock(holder, amount); err != nil {
		return err
	}
	v := m.CapitalVoteOf(holder)
	m.capitalVotes[*holder] = v.Add(v, amount)
	m.totalCapital.Add(m.totalCapital, amount)

	if m.phase == PhaseNormal {
		m.phase = PhaseCLock
		m.log.Infof("liquidation phase=%s first capital vote holder=%s", m.phase, holder)
	}
	if m.phase == PhaseCLock &&
		meetsThreshold(m.totalCapital, m.capital.TotalSupply(), CLockThresholdBP) {
		m.phase = PhaseCVote
		m.windowStart = period
		m.log.Infof("liquidation phase=%s window starts period=%d", m.phase, period)
	}
	if m.phase == PhaseCVote &&
		meetsThreshold(m.totalCapital, m.capital.TotalSupply(), CVoteThresholdBP) {
		m.phase = PhaseVConfirm
		m.log.Infof("liquidation phase=%s capital supermajority reached", m.phase)
	}
	return nil
}

// WithdrawCapitalVote takes back a consent vote before the voting window
// opens. Once CVote starts, locked votes resolve only through approval or
// the failure path.
func (m *Machine) WithdrawCapitalVote(holder *common.Address, period int64) (*big.Int, error) {
	m.Tick(period)
	if m.phase != PhaseCLock {
		return nil, errors.InvalidStateError.Errorf(
			"capital vote withdrawal in phase %s", m.phase)
	}
	amount, ok := m.capitalVotes[*holder]
	if !ok {
		return nil, errors.NothingToClaimError.Errorf("no capital vote by %s", holder)
	}
	if err := m.capital.Unlock(holder, amount); err != nil {
		return nil, err
	}
	delete(m.capitalVotes, *holder)
	m.totalCapital.Sub(m.totalCapital, amount)
	if m.totalCapital.Sign() == 0 {
		m.phase = PhaseNormal
	}
	return amount, nil
}

// ConfirmVoting locks amount of the holder's voting right as confirmation.
// Crossing 50% of voting supply approves the liquidation and opens the
// claim window.
func (m *Machine) ConfirmVoting(holder *common.Address, amount *big.Int, period int64) error {
	m.Tick(period)
	if m.phase != PhaseVConfirm {
		return errors.InvalidStateError.Errorf(
			"voting confirmation in phase %s", m.phase)
	}
	if err := m.voting.Lock(holder, amount); err != nil {
		return err
	}
	v := m.votingVotes[*holder]
	if v == nil {
		v = new(big.Int)
	}
	m.votingVotes[*holder] = v.Add(v, amount)
	m.totalVoting.Add(m.totalVoting, amount)

	if meetsThreshold(m.totalVoting, m.voting.TotalSupply(), VConfirmThresholdBP) {
		m.phase = PhaseApproved
		m.approvedAt = period
		m.log.Infof("liquidation approved period=%d", period)
	}
	return nil
}

// Advance re-checks the current phase's threshold explicitly, for callers
// reacting to supply changes rather than new votes.
func (m *Machine) Advance(period int64) error {
	m.Tick(period)
	switch m.phase {
	case PhaseCLock:
		if !meetsThreshold(m.totalCapital, m.capital.TotalSupply(), CLockThresholdBP) {
			return errors.ThresholdNotMetError.Errorf(
				"capital votes %s below 25%% of %s", m.totalCapital, m.capital.TotalSupply())
		}
		m.phase = PhaseCVote
		m.windowStart = period
	case PhaseCVote:
		if !meetsThreshold(m.totalCapital, m.capital.TotalSupply(), CVoteThresholdBP) {
			return errors.ThresholdNotMetError.Errorf(
				"capital votes %s below 75%% of %s", m.totalCapital, m.capital.TotalSupply())
		}
		m.phase = PhaseVConfirm
	case PhaseVConfirm:
		if !meetsThreshold(m.totalVoting, m.voting.TotalSupply(), VConfirmThresholdBP) {
			return errors.ThresholdNotMetError.Errorf(
				"voting confirmations %s below 50%% of %s", m.totalVoting, m.voting.TotalSupply())
		}
		m.phase = PhaseApproved
		m.approvedAt = period
	default:
		return errors.InvalidStateError.Errorf("nothing to advance in phase %s", m.phase)
	}
	return nil
}

// WithdrawFailedLiquidation returns the holder's locked amounts from a
// failed attempt. Distinct from phase advancement: it only ever follows a
// window that elapsed short of its threshold.
func (m *Machine) WithdrawFailedLiquidation(holder *common.Address) (capital, voting *big.Int, err error) {
	capital, voting = new(big.Int), new(big.Int)
	if amount, ok := m.failedCapital[*holder]; ok {
		if err = m.capital.Unlock(holder, amount); err != nil {
			return nil, nil, err
		}
		delete(m.failedCapital, *holder)
		capital.Set(amount)
	}
	if amount, ok := m.failedVoting[*holder]; ok {
		if err = m.voting.Unlock(holder, amount); err != nil {
			return nil, nil, err
		}
		delete(m.failedVoting, *holder)
		voting.Set(amount)
	}
	if capital.Sign() == 0 && voting.Sign() == 0 {
		return nil, nil, errors.NothingToClaimError.Errorf(
			"no failed liquidation locks for %s", holder)
	}
	return capital, voting, nil
}

// ClaimReceipt redeems the holder's full capital and voting balances for a
// receipt right, once per approved cycle, inside the claim window.
func (m *Machine) ClaimReceipt(holder *common.Address, period int64) (*big.Int, error) {
	m.Tick(period)
	if m.phase != PhaseApproved {
		return nil, errors.InvalidStateError.Errorf("receipt claim in phase %s", m.phase)
	}
	if m.redeemed[*holder] {
		return nil, errors.AlreadyDoneError.Errorf(
			"receipt already claimed by %s this cycle", holder)
	}
	// consent locks served their purpose; release them so the balances
	// can burn
	if amount, ok := m.capitalVotes[*holder]; ok {
		if err := m.capital.Unlock(holder, amount); err != nil {
			return nil, err
		}
		delete(m.capitalVotes, *holder)
	}
	if amount, ok := m.votingVotes[*holder]; ok {
		if err := m.voting.Unlock(holder, amount); err != nil {
			return nil, err
		}
		delete(m.votingVotes, *holder)
	}
	capitalBalance := m.capital.BalanceOf(holder)
	votingBalance := m.voting.BalanceOf(holder)
	total := new(big.Int).Add(capitalBalance, votingBalance)
	if total.Sign() == 0 {
		return nil, errors.NothingToClaimError.Errorf("no balance to redeem for %s", holder)
	}
	if capitalBalance.Sign() > 0 {
		if err := m.capital.Burn(holder, capitalBalance); err != nil {
			return nil, err
		}
	}
	if votingBalance.Sign() > 0 {
		if err := m.voting.Burn(holder, votingBalance); err != nil {
			return nil, err
		}
	}
	if err := m.receipts.Mint(holder, total); err != nil {
		return nil, err
	}
	m.redeemed[*holder] = true
	m.log.Infof("receipt claimed holder=%s amount=%s", holder, total)
	return total, nil
}

// Close ends an approved liquidation. Authorized callers may close early;
// otherwise the claim window must have elapsed. Unredeemed value is minted
// as receipts to the custody party for manual resolution.
func (m *Machine) Close(period int64, authorized bool) error {
	m.Tick(period)
	if m.phase != PhaseApproved {
		return errors.InvalidStateError.Errorf("close in phase %s", m.phase)
	}
	if !authorized && period <= m.approvedAt+ClaimWindowPeriods {
		return errors.InvalidTimingError.Errorf(
			"claim window open until period %d", m.approvedAt+ClaimWindowPeriods)
	}
	m.close(period)
	return nil
}

func (m *Machine) close(period int64) {
	unredeemed := new(big.Int).Add(m.capital.TotalSupply(), m.voting.TotalSupply())
	if unredeemed.Sign() > 0 {
		// rights of holders who never claimed stay frozen behind the
		// absorbing gate; their value goes to custody
		if err := m.receipts.Mint(&m.custody, unredeemed); err != nil {
			m.log.Errorf("custody receipt mint failed: %v", err)
		}
	}
	m.phase = PhaseClosed
	m.log.Infof("liquidation closed period=%d custody=%s unredeemed=%s",
		period, &m.custody, unredeemed)
}

func (m *Machine) String() string {
	return fmt.Sprintf("Machine{phase=%s capital=%s voting=%s}",
		m.phase, m.totalCapital, m.totalVoting)
}
