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
	"sync"

	"github.com/gofrs/uuid"

	"github.com/vesplit/vesplit/bribe"
	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/emission"
	"github.com/vesplit/vesplit/epoch"
	"github.com/vesplit/vesplit/liquidation"
	"github.com/vesplit/vesplit/module"
	"github.com/vesplit/vesplit/position"
	"github.com/vesplit/vesplit/reward"
	"github.com/vesplit/vesplit/vote"
)

// Engine is the single entry point tying the decomposed rights, the reward
// streams, the vote aggregator, the emission curve, the bribe ledger and the
// liquidation machine together. Every exported method serializes on one
// mutex and starts by lazily advancing the epoch clock, so no component ever
// observes a stale epoch.
type Engine struct {
	mu  sync.Mutex
	cfg *Config

	timer common.Clock
	clock *epoch.Clock

	escrow module.VoteEscrow
	router module.GaugeRouter
	vault  module.TokenVault
	oracle module.AttestationOracle

	voting       *position.Rights
	capital      *position.Rights
	consolidator *position.Consolidator

	fees       *reward.Ledger
	emissions  *reward.Ledger
	rebases    *reward.Ledger
	streams    []*reward.Ledger
	settlement *reward.Settlement
	queued     map[reward.Kind]*big.Int

	votes  *vote.Aggregator
	curve  *emission.Curve
	bribes *bribe.Ledger
	liq    *liquidation.Machine

	// last executed ranking and the cumulative per-pool emission built
	// from it
	lastRanked  []vote.PoolWeight
	allocations map[common.Address]*big.Int

	remoteClaims map[string]*module.ClaimDescriptor

	log log.Logger
}

// emissionInputs feeds the utilization term of the curve: the share of the
// circulating voting right committed to votes this epoch.
type emissionInputs struct {
	votes  *vote.Aggregator
	voting *position.Rights
}

func (s *emissionInputs) LockedVotingSupply() *big.Int {
	return s.votes.TotalWeight()
}

func (s *emissionInputs) CirculatingVotingSupply() *big.Int {
	return s.voting.TotalSupply()
}

func New(cfg *Config, timer common.Clock,
	escrow module.VoteEscrow, router module.GaugeRouter,
	vault module.TokenVault, oracle module.AttestationOracle,
	logger log.Logger,
) (*Engine, error) {
	if !cfg.Sealed() {
		return nil, errors.IllegalArgumentError.Errorf("config must be sealed before use")
	}
	e := &Engine{
		cfg:          cfg,
		timer:        timer,
		clock:        epoch.NewClock(cfg.Genesis),
		escrow:       escrow,
		router:       router,
		vault:        vault,
		oracle:       oracle,
		voting:       position.NewRights("voting"),
		capital:      position.NewRights("capital"),
		queued:       make(map[reward.Kind]*big.Int),
		allocations:  make(map[common.Address]*big.Int),
		remoteClaims: make(map[string]*module.ClaimDescriptor),
		log:          logger.WithFields(log.Fields{log.FieldKeyModule: "engine"}),
	}
	e.consolidator = position.NewConsolidator(escrow, logger)
	e.fees = reward.NewLedger(reward.KindFee, false, e.capital)
	e.emissions = reward.NewLedger(reward.KindEmission, true, e.capital)
	e.rebases = reward.NewLedger(reward.KindRebase, true, e.capital)
	e.streams = []*reward.Ledger{e.fees, e.emissions, e.rebases}
	e.settlement = reward.NewSettlement(cfg.Policy, e.capital, e.streams...)
	e.votes = vote.NewAggregator(e.clock, e.voting, cfg.VoteUnit, cfg.MaxPools, logger)
	e.curve = emission.NewCurve(cfg.EmissionK, cfg.EmissionCap, cfg.InitialMinted,
		&emissionInputs{votes: e.votes, voting: e.voting}, logger)
	e.bribes = bribe.NewLedger(e.clock, e.votes, vault, cfg.Sink, logger)
	e.liq = liquidation.NewMachine(e.capital, e.voting, cfg.Custody, logger)
	return e, nil
}

func (e *Engine) now() int64 {
	return e.timer.Now().Unix()
}

// gate rejects normal-path mutations while a liquidation is underway.
func (e *Engine) gate() error {
	if e.liq.Active() {
		return errors.LiquidationInProgressError.Errorf(
			"LiquidationInProgress: phase=%s", e.liq.Phase())
	}
	return nil
}

// advance performs all lazy epoch maintenance owed at now: rollover,
// liquidation window resolution, vote reset, position consolidation, rebase
// collection and emission catch-up. Maintenance failures are logged and
// retried at the next boundary; they never block the caller's operation.
func (e *Engine) advance(now int64) error {
	crossed, err := e.clock.Rollover(now)
	if err != nil {
		return err
	}
	current := e.clock.Current()
	e.liq.Tick(current)
	if e.curve.LastPeriod() < current {
		// emission before the vote reset below, so the period snapshot
		// sees the committed votes; running on every call lets repeated
		// calls inside one epoch drain a backlog longer than the step
		// bound
		if _, _, total, err := e.curve.ProcessPeriods(current, e.cfg.EmissionMaxSteps); err != nil {
			e.log.Warnf("emission processing failed: %v", err)
		} else {
			e.distributeOrQueue(e.emissions, e.allocateEmission(total))
		}
	}
	if crossed > 0 {
		e.votes.Reset()
		if merged, err := e.consolidator.Settle(current); err != nil {
			e.log.Warnf("consolidation stopped after %d merges: %v", merged, err)
		}
		if amount, err := e.consolidator.ClaimRebase(); err != nil {
			e.log.Warnf("rebase claim failed: %v", err)
		} else {
			e.distributeOrQueue(e.rebases, amount)
		}
	}
	e.flushQueued()
	return nil
}

// distributeOrQueue credits the stream, parking the amount when the capital
// supply is still empty. Nothing is ever dropped.
func (e *Engine) distributeOrQueue(l *reward.Ledger, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if err := l.Distribute(amount); err != nil {
		if reward.ErrNoSupply.Equals(err) {
			q := e.queued[l.Kind()]
			if q == nil {
				q = new(big.Int)
			}
			e.queued[l.Kind()] = q.Add(q, amount)
			return
		}
		e.log.Errorf("distribution on %s stream failed: %v", l.Kind(), err)
	}
}

// allocateEmission routes the configured share of a period's emission into
// the per-pool allocation table, proportional to the last executed ranking,
// and returns the remainder for the emission reward stream. Without a
// ranking the whole amount goes to the stream; allocation floors round in
// the stream's favor.
func (e *Engine) allocateEmission(total *big.Int) *big.Int {
	if total == nil || total.Sign() == 0 ||
		e.cfg.EmissionPoolShareBP == 0 || len(e.lastRanked) == 0 {
		return total
	}
	poolShare := new(big.Int).Mul(total, big.NewInt(e.cfg.EmissionPoolShareBP))
	poolShare.Div(poolShare, common.BigIntBasisPoint)
	grand := new(big.Int)
	for _, pw := range e.lastRanked {
		grand.Add(grand, pw.Weight)
	}
	if grand.Sign() == 0 {
		return total
	}
	allocated := new(big.Int)
	for _, pw := range e.lastRanked {
		amount := new(big.Int).Mul(poolShare, pw.Weight)
		amount.Div(amount, grand)
		if amount.Sign() == 0 {
			continue
		}
		cur := e.allocations[pw.Pool]
		if cur == nil {
			cur = new(big.Int)
		}
		e.allocations[pw.Pool] = cur.Add(cur, amount)
		allocated.Add(allocated, amount)
	}
	return new(big.Int).Sub(total, allocated)
}

// PoolAllocation reports the cumulative emission allocated to a pool.
func (e *Engine) PoolAllocation(pool *common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.allocations[*pool]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (e *Engine) flushQueued() {
	if len(e.queued) == 0 || e.capital.TotalSupply().Sign() == 0 {
		return
	}
	for _, l := range e.streams {
		if q, ok := e.queued[l.Kind()]; ok && q.Sign() > 0 {
			if err := l.Distribute(q); err == nil {
				delete(e.queued, l.Kind())
			}
		}
	}
}

// Deposit locks the principal into a new escrow position, enqueues it for
// consolidation and mints the decomposed rights by the sealed split. The fee
// leg absorbs the rounding dust and is minted as capital to the sink, so the
// three legs sum exactly to the principal.
func (e *Engine) Deposit(holder *common.Address, principal *big.Int) (votingPart, capitalPart, feePart *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.advance(e.now()); err != nil {
		return nil, nil, nil, err
	}
	if err = e.gate(); err != nil {
		return nil, nil, nil, err
	}
	if principal == nil || principal.Sign() <= 0 {
		return nil, nil, nil, errors.IllegalArgumentError.Errorf("invalid principal=%v", principal)
	}
	id, err := e.escrow.Lock(principal)
	if err != nil {
		return nil, nil, nil, err
	}
	e.consolidator.Enqueue(id, e.clock.Current())

	votingPart = splitPart(principal, e.cfg.VotingSplitBP)
	capitalPart = splitPart(principal, e.cfg.CapitalSplitBP)
	feePart = new(big.Int).Sub(principal, votingPart)
	feePart.Sub(feePart, capitalPart)

	if err = e.voting.Mint(holder, votingPart); err != nil {
		return nil, nil, nil, err
	}
	if err = e.capital.Mint(holder, capitalPart); err != nil {
		return nil, nil, nil, err
	}
	if feePart.Sign() > 0 {
		if err = e.capital.Mint(&e.cfg.Sink, feePart); err != nil {
			return nil, nil, nil, err
		}
	}
	// pin first-exposure checkpoints so the new balance cannot claim the
	// backlog accrued before it existed
	for _, l := range e.streams {
		l.Touch(holder)
		l.Touch(&e.cfg.Sink)
	}
	e.flushQueued()
	e.log.Infof("deposit holder=%s principal=%s position=%d split=%s/%s/%s",
		holder, principal, id, votingPart, capitalPart, feePart)
	return votingPart, capitalPart, feePart, nil
}

func splitPart(principal *big.Int, bp int64) *big.Int {
	part := new(big.Int).Mul(principal, big.NewInt(bp))
	return part.Div(part, common.BigIntBasisPoint)
}

// TransferCapital moves capital right between holders, running the reward
// settlement against pre-transfer balances first. Swept stream amounts are
// paid out of the vault to the sink.
func (e *Engine) TransferCapital(from, to *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	unlocked := e.capital.UnlockedOf(from)
	if amount != nil && unlocked.Cmp(amount) < 0 {
		return errors.InsufficientUnlockedError.Errorf(
			"transfer %s exceeds unlocked %s of %s", amount, unlocked, from)
	}
	// pay the sink before committing anything; a failed payout must leave
	// checkpoints and balances exactly as they were
	swept, err := e.settlement.Preview(from, to, amount)
	if err != nil {
		return err
	}
	total := new(big.Int)
	for _, amt := range swept {
		total.Add(total, amt)
	}
	if total.Sign() > 0 {
		if err := e.vault.Transfer(e.cfg.RewardToken, e.cfg.Sink, total); err != nil {
			return err
		}
	}
	if _, err := e.settlement.Settle(from, to, amount); err != nil {
		return err
	}
	return e.capital.Move(from, to, amount)
}

// TransferVoting moves voting right between holders. The voting right
// carries no reward stream, so no settlement runs.
func (e *Engine) TransferVoting(from, to *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	return e.voting.Move(from, to, amount)
}

// DistributeFees credits externally collected protocol fees to the fee
// stream. The tokens themselves must already sit in the vault.
func (e *Engine) DistributeFees(amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.IllegalArgumentError.Errorf("invalid fee amount=%v", amount)
	}
	e.distributeOrQueue(e.fees, amount)
	return nil
}

// Claim settles the holder against every stream and pays the total out of
// the vault. Returns the per-stream amounts actually paid.
func (e *Engine) Claim(holder *common.Address) (map[reward.Kind]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, err
	}
	if err := e.gate(); err != nil {
		return nil, err
	}
	paid := make(map[reward.Kind]*big.Int)
	total := new(big.Int)
	for _, l := range e.streams {
		if amount := l.Claimable(holder); amount.Sign() > 0 {
			paid[l.Kind()] = amount
			total.Add(total, amount)
		}
	}
	if total.Sign() == 0 {
		return nil, errors.NothingToClaimError.Errorf("nothing to claim for %s", holder)
	}
	// pay before settling the checkpoints; a failed payout must leave the
	// claimable amounts exactly as they were
	if err := e.vault.Transfer(e.cfg.RewardToken, *holder, total); err != nil {
		return nil, err
	}
	for _, l := range e.streams {
		if _, ok := paid[l.Kind()]; !ok {
			continue
		}
		if _, err := l.Claim(holder); err != nil {
			e.log.Errorf("checkpoint settle on %s stream failed after payout: %v", l.Kind(), err)
		}
	}
	e.log.Infof("claim holder=%s total=%s streams=%d", holder, total, len(paid))
	return paid, nil
}

// Claimable reports the holder's unclaimed amount per stream without
// settling anything.
func (e *Engine) Claimable(holder *common.Address) map[reward.Kind]*big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[reward.Kind]*big.Int, len(e.streams))
	for _, l := range e.streams {
		out[l.Kind()] = l.Claimable(holder)
	}
	return out
}

// ClaimRemote settles the holder's streams against an attested claim paid on
// a remote chain. The oracle must accept the descriptor before anything is
// marked claimed; a rejected attestation leaves every checkpoint untouched
// and the claim retryable.
func (e *Engine) ClaimRemote(holder *common.Address, proof []byte) (*module.ClaimDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, err
	}
	if err := e.gate(); err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, l := range e.streams {
		total.Add(total, l.Claimable(holder))
	}
	if total.Sign() == 0 {
		return nil, errors.NothingToClaimError.Errorf("nothing to claim for %s", holder)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrapc(err, errors.UnknownError, "claim id generation failed")
	}
	desc := &module.ClaimDescriptor{
		ID:     id.String(),
		Holder: *holder,
		Token:  e.cfg.RewardToken,
		Amount: total,
		Epoch:  e.clock.Current(),
	}
	if !e.oracle.Verify(desc, proof) {
		return nil, errors.InvalidStateError.Errorf(
			"attestation rejected for claim id=%s holder=%s", desc.ID, holder)
	}
	for _, l := range e.streams {
		if l.Claimable(holder).Sign() == 0 {
			continue
		}
		if _, err := l.Claim(holder); err != nil {
			return nil, err
		}
	}
	e.remoteClaims[desc.ID] = desc
	e.log.Infof("remote claim id=%s holder=%s amount=%s", desc.ID, holder, total)
	return desc, nil
}

func (e *Engine) RemoteClaim(id string) *module.ClaimDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteClaims[id]
}

// Vote directs voting-right weight at a pool for the current epoch.
func (e *Engine) Vote(holder, pool *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	return e.votes.Vote(holder, pool, amount, now)
}

// VotePassive commits weight that inherits the epoch's active distribution.
func (e *Engine) VotePassive(holder *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	return e.votes.VotePassive(holder, amount, now)
}

// ExecuteVotes finalizes the epoch's vote and submits it to the gauge
// router, split into buckets when the ranked list exceeds the router's
// per-call bound.
func (e *Engine) ExecuteVotes() ([]vote.PoolWeight, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return nil, err
	}
	if err := e.gate(); err != nil {
		return nil, err
	}
	ranked, err := e.votes.Finalize(now)
	if err != nil {
		return nil, err
	}
	buckets := vote.BuildSubmission(ranked, e.router.MaxPoolsPerCall(), e.router.BucketCapable())
	for i := range buckets {
		if err := e.router.SubmitVotes(buckets[i].Pools, buckets[i].Weights); err != nil {
			return nil, errors.Wrapcf(err, errors.UnknownError,
				"vote submission failed at bucket %d", i)
		}
	}
	e.lastRanked = ranked
	e.log.Infof("votes executed epoch=%d pools=%d buckets=%d",
		e.clock.Current(), len(ranked), len(buckets))
	return ranked, nil
}

func (e *Engine) FundBribe(token *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	return e.bribes.Fund(token, amount)
}

func (e *Engine) TakeBribeSnapshot(holder *common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return err
	}
	if err := e.gate(); err != nil {
		return err
	}
	return e.bribes.TakeSnapshot(holder, now)
}

func (e *Engine) ClaimBribes(holder *common.Address, tokens []common.Address) (map[common.Address]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return nil, err
	}
	if err := e.gate(); err != nil {
		return nil, err
	}
	return e.bribes.Claim(holder, tokens, now)
}

func (e *Engine) SweepBribes(token *common.Address, epochN int64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if err := e.advance(now); err != nil {
		return nil, err
	}
	if err := e.gate(); err != nil {
		return nil, err
	}
	return e.bribes.Sweep(token, epochN, now)
}

// VoteLiquidation locks capital right toward winding the protocol down.
func (e *Engine) VoteLiquidation(holder *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	return e.liq.VoteCapital(holder, amount, e.clock.Current())
}

func (e *Engine) WithdrawLiquidationVote(holder *common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, err
	}
	return e.liq.WithdrawCapitalVote(holder, e.clock.Current())
}

func (e *Engine) ConfirmLiquidation(holder *common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	return e.liq.ConfirmVoting(holder, amount, e.clock.Current())
}

func (e *Engine) AdvanceLiquidation() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	return e.liq.Advance(e.clock.Current())
}

func (e *Engine) WithdrawFailedLiquidation(holder *common.Address) (capital, voting *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, nil, err
	}
	return e.liq.WithdrawFailedLiquidation(holder)
}

func (e *Engine) ClaimLiquidationReceipt(holder *common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, err
	}
	return e.liq.ClaimReceipt(holder, e.clock.Current())
}

func (e *Engine) CloseLiquidation(authorized bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return err
	}
	return e.liq.Close(e.clock.Current(), authorized)
}

// Status is the operator-facing view of the whole engine.
type Status struct {
	Epoch              int64    `json:"epoch"`
	Window             string   `json:"window"`
	Phase              string   `json:"liquidation_phase"`
	VotingSupply       *big.Int `json:"voting_supply"`
	CapitalSupply      *big.Int `json:"capital_supply"`
	CanonicalPrincipal *big.Int `json:"canonical_principal"`
	PendingPositions   int      `json:"pending_positions"`
	EmissionMinted     *big.Int `json:"emission_minted"`
	SettlementPolicy   string   `json:"settlement_policy"`
}

func (e *Engine) Status() (*Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(e.now()); err != nil {
		return nil, err
	}
	principal := new(big.Int)
	if canonical := e.consolidator.Canonical(); canonical != nil {
		principal = canonical.Principal()
	}
	return &Status{
		Epoch:              e.clock.Current(),
		Window:             e.clock.WindowOf(e.now()).String(),
		Phase:              e.liq.Phase().String(),
		VotingSupply:       e.voting.TotalSupply(),
		CapitalSupply:      e.capital.TotalSupply(),
		CanonicalPrincipal: principal,
		PendingPositions:   e.consolidator.PendingCount(),
		EmissionMinted:     e.curve.Minted(),
		SettlementPolicy:   e.settlement.Policy().String(),
	}, nil
}

// HolderStatus is the per-holder view served by the query API.
type HolderStatus struct {
	Voting        *big.Int            `json:"voting"`
	VotingLocked  *big.Int            `json:"voting_locked"`
	Capital       *big.Int            `json:"capital"`
	CapitalLocked *big.Int            `json:"capital_locked"`
	Receipts      *big.Int            `json:"receipts"`
	VoteWeight    *big.Int            `json:"vote_weight"`
	Claimable     map[string]*big.Int `json:"claimable"`
}

func (e *Engine) HolderStatus(holder *common.Address) *HolderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	claimable := make(map[string]*big.Int, len(e.streams))
	for _, l := range e.streams {
		claimable[l.Kind().String()] = l.Claimable(holder)
	}
	return &HolderStatus{
		Voting:        e.voting.BalanceOf(holder),
		VotingLocked:  e.voting.LockedOf(holder),
		Capital:       e.capital.BalanceOf(holder),
		CapitalLocked: e.capital.LockedOf(holder),
		Receipts:      e.liq.Receipts().BalanceOf(holder),
		VoteWeight:    e.votes.WeightOf(holder),
		Claimable:     claimable,
	}
}

// BribeSnapshotOf reports the holder's recorded snapshot for an epoch, for
// the query API.
func (e *Engine) BribeSnapshotOf(holder *common.Address, epochN int64) *bribe.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bribes.SnapshotOf(holder, epochN)
}

func (e *Engine) Epoch() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Current()
}
