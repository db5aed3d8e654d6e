package bribe

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/epoch"
)

const genesis = int64(1_700_000_000)

func addr(b byte) *common.Address {
	a := new(common.Address)
	a[common.AddressBytes-1] = b
	return a
}

type fakeWeights struct {
	weights map[common.Address]*big.Int
}

func (f *fakeWeights) WeightOf(holder *common.Address) *big.Int {
	if v, ok := f.weights[*holder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *fakeWeights) TotalWeight() *big.Int {
	total := new(big.Int)
	for _, v := range f.weights {
		total.Add(total, v)
	}
	return total
}

type fakeVault struct {
	balances map[common.Address]*big.Int
	paid     map[common.Address]map[common.Address]*big.Int
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		balances: make(map[common.Address]*big.Int),
		paid:     make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (f *fakeVault) Balance(token common.Address) *big.Int {
	if v, ok := f.balances[token]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *fakeVault) Transfer(token common.Address, to common.Address, amount *big.Int) error {
	v := f.Balance(token)
	if v.Cmp(amount) < 0 {
		return errors.Errorf("vault underflow on %s", &token)
	}
	f.balances[token] = v.Sub(v, amount)
	if f.paid[token] == nil {
		f.paid[token] = make(map[common.Address]*big.Int)
	}
	prev := f.paid[token][to]
	if prev == nil {
		prev = new(big.Int)
	}
	f.paid[token][to] = prev.Add(prev, amount)
	return nil
}

func (f *fakeVault) paidTo(token, to *common.Address) *big.Int {
	if m, ok := f.paid[*token]; ok {
		if v, ok := m[*to]; ok {
			return v
		}
	}
	return new(big.Int)
}

func setup(t *testing.T) (*Ledger, *epoch.Clock, *fakeWeights, *fakeVault, *common.Address) {
	clock := epoch.NewClock(genesis)
	weights := &fakeWeights{weights: make(map[common.Address]*big.Int)}
	vault := newFakeVault()
	sink := addr(99)
	l := NewLedger(clock, weights, vault, *sink, log.GlobalLogger())
	return l, clock, weights, vault, sink
}

func TestLedger_SnapshotWindowAndIdempotence(t *testing.T) {
	l, _, weights, _, _ := setup(t)
	holder := addr(1)
	weights.weights[*holder] = big.NewInt(30)

	// outside the snapshot window
	err := l.TakeSnapshot(holder, genesis+epoch.VotingOffset)
	assert.True(t, errors.InvalidTimingError.Equals(err))

	snapTS := genesis + epoch.SnapshotOffset
	assert.NoError(t, l.TakeSnapshot(holder, snapTS))

	// a second snapshot for the same epoch is rejected
	err = l.TakeSnapshot(holder, snapTS+100)
	assert.True(t, ErrAlreadySnapshotted.Equals(err))

	// holders without voted weight cannot snapshot
	err = l.TakeSnapshot(addr(2), snapTS)
	assert.True(t, ErrNoVotedWeight.Equals(err))
}

func TestLedger_ClaimProportional(t *testing.T) {
	l, clock, weights, vault, _ := setup(t)
	a, b, token := addr(1), addr(2), addr(50)
	weights.weights[*a] = big.NewInt(30)
	weights.weights[*b] = big.NewInt(10)
	vault.balances[*token] = big.NewInt(1000)

	assert.NoError(t, l.Fund(token, big.NewInt(1000)))
	snapTS := genesis + epoch.SnapshotOffset
	assert.NoError(t, l.TakeSnapshot(a, snapTS))
	assert.NoError(t, l.TakeSnapshot(b, snapTS))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	claimTS := genesis + epoch.Week + epoch.Day
	paid, err := l.Claim(a, []common.Address{*token}, claimTS)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(750), paid[*token])
	assert.Equal(t, big.NewInt(750), vault.paidTo(token, a))

	// double claim
	_, err = l.Claim(a, []common.Address{*token}, claimTS)
	assert.True(t, errors.AlreadyDoneError.Equals(err))

	paid, err = l.Claim(b, []common.Address{*token}, claimTS)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(250), paid[*token])
}

func TestLedger_ClaimRetryAfterVaultFailure(t *testing.T) {
	l, clock, weights, vault, _ := setup(t)
	holder, token := addr(1), addr(50)
	weights.weights[*holder] = big.NewInt(30)
	assert.NoError(t, l.Fund(token, big.NewInt(100)))
	assert.NoError(t, l.TakeSnapshot(holder, genesis+epoch.SnapshotOffset))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	// the vault is empty: the claim fails and nothing is marked claimed
	claimTS := genesis + epoch.Week + epoch.Day
	_, err = l.Claim(holder, []common.Address{*token}, claimTS)
	assert.Error(t, err)
	assert.False(t, errors.AlreadyDoneError.Equals(err))

	// once the vault is funded the same claim succeeds, and the pot
	// accounting leaves nothing behind for the sweep
	vault.balances[*token] = big.NewInt(100)
	paid, err := l.Claim(holder, []common.Address{*token}, claimTS)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), paid[*token])
	assert.Equal(t, big.NewInt(100), vault.paidTo(token, holder))

	swept, err := l.Sweep(token, 0, clock.ClaimDeadline(0)+1)
	assert.NoError(t, err)
	assert.Zero(t, swept.Sign())
}

func TestLedger_ClaimRequiresSnapshot(t *testing.T) {
	l, clock, weights, vault, _ := setup(t)
	holder, token := addr(1), addr(50)
	weights.weights[*holder] = big.NewInt(30)
	vault.balances[*token] = big.NewInt(100)
	assert.NoError(t, l.Fund(token, big.NewInt(100)))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	_, err = l.Claim(holder, []common.Address{*token}, genesis+epoch.Week+epoch.Day)
	assert.True(t, errors.WrongEpochError.Equals(err))
}

func TestLedger_ClaimDeadline(t *testing.T) {
	l, clock, weights, vault, _ := setup(t)
	holder, token := addr(1), addr(50)
	weights.weights[*holder] = big.NewInt(30)
	vault.balances[*token] = big.NewInt(100)
	assert.NoError(t, l.Fund(token, big.NewInt(100)))
	assert.NoError(t, l.TakeSnapshot(holder, genesis+epoch.SnapshotOffset))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	lateTS := clock.ClaimDeadline(0) + 1
	_, err = l.Claim(holder, []common.Address{*token}, lateTS)
	assert.True(t, errors.InvalidTimingError.Equals(err))
}

func TestLedger_Sweep(t *testing.T) {
	l, clock, weights, vault, sink := setup(t)
	holder, token := addr(1), addr(50)
	weights.weights[*holder] = big.NewInt(30)
	weights.weights[*addr(2)] = big.NewInt(10)
	vault.balances[*token] = big.NewInt(1000)
	assert.NoError(t, l.Fund(token, big.NewInt(1000)))
	assert.NoError(t, l.TakeSnapshot(holder, genesis+epoch.SnapshotOffset))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	// only holder 1 claims; holder 2 never snapshotted
	_, err = l.Claim(holder, []common.Address{*token}, genesis+epoch.Week+epoch.Day)
	assert.NoError(t, err)

	// before the deadline the sweep is rejected
	_, err = l.Sweep(token, 0, clock.ClaimDeadline(0))
	assert.True(t, errors.InvalidTimingError.Equals(err))

	swept, err := l.Sweep(token, 0, clock.ClaimDeadline(0)+1)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(250), swept)
	assert.Equal(t, big.NewInt(250), vault.paidTo(token, sink))

	_, err = l.Sweep(token, 0, clock.ClaimDeadline(0)+2)
	assert.True(t, errors.AlreadyDoneError.Equals(err))
}

func TestLedger_SweepDoesNotTouchLivePots(t *testing.T) {
	l, clock, weights, vault, _ := setup(t)
	holder, token := addr(1), addr(50)
	weights.weights[*holder] = big.NewInt(30)
	vault.balances[*token] = big.NewInt(100)
	assert.NoError(t, l.Fund(token, big.NewInt(100)))
	assert.NoError(t, l.TakeSnapshot(holder, genesis+epoch.SnapshotOffset))

	_, err := clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)

	// a fresh bribe arrives for epoch 1 while epoch 0 is being settled
	vault.balances[*token].Add(vault.balances[*token], big.NewInt(500))
	assert.NoError(t, l.Fund(token, big.NewInt(500)))
	assert.NoError(t, l.TakeSnapshot(holder, genesis+epoch.Week+epoch.SnapshotOffset))

	_, err = clock.Rollover(genesis + 2*epoch.Week)
	assert.NoError(t, err)

	// sweeping epoch 0 takes only that pot, not the live epoch-1 pot
	swept, err := l.Sweep(token, 0, clock.ClaimDeadline(0)+1)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), swept)

	paid, err := l.Claim(holder, []common.Address{*token}, genesis+2*epoch.Week+epoch.Day)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(500), paid[*token])
}
