package vote

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/epoch"
	"github.com/vesplit/vesplit/position"
)

const genesis = int64(1_700_000_000)

var unit = big.NewInt(1)

func addr(b byte) *common.Address {
	a := new(common.Address)
	a[common.AddressBytes-1] = b
	return a
}

func newTestAggregator(t *testing.T, holders ...int64) (*Aggregator, *position.Rights) {
	rights := position.NewRights("voting")
	for i, balance := range holders {
		assert.NoError(t, rights.Mint(addr(byte(i+1)), big.NewInt(balance)))
	}
	clock := epoch.NewClock(genesis)
	return NewAggregator(clock, rights, unit, 0, log.GlobalLogger()), rights
}

func votingTS() int64 {
	return genesis + epoch.VotingOffset
}

func executionTS() int64 {
	return genesis + epoch.ExecutionOffset
}

func TestAggregator_VoteLocksBalance(t *testing.T) {
	a, rights := newTestAggregator(t, 100)
	holder, pool := addr(1), addr(10)

	assert.NoError(t, a.Vote(holder, pool, big.NewInt(30), votingTS()))
	assert.Equal(t, big.NewInt(30), rights.LockedOf(holder))
	assert.Equal(t, big.NewInt(30), a.WeightOf(holder))

	err := a.Vote(holder, pool, big.NewInt(71), votingTS())
	assert.True(t, errors.InsufficientUnlockedError.Equals(err))
}

func TestAggregator_VoteOutsideWindow(t *testing.T) {
	a, _ := newTestAggregator(t, 100)
	holder, pool := addr(1), addr(10)

	for _, ts := range []int64{genesis, executionTS(), genesis + epoch.SnapshotOffset} {
		err := a.Vote(holder, pool, big.NewInt(10), ts)
		assert.True(t, errors.InvalidTimingError.Equals(err), "ts=%d", ts)
	}
}

func TestAggregator_WholeUnitsOnly(t *testing.T) {
	rights := position.NewRights("voting")
	assert.NoError(t, rights.Mint(addr(1), big.NewInt(10_000)))
	clock := epoch.NewClock(genesis)
	a := NewAggregator(clock, rights, big.NewInt(100), 0, log.GlobalLogger())

	err := a.Vote(addr(1), addr(10), big.NewInt(150), votingTS())
	assert.True(t, errors.NonWholeUnitError.Equals(err))
	assert.NoError(t, a.Vote(addr(1), addr(10), big.NewInt(200), votingTS()))
}

func TestAggregator_AllPassiveRejected(t *testing.T) {
	a, _ := newTestAggregator(t, 100, 100)

	err := a.VotePassive(addr(2), big.NewInt(10), votingTS())
	assert.True(t, ErrAllPassiveRejected.Equals(err))

	assert.NoError(t, a.Vote(addr(1), addr(10), big.NewInt(30), votingTS()))
	assert.NoError(t, a.VotePassive(addr(2), big.NewInt(10), votingTS()))
	assert.Equal(t, big.NewInt(10), a.WeightOf(addr(2)))
}

func TestAggregator_FinalizeProportionsPassive(t *testing.T) {
	a, _ := newTestAggregator(t, 100, 100)
	poolX, poolY := addr(10), addr(11)

	assert.NoError(t, a.Vote(addr(1), poolX, big.NewInt(60), votingTS()))
	assert.NoError(t, a.Vote(addr(1), poolY, big.NewInt(20), votingTS()))
	assert.NoError(t, a.VotePassive(addr(2), big.NewInt(40), votingTS()))

	ranked, err := a.Finalize(executionTS())
	assert.NoError(t, err)
	assert.Len(t, ranked, 2)
	// passive 40 split 3:1 over the active 60:20
	assert.Equal(t, poolX, &ranked[0].Pool)
	assert.Equal(t, big.NewInt(90), ranked[0].Weight)
	assert.Equal(t, poolY, &ranked[1].Pool)
	assert.Equal(t, big.NewInt(30), ranked[1].Weight)
}

func TestAggregator_FinalizeTieBreak(t *testing.T) {
	a, _ := newTestAggregator(t, 100)
	poolHigh, poolLow := addr(20), addr(10)

	assert.NoError(t, a.Vote(addr(1), poolHigh, big.NewInt(30), votingTS()))
	assert.NoError(t, a.Vote(addr(1), poolLow, big.NewInt(30), votingTS()))

	ranked, err := a.Finalize(executionTS())
	assert.NoError(t, err)
	// equal weights order by pool identifier
	assert.Equal(t, poolLow, &ranked[0].Pool)
	assert.Equal(t, poolHigh, &ranked[1].Pool)
}

func TestAggregator_FinalizeOnce(t *testing.T) {
	a, _ := newTestAggregator(t, 100)
	assert.NoError(t, a.Vote(addr(1), addr(10), big.NewInt(30), votingTS()))

	_, err := a.Finalize(votingTS())
	assert.True(t, errors.InvalidTimingError.Equals(err))

	_, err = a.Finalize(executionTS())
	assert.NoError(t, err)

	_, err = a.Finalize(executionTS())
	assert.True(t, errors.AlreadyDoneError.Equals(err))
}

func TestAggregator_ResetIdempotent(t *testing.T) {
	a, rights := newTestAggregator(t, 100)
	holder := addr(1)
	assert.NoError(t, a.Vote(holder, addr(10), big.NewInt(30), votingTS()))

	// rollover into the next epoch, then reset
	_, err := a.clock.Rollover(genesis + epoch.Week)
	assert.NoError(t, err)
	a.Reset()
	assert.Zero(t, rights.LockedOf(holder).Sign())
	assert.Zero(t, a.WeightOf(holder).Sign())
	assert.Zero(t, a.PoolCount())

	// second reset in the same epoch is a no-op
	assert.NoError(t, rights.Lock(holder, big.NewInt(5)))
	a.Reset()
	assert.Equal(t, big.NewInt(5), rights.LockedOf(holder))
}

func TestAggregator_PoolTableBounded(t *testing.T) {
	rights := position.NewRights("voting")
	assert.NoError(t, rights.Mint(addr(1), big.NewInt(1000)))
	clock := epoch.NewClock(genesis)
	a := NewAggregator(clock, rights, unit, 2, log.GlobalLogger())

	assert.NoError(t, a.Vote(addr(1), addr(10), big.NewInt(1), votingTS()))
	assert.NoError(t, a.Vote(addr(1), addr(11), big.NewInt(1), votingTS()))
	err := a.Vote(addr(1), addr(12), big.NewInt(1), votingTS())
	assert.True(t, ErrPoolTableFull.Equals(err))
	// voting again for a known pool still works
	assert.NoError(t, a.Vote(addr(1), addr(11), big.NewInt(1), votingTS()))
}
