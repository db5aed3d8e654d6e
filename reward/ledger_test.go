package reward

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vesplit/vesplit/common"
	"github.com/vesplit/vesplit/common/errors"
)

type balanceBook struct {
	balances map[common.Address]*big.Int
	supply   *big.Int
}

func newBalanceBook() *balanceBook {
	return &balanceBook{
		balances: make(map[common.Address]*big.Int),
		supply:   new(big.Int),
	}
}

func (b *balanceBook) BalanceOf(holder *common.Address) *big.Int {
	if v, ok := b.balances[*holder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *balanceBook) TotalSupply() *big.Int {
	return new(big.Int).Set(b.supply)
}

func (b *balanceBook) mint(holder *common.Address, amount int64) {
	v := b.BalanceOf(holder)
	b.balances[*holder] = v.Add(v, big.NewInt(amount))
	b.supply.Add(b.supply, big.NewInt(amount))
}

func (b *balanceBook) move(from, to *common.Address, amount int64) {
	fv := b.BalanceOf(from)
	tv := b.BalanceOf(to)
	b.balances[*from] = fv.Sub(fv, big.NewInt(amount))
	b.balances[*to] = tv.Add(tv, big.NewInt(amount))
}

func addr(b byte) *common.Address {
	a := new(common.Address)
	a[common.AddressBytes-1] = b
	return a
}

func TestLedger_DistributeAndClaim(t *testing.T) {
	book := newBalanceBook()
	holder := addr(1)
	book.mint(holder, 1000)

	l := NewLedger(KindFee, false, book)
	l.Touch(holder)
	assert.NoError(t, l.Distribute(big.NewInt(100)))
	assert.Equal(t, big.NewInt(100), l.Claimable(holder))

	amount, err := l.Claim(holder)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), amount)
	assert.Zero(t, l.Claimable(holder).Sign())

	_, err = l.Claim(holder)
	assert.True(t, errors.NothingToClaimError.Equals(err))
}

func TestLedger_UntouchedHolderAccruesFromFirstObservation(t *testing.T) {
	book := newBalanceBook()
	holder := addr(1)
	book.mint(holder, 1000)

	// minted without Touch: the backlog before the first observation is
	// not claimable, but the observation pins the checkpoint so later
	// distributions accrue
	l := NewLedger(KindFee, false, book)
	assert.NoError(t, l.Distribute(big.NewInt(100)))
	assert.Zero(t, l.Claimable(holder).Sign())

	assert.NoError(t, l.Distribute(big.NewInt(40)))
	assert.Equal(t, big.NewInt(40), l.Claimable(holder))
}

func TestLedger_DistributeEmpty(t *testing.T) {
	l := NewLedger(KindFee, false, newBalanceBook())
	err := l.Distribute(big.NewInt(10))
	assert.True(t, ErrNoSupply.Equals(err))
	assert.Zero(t, l.Index().Sign())
	assert.Zero(t, l.TotalDistributed().Sign())
}

func TestLedger_WindfallPrevention(t *testing.T) {
	book := newBalanceBook()
	a, b := addr(1), addr(2)
	book.mint(a, 500)

	l := NewLedger(KindEmission, true, book)
	l.Touch(a)
	assert.NoError(t, l.Distribute(big.NewInt(50)))

	// b joins after the distribution; its checkpoint pins to the current
	// index, so the earlier 50 stays with a.
	book.mint(b, 500)
	l.Touch(b)
	assert.Zero(t, l.Claimable(b).Sign())
	assert.Equal(t, big.NewInt(50), l.Claimable(a))

	assert.NoError(t, l.Distribute(big.NewInt(100)))
	assert.Equal(t, big.NewInt(100), l.Claimable(a))
	assert.Equal(t, big.NewInt(50), l.Claimable(b))
}

func TestLedger_Conservation(t *testing.T) {
	book := newBalanceBook()
	holders := []*common.Address{addr(1), addr(2), addr(3)}
	book.mint(holders[0], 333)
	book.mint(holders[1], 667)
	book.mint(holders[2], 1)

	l := NewLedger(KindFee, false, book)
	for _, h := range holders {
		l.Touch(h)
	}

	distributions := []int64{100, 7, 993, 1, 50000}
	for i, d := range distributions {
		assert.NoError(t, l.Distribute(big.NewInt(d)))
		if i%2 == 0 {
			if _, err := l.Claim(holders[i%3]); err != nil {
				assert.True(t, errors.NothingToClaimError.Equals(err))
			}
		}
	}

	outstanding := new(big.Int)
	for _, h := range holders {
		outstanding.Add(outstanding, l.Claimable(h))
	}
	outstanding.Add(outstanding, l.TotalClaimed())

	// claimed + outstanding never exceeds distributed, and the shortfall is
	// bounded by one rounding unit per operation
	diff := new(big.Int).Sub(l.TotalDistributed(), outstanding)
	assert.True(t, diff.Sign() >= 0, "over-distribution: %s", diff)
	bound := int64(len(distributions) + len(holders))
	assert.True(t, diff.Cmp(big.NewInt(bound)) <= 0, "rounding loss too large: %s", diff)
}

func BenchmarkLedger_Distribute(b *testing.B) {
	book := newBalanceBook()
	book.mint(addr(1), 1_000_000)
	l := NewLedger(KindFee, false, book)
	amount := big.NewInt(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = l.Distribute(amount)
	}
}
