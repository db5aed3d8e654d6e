package common

import "math/big"

var (
	BigIntZero = new(big.Int)
	BigIntOne  = big.NewInt(1)

	// BigIntScale is the fixed-point scale for reward indices.
	BigIntScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// BigIntBasisPoint denominates ratio configuration (10000 = 100%).
	BigIntBasisPoint = big.NewInt(10000)
)

// BigIntSafe returns v, or zero when v is nil. State objects decoded from
// external inputs may carry nil amounts.
func BigIntSafe(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// CeilDiv returns ceil(n/d) for non-negative n and positive d.
func CeilDiv(n, d *big.Int) *big.Int {
	q, m := new(big.Int).DivMod(n, d, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, BigIntOne)
	}
	return q
}
