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

package vote

import (
	"math/big"

	"github.com/vesplit/vesplit/common"
)

// Bucket is one router submission. Weights are basis points of the epoch's
// grand total, so bucket sums across a multi-bucket split approximate 10000
// with at most one basis point lost per bucket.
type Bucket struct {
	Pools   []common.Address
	Weights []*big.Int
}

func (b *Bucket) TotalBP() *big.Int {
	total := new(big.Int)
	for _, w := range b.Weights {
		total.Add(total, w)
	}
	return total
}

// BuildSubmission partitions the ranked list into router calls of at most
// maxPerCall pools. Without bucket support the list is truncated to the top
// maxPerCall pools and the dropped share is an accepted loss; with bucket
// support every pool is submitted across ceil(N/maxPerCall) buckets.
func BuildSubmission(ranked []PoolWeight, maxPerCall int, bucketCapable bool) []Bucket {
	if len(ranked) == 0 || maxPerCall <= 0 {
		return nil
	}
	grand := new(big.Int)
	for _, pw := range ranked {
		grand.Add(grand, pw.Weight)
	}
	if grand.Sign() == 0 {
		return nil
	}

	var groups [][]PoolWeight
	switch {
	case len(ranked) <= maxPerCall:
		groups = [][]PoolWeight{ranked}
	case !bucketCapable:
		groups = [][]PoolWeight{ranked[:maxPerCall]}
	default:
		for start := 0; start < len(ranked); start += maxPerCall {
			end := start + maxPerCall
			if end > len(ranked) {
				end = len(ranked)
			}
			groups = append(groups, ranked[start:end])
		}
	}

	buckets := make([]Bucket, 0, len(groups))
	for _, group := range groups {
		buckets = append(buckets, buildBucket(group, grand))
	}
	return buckets
}

func buildBucket(group []PoolWeight, grand *big.Int) Bucket {
	groupTotal := new(big.Int)
	for _, pw := range group {
		groupTotal.Add(groupTotal, pw.Weight)
	}
	// the bucket's target is its floor share of 10000; the fraction lost
	// here is the bounded per-bucket rounding loss
	target := new(big.Int).Mul(groupTotal, common.BigIntBasisPoint)
	target.Div(target, grand)

	bucket := Bucket{
		Pools:   make([]common.Address, len(group)),
		Weights: make([]*big.Int, len(group)),
	}
	sum := new(big.Int)
	for i, pw := range group {
		bp := new(big.Int).Mul(pw.Weight, common.BigIntBasisPoint)
		bp.Div(bp, grand)
		bucket.Pools[i] = pw.Pool
		bucket.Weights[i] = bp
		sum.Add(sum, bp)
	}
	// per-pool floors under-shoot the bucket target; the top-ranked pool
	// absorbs the difference so the bucket sums exactly to its target
	if deficit := new(big.Int).Sub(target, sum); deficit.Sign() > 0 {
		bucket.Weights[0].Add(bucket.Weights[0], deficit)
	}
	return bucket
}
