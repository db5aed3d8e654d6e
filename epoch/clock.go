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

package epoch

import (
	"fmt"

	"github.com/vesplit/vesplit/common/errors"
)

// Schedule constants in seconds. Downstream tooling must mirror these
// bit-for-bit; window-boundary disagreement breaks claim eligibility.
const (
	Day  = int64(24 * 60 * 60)
	Week = 7 * Day

	// Window offsets within an epoch [start, start+Week).
	DepositOffset   = int64(0)
	VotingOffset    = 2 * Day
	ExecutionOffset = 5 * Day
	SnapshotOffset  = 6 * Day

	// Bribe claims for epoch N close this far into epoch N+1.
	ClaimDeadlineOffset = 6 * Day
)

type Window int

const (
	WindowDeposit Window = iota
	WindowVoting
	WindowExecution
	WindowSnapshot
)

func (w Window) String() string {
	switch w {
	case WindowDeposit:
		return "deposit"
	case WindowVoting:
		return "voting"
	case WindowExecution:
		return "execution"
	case WindowSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Clock derives the current epoch and sub-window from wall-clock time plus
// the persisted epoch counter. Rollover is lazy: callers detect the elapsed
// boundary with NeedsRollover and advance with Rollover before proceeding.
type Clock struct {
	genesis int64
	current int64
}

func NewClock(genesis int64) *Clock {
	return &Clock{genesis: genesis}
}

func NewClockAt(genesis, current int64) *Clock {
	return &Clock{genesis: genesis, current: current}
}

func (c *Clock) Genesis() int64 {
	return c.genesis
}

// Current returns the persisted epoch counter, which may lag the wall clock
// until the next rollover.
func (c *Clock) Current() int64 {
	return c.current
}

func (c *Clock) EpochOf(ts int64) (int64, error) {
	if ts < c.genesis {
		return 0, errors.InvalidTimingError.Errorf("ts=%d before genesis=%d", ts, c.genesis)
	}
	return (ts - c.genesis) / Week, nil
}

func (c *Clock) StartOf(epoch int64) int64 {
	return c.genesis + epoch*Week
}

func (c *Clock) WindowOf(ts int64) Window {
	offset := (ts - c.genesis) % Week
	switch {
	case offset < VotingOffset:
		return WindowDeposit
	case offset < ExecutionOffset:
		return WindowVoting
	case offset < SnapshotOffset:
		return WindowExecution
	default:
		return WindowSnapshot
	}
}

func (c *Clock) InWindow(ts int64, w Window) bool {
	return c.WindowOf(ts) == w
}

// ClaimDeadline returns the timestamp when bribe claims against the given
// snapshot epoch close.
func (c *Clock) ClaimDeadline(epoch int64) int64 {
	return c.StartOf(epoch+1) + ClaimDeadlineOffset
}

func (c *Clock) NeedsRollover(ts int64) bool {
	e, err := c.EpochOf(ts)
	if err != nil {
		return false
	}
	return e > c.current
}

// Rollover advances the counter to the epoch containing ts and returns how
// many boundaries were crossed. A second call at the same ts crosses zero
// boundaries; the caller treats that as a no-op.
func (c *Clock) Rollover(ts int64) (crossed int64, err error) {
	e, err := c.EpochOf(ts)
	if err != nil {
		return 0, err
	}
	if e <= c.current {
		return 0, nil
	}
	crossed = e - c.current
	c.current = e
	return crossed, nil
}

func (c *Clock) String() string {
	return fmt.Sprintf("Clock{genesis=%d epoch=%d}", c.genesis, c.current)
}
