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

// Snapshot is a point-in-time operator record of the engine's aggregate
// state, written to the local store on a schedule. It is diagnostic output,
// not the system of record; big amounts travel as decimal strings so the
// encoding stays exact.
type Snapshot struct {
	TakenAt int64 `msgpack:"taken_at" json:"taken_at"`
	Epoch   int64 `msgpack:"epoch" json:"epoch"`

	VotingSupply  string `msgpack:"voting_supply" json:"voting_supply"`
	CapitalSupply string `msgpack:"capital_supply" json:"capital_supply"`

	CanonicalPrincipal string `msgpack:"canonical_principal" json:"canonical_principal"`
	PendingPositions   int    `msgpack:"pending_positions" json:"pending_positions"`

	EmissionMinted     string `msgpack:"emission_minted" json:"emission_minted"`
	EmissionLastPeriod int64  `msgpack:"emission_last_period" json:"emission_last_period"`

	FeeDistributed      string `msgpack:"fee_distributed" json:"fee_distributed"`
	FeeClaimed          string `msgpack:"fee_claimed" json:"fee_claimed"`
	EmissionDistributed string `msgpack:"emission_distributed" json:"emission_distributed"`
	EmissionClaimed     string `msgpack:"emission_claimed" json:"emission_claimed"`
	RebaseDistributed   string `msgpack:"rebase_distributed" json:"rebase_distributed"`
	RebaseClaimed       string `msgpack:"rebase_claimed" json:"rebase_claimed"`

	LiquidationPhase string `msgpack:"liquidation_phase" json:"liquidation_phase"`
}

func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	principal := "0"
	if canonical := e.consolidator.Canonical(); canonical != nil {
		principal = canonical.Principal().String()
	}
	return &Snapshot{
		TakenAt:             e.now(),
		Epoch:               e.clock.Current(),
		VotingSupply:        e.voting.TotalSupply().String(),
		CapitalSupply:       e.capital.TotalSupply().String(),
		CanonicalPrincipal:  principal,
		PendingPositions:    e.consolidator.PendingCount(),
		EmissionMinted:      e.curve.Minted().String(),
		EmissionLastPeriod:  e.curve.LastPeriod(),
		FeeDistributed:      e.fees.TotalDistributed().String(),
		FeeClaimed:          e.fees.TotalClaimed().String(),
		EmissionDistributed: e.emissions.TotalDistributed().String(),
		EmissionClaimed:     e.emissions.TotalClaimed().String(),
		RebaseDistributed:   e.rebases.TotalDistributed().String(),
		RebaseClaimed:       e.rebases.TotalClaimed().String(),
		LiquidationPhase:    e.liq.Phase().String(),
	}
}
