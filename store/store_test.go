package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesplit/vesplit/common/errors"
	"github.com/vesplit/vesplit/common/log"
	"github.com/vesplit/vesplit/engine"
)

func sampleSnapshot(epoch int64) *engine.Snapshot {
	return &engine.Snapshot{
		TakenAt:            1_700_000_000 + epoch*604800,
		Epoch:              epoch,
		VotingSupply:       "9000",
		CapitalSupply:      "1001",
		CanonicalPrincipal: "10000",
		EmissionMinted:     "1000000",
		LiquidationPhase:   "Normal",
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s, err := Open(t.TempDir(), log.GlobalLogger())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LatestSnapshot()
	assert.True(t, errors.NotFoundError.Equals(err))

	for e := int64(0); e < 3; e++ {
		require.NoError(t, s.PutSnapshot(sampleSnapshot(e)))
	}

	latest, err := s.LatestSnapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), latest.Epoch)

	snap, err := s.SnapshotAt(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), snap.Epoch)
	assert.Equal(t, "1001", snap.CapitalSupply)

	_, err = s.SnapshotAt(7)
	assert.True(t, errors.NotFoundError.Equals(err))
}

func TestStore_SnapshotsOrderedByEpoch(t *testing.T) {
	s, err := Open(t.TempDir(), log.GlobalLogger())
	require.NoError(t, err)
	defer s.Close()

	// write out of order; iteration must come back sorted
	for _, e := range []int64{5, 1, 3} {
		require.NoError(t, s.PutSnapshot(sampleSnapshot(e)))
	}
	all, err := s.Snapshots(0)
	assert.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Epoch)
	assert.Equal(t, int64(3), all[1].Epoch)
	assert.Equal(t, int64(5), all[2].Epoch)

	limited, err := s.Snapshots(2)
	assert.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, log.GlobalLogger())
	require.NoError(t, err)
	require.NoError(t, s.PutSnapshot(sampleSnapshot(4)))
	require.NoError(t, s.Close())

	s, err = Open(dir, log.GlobalLogger())
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.LatestSnapshot()
	assert.NoError(t, err)
	assert.Equal(t, int64(4), latest.Epoch)
	assert.Equal(t, "10000", latest.CanonicalPrincipal)
}
