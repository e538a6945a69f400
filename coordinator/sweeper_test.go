package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coorddb"
)

func plantRecord(t *testing.T, cdb *coorddb.CoordDB, id, status string, age time.Duration) {
	t.Helper()
	ts := common.NowMs() - age.Milliseconds()
	rec := &coorddb.CoordinationRecord{
		TransactionID:     id,
		TransactionType:   "btc_deposit",
		ProcessingService: "svc-a",
		Status:            status,
		StartedAt:         ts,
	}
	if status != coorddb.CoordStatusProcessing {
		rec.CompletedAt = ts
	}
	require.NoError(t, cdb.InsertRecord(context.Background(), rec))
}

func TestSweepOnceRetention(t *testing.T) {
	cdb := newTestCoordDB(t)
	ctx := context.Background()

	plantRecord(t, cdb, "done-old", coorddb.CoordStatusCompleted, 25*time.Hour)
	plantRecord(t, cdb, "done-young", coorddb.CoordStatusCompleted, 23*time.Hour)
	plantRecord(t, cdb, "failed-old", coorddb.CoordStatusFailed, 25*time.Hour)
	plantRecord(t, cdb, "abandoned", coorddb.CoordStatusProcessing, 90*time.Minute)
	plantRecord(t, cdb, "active", coorddb.CoordStatusProcessing, 5*time.Minute)

	s := NewSweeper(cdb, nil, nil)
	removed, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	for id, want := range map[string]bool{
		"done-old":   false,
		"done-young": true,
		"failed-old": false,
		"abandoned":  false,
		"active":     true,
	} {
		_, found, err := cdb.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, found, id)
	}

	// the reclaimed id can be claimed again right away
	b := newCoordinator(cdb, "svc-b")
	d := b.CanProcessTransaction(ctx, "abandoned", "btc_deposit")
	assert.True(t, d.CanProcess)
}

func TestSweepLoopRunsAndStops(t *testing.T) {
	cdb := newTestCoordDB(t)
	plantRecord(t, cdb, "done-old", coorddb.CoordStatusCompleted, 25*time.Hour)

	s := NewSweeper(cdb, &SweeperConfig{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Loop(ctx) }()

	// give the ticker a few turns
	deadline := time.After(2 * time.Second)
	for {
		_, found, err := cdb.Get(context.Background(), "done-old")
		require.NoError(t, err)
		if !found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never reclaimed the record")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper loop did not stop on cancel")
	}
}
