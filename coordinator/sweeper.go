package coordinator

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/metrics"
)

const (
	DefaultSweepInterval    = time.Hour
	DefaultCompletedMaxAge  = 24 * time.Hour
	DefaultProcessingMaxAge = 60 * time.Minute
)

type SweeperConfig struct {
	Interval         time.Duration // how often a pass runs
	CompletedMaxAge  time.Duration // terminal records older than this go away
	ProcessingMaxAge time.Duration // processing records older than this count as abandoned
}

// Sweeper reclaims abandoned leases and prunes old terminal records.
// A crashed service leaves its processing record behind; once the
// record is older than ProcessingMaxAge the sweeper deletes it and the
// transaction is up for grabs again. Deletion is the only mutation the
// sweeper ever performs.
type Sweeper struct {
	cdb *coorddb.CoordDB
	cfg SweeperConfig
	mtr *metrics.BridgeMetrics
}

func NewSweeper(cdb *coorddb.CoordDB, cfg *SweeperConfig, mtr *metrics.BridgeMetrics) *Sweeper {
	c := SweeperConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Interval <= 0 {
		c.Interval = DefaultSweepInterval
	}
	if c.CompletedMaxAge <= 0 {
		c.CompletedMaxAge = DefaultCompletedMaxAge
	}
	if c.ProcessingMaxAge <= 0 {
		c.ProcessingMaxAge = DefaultProcessingMaxAge
	}
	return &Sweeper{cdb: cdb, cfg: c, mtr: mtr}
}

// SweepOnce runs a single pass and reports how many records went away.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := time.Now()
	removed, err := s.cdb.SweepExpired(ctx,
		now.Add(-s.cfg.CompletedMaxAge),
		now.Add(-s.cfg.ProcessingMaxAge))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.WithField("removed", removed).Info("sweeper reclaimed coordination records")
	}
	s.mtr.SweeperReclaimed(removed)
	return removed, nil
}

// The sweep loop. Runs until ctx is canceled.
func (s *Sweeper) Loop(ctx context.Context) error {
	logger.Debug("starting coordination sweeper")
	defer logger.Debug("stopping coordination sweeper")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.Errorf("sweep pass failed: err=%v", err)
			}
		}
	}
}
