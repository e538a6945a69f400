/*
Package coordinator arbitrates which bridge service processes which
transaction.

Several processes work the same database: the API server, deposit
monitors, the relayer and the sweeper, possibly several replicas of
each. Before doing side-effecting work on a transaction a service asks
CanProcessTransaction for a lease on the transaction id. Exactly one
caller wins; everyone else receives a decision saying why not. The
decision is the only contract: the coordinator never returns an error
from a claim, an unreachable store shows up as a denial with
DatabaseError set, so an outage can never be mistaken for permission.
*/
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/metrics"
)

const DefaultFailedRetryInterval = 5 * time.Minute

// Decision reasons, stable strings the API and logs expose.
const (
	ReasonAcquired   = "acquired processing lease"
	ReasonRecovered  = "recovered from previous failure"
	ReasonProcessing = "transaction is being processed by another service"
	ReasonCompleted  = "transaction has already been processed"
	ReasonCooldown   = "previous attempt failed, retry not due yet"
	ReasonStoreError = "coordination store unavailable"
)

// ProcessDecision is the outcome of a lease claim.
type ProcessDecision struct {
	CanProcess      bool
	Reason          string
	ExistingService string        // holder, when the claim lost to an existing record
	RetryAfter      time.Duration // wait before retrying a failed transaction
	DatabaseError   bool          // set when the store could not answer (fail closed)
}

// ProcessingStatus is a read-only projection for observability.
// Decisions are never made from it.
type ProcessingStatus struct {
	IsProcessing      bool   `json:"isProcessing"`
	IsCompleted       bool   `json:"isCompleted"`
	ProcessingService string `json:"processingService,omitempty"`
	CompletedService  string `json:"completedService,omitempty"`
}

type Config struct {
	ServiceName         string        // lease holder identity, unique per process
	FailedRetryInterval time.Duration // cooldown after a failed attempt, default 5m
}

type Coordinator struct {
	cdb     *coorddb.CoordDB
	service string
	retry   time.Duration
	mtr     *metrics.BridgeMetrics
}

func NewCoordinator(cdb *coorddb.CoordDB, cfg *Config, mtr *metrics.BridgeMetrics) *Coordinator {
	service := cfg.ServiceName
	if service == "" {
		service = "bridge-" + uuid.NewString()[:8]
	}
	retry := cfg.FailedRetryInterval
	if retry <= 0 {
		retry = DefaultFailedRetryInterval
	}
	return &Coordinator{
		cdb:     cdb,
		service: service,
		retry:   retry,
		mtr:     mtr,
	}
}

func (c *Coordinator) ServiceName() string {
	return c.service
}

// CanProcessTransaction claims the transaction for this service.
//
// The claim path: a conditional insert decides the winner; on conflict
// the existing record decides the answer under the store's write lock:
// processing -> contention, completed -> permanent denial, failed ->
// denial until the retry interval has elapsed, then the claim succeeds
// with the stale record replaced.
func (c *Coordinator) CanProcessTransaction(ctx context.Context, txID, txType string) *ProcessDecision {
	out, err := c.cdb.AcquireLease(ctx, txID, txType, c.service, c.retry)
	if err != nil {
		logger.WithFields(logger.Fields{
			"txId":    common.Shorten(txID, 8),
			"service": c.service,
		}).Errorf("coordination store error, denying processing: %v", err)
		c.mtr.StoreError()
		return &ProcessDecision{Reason: ReasonStoreError, DatabaseError: true}
	}

	fields := logger.Fields{
		"txId":    common.Shorten(txID, 8),
		"txType":  txType,
		"service": c.service,
	}

	switch {
	case out.Acquired && out.Recovered:
		logger.WithFields(fields).Info("lease acquired, previous failed attempt recovered")
		return &ProcessDecision{CanProcess: true, Reason: ReasonRecovered}

	case out.Acquired:
		logger.WithFields(fields).Debug("lease acquired")
		return &ProcessDecision{CanProcess: true, Reason: ReasonAcquired}

	case out.RetryAfter > 0:
		logger.WithFields(fields).WithField("retryAfter", out.RetryAfter).Debug("lease denied, retry cooldown running")
		c.mtr.CoordinationDenied("cooldown")
		d := &ProcessDecision{Reason: ReasonCooldown, RetryAfter: out.RetryAfter}
		if out.Existing != nil {
			d.ExistingService = out.Existing.ProcessingService
		}
		return d

	case out.Existing != nil && out.Existing.Status == coorddb.CoordStatusCompleted:
		logger.WithFields(fields).WithField("completedBy", out.Existing.ProcessingService).Debug("lease denied, transaction completed")
		c.mtr.CoordinationDenied("completed")
		return &ProcessDecision{Reason: ReasonCompleted, ExistingService: out.Existing.ProcessingService}

	case out.Existing != nil:
		logger.WithFields(fields).WithField("holder", out.Existing.ProcessingService).Debug("lease denied, held by another service")
		c.mtr.CoordinationDenied("contention")
		return &ProcessDecision{Reason: ReasonProcessing, ExistingService: out.Existing.ProcessingService}

	default:
		// lost the insert race and the row was gone again on re-read
		logger.WithFields(fields).Debug("lease denied, lost claim race")
		c.mtr.CoordinationDenied("contention")
		return &ProcessDecision{Reason: ReasonProcessing}
	}
}

// MarkTransactionCompleted seals the lease this service holds. Best
// effort: failures are logged and swallowed, the caller must not die
// on a lost release, the sweeper prunes leftovers.
func (c *Coordinator) MarkTransactionCompleted(ctx context.Context, txID string) {
	ok, err := c.cdb.MarkCompleted(ctx, txID, c.service)
	if err != nil {
		logger.WithField("txId", common.Shorten(txID, 8)).Errorf("failed to mark transaction completed: %v", err)
		c.mtr.StoreError()
		return
	}
	if !ok {
		logger.WithFields(logger.Fields{
			"txId":    common.Shorten(txID, 8),
			"service": c.service,
		}).Warn("completion skipped, lease not held by this service")
	}
}

// MarkTransactionFailed records a failed attempt, starting the retry
// cooldown. Best effort, same policy as MarkTransactionCompleted.
func (c *Coordinator) MarkTransactionFailed(ctx context.Context, txID string) {
	ok, err := c.cdb.MarkFailed(ctx, txID, c.service)
	if err != nil {
		logger.WithField("txId", common.Shorten(txID, 8)).Errorf("failed to mark transaction failed: %v", err)
		c.mtr.StoreError()
		return
	}
	if !ok {
		logger.WithFields(logger.Fields{
			"txId":    common.Shorten(txID, 8),
			"service": c.service,
		}).Warn("failure mark skipped, lease not held by this service")
	}
}

// ReleaseTransaction drops the coordination record so another claim
// can go through immediately. Used between processing stages and when
// a service abandons work it has not finished. Best effort.
func (c *Coordinator) ReleaseTransaction(ctx context.Context, txID string) {
	ok, err := c.cdb.Delete(ctx, txID)
	if err != nil {
		logger.WithField("txId", common.Shorten(txID, 8)).Errorf("failed to release transaction: %v", err)
		c.mtr.StoreError()
		return
	}
	if ok {
		logger.WithFields(logger.Fields{
			"txId":    common.Shorten(txID, 8),
			"service": c.service,
		}).Debug("lease released")
	}
}

// GetTransactionProcessingStatus reports who is (or was) on the
// transaction. A missing record yields the zero projection.
func (c *Coordinator) GetTransactionProcessingStatus(ctx context.Context, txID string) (*ProcessingStatus, error) {
	rec, found, err := c.cdb.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	ps := &ProcessingStatus{}
	if !found {
		return ps, nil
	}
	switch rec.Status {
	case coorddb.CoordStatusProcessing:
		ps.IsProcessing = true
		ps.ProcessingService = rec.ProcessingService
	case coorddb.CoordStatusCompleted:
		ps.IsCompleted = true
		ps.CompletedService = rec.ProcessingService
	}
	return ps, nil
}
