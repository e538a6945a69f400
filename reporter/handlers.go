package reporter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/btcman/utils"
	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/eventledger"
	"github.com/zenz-bridge/bridge-go/mpcman"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/txstatus"
	"github.com/zenz-bridge/bridge-go/txstore"
)

// Health reports liveness, including a round-trip to the store.
func (h *HttpReporter) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTransaction publishes one transaction with its full history.
func (h *HttpReporter) GetTransaction(c *gin.Context) {
	txID := c.Param("id")

	row, err := h.txStore.GetTransaction(txID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such transaction"})
		return
	}
	history, err := h.txStore.GetStatusHistory(txID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": row, "history": history})
}

// ListTransactions filters by ?status= and ?type=.
func (h *HttpReporter) ListTransactions(c *gin.Context) {
	status := c.Query("status")
	txType := c.Query("type")
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter must be provided"})
		return
	}

	var rows []*txstore.BridgeTransaction
	var err error
	if txType != "" {
		rows, err = h.txStore.GetByStatusAndType(status, txType)
	} else {
		rows, err = h.txStore.GetByStatus(status)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GetProcessingStatus publishes the coordinator's read-only view of
// who is on a transaction. Observability only, decisions come from
// the claim path.
func (h *HttpReporter) GetProcessingStatus(c *gin.Context) {
	ps, err := h.coord.GetTransactionProcessingStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ps)
}

// GetReserves publishes every reserve and bookkeeping counter.
func (h *HttpReporter) GetReserves(c *gin.Context) {
	snap, err := h.reserves.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	display := make(map[string]string, len(snap))
	for asset, units := range snap {
		display[asset] = utils.FormatBaseUnits(units)
	}
	c.JSON(http.StatusOK, gin.H{"reserves": snap, "display": display})
}

// GetTransitions publishes the moves allowed from a status.
func (h *HttpReporter) GetTransitions(c *gin.Context) {
	from := c.Param("from")
	targets := txstatus.GetValidTransitions(from)
	if targets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": targets})
}

type redemptionRequest struct {
	BurnSignature    string `json:"burn_signature" binding:"required"`
	BtcAddress       string `json:"btc_address"`
	EncryptedAddress string `json:"encrypted_address"`
	UsePrivacy       bool   `json:"use_privacy"`
}

// SubmitRedemption accepts a burn-for-BTC request.
//
// The burn transaction on Solana is the authority: it must exist, be
// final, call the bridge program and carry the burn event. The event
// ledger keeps one burn from being redeemed twice; 409 tells the
// client this signature is already in.
func (h *HttpReporter) SubmitRedemption(c *gin.Context) {
	var req redemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := solana.SignatureFromBase58(req.BurnSignature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed burn signature"})
		return
	}

	eventSig := eventledger.RedemptionSignature(sig.String())
	seen, err := h.ledger.IsEventProcessed(eventSig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if seen {
		c.JSON(http.StatusConflict, gin.H{"error": "burn already redeemed"})
		return
	}

	bv, err := h.sol.VerifyBurn(c.Request.Context(), sig)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "burn verification failed: " + err.Error()})
		return
	}

	recipient, err := resolveRecipient(&req, bv.Encrypted, bv.BtcAddress)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	btx := &txstore.BridgeTransaction{
		TxID:          sig.String(),
		TxType:        txstore.TypeRedemption,
		Asset:         reserve.AssetBTC,
		Amount:        int64(bv.Amount),
		SourceAddress: bv.Burner.String(),
		Recipient:     recipient,
	}
	if err := h.txStore.InsertTransaction(btx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.MarkEventProcessed(&eventledger.ProcessedEvent{
		EventSignature: eventSig,
		EventType:      txstore.TypeRedemption,
		WalletAddress:  bv.Burner.String(),
		Amount:         int64(bv.Amount),
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.mtr.RedemptionAccepted()
	logger.WithFields(logger.Fields{
		"burnSig": common.Shorten(sig.String(), 8),
		"amount":  bv.Amount,
	}).Info("redemption accepted")
	c.JSON(http.StatusCreated, gin.H{"transaction": btx})
}

// resolveRecipient picks the stored payout recipient. The on-chain
// event decides whether the address travels sealed; the body may
// carry the full envelope when the chain only holds a digest of it.
func resolveRecipient(req *redemptionRequest, encrypted bool, chainAddress string) (string, error) {
	if encrypted || req.UsePrivacy {
		sealed := req.EncryptedAddress
		if sealed == "" {
			sealed = chainAddress
		}
		if sealed == "" {
			return "", errors.New("encrypted redemption needs encrypted_address")
		}
		if !mpcman.IsEncryptedAddress(sealed) {
			sealed = mpcman.EncryptedAddressPrefix + sealed
		}
		return sealed, nil
	}

	addr := req.BtcAddress
	if addr == "" {
		addr = chainAddress
	}
	if strings.TrimSpace(addr) == "" {
		return "", errors.New("redemption carries no payout address")
	}
	return addr, nil
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateTransactionStatus is the admin entrance to the status machine.
// Illegal moves come back 422 and change nothing.
func (h *HttpReporter) UpdateTransactionStatus(c *gin.Context) {
	txID := c.Param("id")

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.txStore.UpdateStatus(txID, req.Status, req.Notes); err != nil {
		if errors.Is(err, txstore.ErrInvalidTransition) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	row, err := h.txStore.GetTransaction(txID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": row})
}
