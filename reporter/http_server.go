// This is the http surface of the bridge backend.
// It publishes transactions, reserves and coordination state,
// and accepts redemption requests and admin status updates.

package reporter

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/eventledger"
	"github.com/zenz-bridge/bridge-go/metrics"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/solman"
	"github.com/zenz-bridge/bridge-go/txstore"
)

const (
	ROUTE_HEALTH        = "/health"
	ROUTE_METRICS       = "/metrics"
	ROUTE_TRANSACTIONS  = "/api/v1/transactions"
	ROUTE_TRANSACTION   = "/api/v1/transactions/:id"
	ROUTE_PROCESSING    = "/api/v1/transactions/:id/processing"
	ROUTE_STATUS_UPDATE = "/api/v1/transactions/:id/status"
	ROUTE_RESERVES      = "/api/v1/reserves"
	ROUTE_TRANSITIONS   = "/api/v1/transitions/:from"
	ROUTE_REDEMPTIONS   = "/api/v1/redemptions"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port
	apiKey     string // guards mutating routes, empty shuts them

	// upstream data sources
	db       *sql.DB // liveness ping only
	txStore  *txstore.TxStore
	coord    *coordinator.Coordinator
	reserves *reserve.Ledger
	ledger   eventledger.EventLedger
	sol      solman.PayoutClient
	mtr      *metrics.BridgeMetrics
	registry *prometheus.Registry
}

func NewHttpReporter(
	serverIP, serverPort, apiKey string,
	db *sql.DB,
	txStore *txstore.TxStore,
	coord *coordinator.Coordinator,
	reserves *reserve.Ledger,
	ledger eventledger.EventLedger,
	sol solman.PayoutClient,
	mtr *metrics.BridgeMetrics,
	registry *prometheus.Registry,
) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		apiKey:     apiKey,
		db:         db,
		txStore:    txStore,
		coord:      coord,
		reserves:   reserves,
		ledger:     ledger,
		sol:        sol,
		mtr:        mtr,
		registry:   registry,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET(ROUTE_HEALTH, h.Health)
	router.GET(ROUTE_TRANSACTIONS, h.ListTransactions)
	router.GET(ROUTE_TRANSACTION, h.GetTransaction)
	router.GET(ROUTE_PROCESSING, h.GetProcessingStatus)
	router.GET(ROUTE_RESERVES, h.GetReserves)
	router.GET(ROUTE_TRANSITIONS, h.GetTransitions)
	router.POST(ROUTE_REDEMPTIONS, h.SubmitRedemption)
	router.POST(ROUTE_STATUS_UPDATE, h.requireAPIKey(), h.UpdateTransactionStatus)

	if h.registry != nil {
		router.GET(ROUTE_METRICS, gin.WrapH(
			promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}),
		))
	}
	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// requestLogger writes one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("http request served")
	}
}

// requireAPIKey guards mutating routes. No configured key means the
// route is shut, not open.
func (h *HttpReporter) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey == "" || c.GetHeader("X-Api-Key") != h.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or wrong api key"})
			return
		}
		c.Next()
	}
}
