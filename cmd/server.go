// Server = deposit monitors + relayer + sweeper + stores + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"

	btcrpc "github.com/zenz-bridge/bridge-go/btcman/rpc"
	"github.com/zenz-bridge/bridge-go/common"
	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/database"
	"github.com/zenz-bridge/bridge-go/depositsync"
	"github.com/zenz-bridge/bridge-go/eventledger"
	"github.com/zenz-bridge/bridge-go/metrics"
	"github.com/zenz-bridge/bridge-go/mpcman"
	"github.com/zenz-bridge/bridge-go/relayer"
	"github.com/zenz-bridge/bridge-go/reporter"
	"github.com/zenz-bridge/bridge-go/reserve"
	"github.com/zenz-bridge/bridge-go/solman"
	"github.com/zenz-bridge/bridge-go/txstore"
	"github.com/zenz-bridge/bridge-go/zecman"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// the shared sqlite file every bridge process opens
	DbFilePath string

	// lease holder identity; empty lets the coordinator pick one
	ServiceName string

	// btc side
	BtcRpcServer   string           // btc rpc server info
	BtcRpcPort     string           // btc rpc server info
	BtcRpcUsername string           // btc rpc server info
	BtcRpcPwd      string           // btc rpc server info
	BtcChainConfig *chaincfg.Params // regtest, testnet, mainnet?
	BtcBridgeAddr  string           // deposit address to be monitored, also the payout wallet
	BtcStartBlk    int64            // start block for btc monitor to scan (-1=latest, other=specific block)

	// zec side (optional, empty url disables the monitor)
	ZecExplorerURL string
	ZecBridgeAddr  string

	// solana side
	SolRpcUrl        string // json rpc url, empty derives from SolNetwork
	SolNetwork       string // mainnet / devnet / testnet / localnet
	SolAuthorityPriv string // base58 private key of the mint authority
	SolBridgeProgram string
	SolZenZECMint    string

	// http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
	ApiKey   string // guards mutating routes

	// coordination knobs, zero picks the defaults
	FailedRetryInterval time.Duration
	SweepInterval       time.Duration
	CompletedMaxAge     time.Duration
	ProcessingMaxAge    time.Duration

	// hex x25519 private key of the local privacy engine,
	// empty disables encrypted redemptions
	MpcLocalPriv string
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	MyCoordDB     *coorddb.CoordDB
	MyCoordinator *coordinator.Coordinator
	MySweeper     *coordinator.Sweeper
	MyTxStore     *txstore.TxStore
	MyEventLedger eventledger.EventLedger
	MyReserves    *reserve.Ledger
	MyPayoutDB    *relayer.SQLitePayoutDB
	MyRelayer     *relayer.Relayer

	BtcRpcClient *btcrpc.RpcClient
	MyBtcMonitor *depositsync.BTCMonitor
	MyZecMonitor *depositsync.ZECMonitor
	MySolman     *solman.Solman

	Metrics  *metrics.BridgeMetrics
	Registry *prometheus.Registry
	Http     *reporter.HttpReporter
}

// NewBridgeServer creates a new bridge server.
// ctx is used for parental context to cancel the operation of bridge server.
// wg is used to wait for all the goroutines inside the server (monitors, relayer, sweeper) to finish.
func NewBridgeServer(bsc *BridgeServerConfig, ctx context.Context, wg *sync.WaitGroup) (*BridgeServer, error) {
	// 0) open the shared database every component coordinates through
	db, err := database.Open(bsc.DbFilePath)
	if err != nil {
		logger.Errorf("failed to open db file %s: %v", bsc.DbFilePath, err)
		return nil, err
	}

	// 1) stores on top of it
	cdb, err := coorddb.NewCoordDB(db)
	if err != nil {
		logger.Errorf("failed to create coordination store: %v", err)
		return nil, err
	}
	myTxStore, err := txstore.NewTxStore(db)
	if err != nil {
		logger.Errorf("failed to create transaction store: %v", err)
		return nil, err
	}
	myLedger, err := eventledger.NewSQLiteEventLedger(db)
	if err != nil {
		logger.Errorf("failed to create event ledger: %v", err)
		return nil, err
	}
	reserveStorage, err := reserve.NewSQLiteReserveStorage(db)
	if err != nil {
		logger.Errorf("failed to create reserve storage: %v", err)
		return nil, err
	}
	payoutDB, err := relayer.NewSQLitePayoutDB(db)
	if err != nil {
		logger.Errorf("failed to create payout db: %v", err)
		return nil, err
	}

	// 2) metrics, coordinator, reserves
	registry := prometheus.NewRegistry()
	mtr := metrics.NewBridgeMetrics(registry)

	coord := coordinator.NewCoordinator(cdb, &coordinator.Config{
		ServiceName:         bsc.ServiceName,
		FailedRetryInterval: bsc.FailedRetryInterval,
	}, mtr)
	logger.WithField("service", coord.ServiceName()).Info("coordination identity")

	myReserves := reserve.NewLedger(reserveStorage, mtr)

	// 3) chain clients
	myBtcRpcClient, err := SetupBtcRpc(bsc.BtcRpcServer, bsc.BtcRpcPort, bsc.BtcRpcUsername, bsc.BtcRpcPwd)
	if err != nil {
		return nil, err
	}

	mySolman, err := solman.NewSolman(&solman.SolmanConfig{
		URL:              bsc.SolRpcUrl,
		Network:          bsc.SolNetwork,
		BridgeProgram:    bsc.SolBridgeProgram,
		ZenZECMint:       bsc.SolZenZECMint,
		AuthorityPrivKey: bsc.SolAuthorityPriv,
	})
	if err != nil {
		logger.Errorf("failed to create solana client: %v", err)
		return nil, err
	}

	// optional privacy engine for encrypted redemptions
	var privacy mpcman.PrivacyEngine
	if bsc.MpcLocalPriv != "" {
		priv, err := common.HexStrToByteSlice(bsc.MpcLocalPriv)
		if err != nil {
			logger.Errorf("bad MPC_LOCAL_PRIV: %v", err)
			return nil, err
		}
		engine, err := mpcman.NewLocalPrivacyEngine(priv)
		if err != nil {
			logger.Errorf("failed to create privacy engine: %v", err)
			return nil, err
		}
		privacy = engine
	}

	// 4) ingestion flow + monitors
	handler := depositsync.NewDepositHandler(coord, myLedger, myTxStore, myReserves, mtr)

	var startBlk int64
	if bsc.BtcStartBlk == -1 {
		startBlk, err = myBtcRpcClient.GetLatestBlockHeight()
		if err != nil {
			logger.Errorf("failed to fetch latest btc block height: %v", err)
			return nil, err
		}
	} else {
		startBlk = bsc.BtcStartBlk
	}
	myBtcMonitor, err := depositsync.NewBTCMonitor(bsc.BtcBridgeAddr, bsc.BtcChainConfig, myBtcRpcClient, startBlk, handler)
	if err != nil {
		logger.Errorf("cannot create btc monitor: %v", err)
		return nil, err
	}

	var myZecMonitor *depositsync.ZECMonitor
	if bsc.ZecExplorerURL != "" {
		explorer := zecman.NewExplorerClient(bsc.ZecExplorerURL)
		myZecMonitor = depositsync.NewZECMonitor(bsc.ZecBridgeAddr, explorer, handler)
	}

	// 5) payout orchestrator
	myRelayer := relayer.NewRelayer(
		&relayer.RelayerConfig{},
		coord, myTxStore, payoutDB, myReserves,
		mySolman, myBtcRpcClient, privacy,
		bsc.BtcChainConfig, mtr,
	)

	// 6) sweeper, inside the server too; cmd/sweeper_cmd runs it alone
	mySweeper := coordinator.NewSweeper(cdb, &coordinator.SweeperConfig{
		Interval:         bsc.SweepInterval,
		CompletedMaxAge:  bsc.CompletedMaxAge,
		ProcessingMaxAge: bsc.ProcessingMaxAge,
	}, mtr)

	// Important: turn the loops on.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myBtcMonitor.ScanLoop(ctx); err != nil && err != context.Canceled {
			logger.Errorf("btc monitor stopped: %v", err)
		}
	}()
	if myZecMonitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := myZecMonitor.ScanLoop(ctx); err != nil && err != context.Canceled {
				logger.Errorf("zec monitor stopped: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myRelayer.Loop(ctx); err != nil && err != context.Canceled {
			logger.Errorf("relayer stopped: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mySweeper.Loop(ctx); err != nil && err != context.Canceled {
			logger.Errorf("sweeper stopped: %v", err)
		}
	}()
	// Don't forget to call wg.Wait() in the main routine.

	// *** Setup a http server to report status ***
	httpServer := reporter.NewHttpReporter(
		bsc.HttpIp, bsc.HttpPort, bsc.ApiKey,
		db, myTxStore, coord, myReserves, myLedger, mySolman,
		mtr, registry,
	)
	// Turn on the http server
	go httpServer.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)
	// *** End the setup of http server ***

	return &BridgeServer{
		MyCoordDB:     cdb,
		MyCoordinator: coord,
		MySweeper:     mySweeper,
		MyTxStore:     myTxStore,
		MyEventLedger: myLedger,
		MyReserves:    myReserves,
		MyPayoutDB:    payoutDB,
		MyRelayer:     myRelayer,
		BtcRpcClient:  myBtcRpcClient,
		MyBtcMonitor:  myBtcMonitor,
		MyZecMonitor:  myZecMonitor,
		MySolman:      mySolman,
		Metrics:       mtr,
		Registry:      registry,
		Http:          httpServer,
	}, nil
}

// Create, then start the bridge server and wait.
// It contains a prepared bridge server and context + waitgroup.
// Press Ctrl-C to kill the server.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // defense programing

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewBridgeServer(bsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
		return
	}

	// wait for all routines to finish (which is forever)
	wg.Wait()
}
