// Standalone reconciliation process: opens the shared bridge database
// and runs only the cleanup sweeper. Deploy it next to (or instead of)
// the sweeper inside the server when reclamation should survive server
// restarts on its own schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/zenz-bridge/bridge-go/coorddb"
	"github.com/zenz-bridge/bridge-go/coordinator"
	"github.com/zenz-bridge/bridge-go/database"
	"github.com/zenz-bridge/bridge-go/logconfig"
	"github.com/zenz-bridge/bridge-go/metrics"
)

func main() {
	logconfig.ConfigProductionLogger()

	viper.AutomaticEnv()

	dbFile := viper.GetString("DB_FILE_PATH")
	if dbFile == "" {
		fmt.Println("DB_FILE_PATH must be set")
		return
	}

	db, err := database.Open(dbFile)
	if err != nil {
		logger.Fatalf("failed to open db file %s: %v", dbFile, err)
		return
	}
	defer db.Close()

	cdb, err := coorddb.NewCoordDB(db)
	if err != nil {
		logger.Fatalf("failed to create coordination store: %v", err)
		return
	}

	mtr := metrics.NewBridgeMetrics(prometheus.NewRegistry())
	sweeper := coordinator.NewSweeper(cdb, &coordinator.SweeperConfig{
		Interval:         time.Duration(viper.GetInt64("SWEEP_INTERVAL_MINUTES")) * time.Minute,
		CompletedMaxAge:  time.Duration(viper.GetInt64("COMPLETED_CLEANUP_HOURS")) * time.Hour,
		ProcessingMaxAge: time.Duration(viper.GetInt64("PROCESSING_STALE_MINUTES")) * time.Minute,
	}, mtr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, stopping sweeper...\n", sig)
		cancel()
	}()

	fmt.Println("Starting cleanup sweeper... press Ctrl+C to stop")
	if err := sweeper.Loop(ctx); err != nil && err != context.Canceled {
		logger.Errorf("sweeper stopped: %v", err)
	}
}
