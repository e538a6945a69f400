package main

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	"github.com/zenz-bridge/bridge-go/cmd"
	"github.com/zenz-bridge/bridge-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Bridge server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	bsc := PrepareBridgeServerConfig()
	if bsc == nil {
		fmt.Printf("Error loading bridge server configuration\n")
		return
	}

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareBridgeServerConfig reads configuration variables and returns a BridgeServerConfig.
func PrepareBridgeServerConfig() *cmd.BridgeServerConfig {

	// *** prepare objects that aren't string type ***

	// Parse the BTC chain config (e.g., "regtest", "testnet", or "mainnet").
	var btcParams *chaincfg.Params
	switch viper.GetString("BTC_CHAIN_CONFIG") {
	case "testnet":
		btcParams = &chaincfg.TestNet3Params
	case "mainnet":
		btcParams = &chaincfg.MainNetParams
	case "regtest":
		btcParams = &chaincfg.RegressionNetParams
	default:
		// default to regtest
		btcParams = &chaincfg.RegressionNetParams
	}

	// Coordination knobs come in as minutes/hours, zero lets the
	// components fall back to their defaults.
	failedRetry := time.Duration(viper.GetInt64("FAILED_RETRY_MINUTES")) * time.Minute
	sweepInterval := time.Duration(viper.GetInt64("SWEEP_INTERVAL_MINUTES")) * time.Minute
	completedMaxAge := time.Duration(viper.GetInt64("COMPLETED_CLEANUP_HOURS")) * time.Hour
	processingMaxAge := time.Duration(viper.GetInt64("PROCESSING_STALE_MINUTES")) * time.Minute

	// *** end of preparing objects ***

	return &cmd.BridgeServerConfig{
		DbFilePath:  viper.GetString("DB_FILE_PATH"),
		ServiceName: viper.GetString("SERVICE_NAME"),
		// btc side
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		BtcChainConfig: btcParams,
		BtcBridgeAddr:  viper.GetString("BTC_BRIDGE_ADDR"),
		BtcStartBlk:    viper.GetInt64("BTC_START_BLK"),
		// zec side
		ZecExplorerURL: viper.GetString("ZEC_EXPLORER_URL"),
		ZecBridgeAddr:  viper.GetString("ZEC_BRIDGE_ADDR"),
		// solana side
		SolRpcUrl:        viper.GetString("SOL_RPC_URL"),
		SolNetwork:       viper.GetString("SOL_NETWORK"),
		SolAuthorityPriv: viper.GetString("SOL_AUTHORITY_PRIV"),
		SolBridgeProgram: viper.GetString("SOL_BRIDGE_PROGRAM"),
		SolZenZECMint:    viper.GetString("SOL_ZENZEC_MINT"),
		// http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
		ApiKey:   viper.GetString("API_KEY"),
		// coordination
		FailedRetryInterval: failedRetry,
		SweepInterval:       sweepInterval,
		CompletedMaxAge:     completedMaxAge,
		ProcessingMaxAge:    processingMaxAge,
		// privacy
		MpcLocalPriv: viper.GetString("MPC_LOCAL_PRIV"),
	}
}
