package solman

import (
	"github.com/gagliardetto/solana-go/rpc"
)

// SolmanConfig holds the connection and key material for the Solana
// side of the bridge.
type SolmanConfig struct {
	// RPC endpoint. Leave empty to derive from Network.
	URL string

	// Network type: mainnet, devnet, testnet, localnet
	Network string

	// Deployed bridge program id
	BridgeProgram string

	// SPL mint of zenZEC
	ZenZECMint string

	// Base58 private key of the mint authority (pays fees, signs mints)
	AuthorityPrivKey string
}

const (
	NetworkMainnet  = "mainnet"
	NetworkDevnet   = "devnet"
	NetworkTestnet  = "testnet"
	NetworkLocalnet = "localnet"
)

// The program id the bridge is deployed under by default.
const DefaultBridgeProgram = "7ac8wtD5S9BRutHBMUoKMjpYepKSHVCgGaoN1etLjkd4"

// GetNetworkURL maps a network name onto the public RPC endpoint.
func GetNetworkURL(network string) string {
	switch network {
	case NetworkMainnet:
		return rpc.MainNetBeta_RPC
	case NetworkDevnet:
		return rpc.DevNet_RPC
	case NetworkTestnet:
		return rpc.TestNet_RPC
	case NetworkLocalnet:
		return rpc.LocalNet_RPC
	default:
		return rpc.DevNet_RPC
	}
}
