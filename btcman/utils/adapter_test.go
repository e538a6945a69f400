package utils

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/zenz-bridge/bridge-go/common"
)

const (
	bridge_addr_str   = "mkVXZnqaaKt4puQNr4ovPHYg48mjguFCnT"
	other_addr_str    = "moHYHpgk4YgTCeLBmDE2teQ3qVLUtM95Fn"
	sol_recipient_str = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"

	deposit_satoshi = 25000000 // 0.25 btc
)

func mustAddr(t *testing.T, addrStr string) btcutil.Address {
	addr, err := btcutil.DecodeAddress(addrStr, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("cannot decode address %s, error %v", addrStr, err)
	}
	return addr
}

// Build a two-output deposit tx: pay the bridge, then the memo.
func makeDepositTx(t *testing.T, payTo btcutil.Address, memoData []byte) *wire.MsgTx {
	payScript, err := txscript.PayToAddrScript(payTo)
	if err != nil {
		t.Fatalf("cannot build pay script, error %v", err)
	}
	nullScript, err := txscript.NullDataScript(memoData)
	if err != nil {
		t.Fatalf("cannot build null data script, error %v", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(deposit_satoshi, payScript))
	tx.AddTxOut(wire.NewTxOut(0, nullScript))
	return tx
}

func TestIsDepositTx(t *testing.T) {
	bridgeAddr := mustAddr(t, bridge_addr_str)

	memoData, err := common.MakeDepositOpReturnData(sol_recipient_str)
	if err != nil {
		t.Fatalf("cannot build memo, error %v", err)
	}

	tx := makeDepositTx(t, bridgeAddr, memoData)
	if !IsDepositTx(tx, bridgeAddr, &chaincfg.RegressionNetParams) {
		t.Fatal("well-formed deposit not recognized")
	}

	// Pays someone else
	otherAddr := mustAddr(t, other_addr_str)
	if IsDepositTx(tx, otherAddr, &chaincfg.RegressionNetParams) {
		t.Fatal("deposit to another address recognized as ours")
	}

	// Single output, no memo
	payScript, _ := txscript.PayToAddrScript(bridgeAddr)
	plain := wire.NewMsgTx(wire.TxVersion)
	plain.AddTxOut(wire.NewTxOut(deposit_satoshi, payScript))
	if IsDepositTx(plain, bridgeAddr, &chaincfg.RegressionNetParams) {
		t.Fatal("plain transfer recognized as deposit")
	}
}

func TestCraftVerifiedDeposit(t *testing.T) {
	bridgeAddr := mustAddr(t, bridge_addr_str)

	memoData, err := common.MakeDepositOpReturnData(sol_recipient_str)
	if err != nil {
		t.Fatalf("cannot build memo, error %v", err)
	}

	tx := makeDepositTx(t, bridgeAddr, memoData)
	block := &wire.MsgBlock{Header: wire.BlockHeader{Version: 1}}

	dep, err := CraftVerifiedDeposit(tx, 120, block, bridgeAddr)
	if err != nil {
		t.Fatalf("cannot craft verified deposit, error %v", err)
	}

	if dep.ChainTxID != tx.TxHash().String() {
		t.Fatalf("txid mismatch: %s", dep.ChainTxID)
	}
	if dep.Amount != deposit_satoshi {
		t.Fatalf("amount mismatch: %d", dep.Amount)
	}
	if dep.Asset != "BTC" {
		t.Fatalf("asset mismatch: %s", dep.Asset)
	}
	if dep.BlockHeight != 120 {
		t.Fatalf("block height mismatch: %d", dep.BlockHeight)
	}
	if dep.Recipient.String() != sol_recipient_str {
		t.Fatalf("recipient mismatch: %s", dep.Recipient.String())
	}
}

func TestCraftRejectsGarbageMemo(t *testing.T) {
	bridgeAddr := mustAddr(t, bridge_addr_str)

	tx := makeDepositTx(t, bridgeAddr, []byte("not a memo"))
	block := &wire.MsgBlock{Header: wire.BlockHeader{Version: 1}}

	// Looks like a deposit on the outside
	if !IsDepositTx(tx, bridgeAddr, &chaincfg.RegressionNetParams) {
		t.Fatal("outer shape should still pass")
	}

	if _, err := CraftVerifiedDeposit(tx, 120, block, bridgeAddr); err == nil {
		t.Fatal("garbage memo should not craft a deposit")
	}
}

func TestFormatBaseUnits(t *testing.T) {
	cases := map[int64]string{
		deposit_satoshi: "0.25",
		150000000:       "1.5",
		100000000:       "1",
		1:               "0.00000001",
		0:               "0",
		-25000000:       "-0.25",
	}
	for units, want := range cases {
		if got := FormatBaseUnits(units); got != want {
			t.Fatalf("FormatBaseUnits(%d) = %s, want %s", units, got, want)
		}
	}
}
