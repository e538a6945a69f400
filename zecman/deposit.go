package zecman

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"

	"github.com/zenz-bridge/bridge-go/common"
)

const CONFIRM_SAFE = 6 // minimum confirm threshold to consider a Tx finalized.

// ZatoshiFromDecimal converts an explorer ZEC decimal string into base
// units without going through a float.
func ZatoshiFromDecimal(s string) (int64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 8 {
		return 0, fmt.Errorf("too many decimal places in %q", s)
	}
	frac = frac + strings.Repeat("0", 8-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q: %w", s, err)
	}
	if w < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	return w*1e8 + f, nil
}

// IsDepositTx checks if the fetched tx is a bridge deposit: one output
// pays the bridge t-address, another is an OP_RETURN. Transparent
// scripts are bitcoin scripts, so the btcd script tooling applies.
func IsDepositTx(tx *TxDetail, bridgeAddress string) bool {
	return findBridgeVout(tx, bridgeAddress) != nil && findMemoScript(tx) != nil
}

// CraftVerifiedDeposit builds the VerifiedDeposit out of the fetched
// tx. A malformed memo comes back as an error, the caller skips the tx.
func CraftVerifiedDeposit(tx *TxDetail, bridgeAddress string) (*common.VerifiedDeposit, error) {
	payOut := findBridgeVout(tx, bridgeAddress)
	if payOut == nil {
		return nil, fmt.Errorf("tx %s does not pay the bridge address", tx.TxID)
	}

	memoScript := findMemoScript(tx)
	if memoScript == nil {
		return nil, fmt.Errorf("tx %s carries no op_return output", tx.TxID)
	}
	pushes, err := txscript.PushedData(memoScript)
	if err != nil {
		return nil, err
	}
	if len(pushes) == 0 {
		return nil, fmt.Errorf("op_return carries no data in tx %s", tx.TxID)
	}
	memo, err := common.DecodeDepositMemo(pushes[0])
	if err != nil {
		return nil, err
	}

	amount, err := ZatoshiFromDecimal(payOut.Value)
	if err != nil {
		return nil, err
	}

	return &common.VerifiedDeposit{
		ChainTxID:   tx.TxID,
		Asset:       "ZEC",
		Vout:        payOut.N,
		Amount:      amount,
		BlockHash:   tx.BlockHash,
		BlockHeight: tx.BlockHeight,
		Recipient:   memo.Recipient,
	}, nil
}

func findBridgeVout(tx *TxDetail, bridgeAddress string) *TxOutput {
	for i := range tx.Vout {
		v := &tx.Vout[i]
		for _, addr := range v.ScriptPubKey.Addresses {
			if addr == bridgeAddress {
				return v
			}
		}
	}
	return nil
}

func findMemoScript(tx *TxDetail) []byte {
	for i := range tx.Vout {
		script, err := hex.DecodeString(tx.Vout[i].ScriptPubKey.Hex)
		if err != nil {
			continue
		}
		if txscript.IsNullData(script) {
			return script
		}
	}
	return nil
}
