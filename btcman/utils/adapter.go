package utils

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/zenz-bridge/bridge-go/common"
)

// IsDepositTx checks if the given tx is a bridge deposit tx
func IsDepositTx(tx *wire.MsgTx, targetAddress btcutil.Address, chainParams *chaincfg.Params) bool {
	// Check if the tx has at least 2 outputs
	if len(tx.TxOut) < 2 {
		return false
	}

	// Check output #1, if pays to us?
	flag1 := false
	output1 := tx.TxOut[0]
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(output1.PkScript, chainParams)
	if err != nil || len(addresses) == 0 || addresses[0].EncodeAddress() != targetAddress.EncodeAddress() || output1.Value == 0 {
		flag1 = false
	} else {
		flag1 = true
	}

	// Check output #2, if OP_RETURN?
	flag2 := false
	output2 := tx.TxOut[1]
	if output2.Value == 0 && txscript.IsNullData(output2.PkScript) {
		flag2 = true
	} else {
		flag2 = false
	}

	return flag1 && flag2
}

// CraftVerifiedDeposit creates a VerifiedDeposit from the given tx.
// IsDepositTx must have said yes first; a malformed memo still comes
// back as an error here, the caller skips the tx in that case.
func CraftVerifiedDeposit(tx *wire.MsgTx, blockHeight int32, block *wire.MsgBlock, targetAddress btcutil.Address) (*common.VerifiedDeposit, error) {

	// Recover the memo from the op_return data
	output2 := tx.TxOut[1]
	pushes, err := txscript.PushedData(output2.PkScript)
	if err != nil {
		return nil, err
	}
	if len(pushes) == 0 {
		return nil, fmt.Errorf("op_return carries no data in tx %s", tx.TxHash().String())
	}
	memo, err := common.DecodeDepositMemo(pushes[0])
	if err != nil {
		return nil, err
	}

	// Create the verified deposit
	deposit := &common.VerifiedDeposit{
		ChainTxID:   tx.TxHash().String(),
		Asset:       "BTC",
		Vout:        0,
		Amount:      tx.TxOut[0].Value,
		BlockHash:   block.BlockHash().String(),
		BlockHeight: int64(blockHeight),
		Recipient:   memo.Recipient,
	}

	return deposit, nil
}
