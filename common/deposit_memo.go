package common

/*
Defines the deposit memo a user shall send along with the coins to the
bridge address. The memo names the Solana account that receives the
minted zenZEC. It rides in an OP_RETURN output of the BTC (or ZEC
transparent) deposit transaction. See MakeDepositOpReturnData() for the
layout.
*/

import (
	"bytes"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// OP_RETURN payload layout: 4 magic bytes + 32 byte Solana public key.
var DepositMemoMagic = [4]byte{'Z', 'N', 'Z', '1'}

const DepositMemoLen = 4 + solana.PublicKeyLength

type DepositMemo struct {
	Recipient solana.PublicKey // receives the minted zenZEC
}

func (dm *DepositMemo) Serialize() []byte {
	out := make([]byte, 0, DepositMemoLen)
	out = append(out, DepositMemoMagic[:]...)
	out = append(out, dm.Recipient.Bytes()...)
	return out
}

// MakeDepositOpReturnData creates the OP_RETURN payload from a base58
// Solana address.
func MakeDepositOpReturnData(solAddr string) ([]byte, error) {
	pk, err := solana.PublicKeyFromBase58(solAddr)
	if err != nil {
		return nil, err
	}
	dm := DepositMemo{Recipient: pk}
	return dm.Serialize(), nil
}

// DecodeDepositMemo parses an OP_RETURN payload back into a memo.
func DecodeDepositMemo(data []byte) (*DepositMemo, error) {
	if len(data) != DepositMemoLen {
		return nil, errors.New("deposit memo has wrong length")
	}
	if !bytes.Equal(data[:4], DepositMemoMagic[:]) {
		return nil, errors.New("deposit memo magic mismatch")
	}
	return &DepositMemo{Recipient: solana.PublicKeyFromBytes(data[4:])}, nil
}
