package txstore

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is wrapped into every rejected status move so
// the HTTP layer can tell a client mistake from a store failure.
var ErrInvalidTransition = errors.New("invalid status transition")

type TxStoreError struct{}

func (e *TxStoreError) CannotInsertDueToUnknownStatus(btx *BridgeTransaction) error {
	return fmt.Errorf("cannot insert transaction %s with unknown status %q", btx.TxID, btx.Status)
}

func (e *TxStoreError) CannotUpdateMissingTransaction(txID string) error {
	return fmt.Errorf("cannot update status of unknown transaction %s", txID)
}

func (e *TxStoreError) CannotTransition(txID, from, to string) error {
	return fmt.Errorf("transaction %s cannot move %s -> %s: %w", txID, from, to, ErrInvalidTransition)
}
