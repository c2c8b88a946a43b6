package verify

import (
	"fmt"
)

type Kind string

const (
	KindConnection          Kind = "connection_error"
	KindTransactionNotFound Kind = "transaction_not_found"
	KindNoTransferEvent     Kind = "no_transfer_event"
	KindMalformedEvent      Kind = "malformed_transfer_event"
	KindBlockNotFound       Kind = "block_not_found"
)

// Error is the only error type FetchTransfer returns. Transport errors are kept in Err.
type Error struct {
	Kind     Kind
	Endpoint string
	TxHash   string
	Contract string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("unable to reach RPC at %s: %v", e.Endpoint, e.Err)
	case KindTransactionNotFound:
		return fmt.Sprintf("could not retrieve receipt for %s: %v", e.TxHash, e.Err)
	case KindNoTransferEvent:
		return fmt.Sprintf("transaction %s has no USDC Transfer event from contract %s", e.TxHash, e.Contract)
	case KindMalformedEvent:
		return fmt.Sprintf("transaction %s has a malformed Transfer event from contract %s: %v", e.TxHash, e.Contract, e.Err)
	case KindBlockNotFound:
		return fmt.Sprintf("could not retrieve block for %s: %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
