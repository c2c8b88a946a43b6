package invoice

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go-invoice/payment/ledger"
	"go-invoice/payment/verify"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), "not_found", http.StatusNotFound},
		{"validation", &ValidationError{Problems: []verify.Problem{{Code: verify.ProblemExpired}}}, "validation_failed", http.StatusUnprocessableEntity},
		{"connection", &verify.Error{Kind: verify.KindConnection, Endpoint: "ws://node"}, "connection_error", http.StatusBadGateway},
		{"block", &verify.Error{Kind: verify.KindBlockNotFound}, "block_not_found", http.StatusBadGateway},
		{"no event", &verify.Error{Kind: verify.KindNoTransferEvent}, "no_transfer_event", http.StatusUnprocessableEntity},
		{"receipt", &verify.Error{Kind: verify.KindTransactionNotFound}, "transaction_not_found", http.StatusUnprocessableEntity},
		{"settled", &StateError{Kind: KindAlreadySettled}, KindAlreadySettled, http.StatusConflict},
		{"reused", &StateError{Kind: KindTxAlreadyUsed}, KindTxAlreadyUsed, http.StatusConflict},
		{"bad request", badRequest("amount", "nope"), "bad_request", http.StatusBadRequest},
		{"ledger", &ledger.MalformedEntryError{Position: 3, Err: errors.New("eof")}, "malformed_ledger_entry", http.StatusInternalServerError},
		{"other", errors.New("disk full"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewErrorResponse(tt.err, "inv", "0xabc")
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.status, resp.HTTPStatus)
			assert.Equal(t, "inv", resp.InvoiceID)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestNewErrorResponseKeepsIdentifiers(t *testing.T) {
	resp := NewErrorResponse(&verify.Error{Kind: verify.KindNoTransferEvent, TxHash: "0xdef", Contract: "0xc0ffee"}, "inv", "0xabc")
	assert.Equal(t, "0xdef", resp.Tx)
	assert.Equal(t, "0xc0ffee", resp.Contract)

	resp = NewErrorResponse(&StateError{Kind: KindTxAlreadyUsed, InvoiceID: "first", TxHash: "0xdef"}, "second", "0xdef")
	assert.Equal(t, "second", resp.InvoiceID)
	assert.Equal(t, "first", resp.SettledID)
	assert.Equal(t, "0xdef", resp.Tx)

	resp = NewErrorResponse(&ledger.MalformedEntryError{Position: 7, Err: errors.New("bad")}, "", "")
	assert.Equal(t, 7, resp.Position)
	assert.Contains(t, resp.Error, "position 7")
}
