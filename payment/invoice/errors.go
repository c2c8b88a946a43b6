package invoice

import (
	"errors"
	"fmt"
	"net/http"

	"go-invoice/payment/ledger"
	"go-invoice/payment/verify"
)

var ErrNotFound = errors.New("invoice not found")

// ValidationError lists every way a transfer fails to settle an invoice.
type ValidationError struct {
	InvoiceID string
	TxHash    string
	Problems  []verify.Problem
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction %s does not settle invoice %s: %d problem(s)", e.TxHash, e.InvoiceID, len(e.Problems))
}

// StateError is returned when an invoice is not in a state the operation accepts.
type StateError struct {
	Kind      string
	InvoiceID string
	Status    string
	TxHash    string
}

const (
	KindAlreadySettled = "already_settled"
	KindTxAlreadyUsed  = "tx_already_used"
	KindInvalidState   = "invalid_state"
)

func (e *StateError) Error() string {
	switch e.Kind {
	case KindAlreadySettled:
		return fmt.Sprintf("invoice %s is already %s", e.InvoiceID, e.Status)
	case KindTxAlreadyUsed:
		return fmt.Sprintf("transaction %s already settled invoice %s", e.TxHash, e.InvoiceID)
	}
	return fmt.Sprintf("invoice %s is %s", e.InvoiceID, e.Status)
}

// BadRequestError reports invalid caller input.
type BadRequestError struct {
	Field  string
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func badRequest(field, format string, args ...interface{}) error {
	return &BadRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorResponse is the JSON error payload of the CLI and the HTTP API.
type ErrorResponse struct {
	Error      string           `json:"error"`
	Kind       string           `json:"kind"`
	InvoiceID  string           `json:"invoice_id,omitempty"`
	Tx         string           `json:"tx,omitempty"`
	Endpoint   string           `json:"endpoint,omitempty"`
	Contract   string           `json:"contract,omitempty"`
	Status     string           `json:"status,omitempty"`
	SettledID  string           `json:"settled_invoice_id,omitempty"`
	Field      string           `json:"field,omitempty"`
	Position   int              `json:"position,omitempty"`
	Problems   []verify.Problem `json:"problems,omitempty"`
	HTTPStatus int              `json:"-"`
}

// NewErrorResponse classifies err. invoiceID and tx are the identifiers of the request and are
// kept when the error itself does not carry them.
func NewErrorResponse(err error, invoiceID, tx string) ErrorResponse {
	resp := ErrorResponse{
		Error:      err.Error(),
		Kind:       "internal",
		InvoiceID:  invoiceID,
		Tx:         tx,
		HTTPStatus: http.StatusInternalServerError,
	}

	var (
		verr  *verify.Error
		valer *ValidationError
		serr  *StateError
		berr  *BadRequestError
		merr  *ledger.MalformedEntryError
	)

	switch {
	case errors.Is(err, ErrNotFound):
		resp.Error = ErrNotFound.Error()
		resp.Kind = "not_found"
		resp.HTTPStatus = http.StatusNotFound
	case errors.As(err, &valer):
		resp.Error = "verification failed"
		resp.Kind = "validation_failed"
		resp.Problems = valer.Problems
		resp.HTTPStatus = http.StatusUnprocessableEntity
	case errors.As(err, &verr):
		resp.Kind = string(verr.Kind)
		resp.Endpoint = verr.Endpoint
		resp.Contract = verr.Contract
		if verr.TxHash != "" {
			resp.Tx = verr.TxHash
		}
		switch verr.Kind {
		case verify.KindConnection, verify.KindBlockNotFound:
			resp.HTTPStatus = http.StatusBadGateway
		default:
			resp.HTTPStatus = http.StatusUnprocessableEntity
		}
	case errors.As(err, &serr):
		resp.Kind = serr.Kind
		resp.Status = serr.Status
		if serr.Kind == KindTxAlreadyUsed {
			resp.SettledID = serr.InvoiceID
			resp.Tx = serr.TxHash
		}
		resp.HTTPStatus = http.StatusConflict
	case errors.As(err, &berr):
		resp.Kind = "bad_request"
		resp.Field = berr.Field
		resp.HTTPStatus = http.StatusBadRequest
	case errors.As(err, &merr):
		resp.Kind = "malformed_ledger_entry"
		resp.Position = merr.Position
	}

	return resp
}
