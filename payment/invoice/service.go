// Package invoice holds the operations that change invoice records: create, verify, deliver.
// Every change is a new ledger entry, records are never rewritten.
package invoice

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-invoice/payment/db"
	"go-invoice/payment/ledger"
	"go-invoice/payment/verify"
	"go-invoice/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultExpiry = 3600 // seconds

var validate = validator.New()

const (
	EventPaid      = "invoice.paid"
	EventDelivered = "invoice.delivered"
)

// TransferFetcher is implemented by *verify.Verifier.
type TransferFetcher interface {
	FetchTransfer(ctx context.Context, txHash string) (*verify.Transfer, error)
}

// Notifier is told about settled and delivered invoices after the record is stored.
type Notifier interface {
	Notify(ctx context.Context, event string, rec *db.Invoice)
}

type Service struct {
	mu       sync.Mutex
	store    ledger.Ledger
	verifier TransferFetcher
	notifier Notifier
	payee    string
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithDefaultPayee sets the payee of invoices created without one.
func WithDefaultPayee(addr string) Option {
	return func(s *Service) {
		s.payee = addr
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store ledger.Ledger, verifier TransferFetcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		verifier: verifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	Amount        decimal.Decimal
	Memo          string
	Payee         string
	ExpirySeconds int64
}

func (s *Service) Create(req CreateRequest) (*db.Invoice, error) {
	if req.Amount.IsNegative() {
		return nil, badRequest("amount", "must not be negative, got %s", req.Amount.String())
	}
	if !req.Amount.Equal(req.Amount.Truncate(verify.Decimals)) {
		return nil, badRequest("amount", "at most %d decimals allowed, got %s", verify.Decimals, req.Amount.String())
	}
	if req.ExpirySeconds <= 0 {
		return nil, badRequest("expiry", "must be positive, got %d", req.ExpirySeconds)
	}

	payee := strings.TrimSpace(req.Payee)
	if payee == "" {
		payee = s.payee
	}
	if payee != "" {
		if !strings.HasPrefix(payee, "0x") || !common.IsHexAddress(payee) {
			return nil, badRequest("payee", "%q is not a 0x-prefixed address", payee)
		}
		payee = common.HexToAddress(payee).Hex()
	}

	now := s.now().Unix()
	rec := &db.Invoice{
		InvoiceID: utils.NewInvoiceID(),
		Amount:    req.Amount,
		Memo:      req.Memo,
		Payee:     payee,
		Status:    db.StatusPending,
		CreatedAt: now,
		ExpiresAt: now + req.ExpirySeconds,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Append(rec); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"invoice_id": rec.InvoiceID,
		"amount":     rec.Amount.String(),
	}).Info("invoice created")
	return rec, nil
}

func (s *Service) Status(id string) (*db.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.find(id)
}

func (s *Service) find(id string) (*db.Invoice, error) {
	rec, found, err := s.store.FindLatest(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Settlement is what a successful verification reports.
type Settlement struct {
	InvoiceID   string          `json:"invoice_id"`
	Status      string          `json:"status"`
	Tx          string          `json:"tx"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PaidFrom    string          `json:"paid_from"`
	PaidTo      string          `json:"paid_to"`
	PaidAt      int64           `json:"paid_at"`
	BlockNumber uint64          `json:"block_number"`
}

// Verify checks txHash against the invoice terms and marks the invoice paid.
// Verifications are serialized, so two attempts never race on one invoice.
func (s *Service) Verify(ctx context.Context, id, txHash string) (*Settlement, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, badRequest("tx", "transaction hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if rec.Settled() {
		return nil, &StateError{Kind: KindAlreadySettled, InvoiceID: id, Status: rec.Status}
	}

	other, err := s.settledBy(txHash)
	if err != nil {
		return nil, err
	}
	if other != "" {
		return nil, &StateError{Kind: KindTxAlreadyUsed, InvoiceID: other, TxHash: txHash}
	}

	logger := log.WithFields(log.Fields{"invoice_id": id, "tx": txHash})

	transfer, err := s.verifier.FetchTransfer(ctx, txHash)
	if err != nil {
		logger.WithError(err).Warn("transfer lookup failed")
		return nil, err
	}

	problems := verify.Validate(transfer, verify.Terms{
		Amount:    rec.Amount,
		Payee:     rec.Payee,
		ExpiresAt: rec.ExpiresAt,
	})
	if len(problems) > 0 {
		logger.WithField("problems", len(problems)).Warn("transfer does not settle invoice")
		return nil, &ValidationError{InvoiceID: id, TxHash: txHash, Problems: problems}
	}

	paidAt := int64(transfer.BlockTimestamp)
	paidAmount := transfer.Amount
	block := transfer.BlockNumber

	updated := *rec
	updated.Status = db.StatusPaid
	updated.Tx = &txHash
	updated.PaidAt = &paidAt
	updated.PaidAmount = &paidAmount
	updated.PaidFrom = transfer.Sender.Hex()
	updated.PaidTo = transfer.Recipient.Hex()
	updated.BlockNumber = &block

	if err := s.store.Append(&updated); err != nil {
		return nil, err
	}
	logger.WithField("amount", paidAmount.String()).Info("invoice paid")
	s.notify(ctx, EventPaid, &updated)

	return &Settlement{
		InvoiceID:   id,
		Status:      updated.Status,
		Tx:          txHash,
		Amount:      rec.Amount,
		PaidAmount:  paidAmount,
		PaidFrom:    updated.PaidFrom,
		PaidTo:      updated.PaidTo,
		PaidAt:      paidAt,
		BlockNumber: block,
	}, nil
}

// settledBy returns the id of the invoice already settled by txHash, if any.
func (s *Service) settledBy(txHash string) (string, error) {
	entries, err := s.store.ReadAll()
	if err != nil {
		return "", err
	}

	var id string
	ledger.BuildIndex(entries).Ascend(func(rec db.Invoice) bool {
		if rec.Settled() && rec.Tx != nil && strings.EqualFold(*rec.Tx, txHash) {
			id = rec.InvoiceID
			return false
		}
		return true
	})
	return id, nil
}

func (s *Service) Deliver(ctx context.Context, id, proofURL string) (*db.Invoice, error) {
	proof := strings.TrimSpace(proofURL)
	if err := validate.Var(proof, "required,url"); err != nil {
		return nil, badRequest("proof_url", "%q is not an absolute URL", proofURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if !rec.Deliverable() {
		return nil, &StateError{Kind: KindInvalidState, InvoiceID: id, Status: rec.Status}
	}

	updated := *rec
	updated.Status = db.StatusDelivered
	updated.ProofURL = &proof

	if err := s.store.Append(&updated); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"invoice_id": id, "proof_url": proof}).Info("invoice delivered")
	s.notify(ctx, EventDelivered, &updated)

	return &updated, nil
}

// List returns the latest record of every invoice, oldest first.
func (s *Service) List(status string) ([]db.Invoice, error) {
	switch status {
	case "", db.StatusPending, db.StatusPaid, db.StatusVerified, db.StatusDelivered:
	default:
		return nil, badRequest("status", "unknown status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	return ledger.BuildIndex(entries).Filter(status), nil
}

func (s *Service) notify(ctx context.Context, event string, rec *db.Invoice) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event, rec)
}
