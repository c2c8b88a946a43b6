// Package ledger stores invoice records as an append-only sequence of JSON entries.
// The record for an invoice id is always the last entry appended with that id.
package ledger

import (
	"encoding/json"
	"fmt"

	"go-invoice/payment/db"
)

type Ledger interface {
	// Append durably adds one entry at the end of the log.
	Append(rec *db.Invoice) error
	// ReadAll returns every entry in append order.
	ReadAll() ([]db.Invoice, error)
	// FindLatest returns the last entry appended for id, found is false when there is none.
	FindLatest(id string) (rec *db.Invoice, found bool, err error)
}

// MalformedEntryError is returned when a stored entry cannot be decoded.
// Position is 1-based and counts entries in append order.
type MalformedEntryError struct {
	Position int
	Err      error
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed ledger entry at position %d: %v", e.Position, e.Err)
}

func (e *MalformedEntryError) Unwrap() error {
	return e.Err
}

func encode(rec *db.Invoice) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding invoice %s: %w", rec.InvoiceID, err)
	}
	return b, nil
}

func decode(position int, b []byte) (db.Invoice, error) {
	var rec db.Invoice
	if err := json.Unmarshal(b, &rec); err != nil {
		return db.Invoice{}, &MalformedEntryError{Position: position, Err: err}
	}
	return rec, nil
}

// latest scans entries in order and keeps the last match.
func latest(entries []db.Invoice, id string) (*db.Invoice, bool) {
	var match *db.Invoice
	for i := range entries {
		if entries[i].InvoiceID == id {
			match = &entries[i]
		}
	}
	return match, match != nil
}

// Open returns the SQL ledger when dsn is set and the file ledger at path otherwise.
// The returned close func releases the database connection.
func Open(dsn, path string) (Ledger, func() error, error) {
	if dsn == "" {
		return NewFileLedger(path), func() error { return nil }, nil
	}
	l, err := OpenSQL(dsn)
	if err != nil {
		return nil, nil, err
	}
	return l, l.Close, nil
}
