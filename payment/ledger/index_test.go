package ledger

import (
	"testing"

	"go-invoice/payment/db"
)

func TestIndex(t *testing.T) {
	entries := []db.Invoice{
		{InvoiceID: "c", CreatedAt: 30, Status: db.StatusPending},
		{InvoiceID: "a", CreatedAt: 10, Status: db.StatusPending},
		{InvoiceID: "b", CreatedAt: 10, Status: db.StatusPending},
		{InvoiceID: "a", CreatedAt: 10, Status: db.StatusPaid},
		{InvoiceID: "c", CreatedAt: 30, Status: db.StatusPaid},
		{InvoiceID: "c", CreatedAt: 30, Status: db.StatusDelivered},
	}

	idx := BuildIndex(entries)
	if idx.Len() != 3 {
		t.Fatalf("expected 3 invoices, got: %d", idx.Len())
	}

	all := idx.Filter("")
	order := ""
	for _, rec := range all {
		order += rec.InvoiceID
	}
	if order != "abc" {
		t.Errorf("expected order abc, got: %s", order)
	}
	if all[0].Status != db.StatusPaid {
		t.Errorf("expected latest status paid for a, got: %s", all[0].Status)
	}
	if all[2].Status != db.StatusDelivered {
		t.Errorf("expected latest status delivered for c, got: %s", all[2].Status)
	}

	pending := idx.Filter(db.StatusPending)
	if len(pending) != 1 || pending[0].InvoiceID != "b" {
		t.Errorf("expected only b pending, got: %v", pending)
	}

	visited := 0
	idx.Ascend(func(rec db.Invoice) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("expected Ascend to stop after 1, visited: %d", visited)
	}

	idx.Put(db.Invoice{InvoiceID: "d", CreatedAt: 40, Status: db.StatusVerified})
	paid := idx.Filter(db.StatusPaid)
	if len(paid) != 2 || paid[0].InvoiceID != "a" || paid[1].InvoiceID != "d" {
		t.Errorf("expected a and d paid, got: %v", paid)
	}
}
