package ledger

import (
	"go-invoice/payment/db"

	"github.com/google/btree"
)

// Index holds the latest record of every invoice ordered by creation time.
// Keys are immutable, so a newer record for the same invoice replaces the older one in place.

type indexItem struct {
	createdAt int64
	id        string
	rec       db.Invoice
}

func (a indexItem) Less(b btree.Item) bool {
	o := b.(indexItem)
	if a.createdAt != o.createdAt {
		return a.createdAt < o.createdAt
	}
	return a.id < o.id
}

type Index struct {
	tree *btree.BTree
}

func NewIndex() *Index {
	return &Index{
		tree: btree.New(2),
	}
}

// BuildIndex replays entries in append order.
func BuildIndex(entries []db.Invoice) *Index {
	idx := NewIndex()
	for _, rec := range entries {
		idx.Put(rec)
	}
	return idx
}

func (idx *Index) Put(rec db.Invoice) {
	idx.tree.ReplaceOrInsert(indexItem{createdAt: rec.CreatedAt, id: rec.InvoiceID, rec: rec})
}

func (idx *Index) Len() int {
	return idx.tree.Len()
}

// Ascend visits records from oldest to newest until fn returns false.
func (idx *Index) Ascend(fn func(rec db.Invoice) bool) {
	idx.tree.Ascend(func(it btree.Item) bool {
		return fn(it.(indexItem).rec)
	})
}

// Filter returns records whose status matches, all records when status is empty.
// Paid and verified are treated as the same status.
func (idx *Index) Filter(status string) []db.Invoice {
	out := []db.Invoice{}
	idx.Ascend(func(rec db.Invoice) bool {
		if status == "" || rec.HasStatus(status) {
			out = append(out, rec)
		}
		return true
	})
	return out
}
