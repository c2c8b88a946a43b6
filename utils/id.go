package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewInvoiceID returns a random uuid as 32 hex chars.
func NewInvoiceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
