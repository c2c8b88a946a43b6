package qrcode

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"go-invoice/payment/db"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	payee = "0x1111111111111111111111111111111111111111"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPaymentURI(t *testing.T) {
	uri := PaymentURI(token, 84532, payee, big.NewInt(10_500_000))
	assert.Equal(t,
		"ethereum:0x036CbD53842c5426634e7929541eC2318f3dCF7e@84532/transfer?address=0x1111111111111111111111111111111111111111&uint256=10500000",
		uri)

	uri = PaymentURI(token, 0, payee, big.NewInt(1))
	assert.Equal(t,
		"ethereum:0x036CbD53842c5426634e7929541eC2318f3dCF7e/transfer?address=0x1111111111111111111111111111111111111111&uint256=1",
		uri)
}

func TestInvoiceURI(t *testing.T) {
	rec := &db.Invoice{Amount: decimal.RequireFromString("2.25"), Payee: payee}
	uri, err := InvoiceURI(rec, token, 8453)
	require.NoError(t, err)
	assert.Contains(t, uri, "@8453/")
	assert.Contains(t, uri, "uint256=2250000")

	_, err = InvoiceURI(&db.Invoice{Amount: decimal.NewFromInt(1)}, token, 8453)
	assert.ErrorIs(t, err, ErrNoPayee)
}

func TestPNG(t *testing.T) {
	png, err := PNG(PaymentURI(token, 84532, payee, big.NewInt(1)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestWriteQRCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.png")
	require.NoError(t, WriteQRCode(PaymentURI(token, 84532, payee, big.NewInt(1)), path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, pngMagic))
}
