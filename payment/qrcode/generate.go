package qrcode

import (
	"errors"
	"fmt"
	"math/big"

	"go-invoice/payment/db"
	"go-invoice/payment/verify"

	"github.com/ethereum/go-ethereum/common"
	qrcode "github.com/skip2/go-qrcode"
)

const size = 256

var ErrNoPayee = errors.New("invoice has no payee to pay to")

// PaymentURI builds an EIP-681 request for an ERC-20 transfer of raw units to payee.
func PaymentURI(token common.Address, chainID int64, payee string, raw *big.Int) string {
	target := token.Hex()
	if chainID != 0 {
		target = fmt.Sprintf("%s@%d", target, chainID)
	}
	return fmt.Sprintf("ethereum:%s/transfer?address=%s&uint256=%s", target, common.HexToAddress(payee).Hex(), raw.String())
}

func InvoiceURI(rec *db.Invoice, token common.Address, chainID int64) (string, error) {
	if rec.Payee == "" {
		return "", ErrNoPayee
	}
	return PaymentURI(token, chainID, rec.Payee, verify.ToRawUnits(rec.Amount)), nil
}

func PNG(uri string) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, size)
}

func WriteQRCode(uri, path string) error {
	return qrcode.WriteFile(uri, qrcode.Medium, size, path)
}
