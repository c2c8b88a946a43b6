package verify_test

import (
	"math/big"
	"strings"
	"testing"

	"go-invoice/payment/verify"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender    = common.HexToAddress("0x" + strings.Repeat("a1", 20))
	recipient = common.HexToAddress("0x" + strings.Repeat("b2", 20))
)

func transfer(amount string, to common.Address, ts uint64) *verify.Transfer {
	usdc := decimal.RequireFromString(amount)
	return &verify.Transfer{
		Sender:         sender,
		Recipient:      to,
		RawUnits:       verify.ToRawUnits(usdc),
		Amount:         usdc,
		BlockTimestamp: ts,
		TxHash:         "0x" + strings.Repeat("ff", 32),
	}
}

func terms(amount string) verify.Terms {
	return verify.Terms{Amount: decimal.RequireFromString(amount)}
}

func TestValidateAllChecksPass(t *testing.T) {
	tt := terms("10")
	tt.Payee = "0x" + strings.Repeat("b2", 20)
	tt.ExpiresAt = 9999

	assert.Empty(t, verify.Validate(transfer("15", recipient, 500), tt))
}

func TestValidateUnderpayment(t *testing.T) {
	problems := verify.Validate(transfer("5", recipient, 1000), terms("10"))
	require.Len(t, problems, 1)
	assert.Equal(t, verify.ProblemUnderpayment, problems[0].Code)
	assert.Contains(t, problems[0].Detail, "Underpayment")
	assert.Contains(t, problems[0].Detail, "5 USDC")
	assert.Contains(t, problems[0].Detail, "10 USDC")
}

func TestValidateExactAmountPasses(t *testing.T) {
	assert.Empty(t, verify.Validate(transfer("10", recipient, 1000), terms("10")))
	// one raw unit short
	assert.Len(t, verify.Validate(transfer("9.999999", recipient, 1000), terms("10")), 1)
}

func TestValidateUsesRawUnits(t *testing.T) {
	// 0.1 + 0.2 is not 0.3 in floating point
	xfer := transfer("0.3", recipient, 1000)
	assert.Empty(t, verify.Validate(xfer, terms("0.30")))
	assert.Empty(t, verify.Validate(xfer, verify.Terms{Amount: decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))}))
}

func TestValidateRecipientMismatch(t *testing.T) {
	tt := terms("1")
	tt.Payee = "0x" + strings.Repeat("dd", 20)

	problems := verify.Validate(transfer("1", common.HexToAddress("0x"+strings.Repeat("cc", 20)), 1000), tt)
	require.Len(t, problems, 1)
	assert.Equal(t, verify.ProblemRecipientMismatch, problems[0].Code)
	assert.Contains(t, strings.ToLower(problems[0].Detail), "mismatch")
	assert.Contains(t, strings.ToLower(problems[0].Detail), strings.Repeat("cc", 20))
	assert.Contains(t, problems[0].Detail, tt.Payee)
}

func TestValidatePayeeIsCaseInsensitive(t *testing.T) {
	tt := terms("1")
	tt.Payee = strings.ToUpper("0x" + strings.Repeat("b2", 20))
	tt.Payee = "0x" + tt.Payee[2:]

	assert.Empty(t, verify.Validate(transfer("1", recipient, 1000), tt))
}

func TestValidateNoPayeeSkipsRecipientCheck(t *testing.T) {
	anyone := common.HexToAddress("0x" + strings.Repeat("01", 20))
	assert.Empty(t, verify.Validate(transfer("1", anyone, 1000), terms("1")))
}

func TestValidateExpiry(t *testing.T) {
	tt := terms("1")
	tt.ExpiresAt = 1500

	problems := verify.Validate(transfer("1", recipient, 2000), tt)
	require.Len(t, problems, 1)
	assert.Equal(t, verify.ProblemExpired, problems[0].Code)
	assert.Contains(t, problems[0].Detail, "Expired")
	assert.Contains(t, problems[0].Detail, "2000")
	assert.Contains(t, problems[0].Detail, "1500")

	// boundary
	assert.Empty(t, verify.Validate(transfer("1", recipient, 1500), tt))
}

func TestValidateAccumulatesProblems(t *testing.T) {
	tt := verify.Terms{
		Amount:    decimal.RequireFromString("10"),
		Payee:     "0x" + strings.Repeat("dd", 20),
		ExpiresAt: 100,
	}

	problems := verify.Validate(transfer("1", recipient, 200), tt)
	require.Len(t, problems, 3)
	assert.Equal(t, verify.ProblemUnderpayment, problems[0].Code)
	assert.Equal(t, verify.ProblemRecipientMismatch, problems[1].Code)
	assert.Equal(t, verify.ProblemExpired, problems[2].Code)
}

func TestRawUnitConversion(t *testing.T) {
	assert.Equal(t, "10500000", verify.ToRawUnits(decimal.RequireFromString("10.5")).String())
	assert.Equal(t, "1", verify.ToRawUnits(decimal.RequireFromString("0.0000001")).String())
	assert.Equal(t, "12.345678", verify.ToUSDC(big.NewInt(12_345_678)).String())
}
