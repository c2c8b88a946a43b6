package verify

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// USDC uses 6 decimal places.
const Decimals = 6

const erc20TransferABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}]`

var (
	transferABI = mustParseABI(erc20TransferABI)

	// TransferEventSig is keccak256("Transfer(address,address,uint256)").
	TransferEventSig = transferABI.Events["Transfer"].ID
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Transfer is a decoded USDC Transfer event together with its block time.
type Transfer struct {
	Sender         common.Address  `json:"sender"`
	Recipient      common.Address  `json:"recipient"`
	RawUnits       *big.Int        `json:"raw_units"`
	Amount         decimal.Decimal `json:"usdc_amount"`
	BlockTimestamp uint64          `json:"block_ts"`
	BlockNumber    uint64          `json:"block_number"`
	LogIndex       uint            `json:"log_index"`
	TxHash         string          `json:"tx_hash"`
}

// transferLog is what a qualifying log entry decodes to, before the block is known.
type transferLog struct {
	sender    common.Address
	recipient common.Address
	raw       *big.Int
	index     uint
}

// LocateTransfer returns the first log emitted by token whose topics look like an ERC-20 Transfer.
func LocateTransfer(logs []*types.Log, token common.Address) *types.Log {
	for _, lg := range logs {
		if lg == nil {
			continue
		}
		if !strings.EqualFold(lg.Address.Hex(), token.Hex()) {
			continue
		}
		if len(lg.Topics) < 3 {
			continue
		}
		if lg.Topics[0] == TransferEventSig {
			return lg
		}
	}
	return nil
}

// AddressFromTopic takes the low 20 bytes of a 32 byte topic.
func AddressFromTopic(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[common.HashLength-common.AddressLength:])
}

func decodeTransferLog(lg *types.Log) (*transferLog, error) {
	// the amount is the only non-indexed field and fills exactly one word
	if len(lg.Data) != 32 {
		return nil, fmt.Errorf("expected 32 bytes of event data, got %d", len(lg.Data))
	}
	values, err := transferABI.Unpack("Transfer", lg.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("expected 1 non-indexed value, got %d", len(values))
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", values[0])
	}

	return &transferLog{
		sender:    AddressFromTopic(lg.Topics[1]),
		recipient: AddressFromTopic(lg.Topics[2]),
		raw:       raw,
		index:     lg.Index,
	}, nil
}

// ToUSDC converts raw units to a USDC amount.
func ToUSDC(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -Decimals)
}

// ToRawUnits converts a USDC amount to raw units, rounding sub-unit fractions up.
func ToRawUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(Decimals).Ceil().BigInt()
}

// Terms are the parts of an invoice a transfer is checked against.
type Terms struct {
	Amount    decimal.Decimal
	Payee     string // empty skips the recipient check
	ExpiresAt int64  // zero skips the expiry check
}

const (
	ProblemUnderpayment      = "underpayment"
	ProblemRecipientMismatch = "recipient_mismatch"
	ProblemExpired           = "expired"
)

type Problem struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (p Problem) String() string {
	return p.Detail
}

// Validate compares a transfer with invoice terms. Every check runs, an empty result means the
// transfer settles the invoice.
func Validate(t *Transfer, terms Terms) []Problem {
	problems := []Problem{}

	if t.RawUnits.Cmp(ToRawUnits(terms.Amount)) < 0 {
		problems = append(problems, Problem{
			Code: ProblemUnderpayment,
			Detail: fmt.Sprintf("Underpayment: received %s USDC but invoice requires %s USDC",
				t.Amount.String(), terms.Amount.String()),
		})
	}

	if terms.Payee != "" && !strings.EqualFold(t.Recipient.Hex(), terms.Payee) {
		problems = append(problems, Problem{
			Code: ProblemRecipientMismatch,
			Detail: fmt.Sprintf("Recipient mismatch: transfer sent to %s but invoice payee is %s",
				t.Recipient.Hex(), terms.Payee),
		})
	}

	if terms.ExpiresAt != 0 && int64(t.BlockTimestamp) > terms.ExpiresAt {
		problems = append(problems, Problem{
			Code: ProblemExpired,
			Detail: fmt.Sprintf("Expired: block timestamp %d is after invoice deadline %d",
				t.BlockTimestamp, terms.ExpiresAt),
		})
	}

	return problems
}
