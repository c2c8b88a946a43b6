// Package verify checks USDC settlement by reading a transaction receipt from an EVM node.
package verify

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 15 * time.Second

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ChainReader is the part of ethclient.Client the verifier uses.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

type Dialer func(ctx context.Context, rawurl string) (ChainReader, error)

func dialEthClient(ctx context.Context, rawurl string) (ChainReader, error) {
	return ethclient.DialContext(ctx, rawurl)
}

type Config struct {
	RPCURL  string
	Token   common.Address
	ChainID int64         // informational, a mismatch with the node is only logged
	Timeout time.Duration // per network call
}

type Verifier struct {
	cfg  Config
	dial Dialer
}

type Option func(*Verifier)

// WithDialer replaces the ethclient dialer, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(v *Verifier) {
		v.dial = d
	}
}

func New(cfg Config, opts ...Option) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	v := &Verifier{cfg: cfg, dial: dialEthClient}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Token() common.Address {
	return v.cfg.Token
}

// FetchTransfer retrieves and decodes the USDC Transfer event of txHash.
// Every failure is returned as *Error.
func (v *Verifier) FetchTransfer(ctx context.Context, txHash string) (*Transfer, error) {
	client, err := v.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	receipt, err := v.fetchReceipt(ctx, client, txHash)
	if err != nil {
		return nil, err
	}

	lg := LocateTransfer(receipt.Logs, v.cfg.Token)
	if lg == nil {
		return nil, &Error{Kind: KindNoTransferEvent, TxHash: txHash, Contract: v.cfg.Token.Hex()}
	}

	decoded, err := decodeTransferLog(lg)
	if err != nil {
		return nil, &Error{Kind: KindMalformedEvent, TxHash: txHash, Contract: v.cfg.Token.Hex(), Err: err}
	}

	header, err := v.fetchHeader(ctx, client, receipt.BlockNumber)
	if err != nil {
		return nil, &Error{Kind: KindBlockNotFound, TxHash: txHash, Err: err}
	}

	t := &Transfer{
		Sender:         decoded.sender,
		Recipient:      decoded.recipient,
		RawUnits:       decoded.raw,
		Amount:         ToUSDC(decoded.raw),
		BlockTimestamp: header.Time,
		BlockNumber:    receipt.BlockNumber.Uint64(),
		LogIndex:       decoded.index,
		TxHash:         txHash,
	}

	log.WithFields(log.Fields{
		"tx":        txHash,
		"sender":    t.Sender.Hex(),
		"recipient": t.Recipient.Hex(),
		"amount":    t.Amount.String(),
		"block":     t.BlockNumber,
	}).Debug("decoded usdc transfer")

	return t, nil
}

func (v *Verifier) connect(ctx context.Context) (ChainReader, error) {
	dialCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	client, err := v.dial(dialCtx, v.cfg.RPCURL)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Endpoint: v.cfg.RPCURL, Err: err}
	}

	// http endpoints are dialed lazily, the chain id call is the actual handshake
	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, &Error{Kind: KindConnection, Endpoint: v.cfg.RPCURL, Err: err}
	}

	if v.cfg.ChainID != 0 && chainID.Cmp(big.NewInt(v.cfg.ChainID)) != 0 {
		log.WithFields(log.Fields{
			"endpoint":   v.cfg.RPCURL,
			"configured": v.cfg.ChainID,
			"node":       chainID.String(),
		}).Warn("rpc endpoint reports a different chain id")
	}

	return client, nil
}

func (v *Verifier) fetchReceipt(ctx context.Context, client ChainReader, txHash string) (*types.Receipt, error) {
	if !txHashPattern.MatchString(txHash) {
		return nil, &Error{Kind: KindTransactionNotFound, TxHash: txHash, Err: errors.New("malformed transaction hash")}
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	receipt, err := client.TransactionReceipt(callCtx, common.HexToHash(txHash))
	if err != nil {
		return nil, &Error{Kind: KindTransactionNotFound, TxHash: txHash, Err: err}
	}
	if receipt == nil {
		return nil, &Error{Kind: KindTransactionNotFound, TxHash: txHash, Err: errors.New("empty receipt")}
	}
	return receipt, nil
}

func (v *Verifier) fetchHeader(ctx context.Context, client ChainReader, number *big.Int) (*types.Header, error) {
	if number == nil {
		return nil, errors.New("receipt has no block number")
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	header, err := client.HeaderByNumber(callCtx, number)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, errors.New("empty block header")
	}
	return header, nil
}
