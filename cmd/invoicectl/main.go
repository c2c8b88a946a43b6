package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go-invoice/config"
	"go-invoice/payment/invoice"
	"go-invoice/payment/ledger"
	"go-invoice/payment/qrcode"
	"go-invoice/payment/verify"
	"go-invoice/payment/webhook"
	"go-invoice/utils"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdout, nil)
	if err := app.Run(os.Args); err != nil {
		// usage errors from flag parsing, command failures already printed their payload
		printJSON(os.Stdout, map[string]string{"error": err.Error()})
		os.Exit(1)
	}
}

// env is built once in Before and shared by every command.
type env struct {
	out     io.Writer
	fetcher invoice.TransferFetcher
	cfg     *config.Config
	svc     *invoice.Service
	close   func() error
}

func newApp(out io.Writer, fetcher invoice.TransferFetcher) *cli.App {
	e := &env{out: out, fetcher: fetcher}

	invoiceIDFlag := &cli.StringFlag{
		Name:     "invoice-id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "invoice id",
	}

	app := cli.NewApp()
	app.Name = "invoicectl"
	app.Usage = "issue USDC invoices and verify their on-chain settlement"
	app.Writer = out
	app.Before = e.setup
	app.After = e.teardown

	app.Commands = []*cli.Command{
		{
			Name:   "create",
			Usage:  "create a pending invoice",
			Action: e.create,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "amount",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "amount in USDC, up to 6 decimals",
				},
				&cli.StringFlag{
					Name:  "memo",
					Usage: "free text description",
				},
				&cli.StringFlag{
					Name:  "payee",
					Usage: "wallet address the transfer must go to, PAYEE_ADDRESS when omitted",
				},
				&cli.Int64Flag{
					Name:  "expiry",
					Value: invoice.DefaultExpiry,
					Usage: "seconds until the invoice expires",
				},
			},
		},
		{
			Name:   "verify",
			Usage:  "verify a USDC transfer settles an invoice",
			Action: e.verify,
			Flags: []cli.Flag{
				invoiceIDFlag,
				&cli.StringFlag{
					Name:     "tx",
					Required: true,
					Usage:    "transaction hash",
				},
			},
		},
		{
			Name:   "status",
			Usage:  "print the latest record of an invoice",
			Action: e.status,
			Flags:  []cli.Flag{invoiceIDFlag},
		},
		{
			Name:   "deliver",
			Usage:  "mark a paid invoice as delivered",
			Action: e.deliver,
			Flags: []cli.Flag{
				invoiceIDFlag,
				&cli.StringFlag{
					Name:     "proof-url",
					Required: true,
					Usage:    "URL proving delivery",
				},
			},
		},
		{
			Name:   "list",
			Usage:  "list invoices oldest first",
			Action: e.list,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "status",
					Usage: "only invoices with this status",
				},
			},
		},
		{
			Name:   "qrcode",
			Usage:  "print the payment request URI of an invoice and optionally write it as a QR code",
			Action: e.qrcode,
			Flags: []cli.Flag{
				invoiceIDFlag,
				&cli.StringFlag{
					Name:  "out",
					Usage: "PNG file to write",
				},
			},
		},
	}

	return app
}

func (e *env) setup(c *cli.Context) error {
	if err := utils.LoadEnv(); err != nil {
		return e.fail(fmt.Errorf("loading .env: %w", err), "", "")
	}

	cfg, err := config.Load()
	if err != nil {
		return e.fail(err, "", "")
	}
	cfg.SetupLogging()
	e.cfg = cfg

	store, closeFn, err := ledger.Open(cfg.LedgerDSN, cfg.LedgerPath)
	if err != nil {
		return e.fail(err, "", "")
	}
	e.close = closeFn

	fetcher := e.fetcher
	if fetcher == nil {
		fetcher = verify.New(cfg.VerifierConfig())
	}

	opts := []invoice.Option{invoice.WithDefaultPayee(cfg.PayeeAddress)}
	if cfg.WebhookURL != "" {
		opts = append(opts, invoice.WithNotifier(webhook.New(cfg.WebhookURL, cfg.RPCTimeout)))
	}
	e.svc = invoice.NewService(store, fetcher, opts...)
	return nil
}

func (e *env) teardown(c *cli.Context) error {
	if e.close == nil {
		return nil
	}
	if err := e.close(); err != nil {
		log.WithError(err).Warn("closing ledger")
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("encoding output")
	}
}

// fail prints the error payload and makes the process exit with status 1.
func (e *env) fail(err error, invoiceID, tx string) error {
	printJSON(e.out, invoice.NewErrorResponse(err, invoiceID, tx))
	return cli.Exit("", 1)
}

func (e *env) create(c *cli.Context) error {
	amount, err := decimal.NewFromString(c.String("amount"))
	if err != nil {
		return e.fail(&invoice.BadRequestError{Field: "amount", Reason: fmt.Sprintf("%q is not a number", c.String("amount"))}, "", "")
	}

	rec, err := e.svc.Create(invoice.CreateRequest{
		Amount:        amount,
		Memo:          c.String("memo"),
		Payee:         c.String("payee"),
		ExpirySeconds: c.Int64("expiry"),
	})
	if err != nil {
		return e.fail(err, "", "")
	}
	printJSON(e.out, rec)
	return nil
}

func (e *env) verify(c *cli.Context) error {
	id, tx := c.String("invoice-id"), c.String("tx")

	settlement, err := e.svc.Verify(c.Context, id, tx)
	if err != nil {
		return e.fail(err, id, tx)
	}
	printJSON(e.out, settlement)
	return nil
}

func (e *env) status(c *cli.Context) error {
	id := c.String("invoice-id")

	rec, err := e.svc.Status(id)
	if err != nil {
		return e.fail(err, id, "")
	}
	printJSON(e.out, rec)
	return nil
}

func (e *env) deliver(c *cli.Context) error {
	id := c.String("invoice-id")

	rec, err := e.svc.Deliver(c.Context, id, c.String("proof-url"))
	if err != nil {
		return e.fail(err, id, "")
	}
	printJSON(e.out, rec)
	return nil
}

func (e *env) list(c *cli.Context) error {
	recs, err := e.svc.List(c.String("status"))
	if err != nil {
		return e.fail(err, "", "")
	}
	printJSON(e.out, map[string]interface{}{"invoices": recs, "count": len(recs)})
	return nil
}

func (e *env) qrcode(c *cli.Context) error {
	id := c.String("invoice-id")

	rec, err := e.svc.Status(id)
	if err != nil {
		return e.fail(err, id, "")
	}

	uri, err := qrcode.InvoiceURI(rec, e.cfg.TokenAddress(), e.cfg.ChainID)
	if err != nil {
		if errors.Is(err, qrcode.ErrNoPayee) {
			err = &invoice.BadRequestError{Field: "payee", Reason: err.Error()}
		}
		return e.fail(err, id, "")
	}

	out := map[string]string{"invoice_id": id, "uri": uri}
	if path := c.String("out"); path != "" {
		if err := qrcode.WriteQRCode(uri, path); err != nil {
			return e.fail(err, id, "")
		}
		out["file"] = path
	}
	printJSON(e.out, out)
	return nil
}
