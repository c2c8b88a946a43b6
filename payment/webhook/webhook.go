// Package webhook posts invoice events to an external URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go-invoice/payment/db"

	log "github.com/sirupsen/logrus"
)

type Payload struct {
	Event   string      `json:"event"`
	Invoice *db.Invoice `json:"invoice"`
}

// Notifier delivers events synchronously. Failures are logged, never returned.
type Notifier struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *Notifier) Notify(ctx context.Context, event string, rec *db.Invoice) {
	logger := log.WithFields(log.Fields{"event": event, "invoice_id": rec.InvoiceID})

	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(Payload{Event: event, Invoice: rec}); err != nil {
		logger.WithError(err).Error("encoding webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, payload)
	if err != nil {
		logger.WithError(err).Error("building webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.WithError(err).Error("posting webhook")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Errorf("webhook status code was %d, body: %s", resp.StatusCode, msg)
		return
	}
	logger.Debug("webhook delivered")
}
