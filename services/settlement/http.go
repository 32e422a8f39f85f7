package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPSettler submits transfers to a settlement service: POST <url> {transfer} -> {hash, block, signer}.
type HTTPSettler struct {
	url    string
	client *http.Client
}

func NewHTTPSettler(url string, timeout time.Duration, client *http.Client) *HTTPSettler {
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSettler{url: url, client: client}
}

func (s *HTTPSettler) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", t.TransactionID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSettlementFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var receipt Receipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("%w: decode receipt: %v", ErrSettlementFailed, err)
	}
	if receipt.Hash == "" {
		return nil, fmt.Errorf("%w: empty transfer hash", ErrSettlementFailed)
	}

	return &receipt, nil
}
