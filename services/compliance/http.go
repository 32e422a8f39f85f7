package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPVerifier asks a remote compliance service: POST <url> {claim} -> {isValid, reason}.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

func NewHTTPVerifier(url string, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPVerifier{url: url, client: client}
}

func (v *HTTPVerifier) Name() string { return "http" }

func (v *HTTPVerifier) Verify(ctx context.Context, claim Claim) (Decision, error) {
	body, err := json.Marshal(claim)
	if err != nil {
		return Decision{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Decision{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		IsValid bool   `json:"isValid"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Decision{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return Decision{Valid: out.IsValid, Reason: out.Reason}, nil
}
