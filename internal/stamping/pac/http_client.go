// Package pac implements the HTTP client for the external certification
// provider that cryptographically stamps and cancels fiscal documents.
package pac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nominalabs/nomina/internal/config"
	"github.com/nominalabs/nomina/internal/security/vault"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
)

type stampRequestBody struct {
	XML string `json:"xml"`
}

type stampResponseBody struct {
	UUID      string `json:"uuid"`
	SignedXML string `json:"signed_xml"`
	StampedAt string `json:"stamped_at"`
}

type errorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cancelRequestBody struct {
	UUID   string `json:"uuid"`
	Reason string `json:"reason"`
}

// HTTPClient talks to the PAC over its REST surface. The provider is treated
// as unreliable: every call carries a bounded timeout and callers classify
// failures through *domain.ProviderError.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds the client from configuration. The API key may be
// stored as a sealed vault envelope; it is unsealed here, once, at startup.
func NewHTTPClient(cfg *config.Config, v *vault.Vault) (*HTTPClient, error) {
	timeout := cfg.PACTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	apiKey := strings.TrimSpace(cfg.PACAPIKey)
	if vault.IsSealed(apiKey) {
		unsealed, err := v.Unseal(apiKey)
		if err != nil {
			return nil, err
		}
		apiKey = unsealed
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PACBaseURL), "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Stamp(ctx context.Context, req stampingdomain.StampRequest) (*stampingdomain.StampResult, error) {
	body, err := json.Marshal(stampRequestBody{XML: req.XML})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/stamps", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classifyStatusError(resp)
	}

	var out stampResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &stampingdomain.ProviderError{Code: "invalid_response", Message: err.Error(), Retryable: true}
	}
	stampUUID, err := uuid.Parse(strings.TrimSpace(out.UUID))
	if err != nil {
		return nil, &stampingdomain.ProviderError{Code: "invalid_uuid", Message: out.UUID, Retryable: false}
	}
	stampedAt, err := time.Parse(time.RFC3339, out.StampedAt)
	if err != nil {
		stampedAt = time.Now().UTC()
	}

	return &stampingdomain.StampResult{
		UUID:      stampUUID,
		SignedXML: out.SignedXML,
		StampedAt: stampedAt,
	}, nil
}

func (c *HTTPClient) Cancel(ctx context.Context, req stampingdomain.CancelRequest) error {
	body, err := json.Marshal(cancelRequestBody{UUID: req.StampUUID.String(), Reason: req.Reason})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/cancellations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return classifyStatusError(resp)
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &stampingdomain.ProviderError{Code: "timeout", Message: err.Error(), Retryable: true}
	}
	return &stampingdomain.ProviderError{Code: "network", Message: err.Error(), Retryable: true}
}

func classifyStatusError(resp *http.Response) error {
	var body errorResponseBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code == "" {
		body.Code = http.StatusText(resp.StatusCode)
	}
	return &stampingdomain.ProviderError{
		Code:    body.Code,
		Message: body.Message,
		// 5xx is the provider's problem and worth retrying; 4xx means the
		// document or request is wrong and a retry cannot succeed.
		Retryable: resp.StatusCode >= http.StatusInternalServerError,
	}
}
