package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIError represents a non-2xx bridge response, carrying enough of the wire
// response to let internal/retry classify it as transient or not.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge http %d: %s", e.Status, e.Body)
}

// HTTPBridge dispatches fire/close/modify commands to the external broker bridge
// over a JSON HTTP protocol.
type HTTPBridge struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

// NewHTTPBridge builds an HTTPBridge with a default 10s client timeout.
func NewHTTPBridge(baseURL, apiKey string) (*HTTPBridge, error) {
	return NewHTTPBridgeWithClient(baseURL, apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewHTTPBridgeWithClient builds an HTTPBridge with a caller-supplied http.Client,
// so the dispatch timeout can be tuned independently of the default.
func NewHTTPBridgeWithClient(baseURL, apiKey string, client *http.Client) (*HTTPBridge, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge base url: %w", err)
	}
	return &HTTPBridge{baseURL: u, apiKey: apiKey, client: client}, nil
}

func (b *HTTPBridge) Dispatch(ctx context.Context, cmd FireCommand) (*Ack, error) {
	return b.post(ctx, "/fire", cmd)
}

func (b *HTTPBridge) ClosePosition(ctx context.Context, cmd CloseCommand) (*Ack, error) {
	return b.post(ctx, "/close", cmd)
}

func (b *HTTPBridge) ModifyPosition(ctx context.Context, cmd ModifyCommand) (*Ack, error) {
	return b.post(ctx, "/modify", cmd)
}

type ackWire struct {
	BrokerTicket string `json:"broker_ticket"`
	Message      string `json:"message"`
}

func (b *HTTPBridge) post(ctx context.Context, path string, payload any) (*Ack, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode bridge request: %w", err)
	}

	endpoint := *b.baseURL
	endpoint.Path = endpoint.Path + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var wire ackWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}

	// Confirmed exactly when a broker ticket came back, per the bridge protocol's
	// own classification rule.
	return &Ack{
		BrokerTicket: wire.BrokerTicket,
		Confirmed:    wire.BrokerTicket != "",
		Message:      wire.Message,
	}, nil
}
