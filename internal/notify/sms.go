package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSGateway posts messages to an HTTP SMS provider. The request shape
// (to/body JSON with a bearer key) matches the common gateway APIs.
type SMSGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewSMSGateway(url, apiKey string) *SMSGateway {
	return &SMSGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *SMSGateway) Send(ctx context.Context, contact, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   contact,
		"body": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	return nil
}
