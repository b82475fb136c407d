package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/omnilaze/universal/pkg/logger"
)

// SpugSender delivers verification codes through the Spug push gateway.
type SpugSender struct {
	client   *http.Client
	endpoint string
	log      *logger.Logger
}

var _ Sender = (*SpugSender)(nil)

// NewSpugSender creates a sender posting to the given Spug endpoint.
// A nil client falls back to http.DefaultClient.
func NewSpugSender(client *http.Client, endpoint string, log *logger.Logger) *SpugSender {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.NewDefault("spug-sender")
	}
	return &SpugSender{client: client, endpoint: endpoint, log: log}
}

// Send posts the code to the gateway. "验证码" is the Spug template name
// the gateway expands around the code.
func (s *SpugSender) Send(ctx context.Context, phone, code string) error {
	payload, err := json.Marshal(map[string]string{
		"name":    "验证码",
		"code":    code,
		"targets": phone,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("spug request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spug request: unexpected status %d", resp.StatusCode)
	}
	return nil
}
