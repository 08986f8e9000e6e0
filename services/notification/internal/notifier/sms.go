package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// SMSGateway posts messages as a form to an HTTP SMS provider.
type SMSGateway struct {
	url    string
	apiKey string
	sender string
	client *retryablehttp.Client
}

func NewSMSGateway(gatewayURL, apiKey, sender string, timeout time.Duration, retries int, logger *slog.Logger) *SMSGateway {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	if logger != nil {
		client.Logger = logger
	}
	return &SMSGateway{url: gatewayURL, apiKey: apiKey, sender: sender, client: client}
}

func (g *SMSGateway) SendSMS(ctx context.Context, to, message string) error {
	form := url.Values{}
	form.Set("to", to)
	form.Set("message", message)
	form.Set("sender", g.sender)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.url, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
