package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

// SendGridMailer sends multipart (plain text and HTML) mail through the
// SendGrid v3 API.
type SendGridMailer struct {
	apiKey    string
	host      string
	fromEmail string
	fromName  string
}

// NewSendGridMailer targets the public SendGrid API when host is empty.
func NewSendGridMailer(apiKey, host, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, host: host, fromEmail: fromEmail, fromName: fromName}
}

func (m *SendGridMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	html, err := WrapHTML(subject, body)
	if err != nil {
		return fmt.Errorf("render html body: %w", err)
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.fromEmail),
		subject,
		mail.NewEmail("", to),
		body,
		html,
	)

	req := sendgrid.GetRequest(m.apiKey, sendEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = mail.GetRequestBody(message)
	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
