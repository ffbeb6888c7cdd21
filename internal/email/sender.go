// Package email delivers outbound customer mail over SMTP. Delivery is
// fire-and-forget from the caller's perspective; failures are logged by the
// subscriber, never surfaced to request handling.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	"eventcover_backend/platform/config"

	"github.com/skip2/go-qrcode"
	gomail "github.com/wneessen/go-mail"
)

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	FileName string
	Content  []byte
}

// Sender delivers templated messages via the configured SMTP server.
type Sender struct {
	cfg     config.EmailConfig
	enabled bool
}

// NewSender creates a Sender from the email configuration.
func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{cfg: cfg, enabled: cfg.GetEmailEnabled()}
}

func (s *Sender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	if !s.enabled {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetEmailFromName(), s.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.cfg.GetSMTPHost(),
		gomail.WithPort(s.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetSMTPUsername()),
		gomail.WithPassword(s.cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendQuoteReceived mails the customer their shareable quote number together
// with a QR code that reopens the quote.
func (s *Sender) SendQuoteReceived(ctx context.Context, toEmail, quoteNumber string, totalCents int64) error {
	quoteURL := fmt.Sprintf("%s/quote/%s", s.cfg.GetAppBaseURL(), quoteNumber)

	content, err := renderTemplate(quoteReceivedTmpl, map[string]any{
		"QuoteNumber": quoteNumber,
		"QuoteURL":    quoteURL,
		"Total":       formatCents(totalCents),
	})
	if err != nil {
		return err
	}

	var attachments []Attachment
	if png, err := qrcode.Encode(quoteURL, qrcode.Medium, 256); err == nil {
		attachments = append(attachments, Attachment{FileName: "quote-link.png", Content: png})
	}

	return s.send(ctx, toEmail, fmt.Sprintf("Your event coverage quote %s", quoteNumber), content, attachments...)
}

// SendPolicyIssued mails the customer their policy number and, when available,
// the declaration document download link.
func (s *Sender) SendPolicyIssued(ctx context.Context, toEmail, policyNumber, documentURL string) error {
	content, err := renderTemplate(policyIssuedTmpl, map[string]any{
		"PolicyNumber": policyNumber,
		"DocumentURL":  documentURL,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf("Your policy %s is active", policyNumber), content)
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

var quoteReceivedTmpl = template.Must(template.New("quote_received").Parse(`
<html><body>
<h2>We received your quote request</h2>
<p>Your quote number is <strong>{{.QuoteNumber}}</strong>. The total premium is {{.Total}}.</p>
<p>You can return to your quote at any time: <a href="{{.QuoteURL}}">{{.QuoteURL}}</a></p>
<p>The attached QR code opens the same link.</p>
</body></html>`))

var policyIssuedTmpl = template.Must(template.New("policy_issued").Parse(`
<html><body>
<h2>Your policy is active</h2>
<p>Your policy number is <strong>{{.PolicyNumber}}</strong>.</p>
{{if .DocumentURL}}<p>Your declaration document: <a href="{{.DocumentURL}}">download</a></p>{{end}}
</body></html>`))
