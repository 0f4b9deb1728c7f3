package channel

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v3"
)

// emailSender is the slice of the Resend client used by the channel; tests
// substitute a fake.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendEmailChannel delivers HTML email through the Resend API.
type ResendEmailChannel struct {
	sender   emailSender
	from     string
	fromName string
}

func NewResendEmailChannel(apiKey, from, fromName string) (*ResendEmailChannel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	client := resend.NewClient(apiKey)
	return newResendEmailChannel(client.Emails, from, fromName)
}

func newResendEmailChannel(sender emailSender, from, fromName string) (*ResendEmailChannel, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("from address is required")
	}

	return &ResendEmailChannel{
		sender:   sender,
		from:     strings.TrimSpace(from),
		fromName: strings.TrimSpace(fromName),
	}, nil
}

func (c *ResendEmailChannel) Send(ctx context.Context, address, subject, htmlBody string) error {
	if c == nil || c.sender == nil {
		return fmt.Errorf("email channel is not initialized")
	}
	if strings.TrimSpace(address) == "" {
		return &SendError{Message: "recipient address is empty", Transient: false}
	}

	from := c.from
	if c.fromName != "" {
		from = fmt.Sprintf("%s <%s>", c.fromName, c.from)
	}

	_, err := c.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{address},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return &SendError{
			Message:   "resend request failed",
			Transient: isTransientResendError(err),
			Cause:     err,
		}
	}

	return nil
}

// Resend surfaces API failures as plain errors with the HTTP status in the
// message. Recipient rejections (4xx validation) are permanent; rate limits
// and server-side failures are retried.
func isTransientResendError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid"):
		return false
	case strings.Contains(msg, "422") || strings.Contains(msg, "403") || strings.Contains(msg, "400"):
		return false
	}
	return true
}

// WrapHTMLBody wraps a rendered body in the standard email layout.
func WrapHTMLBody(title, body string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><style>`)
	b.WriteString(`body{font-family:Arial,sans-serif;line-height:1.6;color:#333;max-width:600px;margin:0 auto;padding:20px}`)
	b.WriteString(`.header{background-color:#4CAF50;color:white;padding:20px;text-align:center;border-radius:5px 5px 0 0}`)
	b.WriteString(`.content{background-color:#f9f9f9;padding:20px;border:1px solid #ddd}`)
	b.WriteString(`.footer{background-color:#333;color:white;padding:10px;text-align:center;font-size:12px;border-radius:0 0 5px 5px}`)
	b.WriteString(`</style></head><body>`)
	b.WriteString(`<div class="header"><h1>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</h1></div><div class="content"><p>`)
	b.WriteString(body)
	b.WriteString(`</p></div><div class="footer"><p>Easy Parking &middot; automated message, please do not reply.</p></div>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
