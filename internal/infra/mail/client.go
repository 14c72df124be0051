package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/hikoo/napcat-mailer/internal/biz/repo"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

// Client delivers digest emails over SMTP with STARTTLS. The connection is
// dialed fresh per send from the current config snapshot, so SMTP and
// recipient changes apply without a restart.
type Client struct {
	cfg *conf.Provider
}

var _ repo.MailRepo = (*Client)(nil)

// NewClient creates a new mail client
func NewClient(cfg *conf.Provider) *Client {
	return &Client{cfg: cfg}
}

// Send delivers one HTML email to the configured recipient
func (c *Client) Send(ctx context.Context, subject, htmlBody string) error {
	cfg := c.cfg.Snapshot()

	msg := gomail.NewMsg()
	if err := msg.FromFormat(cfg.Email.SenderName, cfg.Email.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(cfg.Email.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	client, err := gomail.NewClient(cfg.SMTP.Host,
		gomail.WithPort(cfg.SMTP.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.SMTP.User),
		gomail.WithPassword(cfg.SMTP.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("[Mail] Sent %q to %s\n", subject, cfg.Email.To)
	return nil
}
