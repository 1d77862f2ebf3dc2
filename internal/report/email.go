package report

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
)

// Sender delivers report notifications.
type Sender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// NopSender discards notifications. Used when email is not configured.
type NopSender struct{}

func (NopSender) Send(context.Context, []string, string, string) error { return nil }

// SMTPSender sends HTML mail over authenticated SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates a sender for the given SMTP account.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one HTML message. The context is checked before dialing;
// net/smtp does not support mid-send cancellation.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// BuildAlertEmail renders one alert group as an HTML table.
func BuildAlertEmail(title string, rows []Row) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(title))
	fmt.Fprintf(&b, "<p>%d order(s) need attention.</p>", len(rows))
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0">`)
	b.WriteString("<tr><th>Order ID</th><th>Order Date</th><th>Customer</th><th>Carrier</th><th>Tracking Number</th><th>Status</th></tr>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range []string{row.OrderID, row.OrderDate, row.CustomerName, row.Carrier, row.TrackingNumber, row.TrackingStatus} {
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}
