// Package notify sends account lifecycle emails.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPOptions struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	AdminEmail string
	// Send defaults to smtp.SendMail, which upgrades with STARTTLS when the
	// server offers it.
	Send SendFunc
}

// Mailer delivers notifications over SMTP.
type Mailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	admin  string
	send   SendFunc
	title  cases.Caser
	logger infra.Logger
}

func NewMailer(opts SMTPOptions, logger infra.Logger) *Mailer {
	send := opts.Send
	if send == nil {
		send = smtp.SendMail
	}
	from := opts.From
	if from == "" {
		from = opts.User
	}
	return &Mailer{
		addr:   net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		auth:   smtp.PlainAuth("", opts.User, opts.Password, opts.Host),
		from:   from,
		admin:  opts.AdminEmail,
		send:   send,
		title:  cases.Title(language.Und),
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Notify renders the message for event and sends it. It reports whether the
// mail was handed to the server.
func (m *Mailer) Notify(ctx context.Context, event string, payload map[string]string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	to, subject, body, err := m.render(event, payload)
	if err != nil {
		m.logger.Warn().Err(err).Str("event", event).Msg("notification not sent")
		return false
	}
	msg := buildMessage(m.from, to, subject, body)
	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		m.logger.Error().Err(err).Str("event", event).Str("to", to).Msg("failed to send email")
		return false
	}
	m.logger.Info().Str("event", event).Str("to", to).Msg("email sent")
	return true
}

func (m *Mailer) render(event string, p map[string]string) (to, subject, body string, err error) {
	name := m.title.String(strings.TrimSpace(p["name"]))
	var b strings.Builder
	switch event {
	case domain.EventPermissionRequested:
		if m.admin == "" {
			return "", "", "", fmt.Errorf("ADMIN_EMAIL not configured")
		}
		fmt.Fprintf(&b, "A new permission request has been submitted:\n\n")
		fmt.Fprintf(&b, "Name: %s\nEmail: %s\nReason: %s\nTimestamp: %s\n\n", name, p["email"], p["reason"], p["timestamp"])
		b.WriteString("Please review the request in the admin interface.\n")
		return m.admin, "New Permission Request: " + name, b.String(), nil

	case domain.EventRequestApproved:
		fmt.Fprintf(&b, "Hello %s,\n\n", name)
		b.WriteString("Your permission request has been approved! Your account has been created.\n\n")
		fmt.Fprintf(&b, "Login Credentials:\nEmail: %s\nPassword: %s\n\n", p["email"], p["password"])
		b.WriteString("You can now sign in and create style transfers.\n\n")
		b.WriteString("Please keep your password secure and do not share it with anyone.\n\nBest regards,\nStyle Transfer Team\n")
		return p["email"], "Your Style Transfer Account Has Been Approved", b.String(), nil

	case domain.EventRequestRejected:
		fmt.Fprintf(&b, "Hello %s,\n\n", name)
		b.WriteString("Thank you for your interest in the style transfer application.\n\n")
		b.WriteString("Unfortunately, your permission request has been declined at this time.\n")
		if reason := strings.TrimSpace(p["reason"]); reason != "" {
			fmt.Fprintf(&b, "\nReason: %s\n", reason)
		}
		b.WriteString("\nIf you have any questions, please feel free to reach out.\n\nBest regards,\nStyle Transfer Team\n")
		return p["email"], "Permission Request Status Update", b.String(), nil
	}
	return "", "", "", fmt.Errorf("unknown event %q", event)
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// headerValue folds a value onto one header line. Line breaks become spaces
// and other control characters are dropped.
func headerValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, v)
}

// LogNotifier records notifications in the log instead of sending them. Used
// when SMTP is not configured.
type LogNotifier struct {
	logger infra.Logger
}

func NewLogNotifier(logger infra.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, event string, payload map[string]string) bool {
	n.logger.Warn().
		Str("event", event).
		Str("email", payload["email"]).
		Msg("SMTP credentials not configured, notification not sent")
	return false
}

var (
	_ domain.Notifier = (*Mailer)(nil)
	_ domain.Notifier = (*LogNotifier)(nil)
)
