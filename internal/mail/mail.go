package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/domain"
	applog "storefront/internal/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

// LongDate is the date format used in report subjects and bodies.
const LongDate = "January 02, 2006"

var views = template.Must(template.New("").Funcs(template.FuncMap{
	"money":    func(d decimal.Decimal) string { return d.StringFixed(2) },
	"longDate": func(t time.Time) string { return t.Format(LongDate) },
}).ParseFS(templatesFS, "templates/*.html"))

type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// New returns an SMTP sender, or a LogSender when no host is configured.
func New(cfg config.MailConfig) Sender {
	if cfg.Host == "" {
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	s := &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
	}
	if cfg.User != "" {
		s.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if len(m.To) == 0 {
		return fmt.Errorf("mail: no recipients for %q", m.Subject)
	}
	e := email.NewEmail()
	e.From = s.from
	e.To = m.To
	e.Subject = m.Subject
	e.HTML = []byte(m.HTML)

	// net/smtp has no context support; the send runs to completion and the
	// caller stops waiting when ctx ends.
	done := make(chan error, 1)
	go func() { done <- e.Send(s.addr, s.auth) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send %q: %w", m.Subject, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender records messages in the event log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	applog.Info(nil, "mail.logged", map[string]any{"to": m.To, "subject": m.Subject, "bytes": len(m.HTML)})
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func LowStock(to []string, a domain.LowStockAlert) (Message, error) {
	body, err := render("low_stock.html", a)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Low Stock Alert: " + a.Name, HTML: body}, nil
}

func DailyReport(to []string, r domain.SalesReport) (Message, error) {
	body, err := render("daily_report.html", r)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Daily Sales Report - " + r.Date.Format(LongDate), HTML: body}, nil
}
