package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"

	"go.uber.org/zap"

	"github.com/adelbrx/univhub/internal/config"
)

// Template selects the message rendered for a delivery.
type Template string

const (
	TemplateWelcome       Template = "welcome"
	TemplatePasswordReset Template = "passwordReset"
)

// Vars carries the values interpolated into a template.
type Vars struct {
	FirstName string
	URL       string
}

// Mailer delivers a rendered template to a recipient. Implementations
// return an error only when the message could not be handed off; callers
// that persisted a token first must compensate on failure.
type Mailer interface {
	Send(ctx context.Context, recipient string, kind Template, vars Vars) error
}

var subjects = map[Template]string{
	TemplateWelcome:       "Welcome to the UnivHub family!",
	TemplatePasswordReset: "Your password reset token (valid for only 10 minutes)",
}

var bodies = map[Template]*template.Template{
	TemplateWelcome: template.Must(template.New("welcome").Parse(
		"Hi {{.FirstName}},\n\n" +
			"Welcome to UnivHub! Please activate your account by visiting the link below.\n\n" +
			"{{.URL}}\n\n" +
			"The link is valid for 24 hours.\n")),
	TemplatePasswordReset: template.Must(template.New("passwordReset").Parse(
		"Hi {{.FirstName}},\n\n" +
			"Forgot your password? Submit a new password and confirmation at the link below.\n\n" +
			"{{.URL}}\n\n" +
			"If you didn't request a reset, please ignore this email.\n")),
}

func render(kind Template, vars Vars) (subject, body string, err error) {
	tpl, ok := bodies[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", kind)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", "", err
	}
	return subjects[kind], buf.String(), nil
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer builds the production mailer.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send renders the template and hands the message to the relay.
func (m *SMTPMailer) Send(_ context.Context, recipient string, kind Template, vars Vars) error {
	subject, body, err := render(kind, vars)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, recipient, subject, body)

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	var a smtp.Auth
	if m.cfg.Username != "" {
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, a, m.cfg.From, []string{recipient}, []byte(msg))
}

// LogMailer logs rendered messages instead of sending them. Used in the
// development posture when no relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds the development mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message that would have been delivered.
func (m *LogMailer) Send(_ context.Context, recipient string, kind Template, vars Vars) error {
	subject, body, err := render(kind, vars)
	if err != nil {
		return err
	}
	m.logger.Info("mail delivery (log only)",
		zap.String("to", recipient),
		zap.String("template", string(kind)),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// New selects the mailer for the current environment: SMTP when a relay host
// is configured, log-only otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost != "" {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(logger)
}
