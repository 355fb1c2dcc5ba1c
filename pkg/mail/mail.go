package mail

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jobwatch/upwork-fetcher/pkg/config"
	"github.com/jobwatch/upwork-fetcher/pkg/metrics"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Message is a single outbound notification. From and To are fixed by the
// sender's configuration; only subject, body and the optional attachment
// vary per run.
type Message struct {
	Subject    string
	Body       string
	Attachment *Attachment
}

// Sender delivers notification messages over SMTP.
type Sender interface {
	Send(msg Message) error
	Host() string
	Port() int
}

type sender struct {
	dialer *gomail.Dialer
	from   string
	to     string
	log    *zap.SugaredLogger
}

// NewSender creates an SMTP sender from the mail configuration. The dialer
// negotiates STARTTLS opportunistically on ports 587 and 25 and uses
// implicit TLS on 465.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	log.Infow("Initializing mail sender",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &sender{
		dialer: d,
		from:   cfg.Sender,
		to:     cfg.Recipient,
		log:    log,
	}
}

// Send delivers the message in a single attempt. The caller decides what a
// failure means; a failed notification send is never retried here.
func (s *sender) Send(msg Message) error {
	s.log.Infow("Sending mail", "to", s.to, "subject", msg.Subject)

	if err := s.dialer.DialAndSend(s.message(msg)); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Host()).Inc()
		return fmt.Errorf("sending mail to %s: %w", s.to, err)
	}

	metrics.MailSendSuccess.WithLabelValues(s.Host()).Inc()
	s.log.Infow("Mail sent", "to", s.to)
	return nil
}

// message builds the MIME message: plain-text UTF-8 body plus the optional
// in-memory attachment.
func (s *sender) message(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if att := msg.Attachment; att != nil {
		m.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Content)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {fmt.Sprintf("%s; name=%q", att.MIMEType, att.Filename)},
			}),
		)
	}
	return m
}

func (s *sender) Host() string {
	return s.dialer.Host
}

func (s *sender) Port() int {
	return s.dialer.Port
}
