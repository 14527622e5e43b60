package notify

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer returns a mailer for the given relay.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, eris.New("notify: smtp host is required")
	}
	if cfg.From == "" {
		return nil, eris.New("notify: from address is required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send delivers all messages over one connection.
func (s *SMTPMailer) Send(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]*mail.Msg, 0, len(msgs))
	for _, m := range msgs {
		msg, err := s.build(m)
		if err != nil {
			return err
		}
		out = append(out, msg)
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "notify: create smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, out...); err != nil {
		return eris.Wrap(err, "notify: send")
	}

	zap.L().Info("emails sent", zap.Int("count", len(out)))
	return nil
}

func (s *SMTPMailer) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, eris.Wrapf(err, "notify: from %q", s.cfg.From)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, eris.Wrapf(err, "notify: to %v", m.To)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	for _, a := range m.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, eris.Wrapf(err, "notify: attach %s", a.Name)
		}
	}
	return msg, nil
}
