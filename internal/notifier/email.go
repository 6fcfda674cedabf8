package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailNotifier struct {
	name   string
	params instance.EmailParams
	dialer mailSender
	// requireTLS is set when the instance demands STARTTLS on a plain connection.
	requireTLS func(ctx context.Context, host string, port int) error
}

func NewEmailNotifier(name string, p instance.EmailParams) (*EmailNotifier, error) {
	if p.ServerHost == "" || p.ServerPort == 0 || p.Sender == "" || len(p.Receivers) == 0 {
		return nil, fmt.Errorf("email notifier '%s' is missing required configuration (host, port, sender, receivers)", name)
	}
	en := &EmailNotifier{name: name, params: p, dialer: newDialer(p)}
	if p.StartTLSEnable && !p.SSLEnable {
		en.requireTLS = offersStartTLS
	}
	return en, nil
}

func newDialer(p instance.EmailParams) *gomail.Dialer {
	var d *gomail.Dialer
	if p.EnableSmtpAuth {
		d = gomail.NewDialer(p.ServerHost, p.ServerPort, p.User, p.Password)
	} else {
		d = &gomail.Dialer{Host: p.ServerHost, Port: p.ServerPort}
	}
	// SSL dials TLS directly. Otherwise gomail upgrades with STARTTLS whenever
	// the server offers it; starttlsEnable only makes the upgrade mandatory.
	d.SSL = p.SSLEnable
	d.TLSConfig = &tls.Config{ServerName: p.ServerHost}
	return d
}

func (en *EmailNotifier) Name() string {
	return en.name
}

func (en *EmailNotifier) message(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", en.params.Sender)
	m.SetHeader("To", en.params.Receivers...)
	if len(en.params.ReceiverCcs) > 0 {
		m.SetHeader("Cc", en.params.ReceiverCcs...)
	}
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Content)
	return m
}

// Send delivers the message. gomail has no context support, so ctx is only
// checked before dialing.
func (en *EmailNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if en.requireTLS != nil {
		if err := en.requireTLS(ctx, en.params.ServerHost, en.params.ServerPort); err != nil {
			return errors.Wrapf(err, "send email via %s:%d", en.params.ServerHost, en.params.ServerPort)
		}
	}
	if err := en.dialer.DialAndSend(en.message(msg)); err != nil {
		return errors.Wrapf(err, "send email via %s:%d", en.params.ServerHost, en.params.ServerPort)
	}
	return nil
}

// ErrStartTLSUnsupported is returned when starttlsEnable is set but the server
// does not advertise the extension.
var ErrStartTLSUnsupported = errors.New("server does not offer STARTTLS")

// offersStartTLS asks the server for its extensions. gomail cannot be told to
// refuse a plain session, so the check happens on a separate connection.
func offersStartTLS(ctx context.Context, host string, port int) error {
	var dl net.Dialer
	conn, err := dl.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return errors.Wrap(err, "dial smtp server")
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "smtp greeting")
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return errors.Wrap(err, "smtp hello")
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return ErrStartTLSUnsupported
	}
	return c.Quit()
}
