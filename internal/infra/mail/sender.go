package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/leadforge/internal/entity"
)

const providerName = "smtp"

// ErrOutcomeUnknown marks a send abandoned before the server answered.
var ErrOutcomeUnknown = errors.New("no answer before deadline, delivery outcome unknown")

// Dialer is the part of *gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// WithDialer swaps the SMTP transport.
func (s *EmailSender) WithDialer(d Dialer) *EmailSender {
	s.dialer = d
	return s
}

// Send delivers one message as text/plain with an HTML alternative carrying
// the tracking pixel. The generated Message-ID is the delivery id.
func (s *EmailSender) Send(ctx context.Context, msg entity.OutgoingEmail) (string, error) {
	from := msg.From
	if from == "" {
		from = s.From
	}
	if from == "" {
		return "", &entity.SystemicError{Provider: providerName, Err: errors.New("no sender address configured")}
	}

	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, newHTMLData(msg.Body, msg.PixelURL)); err != nil {
		return "", &entity.SendError{Recipient: msg.To, Reason: "render html", Err: err}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), senderDomain(from))

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	m.SetBody("text/plain", msg.Body)
	m.AddAlternative("text/html", html.String())

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return "", classify(msg.To, err)
		}
		return messageID, nil
	case <-ctx.Done():
		// the dial goroutine may still deliver, so a hung server is an
		// outage with an unknown outcome rather than a recipient failure
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &entity.SystemicError{Provider: providerName, Err: fmt.Errorf("%w: %w", ErrOutcomeUnknown, ctx.Err())}
		}
		return "", ctx.Err()
	}
}

// classify separates failures of one recipient from failures of the
// provider itself. Authentication and connection failures stop the
// campaign; anything else is charged to the recipient.
func classify(to string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 421, protoErr.Code == 454, protoErr.Code == 530, protoErr.Code == 535:
			return &entity.SystemicError{Provider: providerName, Err: err}
		default:
			return &entity.SendError{Recipient: to, Reason: protoErr.Msg, Err: err}
		}
	}

	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &netErr) || errors.As(err, &opErr) {
		return &entity.SystemicError{Provider: providerName, Err: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "auth") {
		return &entity.SystemicError{Provider: providerName, Err: err}
	}
	return &entity.SendError{Recipient: to, Reason: err.Error(), Err: err}
}

func senderDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return strings.Trim(address[i+1:], "> ")
	}
	return "localhost"
}
