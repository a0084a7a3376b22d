// Package contact stores contact-form messages and notifies the site owner.
package contact

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Message is a stored contact-form submission.
type Message struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Body      string
	IPAddress string
	CreatedAt time.Time
}

// Submission is the form as posted by a visitor.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ValidationError reports the first invalid form field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate trims the submission and checks each field in form order.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Message = strings.TrimSpace(s.Message)

	if s.Name == "" {
		return &ValidationError{Message: "Name is required."}
	}
	if addr, err := mail.ParseAddress(s.Email); err != nil || addr.Address != s.Email {
		return &ValidationError{Message: "Invalid email."}
	}
	if s.Message == "" {
		return &ValidationError{Message: "Message is required."}
	}
	return nil
}

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, msg Message) error
}

// Mail is a single outgoing email with text and HTML bodies.
type Mail struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Service handles submissions.
type Service struct {
	repo      Repository
	mailer    Mailer
	sender    string
	recipient string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. sender is the From address; recipient gets
// the admin notification.
func NewService(repo Repository, mailer Mailer, sender, recipient string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:      repo,
		mailer:    mailer,
		sender:    sender,
		recipient: recipient,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates and stores the submission, then mails the admin a copy and
// the visitor a confirmation.
func (s *Service) Submit(ctx context.Context, sub Submission, ip string) (Message, error) {
	if err := sub.Validate(); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        uuid.New(),
		Name:      sub.Name,
		Email:     sub.Email,
		Body:      sub.Message,
		IPAddress: ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("store contact message: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.recipient != "" {
		g.Go(func() error {
			return s.mailer.Send(gctx, s.adminMail(msg))
		})
	}
	g.Go(func() error {
		return s.mailer.Send(gctx, s.confirmationMail(msg))
	})
	if err := g.Wait(); err != nil {
		return Message{}, fmt.Errorf("send contact mail: %w", err)
	}

	s.logger.InfoContext(ctx, "contact message received", "id", msg.ID, "ip", ip)
	return msg, nil
}

func (s *Service) adminMail(msg Message) Mail {
	return Mail{
		From:    s.sender,
		To:      s.recipient,
		Subject: "New Contact Form Submission from " + msg.Name,
		Text:    fmt.Sprintf("Name: %s\nEmail: %s\n\n%s\n\nIP Address: %s\n", msg.Name, msg.Email, msg.Body, msg.IPAddress),
		HTML: fmt.Sprintf("<p><strong>Name:</strong> %s</p><p><strong>Email:</strong> %s</p><p><strong>Message:</strong></p><p>%s</p><hr><p>IP Address: %s</p>",
			html.EscapeString(msg.Name), html.EscapeString(msg.Email), html.EscapeString(msg.Body), html.EscapeString(msg.IPAddress)),
	}
}

func (s *Service) confirmationMail(msg Message) Mail {
	return Mail{
		From:    fmt.Sprintf("%q <%s>", "Easy Sheets Support", s.sender),
		To:      msg.Email,
		Subject: "Thanks for Contacting Easy Sheets!",
		Text: fmt.Sprintf("Hi %s,\n\nThank you for reaching out to us. We have received your message and will get back to you shortly.\n\nRegards,\nEasy Sheets Team\n",
			msg.Name),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Thank you for reaching out to <strong>Easy Sheets</strong>.</p><p>We have received your message and will get back to you shortly.</p>",
			html.EscapeString(msg.Name)),
	}
}
