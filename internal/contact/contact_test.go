package contact

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func TestSubmissionValidate(t *testing.T) {
	cases := []struct {
		sub  Submission
		want string
	}{
		{Submission{Email: "a@b.com", Message: "hi"}, "Name is required."},
		{Submission{Name: "Ada", Email: "not-an-email", Message: "hi"}, "Invalid email."},
		{Submission{Name: "Ada", Email: "Ada <a@b.com>", Message: "hi"}, "Invalid email."},
		{Submission{Name: "Ada", Email: "a@b.com", Message: "   "}, "Message is required."},
	}
	for _, tc := range cases {
		err := tc.sub.Validate()
		var validation *ValidationError
		require.True(t, errors.As(err, &validation), "expected validation error for %+v", tc.sub)
		require.Equal(t, tc.want, validation.Message)
	}

	ok := Submission{Name: " Ada ", Email: " a@b.com ", Message: " hello "}
	require.NoError(t, ok.Validate())
	require.Equal(t, "Ada", ok.Name)
	require.Equal(t, "hello", ok.Message)
}

func TestSubmitStoresAndMails(t *testing.T) {
	repo := NewInMemoryRepository()
	mailer := &recordingMailer{}
	svc := NewService(repo, mailer, "support@easysheets.test", "owner@easysheets.test", nil)

	msg, err := svc.Submit(context.Background(), Submission{Name: "Ada", Email: "ada@example.com", Message: "<b>hi</b>"}, "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.9", msg.IPAddress)

	stored := repo.Messages()
	require.Len(t, stored, 1)
	require.Equal(t, "<b>hi</b>", stored[0].Body)

	require.Len(t, mailer.sent, 2)
	byRecipient := map[string]Mail{}
	for _, m := range mailer.sent {
		byRecipient[m.To] = m
	}
	admin := byRecipient["owner@easysheets.test"]
	require.Equal(t, "New Contact Form Submission from Ada", admin.Subject)
	require.Contains(t, admin.HTML, "&lt;b&gt;hi&lt;/b&gt;")
	require.Contains(t, admin.HTML, "10.0.0.9")

	confirmation := byRecipient["ada@example.com"]
	require.Equal(t, "Thanks for Contacting Easy Sheets!", confirmation.Subject)
	require.Contains(t, confirmation.From, "support@easysheets.test")
}

func TestSubmitMailFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("relay down")}
	svc := NewService(NewInMemoryRepository(), mailer, "support@easysheets.test", "", nil)

	_, err := svc.Submit(context.Background(), Submission{Name: "Ada", Email: "ada@example.com", Message: "hi"}, "10.0.0.9")
	require.ErrorContains(t, err, "relay down")
	require.Len(t, mailer.sent, 1)
}

func TestSMTPMailerComposesMultipart(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 587, Username: "u", Password: "p"})
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		require.NotNil(t, a)
		return nil
	}

	err := mailer.Send(context.Background(), Mail{
		From:    `"Easy Sheets Support" <support@easysheets.test>`,
		To:      "ada@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.test:587", gotAddr)
	require.Equal(t, "support@easysheets.test", gotFrom)
	require.Equal(t, []string{"ada@example.com"}, gotTo)

	body := string(gotBody)
	require.Contains(t, body, "Subject: Hello\r\n")
	require.Contains(t, body, "multipart/alternative")
	require.Contains(t, body, "plain body")
	require.Contains(t, body, "<p>html body</p>")
}

func TestComposeEncodesSubject(t *testing.T) {
	body, err := compose(Mail{From: "a@b.com", To: "c@d.com", Subject: "Grüße"}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "=?utf-8?q?"))
}
