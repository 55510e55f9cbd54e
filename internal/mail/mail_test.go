// AngelaMos | 2026
// mail_test.go

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestVerificationMessageCarriesCode(t *testing.T) {
	msg := VerificationMessage("ada@example.com", "123456", 10*time.Minute)

	if msg.To != "ada@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.Body, "123456") {
		t.Fatalf("code missing from body: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "10 minutes") {
		t.Fatalf("expiry missing from body: %q", msg.Body)
	}
	if msg.Template != TemplateVerification {
		t.Fatalf("unexpected template %q", msg.Template)
	}
}

func TestWelcomeMessageFallsBackWithoutName(t *testing.T) {
	msg := WelcomeMessage("x@example.com", "  ", "controller")
	if !strings.HasPrefix(msg.Body, "Hi there,") {
		t.Fatalf("unexpected greeting: %q", msg.Body)
	}
}

func TestValidateRejectsHeaderInjection(t *testing.T) {
	cases := []Message{
		{To: ""},
		{To: "a@example.com\r\nBcc: evil@example.com"},
		{To: "a@example.com", Subject: "hi\nBcc: evil@example.com"},
	}
	for _, msg := range cases {
		if err := msg.Validate(); err == nil {
			t.Fatalf("expected validation error for %#v", msg)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	body, err := json.Marshal(PasswordResetMessage("a@example.com", "654321", time.Minute))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Template != TemplatePasswordReset || !strings.Contains(msg.Body, "1 minute") {
		t.Fatalf("unexpected message %#v", msg)
	}

	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if _, err := DecodeMessage([]byte(`{"subject":"x"}`)); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{
		Address: "smtp.example.com:587",
		Host:    "smtp.example.com",
		From:    "noreply@example.com",
	})

	var gotAddr string
	var gotTo []string
	var gotRaw []byte
	s.send = func(addr string, _ smtp.Auth, _ string, to []string, raw []byte) error {
		gotAddr, gotTo, gotRaw = addr, to, raw
		return nil
	}

	msg := VerificationMessage("ada@example.com", "111222", 10*time.Minute)
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ada@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	raw := string(gotRaw)
	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"Subject: Verify your email\r\n",
		"\r\n\r\nYour verification code is 111222.",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("raw message missing %q:\n%s", want, raw)
		}
	}
}

func TestSMTPSenderWrapsFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Address: "x:25", Host: "x", From: "f@x"})
	boom := errors.New("connection refused")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := s.Send(context.Background(), Message{To: "a@x", Subject: "s"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	d := time.Second
	for range 10 {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("expected backoff capped at %s, got %s", maxBackoff, d)
	}
}

func TestSleepCtxStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if sleepCtx(ctx, time.Hour) {
		t.Fatalf("expected sleep to abort on cancelled context")
	}
}
