// AngelaMos | 2026
// message.go

package mail

import (
	"fmt"
	"strings"
	"time"
)

const (
	TemplateVerification  = "verification"
	TemplatePasswordReset = "password_reset"
	TemplateWelcome       = "welcome"
)

// Message is the unit handed to a Sender and carried on the mail queue.
type Message struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Template string    `json:"template"`
	QueuedAt time.Time `json:"queued_at"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("mail: missing recipient")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("mail: header injection in recipient or subject")
	}
	return nil
}

func VerificationMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:       to,
		Subject:  "Verify your email",
		Template: TemplateVerification,
		Body: fmt.Sprintf(
			"Your verification code is %s.\n\nIt expires in %s. If you did not create an account, ignore this email.\n",
			code,
			humanDuration(ttl),
		),
	}
}

func PasswordResetMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:       to,
		Subject:  "Reset your password",
		Template: TemplatePasswordReset,
		Body: fmt.Sprintf(
			"Use the code %s to reset your password.\n\nIt expires in %s. If you did not ask for a reset, ignore this email.\n",
			code,
			humanDuration(ttl),
		),
	}
}

func WelcomeMessage(to, firstName, role string) Message {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}

	return Message{
		To:       to,
		Subject:  "Your account is ready",
		Template: TemplateWelcome,
		Body: fmt.Sprintf(
			"Hi %s,\n\nAn administrator created a %s account for %s. Sign in with the password you were given and change it from your profile.\n",
			name,
			role,
			to,
		),
	}
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
