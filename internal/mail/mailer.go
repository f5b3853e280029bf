// Package mail sends booking confirmation emails.
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	dialer *gomail.Dialer
	sender string
}

func NewMailer(host string, port int, username, password, sender string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		sender: sender,
	}
}

// SendBookingConfirmation delivers the confirmation for a booked interview.
// Failures are the caller's to log; a booking never fails because its email
// did.
func (m *Mailer) SendBookingConfirmation(to, fullName, date, timeOfDay string) error {
	body := fmt.Sprintf(
		"Dear %s,\n\nYour interview has been successfully booked for:\nDate: %s\nTime: %s\n\nWe look forward to speaking with you!\n\nBest regards,\nTeam\n",
		fullName, date, timeOfDay,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Interview Booking Confirmation")
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending confirmation to %s: %w", to, err)
	}
	return nil
}
