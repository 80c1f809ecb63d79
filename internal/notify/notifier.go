// internal/notify/notifier.go
// Package notify delivers outbound email/SMS as fire-and-forget side
// effects. A delivery failure is logged and counted, never propagated:
// it must not roll back the state transition that triggered it.
package notify

import (
	"context"
	"fmt"
	"time"

	"letter-service/internal/common/logger"
	"letter-service/internal/common/metrics"
	"letter-service/internal/models"
)

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) error
}

// SMSSender is satisfied by aws.SNSClient.
type SMSSender interface {
	PublishSMS(ctx context.Context, phone, message string) error
}

const sendTimeout = 10 * time.Second

type Notifier struct {
	email     EmailSender
	sms       SMSSender
	fromEmail string
	logger    logger.Logger
}

func New(email EmailSender, sms SMSSender, fromEmail string, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{
		email:     email,
		sms:       sms,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// WelcomeAccount greets a freshly registered user.
func (n *Notifier) WelcomeAccount(user *models.User) {
	if n.email == nil {
		return
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account is ready. Log in to pick a package and start your application.\n",
		user.Name,
	)
	n.sendEmail(user.Email, "Welcome!", body)
}

// ReviewLinkIssued emails the single-use review link to the external doctor.
func (n *Notifier) ReviewLinkIssued(app *models.Application, doctorEmail, reviewURL string) {
	if n.email == nil {
		return
	}
	body := fmt.Sprintf(
		"A letter request is awaiting your review.\n\nOpen the link below to approve or deny. The link works once and expires in 7 days.\n\n%s\n",
		reviewURL,
	)
	n.sendEmail(doctorEmail, "Letter request awaiting review", body)
}

// CallbackClaimed texts the caller that a reviewer picked up their entry.
func (n *Notifier) CallbackClaimed(entry *models.QueueEntry) {
	if n.sms == nil || entry.Phone == "" {
		return
	}
	phone := entry.Phone
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.sms.PublishSMS(ctx, phone, "A reviewer will call you shortly."); err != nil {
			metrics.NotificationsFailed.WithLabelValues("sms").Inc()
			n.logger.Warn("sms delivery failed", map[string]interface{}{
				"queueEntryId": entry.ID,
				"error":        err.Error(),
			})
		}
	}()
}

func (n *Notifier) sendEmail(to, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.email.SendText(ctx, n.fromEmail, to, subject, body); err != nil {
			metrics.NotificationsFailed.WithLabelValues("email").Inc()
			n.logger.Warn("email delivery failed", map[string]interface{}{
				"to":      to,
				"subject": subject,
				"error":   err.Error(),
			})
		}
	}()
}
