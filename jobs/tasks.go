package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pocketshop-app/identity/internal/jobs"
	"github.com/pocketshop-app/identity/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeVerificationEmail delivers an email-verification link.
	TaskTypeVerificationEmail = "mail:verification"
	// TaskTypePasswordResetEmail delivers a password-reset link.
	TaskTypePasswordResetEmail = "mail:password_reset"
	// TaskTypeEmailChangeEmail delivers a change-of-address confirmation link.
	TaskTypeEmailChangeEmail = "mail:email_change"
)

// MailPayload describes a single action-link email.
type MailPayload struct {
	To   string `json:"to"`
	Link string `json:"link"`
}

// NewMailTask constructs an Asynq task of the given mail type.
func NewMailTask(taskType string, payload MailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// MailHandler processes the mail task types through an SMTP sender.
type MailHandler struct {
	sender  *mail.Sender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewMailHandler constructs a MailHandler.
func NewMailHandler(sender *mail.Sender, logger *slog.Logger) *MailHandler {
	return &MailHandler{sender: sender, logger: logger, metrics: jobmetrics.NewMetrics(nil)}
}

// Handle dispatches a mail task to the matching sender method. A payload
// that fails to decode is not retried.
func (h *MailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(t.Type())
	var payload MailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	var err error
	switch t.Type() {
	case TaskTypeVerificationEmail:
		err = h.sender.SendVerification(payload.To, payload.Link)
	case TaskTypePasswordResetEmail:
		err = h.sender.SendPasswordReset(payload.To, payload.Link)
	case TaskTypeEmailChangeEmail:
		err = h.sender.SendEmailChange(payload.To, payload.Link)
	default:
		return tracker.End(asynq.SkipRetry)
	}
	if err != nil {
		h.logger.Warn("send mail",
			slog.String("type", t.Type()), slog.String("to", payload.To), slog.Any("error", err))
		return tracker.End(err)
	}
	h.logger.Info("mail sent", slog.String("type", t.Type()), slog.String("to", payload.To))
	return tracker.End(nil)
}
