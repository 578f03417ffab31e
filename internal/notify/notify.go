// Package notify formats and sends transactional email.  Every send is
// best effort: callers log a failure and carry on, the persisted state
// change that triggered the email stays the source of truth.
package notify

import (
	"context"

	"github.com/iliyamo/linkmarket/internal/model"
)

// Email is a rendered message ready for a transport.
type Email struct {
	To      string   `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Kind    string   `json:"kind"`
}

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Notifier is the set of transactional emails the domain services emit.
type Notifier interface {
	OrderPaymentConfirmed(ctx context.Context, o model.Order) error
	OrderCompleted(ctx context.Context, o model.Order) error
	OrderStatusUpdated(ctx context.Context, o model.Order, previous model.OrderStatus) error
	SubmissionReceived(ctx context.Context, s model.SiteSubmission) error
	SubmissionApproved(ctx context.Context, s model.SiteSubmission) error
	SubmissionRejected(ctx context.Context, s model.SiteSubmission) error
	EmailVerification(ctx context.Context, u model.User, token string) error
	PasswordReset(ctx context.Context, u model.User, token string) error
}

// Email kinds, also used as the routing tag on queued emails.
const (
	KindPaymentConfirmed   = "order.payment_confirmed"
	KindOrderCompleted     = "order.completed"
	KindOrderStatusUpdated = "order.status_updated"
	KindSubmissionReceived = "submission.received"
	KindSubmissionApproved = "submission.approved"
	KindSubmissionRejected = "submission.rejected"
	KindEmailVerification  = "user.email_verification"
	KindPasswordReset      = "user.password_reset"
)
