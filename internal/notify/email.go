package notify

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/iliyamo/linkmarket/internal/model"
)

// Options tune the rendered emails.
type Options struct {
	FrontendURL string // base for links back to the web app
	AdminEmail  string // blind-copied on new submissions and confirmed payments
	Brand       string
}

// EmailNotifier implements Notifier by rendering HTML templates and
// handing the result to a Sender.
type EmailNotifier struct {
	sender    Sender
	opts      Options
	templates map[string]*template.Template
}

func NewEmailNotifier(sender Sender, opts Options) *EmailNotifier {
	if opts.Brand == "" {
		opts.Brand = "LinkMarket"
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &EmailNotifier{sender: sender, opts: opts, templates: parseTemplates()}
}

type emailData struct {
	Heading    string
	Name       string
	Brand      string
	Link       string
	Previous   model.OrderStatus
	Order      model.Order
	Submission model.SiteSubmission
}

func (n *EmailNotifier) send(ctx context.Context, kind, to, subject string, data emailData, bcc ...string) error {
	if to == "" {
		return fmt.Errorf("notify %s: empty recipient", kind)
	}
	data.Brand = n.opts.Brand
	if data.Heading == "" {
		data.Heading = subject
	}
	html, err := render(n.templates[kind], data)
	if err != nil {
		return fmt.Errorf("render %s: %w", kind, err)
	}
	return n.sender.Send(ctx, Email{To: to, Bcc: bcc, Subject: subject, HTML: html, Kind: kind})
}

func (n *EmailNotifier) link(path string, query url.Values) string {
	s := n.opts.FrontendURL + path
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

func (n *EmailNotifier) adminCopy() []string {
	if n.opts.AdminEmail == "" {
		return nil
	}
	return []string{n.opts.AdminEmail}
}

func (n *EmailNotifier) OrderPaymentConfirmed(ctx context.Context, o model.Order) error {
	return n.send(ctx, KindPaymentConfirmed, o.UserEmail, "Payment confirmed: "+o.ItemName,
		emailData{Name: o.UserName, Order: o, Link: n.link("/orders/"+o.ID, nil)}, n.adminCopy()...)
}

func (n *EmailNotifier) OrderCompleted(ctx context.Context, o model.Order) error {
	return n.send(ctx, KindOrderCompleted, o.UserEmail, "Your order is complete: "+o.ItemName,
		emailData{Name: o.UserName, Order: o, Link: n.link("/orders/"+o.ID, nil)})
}

func (n *EmailNotifier) OrderStatusUpdated(ctx context.Context, o model.Order, previous model.OrderStatus) error {
	return n.send(ctx, KindOrderStatusUpdated, o.UserEmail, fmt.Sprintf("Order update: %s is now %s", o.ItemName, o.Status),
		emailData{Name: o.UserName, Order: o, Previous: previous, Link: n.link("/orders/"+o.ID, nil)})
}

func (n *EmailNotifier) SubmissionReceived(ctx context.Context, s model.SiteSubmission) error {
	return n.send(ctx, KindSubmissionReceived, s.Email, "We received your site submission",
		emailData{Name: s.Name, Submission: s}, n.adminCopy()...)
}

func (n *EmailNotifier) SubmissionApproved(ctx context.Context, s model.SiteSubmission) error {
	return n.send(ctx, KindSubmissionApproved, s.Email, "Your site submission was approved",
		emailData{Name: s.Name, Submission: s})
}

func (n *EmailNotifier) SubmissionRejected(ctx context.Context, s model.SiteSubmission) error {
	return n.send(ctx, KindSubmissionRejected, s.Email, "Your site submission was not approved",
		emailData{Name: s.Name, Submission: s})
}

func (n *EmailNotifier) EmailVerification(ctx context.Context, u model.User, token string) error {
	return n.send(ctx, KindEmailVerification, u.Email, "Confirm your email address",
		emailData{Name: u.Nicename, Link: n.link("/verify-email", url.Values{"token": {token}})})
}

func (n *EmailNotifier) PasswordReset(ctx context.Context, u model.User, token string) error {
	return n.send(ctx, KindPasswordReset, u.Email, "Reset your password",
		emailData{Name: u.Nicename, Link: n.link("/reset-password", url.Values{"token": {token}})})
}

func formatMoney(v float64) string { return fmt.Sprintf("$%.2f", v) }
